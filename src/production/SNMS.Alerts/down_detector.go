package alerts

import (
	"context"
	"time"

	config "gitlab.com/swarmsense/snms.server/src/production/SNMS.Config"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
)

// DownDetector periodically sweeps live sensors and flags the ones that
// stopped reporting: is_down after the expected interval is missed,
// is_inactive after prolonged silence. Flags are cleared by the next
// accepted reading, not by the sweep.
type DownDetector struct {
	cfg       config.LivenessConfig
	sensors   sensorLivenessStore
	evaluator *Evaluator
	logger    *logger.Logger
	now       func() time.Time

	stop chan struct{}
	done chan struct{}
}

// sensorLivenessStore is the slice of the sensor repository the sweep needs.
type sensorLivenessStore interface {
	ListLive(ctx context.Context) ([]snmsmodels.Sensor, error)
	SetLiveness(ctx context.Context, sensorID int64, isDown, isInactive bool) error
}

func NewDownDetector(cfg config.LivenessConfig, sensors sensorLivenessStore, evaluator *Evaluator, log *logger.Logger) *DownDetector {
	return &DownDetector{
		cfg:       cfg,
		sensors:   sensors,
		evaluator: evaluator,
		logger:    log.WithComponent("down-detector"),
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (d *DownDetector) Start() {
	go d.run()
}

// Stop signals the loop and waits for the in-flight sweep to finish.
func (d *DownDetector) Stop() {
	close(d.stop)
	<-d.done
}

func (d *DownDetector) run() {
	defer close(d.done)

	if d.cfg.DisableDetection {
		d.logger.Info("Liveness detection disabled")
		return
	}

	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()

	d.logger.Info("Liveness sweep started")
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.Sweep(context.Background())
		}
	}
}

// Sweep runs one liveness pass over all live sensors.
func (d *DownDetector) Sweep(ctx context.Context) {
	sensors, err := d.sensors.ListLive(ctx)
	if err != nil {
		d.logger.WithError(err).Error("Failed to list sensors for liveness sweep")
		return
	}

	now := d.now().UTC()
	for i := range sensors {
		sensor := &sensors[i]
		if sensor.LastUpdate == nil {
			continue
		}
		silent := now.Sub(*sensor.LastUpdate)

		switch {
		case silent >= d.cfg.InactiveAfter && !sensor.IsInactive:
			if err := d.sensors.SetLiveness(ctx, sensor.ID, true, true); err != nil {
				d.logger.WithSensor(sensor.UID).WithError(err).Error("Failed to mark sensor inactive")
				continue
			}
			d.logger.WithSensor(sensor.UID).Warn("Sensor marked inactive")

		case silent >= d.cfg.DownAfter && !sensor.IsDown:
			if err := d.sensors.SetLiveness(ctx, sensor.ID, true, false); err != nil {
				d.logger.WithSensor(sensor.UID).WithError(err).Error("Failed to mark sensor down")
				continue
			}
			d.evaluator.SensorDown(ctx, sensor, silent)
			d.logger.WithSensor(sensor.UID).Warn("Sensor marked down")
		}
	}
}
