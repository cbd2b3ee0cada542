package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

// ErrSensorNotFound is returned when a lookup wrapper cannot resolve the
// addressed sensor (including soft-deleted sensors).
var ErrSensorNotFound = errors.New("sensor not found")

// ErrUnknownSensorType is returned when a sensor references a type the
// registry does not know.
var ErrUnknownSensorType = errors.New("unknown sensor type")

// Options carries the per-submission context of a value post.
type Options struct {
	// IP is the submitting client address, recorded on the snapshot.
	IP string
	// FromMQTT marks submissions arriving over the broker; those are never
	// re-published to it.
	FromMQTT bool
}

// Service normalizes and persists submitted sensor values. It owns the
// ingestion pipeline: active-window check, schema validation, file storage,
// timestamp resolution, snapshot update, series append, alert evaluation and
// the mirror publish.
type Service struct {
	sensors   interfaces.SensorRepository
	types     interfaces.TypeRegistry
	series    interfaces.SeriesRepository
	alerts    interfaces.AlertEvaluator
	publisher interfaces.Publisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewService wires a normalizer. publisher may be nil when MQTT is disabled;
// the mirror publish step is then skipped.
func NewService(
	sensors interfaces.SensorRepository,
	types interfaces.TypeRegistry,
	series interfaces.SeriesRepository,
	alerts interfaces.AlertEvaluator,
	publisher interfaces.Publisher,
	log *logger.Logger,
) *Service {
	return &Service{
		sensors:   sensors,
		types:     types,
		series:    series,
		alerts:    alerts,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// PostSensorValueByUID resolves the sensor by its public UID and ingests the
// submission.
func (s *Service) PostSensorValueByUID(ctx context.Context, uid string, raw snmsmodels.RawSubmission, opts Options) (bool, error) {
	sensor, err := s.sensors.GetByUID(ctx, uid)
	if err != nil {
		return false, err
	}
	if sensor == nil {
		return false, ErrSensorNotFound
	}
	return s.PostSensorValues(ctx, sensor, raw, opts)
}

// PostSensorValueByHID resolves the sensor by its hardware ID within a
// company and ingests the submission.
func (s *Service) PostSensorValueByHID(ctx context.Context, companyID int64, hid string, raw snmsmodels.RawSubmission, opts Options) (bool, error) {
	sensor, err := s.sensors.GetByHID(ctx, companyID, hid)
	if err != nil {
		return false, err
	}
	if sensor == nil {
		return false, ErrSensorNotFound
	}
	return s.PostSensorValues(ctx, sensor, raw, opts)
}

// PostSensorValues runs the full ingestion pipeline for one submission
// against an already-resolved sensor. It returns whether a configuration
// push is pending for the device, so transports can reply with the
// config-poll flag.
func (s *Service) PostSensorValues(ctx context.Context, sensor *snmsmodels.Sensor, raw snmsmodels.RawSubmission, opts Options) (bool, error) {
	configPending := sensor.ConfigUpdated != nil

	now := s.now().UTC()

	// Readings outside the active window are dropped without side effects.
	if !TimeInRange(sensor.TimeStart, sensor.TimeEnd, snmsmodels.TimeOfDayFrom(now)) {
		s.logger.WithSensor(sensor.UID).Debug("Reading outside active window, discarded")
		return configPending, nil
	}

	sensorType, err := s.types.Get(ctx, sensor.Type)
	if err != nil {
		return configPending, err
	}
	if sensorType == nil {
		return configPending, fmt.Errorf("%w: %s", ErrUnknownSensorType, sensor.Type)
	}

	values := make(snmsmodels.ValueMap)
	var files []snmsmodels.BinFile
	var lat, long *float64

	for name, field := range raw.Fields {
		spec, known := sensorType.Fields[name]
		if !known {
			continue
		}

		switch spec.Type {
		case snmsmodels.FieldFile:
			// An empty upload removes the field from the reading entirely.
			if field.File == nil || len(field.File.Data) == 0 {
				continue
			}
			fileID := uuid.New().String()
			files = append(files, snmsmodels.BinFile{
				UID:      fileID,
				SensorID: sensor.ID,
				Data:     field.File.Data,
				Meta: map[string]interface{}{
					"filename":     field.File.Filename,
					"content_type": field.File.ContentType,
				},
				CreatedAt: now,
			})
			values[name] = snmsmodels.FileRefValue(fileID)

		case snmsmodels.FieldLatitude:
			if field.Number == nil {
				continue
			}
			values[name] = snmsmodels.GeoValue(spec.Type, *field.Number)
			lat = field.Number

		case snmsmodels.FieldLongitude:
			if field.Number == nil {
				continue
			}
			values[name] = snmsmodels.GeoValue(spec.Type, *field.Number)
			long = field.Number

		default:
			if field.Number == nil {
				continue
			}
			values[name] = snmsmodels.NumericValue(*field.Number)
		}
	}

	ts, fromClient := ResolveTimestamp(raw.Time, now)

	// A sensor coming back after prolonged silence triggers the backup
	// signal before its state flips to active.
	if sensor.IsInactive {
		elapsed := 0.0
		if sensor.LastUpdate != nil {
			elapsed = now.Sub(*sensor.LastUpdate).Seconds()
		}
		s.alerts.Evaluate(ctx, sensor, nil, snmsmodels.AlertSignal{Backup: true, Seconds: elapsed})
	}

	tx, err := s.sensors.BeginIngest(ctx)
	if err != nil {
		return configPending, err
	}

	for _, file := range files {
		if err := tx.StoreFile(ctx, file); err != nil {
			_ = tx.Rollback()
			return configPending, err
		}
	}

	snap := snmsmodels.SnapshotUpdate{
		Value:        values,
		LastUpdate:   ts,
		IP:           opts.IP,
		LocationLat:  lat,
		LocationLong: long,
	}
	if err := tx.UpdateSnapshot(ctx, sensor.ID, snap); err != nil {
		_ = tx.Rollback()
		return configPending, err
	}

	if err := tx.Commit(); err != nil {
		return configPending, err
	}

	// The snapshot is committed: the reading is accepted from here on even
	// if the series append fails.
	seriesFields := make(map[string]interface{})
	for name, value := range values {
		if sensorType.Fields[name].Meta {
			continue
		}
		seriesFields[name] = value.Raw()
	}
	if err := s.series.AddPoint(ctx, sensor, seriesFields, ts); err != nil {
		return configPending, err
	}

	s.alerts.Evaluate(ctx, sensor, values, snmsmodels.AlertSignal{})

	if !opts.FromMQTT && s.publisher != nil {
		payload := values.Raw()
		payload["fromServer"] = true
		if fromClient {
			payload["time"] = raw.Time
		} else {
			payload["time"] = ts.Format(time.RFC3339Nano)
		}
		topic := fmt.Sprintf("sensors/%s/values", sensor.UID)
		if err := s.publisher.PublishJSON(topic, payload); err != nil {
			s.logger.WithSensor(sensor.UID).WithError(err).Warn("Failed to mirror values to broker")
		}
	}

	return configPending, nil
}
