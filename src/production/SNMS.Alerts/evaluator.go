package alerts

import (
	"context"
	"fmt"
	"time"

	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

// Evaluator matches incoming readings against the company's configured
// threshold rules and emits alert events. Evaluation is best effort: rule
// loading or delivery failures are logged and never fail the ingestion that
// triggered them.
type Evaluator struct {
	rules     interfaces.AlertRepository
	events    interfaces.EventLogRepository
	publisher interfaces.Publisher
	logger    *logger.Logger
	now       func() time.Time
}

func NewEvaluator(
	rules interfaces.AlertRepository,
	events interfaces.EventLogRepository,
	publisher interfaces.Publisher,
	log *logger.Logger,
) *Evaluator {
	return &Evaluator{
		rules:     rules,
		events:    events,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

var _ interfaces.AlertEvaluator = (*Evaluator)(nil)

// Evaluate handles one evaluator invocation: a backup signal closes out the
// silent period, a value map is matched against the threshold rules.
func (e *Evaluator) Evaluate(ctx context.Context, sensor *snmsmodels.Sensor, values snmsmodels.ValueMap, signal snmsmodels.AlertSignal) {
	if signal.Backup {
		e.sensorBackUp(ctx, sensor, signal.Seconds)
		return
	}
	if len(values) == 0 {
		return
	}

	rules, err := e.rules.ListForSensor(ctx, sensor)
	if err != nil {
		e.logger.WithSensor(sensor.UID).WithError(err).Error("Failed to load alert rules")
		return
	}

	for _, rule := range rules {
		value, ok := values[rule.Field]
		if !ok || value.Kind == snmsmodels.FieldFile {
			continue
		}
		if !conditionMet(rule.Condition, value.Number, rule.Threshold) {
			continue
		}
		e.fire(ctx, sensor, rule, value.Number)
	}
}

// SensorDown reports a sensor missing its expected reporting interval. Fired
// by the liveness sweep, not by ingestion.
func (e *Evaluator) SensorDown(ctx context.Context, sensor *snmsmodels.Sensor, silentFor time.Duration) {
	message := fmt.Sprintf("Sensor %s is down, no data for %s", sensor.Name, silentFor.Round(time.Second))
	e.events.Add(ctx, sensor.CompanyUID, sensor.UID, message)
	e.publish(sensor, map[string]interface{}{
		"event":      "down",
		"sensor_uid": sensor.UID,
		"silent_for": silentFor.Seconds(),
		"time":       e.now().UTC().Format(time.RFC3339),
	})
}

func (e *Evaluator) sensorBackUp(ctx context.Context, sensor *snmsmodels.Sensor, seconds float64) {
	message := fmt.Sprintf("Sensor %s is back up after %.0f seconds of silence", sensor.Name, seconds)
	e.events.Add(ctx, sensor.CompanyUID, sensor.UID, message)
	e.publish(sensor, map[string]interface{}{
		"event":      "backup",
		"sensor_uid": sensor.UID,
		"silent_for": seconds,
		"time":       e.now().UTC().Format(time.RFC3339),
	})
}

func (e *Evaluator) fire(ctx context.Context, sensor *snmsmodels.Sensor, rule interfaces.AlertRule, value float64) {
	message := fmt.Sprintf("Alert %s: %s %s %g (value %g)", rule.Name, rule.Field, rule.Condition, rule.Threshold, value)
	e.events.Add(ctx, sensor.CompanyUID, sensor.UID, message)
	e.publish(sensor, map[string]interface{}{
		"event":      "alert",
		"alert":      rule.Name,
		"sensor_uid": sensor.UID,
		"field":      rule.Field,
		"condition":  rule.Condition,
		"threshold":  rule.Threshold,
		"value":      value,
		"time":       e.now().UTC().Format(time.RFC3339),
	})
}

func (e *Evaluator) publish(sensor *snmsmodels.Sensor, payload map[string]interface{}) {
	if e.publisher == nil {
		return
	}
	topic := fmt.Sprintf("companies/%s/alerts", sensor.CompanyUID)
	if err := e.publisher.PublishJSON(topic, payload); err != nil {
		e.logger.WithSensor(sensor.UID).WithError(err).Warn("Failed to publish alert")
	}
}

func conditionMet(condition string, value, threshold float64) bool {
	switch condition {
	case "gt":
		return value > threshold
	case "lt":
		return value < threshold
	case "eq":
		return value == threshold
	default:
		return false
	}
}
