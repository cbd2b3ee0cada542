package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

type fakeRules struct {
	rules []interfaces.AlertRule
}

func (f *fakeRules) ListForSensor(_ context.Context, _ *snmsmodels.Sensor) ([]interfaces.AlertRule, error) {
	return f.rules, nil
}

type fakeEvents struct {
	messages []string
}

func (f *fakeEvents) Add(_ context.Context, _, _, message string) {
	f.messages = append(f.messages, message)
}

type fakePublisher struct {
	topics   []string
	payloads []map[string]interface{}
}

func (f *fakePublisher) PublishJSON(topic string, payload interface{}) error {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload.(map[string]interface{}))
	return nil
}

func testSensor() *snmsmodels.Sensor {
	return &snmsmodels.Sensor{ID: 3, UID: "s-1", Name: "roof", Type: "weather", CompanyUID: "c-1"}
}

func newEvaluator(rules []interfaces.AlertRule) (*Evaluator, *fakeEvents, *fakePublisher) {
	events := &fakeEvents{}
	publisher := &fakePublisher{}
	e := NewEvaluator(&fakeRules{rules: rules}, events, publisher, logger.GetGlobalLogger())
	e.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return e, events, publisher
}

func TestEvaluateFiresMatchingRule(t *testing.T) {
	e, events, publisher := newEvaluator([]interfaces.AlertRule{
		{Name: "too hot", Field: "temperature", Condition: "gt", Threshold: 30},
	})

	e.Evaluate(context.Background(), testSensor(),
		snmsmodels.ValueMap{"temperature": snmsmodels.NumericValue(35)},
		snmsmodels.AlertSignal{})

	require.Len(t, events.messages, 1)
	assert.Contains(t, events.messages[0], "too hot")

	require.Len(t, publisher.topics, 1)
	assert.Equal(t, "companies/c-1/alerts", publisher.topics[0])
	assert.Equal(t, "alert", publisher.payloads[0]["event"])
	assert.Equal(t, 35.0, publisher.payloads[0]["value"])
}

func TestEvaluateConditions(t *testing.T) {
	cases := []struct {
		condition string
		threshold float64
		value     float64
		fires     bool
	}{
		{"gt", 30, 31, true},
		{"gt", 30, 30, false},
		{"lt", 5, 4, true},
		{"lt", 5, 5, false},
		{"eq", 0, 0, true},
		{"eq", 0, 1, false},
		{"bogus", 0, 0, false},
	}

	for _, tc := range cases {
		e, events, _ := newEvaluator([]interfaces.AlertRule{
			{Name: "rule", Field: "v", Condition: tc.condition, Threshold: tc.threshold},
		})
		e.Evaluate(context.Background(), testSensor(),
			snmsmodels.ValueMap{"v": snmsmodels.NumericValue(tc.value)},
			snmsmodels.AlertSignal{})

		if tc.fires {
			assert.Len(t, events.messages, 1, "condition %s %g value %g", tc.condition, tc.threshold, tc.value)
		} else {
			assert.Empty(t, events.messages, "condition %s %g value %g", tc.condition, tc.threshold, tc.value)
		}
	}
}

func TestEvaluateSkipsAbsentAndFileFields(t *testing.T) {
	e, events, _ := newEvaluator([]interfaces.AlertRule{
		{Name: "missing", Field: "humidity", Condition: "gt", Threshold: 0},
		{Name: "file", Field: "photo", Condition: "gt", Threshold: 0},
	})

	e.Evaluate(context.Background(), testSensor(),
		snmsmodels.ValueMap{
			"temperature": snmsmodels.NumericValue(20),
			"photo":       snmsmodels.FileRefValue("abc"),
		},
		snmsmodels.AlertSignal{})

	assert.Empty(t, events.messages)
}

func TestEvaluateBackupSignal(t *testing.T) {
	e, events, publisher := newEvaluator(nil)

	e.Evaluate(context.Background(), testSensor(), nil,
		snmsmodels.AlertSignal{Backup: true, Seconds: 3600})

	require.Len(t, events.messages, 1)
	assert.Contains(t, events.messages[0], "back up")

	require.Len(t, publisher.payloads, 1)
	assert.Equal(t, "backup", publisher.payloads[0]["event"])
	assert.Equal(t, 3600.0, publisher.payloads[0]["silent_for"])
}

func TestSensorDown(t *testing.T) {
	e, events, publisher := newEvaluator(nil)

	e.SensorDown(context.Background(), testSensor(), 20*time.Minute)

	require.Len(t, events.messages, 1)
	assert.Contains(t, events.messages[0], "down")

	require.Len(t, publisher.payloads, 1)
	assert.Equal(t, "down", publisher.payloads[0]["event"])
	assert.Equal(t, 1200.0, publisher.payloads[0]["silent_for"])
}
