package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	config "gitlab.com/swarmsense/snms.server/src/production/SNMS.Config"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
)

type fakeLivenessStore struct {
	sensors []snmsmodels.Sensor
	calls   map[int64][2]bool
}

func (f *fakeLivenessStore) ListLive(_ context.Context) ([]snmsmodels.Sensor, error) {
	return f.sensors, nil
}

func (f *fakeLivenessStore) SetLiveness(_ context.Context, sensorID int64, isDown, isInactive bool) error {
	if f.calls == nil {
		f.calls = make(map[int64][2]bool)
	}
	f.calls[sensorID] = [2]bool{isDown, isInactive}
	return nil
}

func sweepFixture(sensors []snmsmodels.Sensor) (*DownDetector, *fakeLivenessStore, *fakeEvents) {
	store := &fakeLivenessStore{sensors: sensors}
	events := &fakeEvents{}
	evaluator := NewEvaluator(&fakeRules{}, events, nil, logger.GetGlobalLogger())

	detector := NewDownDetector(config.LivenessConfig{
		SweepInterval: time.Minute,
		DownAfter:     15 * time.Minute,
		InactiveAfter: time.Hour,
	}, store, evaluator, logger.GetGlobalLogger())
	detector.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return detector, store, events
}

func lastSeen(minutesAgo int) *time.Time {
	t := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(-time.Duration(minutesAgo) * time.Minute)
	return &t
}

func TestSweepMarksSensorDown(t *testing.T) {
	detector, store, events := sweepFixture([]snmsmodels.Sensor{
		{ID: 1, UID: "fresh", LastUpdate: lastSeen(5)},
		{ID: 2, UID: "stale", Name: "stale", LastUpdate: lastSeen(20)},
	})

	detector.Sweep(context.Background())

	assert.NotContains(t, store.calls, int64(1))
	require.Contains(t, store.calls, int64(2))
	assert.Equal(t, [2]bool{true, false}, store.calls[2])
	require.Len(t, events.messages, 1)
	assert.Contains(t, events.messages[0], "down")
}

func TestSweepMarksSensorInactive(t *testing.T) {
	detector, store, events := sweepFixture([]snmsmodels.Sensor{
		{ID: 3, UID: "silent", Name: "silent", IsDown: true, LastUpdate: lastSeen(90)},
	})

	detector.Sweep(context.Background())

	require.Contains(t, store.calls, int64(3))
	assert.Equal(t, [2]bool{true, true}, store.calls[3])
	// The inactive transition is silent; the backup alert fires on recovery.
	assert.Empty(t, events.messages)
}

func TestSweepSkipsAlreadyFlaggedAndNeverSeen(t *testing.T) {
	detector, store, _ := sweepFixture([]snmsmodels.Sensor{
		{ID: 4, UID: "never-reported"},
		{ID: 5, UID: "already-down", IsDown: true, LastUpdate: lastSeen(30)},
		{ID: 6, UID: "already-inactive", IsDown: true, IsInactive: true, LastUpdate: lastSeen(120)},
	})

	detector.Sweep(context.Background())

	assert.Empty(t, store.calls)
}
