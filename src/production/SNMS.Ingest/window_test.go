package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
)

func tod(h, m, s int) *snmsmodels.TimeOfDay {
	t := snmsmodels.NewTimeOfDay(h, m, s)
	return &t
}

func TestTimeInRangeDirectWindow(t *testing.T) {
	start := tod(8, 0, 0)
	end := tod(18, 0, 0)

	assert.True(t, TimeInRange(start, end, snmsmodels.NewTimeOfDay(12, 0, 0)))
	assert.True(t, TimeInRange(start, end, snmsmodels.NewTimeOfDay(8, 0, 0)))
	assert.True(t, TimeInRange(start, end, snmsmodels.NewTimeOfDay(18, 0, 0)))
	assert.False(t, TimeInRange(start, end, snmsmodels.NewTimeOfDay(7, 59, 59)))
	assert.False(t, TimeInRange(start, end, snmsmodels.NewTimeOfDay(18, 0, 1)))
	assert.False(t, TimeInRange(start, end, snmsmodels.NewTimeOfDay(23, 30, 0)))
}

func TestTimeInRangeWrapsMidnight(t *testing.T) {
	start := tod(22, 0, 0)
	end := tod(6, 0, 0)

	assert.True(t, TimeInRange(start, end, snmsmodels.NewTimeOfDay(23, 0, 0)))
	assert.True(t, TimeInRange(start, end, snmsmodels.NewTimeOfDay(2, 0, 0)))
	assert.True(t, TimeInRange(start, end, snmsmodels.NewTimeOfDay(22, 0, 0)))
	assert.True(t, TimeInRange(start, end, snmsmodels.NewTimeOfDay(6, 0, 0)))
	assert.False(t, TimeInRange(start, end, snmsmodels.NewTimeOfDay(12, 0, 0)))
	assert.False(t, TimeInRange(start, end, snmsmodels.NewTimeOfDay(21, 59, 59)))
}

func TestTimeInRangeNilBounds(t *testing.T) {
	// No bounds at all accepts every time of day, down to the last
	// nanosecond before midnight.
	assert.True(t, TimeInRange(nil, nil, snmsmodels.NewTimeOfDay(0, 0, 0)))
	assert.True(t, TimeInRange(nil, nil, snmsmodels.NewTimeOfDay(23, 59, 59)))
	assert.True(t, TimeInRange(nil, nil,
		snmsmodels.TimeOfDay{Offset: 24*time.Hour - time.Nanosecond}))

	// Nil start means midnight.
	end := tod(6, 0, 0)
	assert.True(t, TimeInRange(nil, end, snmsmodels.NewTimeOfDay(3, 0, 0)))
	assert.False(t, TimeInRange(nil, end, snmsmodels.NewTimeOfDay(7, 0, 0)))

	// Nil end means the last instant of the day.
	start := tod(20, 0, 0)
	assert.True(t, TimeInRange(start, nil, snmsmodels.NewTimeOfDay(23, 59, 59)))
	assert.False(t, TimeInRange(start, nil, snmsmodels.NewTimeOfDay(19, 0, 0)))
}
