package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveTimestampEmptyUsesServerNow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ts, fromClient := ResolveTimestamp("", now)

	assert.Equal(t, now, ts)
	assert.False(t, fromClient)
}

func TestResolveTimestampAcceptsRecentClientTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ts, fromClient := ResolveTimestamp("2025-06-01T09:30:00", now)

	assert.True(t, fromClient)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), ts)
}

func TestResolveTimestampNaiveTimeIsUTC(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ts, fromClient := ResolveTimestamp("2025-06-01 11:45:30", now)

	assert.True(t, fromClient)
	assert.Equal(t, time.UTC, ts.Location())
	assert.Equal(t, 11, ts.Hour())
}

func TestResolveTimestampToleratesOneDaySkew(t *testing.T) {
	now := time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC)

	// 25 hours in the past still floors to a one-day difference.
	ts, fromClient := ResolveTimestamp("2025-06-01T00:00:00", now)
	assert.True(t, fromClient)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), ts)

	// Slightly in the future is fine too.
	ts, fromClient = ResolveTimestamp("2025-06-02T03:00:00", now)
	assert.True(t, fromClient)
	assert.Equal(t, 3, ts.Hour())
}

func TestResolveTimestampRejectsExcessSkew(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	ts, fromClient := ResolveTimestamp("2025-06-01T12:00:00", now)

	assert.False(t, fromClient)
	assert.Equal(t, now, ts)
}

func TestResolveTimestampRejectsFutureSkew(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// More than 24 hours ahead of the server clock floors to minus two
	// days and falls back to the server time.
	ts, fromClient := ResolveTimestamp("2025-06-02T18:00:00", now)

	assert.False(t, fromClient)
	assert.Equal(t, now, ts)
}

func TestResolveTimestampParseFailureUsesServerNow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ts, fromClient := ResolveTimestamp("not-a-timestamp", now)

	assert.False(t, fromClient)
	assert.Equal(t, now, ts)
}
