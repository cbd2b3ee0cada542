package ingest

import (
	"math"
	"time"
)

// Client timestamp layouts accepted on value submissions. Layouts without a
// zone are interpreted as UTC.
var clientTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// ResolveTimestamp decides the effective timestamp of a reading. The
// client-supplied time is used when it parses and lies within one day of the
// server clock; otherwise the server clock wins. The second return reports
// whether the client time was used.
func ResolveTimestamp(clientTime string, now time.Time) (time.Time, bool) {
	if clientTime == "" {
		return now, false
	}

	var parsed time.Time
	ok := false
	for _, layout := range clientTimeLayouts {
		if t, err := time.ParseInLocation(layout, clientTime, time.UTC); err == nil {
			parsed = t.UTC()
			ok = true
			break
		}
	}
	if !ok {
		return now, false
	}

	// Floored day difference: 25 hours in the past is still one day, but
	// anything more than 24 hours in the future is already minus two.
	dayDiff := int(math.Floor(now.Sub(parsed).Hours() / 24))
	if dayDiff < -1 || dayDiff > 1 {
		return now, false
	}
	return parsed, true
}
