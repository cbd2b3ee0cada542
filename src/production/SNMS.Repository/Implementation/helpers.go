package implementation

import (
	"database/sql"
	"database/sql/driver"
	"time"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
)

// ensureMetaNotNull guarantees a JSONB column never receives SQL NULL for
// an absent map.
func ensureMetaNotNull(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullTimeOfDay(t *snmsmodels.TimeOfDay) driver.Value {
	if t == nil {
		return nil
	}
	return t.String()
}

// requireRow translates a zero-row update into sql.ErrNoRows so callers can
// map it to not-found.
func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
