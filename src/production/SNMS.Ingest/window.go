package ingest

import (
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
)

// TimeInRange reports whether x falls inside the sensor's active-hours
// window. A nil start means midnight and a nil end means the last instant of
// the day, so two nil bounds accept everything. When start is later than end
// the window wraps midnight (e.g. 22:00 to 06:00).
func TimeInRange(start, end *snmsmodels.TimeOfDay, x snmsmodels.TimeOfDay) bool {
	s := snmsmodels.DayMin
	if start != nil {
		s = *start
	}
	e := snmsmodels.DayMax
	if end != nil {
		e = *end
	}

	if s.Offset <= e.Offset {
		return s.Offset <= x.Offset && x.Offset <= e.Offset
	}
	return x.Offset >= s.Offset || x.Offset <= e.Offset
}
