package snmsmodels

import "time"

// Point is one time-series record returned from the store.
type Point map[string]interface{}

// SeriesQuery carries the filters of a time-series history query.
type SeriesQuery struct {
	// Duration is a relative lookback like "24h"; mutually exclusive with
	// StartDate/EndDate.
	Duration  string
	StartDate *time.Time
	EndDate   *time.Time

	// GroupDuration enables windowed aggregation ("1h", "15m").
	GroupDuration string
	// AggregateFunction is the Flux aggregate to apply (mean, min, max,
	// sum, count). Defaults to mean when grouping.
	AggregateFunction string
	// OffsetInterval shifts the aggregate windows.
	OffsetInterval string

	Limit  int
	Offset int

	// AggregateOnly returns a single min/max/mean summary instead of rows.
	AggregateOnly bool
}

// SeriesResult is the result envelope of a history query.
type SeriesResult struct {
	Data   []Point                `json:"data"`
	Total  int                    `json:"total"`
	Fields map[string]FieldSpec   `json:"fields,omitempty"`
	Stats  map[string]interface{} `json:"stats,omitempty"`
}
