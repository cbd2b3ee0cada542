package implementation

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

// InfluxSeriesRepository stores sensor readings in InfluxDB: one point per
// accepted reading, measurement per sensor type, tagged with the sensor and
// company identity.
type InfluxSeriesRepository struct {
	client influxdb2.Client
	org    string
	bucket string
}

func NewInfluxSeriesRepository(client influxdb2.Client, org, bucket string) *InfluxSeriesRepository {
	return &InfluxSeriesRepository{client: client, org: org, bucket: bucket}
}

var _ interfaces.SeriesRepository = (*InfluxSeriesRepository)(nil)

func (r *InfluxSeriesRepository) AddPoint(ctx context.Context, sensor *snmsmodels.Sensor, fields map[string]interface{}, ts time.Time) error {
	if len(fields) == 0 {
		return nil
	}

	writeAPI := r.client.WriteAPIBlocking(r.org, r.bucket)

	point := influxdb2.NewPoint(
		sensor.Type,
		map[string]string{
			"sensor_uid":  sensor.UID,
			"company_uid": sensor.CompanyUID,
		},
		fields,
		ts,
	)

	if err := writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write point: %w", err)
	}
	return nil
}

// fluxRange renders the range() clause from the query's duration or
// explicit dates. Defaults to the last 24 hours.
func fluxRange(query snmsmodels.SeriesQuery) string {
	if query.Duration != "" {
		return fmt.Sprintf(`|> range(start: -%s)`, query.Duration)
	}
	if query.StartDate != nil || query.EndDate != nil {
		start := "0"
		if query.StartDate != nil {
			start = query.StartDate.UTC().Format(time.RFC3339)
		}
		if query.EndDate != nil {
			return fmt.Sprintf(`|> range(start: %s, stop: %s)`, start, query.EndDate.UTC().Format(time.RFC3339))
		}
		return fmt.Sprintf(`|> range(start: %s)`, start)
	}
	return `|> range(start: -24h)`
}

func (r *InfluxSeriesRepository) baseQuery(sensor *snmsmodels.Sensor, query snmsmodels.SeriesQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, `from(bucket: %q)`, r.bucket)
	b.WriteString("\n  " + fluxRange(query))
	fmt.Fprintf(&b, "\n  |> filter(fn: (r) => r._measurement == %q and r.sensor_uid == %q)", sensor.Type, sensor.UID)
	return b.String()
}

var allowedAggregates = map[string]bool{
	"mean": true, "min": true, "max": true, "sum": true, "count": true,
	"median": true, "first": true, "last": true,
}

func (r *InfluxSeriesRepository) GetPoints(ctx context.Context, sensor *snmsmodels.Sensor, query snmsmodels.SeriesQuery) (*snmsmodels.SeriesResult, error) {
	if query.AggregateOnly {
		return r.aggregate(ctx, sensor, query)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}

	var b strings.Builder
	b.WriteString(r.baseQuery(sensor, query))

	if query.GroupDuration != "" {
		fn := query.AggregateFunction
		if !allowedAggregates[fn] {
			fn = "mean"
		}
		offset := ""
		if query.OffsetInterval != "" {
			offset = fmt.Sprintf(", offset: %s", query.OffsetInterval)
		}
		fmt.Fprintf(&b, "\n  |> aggregateWindow(every: %s, fn: %s, createEmpty: false%s)", query.GroupDuration, fn, offset)
	}

	b.WriteString("\n  |> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")")
	b.WriteString("\n  |> sort(columns: [\"_time\"], desc: true)")
	fmt.Fprintf(&b, "\n  |> limit(n: %d, offset: %d)", limit, query.Offset)

	queryAPI := r.client.QueryAPI(r.org)
	result, err := queryAPI.Query(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	points := make([]snmsmodels.Point, 0)
	for result.Next() {
		record := result.Record()
		point := snmsmodels.Point{"time": record.Time()}
		for key, value := range record.Values() {
			if strings.HasPrefix(key, "_") || key == "result" || key == "table" ||
				key == "sensor_uid" || key == "company_uid" {
				continue
			}
			point[key] = value
		}
		points = append(points, point)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("query error: %w", result.Err())
	}

	return &snmsmodels.SeriesResult{Data: points, Total: len(points)}, nil
}

// aggregate returns a min/max/mean summary per field instead of rows.
func (r *InfluxSeriesRepository) aggregate(ctx context.Context, sensor *snmsmodels.Sensor, query snmsmodels.SeriesQuery) (*snmsmodels.SeriesResult, error) {
	functions := []string{"min", "max", "mean"}
	if query.AggregateFunction != "" && allowedAggregates[query.AggregateFunction] {
		functions = []string{query.AggregateFunction}
	}

	queryAPI := r.client.QueryAPI(r.org)
	stats := make(map[string]interface{})

	for _, fn := range functions {
		flux := r.baseQuery(sensor, query) + fmt.Sprintf("\n  |> %s()", fn)
		result, err := queryAPI.Query(ctx, flux)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s aggregate: %w", fn, err)
		}
		for result.Next() {
			record := result.Record()
			fieldStats, ok := stats[record.Field()].(map[string]interface{})
			if !ok {
				fieldStats = make(map[string]interface{})
				stats[record.Field()] = fieldStats
			}
			fieldStats[fn] = record.Value()
		}
		if result.Err() != nil {
			return nil, fmt.Errorf("query error: %w", result.Err())
		}
	}

	return &snmsmodels.SeriesResult{Data: []snmsmodels.Point{}, Stats: stats}, nil
}

func (r *InfluxSeriesRepository) DeletePoints(ctx context.Context, sensor *snmsmodels.Sensor, start, end time.Time) error {
	predicate := fmt.Sprintf(`_measurement="%s" AND sensor_uid="%s"`, sensor.Type, sensor.UID)

	deleteAPI := r.client.DeleteAPI()
	if err := deleteAPI.DeleteWithName(ctx, r.org, r.bucket, start, end, predicate); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}
