package controllers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/middleware"
	ingest "gitlab.com/swarmsense/snms.server/src/production/SNMS.Ingest"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

// Date layouts accepted on history and delete queries.
var queryDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ValueController handles value submission and history requests
type ValueController struct {
	ingestService  *ingest.Service
	seriesRepo     interfaces.SeriesRepository
	typeRegistry   interfaces.TypeRegistry
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
	access         *middleware.SensorAccess
}

// NewValueController creates a new value controller
func NewValueController(
	ingestService *ingest.Service,
	seriesRepo interfaces.SeriesRepository,
	typeRegistry interfaces.TypeRegistry,
	logger *logger.Logger,
	authMiddleware *middleware.AuthMiddleware,
	access *middleware.SensorAccess,
) *ValueController {
	return &ValueController{
		ingestService:  ingestService,
		seriesRepo:     seriesRepo,
		typeRegistry:   typeRegistry,
		logger:         logger,
		authMiddleware: authMiddleware,
		access:         access,
	}
}

// RegisterRoutes registers the value routes with Gin
func (c *ValueController) RegisterRoutes(router *gin.Engine) {
	sensors := router.Group("/sensors/:uid")
	{
		// Devices submit with their sensor key, users with a token.
		sensors.POST("/values", c.authMiddleware.AuthenticateOptional(), c.access.ResolveByUID(),
			c.access.RequireRole(snmsmodels.RoleWrite), c.PostValues)
		sensors.GET("/values", c.authMiddleware.Authenticate(), c.access.ResolveByUID(),
			c.access.RequireRole(snmsmodels.RoleRead), c.GetValue)
		sensors.GET("/history", c.authMiddleware.Authenticate(), c.access.ResolveByUID(),
			c.access.RequireRole(snmsmodels.RoleRead), c.GetHistory)
		sensors.GET("/aggregate", c.authMiddleware.Authenticate(), c.access.ResolveByUID(),
			c.access.RequireRole(snmsmodels.RoleRead), c.GetAggregate)
		sensors.GET("/export", c.authMiddleware.Authenticate(), c.access.ResolveByUID(),
			c.access.RequireRole(snmsmodels.RoleRead), c.ExportHistory)
		sensors.POST("/values/delete", c.authMiddleware.Authenticate(), c.access.ResolveByUID(),
			c.access.RequireRole(snmsmodels.RoleAdmin), c.DeleteValues)
	}

	router.POST("/companies/:company_uid/sensors_hid/:hid/values",
		c.authMiddleware.AuthenticateOptional(), c.access.ResolveByHID(),
		c.access.RequireRole(snmsmodels.RoleWrite), c.PostValues)
}

func (c *ValueController) PostValues(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	raw, err := parseSubmission(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	configPending, err := c.ingestService.PostSensorValues(ctx.Request.Context(), sensor, raw,
		ingest.Options{IP: ctx.ClientIP()})
	if err != nil {
		c.logger.WithSensor(sensor.UID).WithError(err).Error("Failed to ingest values")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store values"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"config": configPending})
}

func (c *ValueController) GetValue(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"value":       sensor.Value,
		"last_update": sensor.LastUpdate,
		"is_down":     sensor.IsDown,
		"is_inactive": sensor.IsInactive,
	})
}

func (c *ValueController) GetHistory(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	query, err := c.seriesQuery(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := c.seriesRepo.GetPoints(ctx.Request.Context(), sensor, query)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if sensorType, err := c.typeRegistry.Get(ctx.Request.Context(), sensor.Type); err == nil && sensorType != nil {
		result.Fields = sensorType.Fields
		// Grouped results are aggregates, there is no file to link to.
		if query.GroupDuration == "" {
			rewritePointFiles(sensorType, sensor, result.Data)
		}
	}

	ctx.JSON(http.StatusOK, result)
}

func (c *ValueController) GetAggregate(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	query, err := c.seriesQuery(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	query.AggregateOnly = true

	result, err := c.seriesRepo.GetPoints(ctx.Request.Context(), sensor, query)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"stats": result.Stats})
}

func (c *ValueController) ExportHistory(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	query, err := c.seriesQuery(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if query.Limit <= 0 {
		query.Limit = 10000
	}

	result, err := c.seriesRepo.GetPoints(ctx.Request.Context(), sensor, query)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Collect the column set across all rows for a stable header.
	columnSet := make(map[string]bool)
	for _, point := range result.Data {
		for name := range point {
			if name != "time" {
				columnSet[name] = true
			}
		}
	}
	columns := make([]string, 0, len(columnSet))
	for name := range columnSet {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	ctx.Header("Content-Type", "text/csv")
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sensor.UID+".csv"))
	ctx.Status(http.StatusOK)

	w := csv.NewWriter(ctx.Writer)
	defer w.Flush()

	if err := w.Write(append([]string{"time"}, columns...)); err != nil {
		return
	}
	for _, point := range result.Data {
		row := make([]string, 0, len(columns)+1)
		if ts, ok := point["time"].(time.Time); ok {
			row = append(row, ts.UTC().Format(time.RFC3339))
		} else {
			row = append(row, "")
		}
		for _, name := range columns {
			row = append(row, csvCell(point[name]))
		}
		if err := w.Write(row); err != nil {
			return
		}
	}
}

type DeleteValuesRequest struct {
	Time      string `json:"time"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (c *ValueController) DeleteValues(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req DeleteValuesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var start, end time.Time
	switch {
	case req.Time != "":
		t, err := parseQueryDate(req.Time)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		start, end = t, t.Add(time.Millisecond)
	case req.StartTime != "" && req.EndTime != "":
		var err error
		start, err = parseQueryDate(req.StartTime)
		if err == nil {
			end, err = parseQueryDate(req.EndTime)
		}
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "time or start_time/end_time required"})
		return
	}

	if err := c.seriesRepo.DeletePoints(ctx.Request.Context(), sensor, start, end); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Values deleted"})
}

// seriesQuery builds the series query from request parameters. The end date
// is clamped to now.
func (c *ValueController) seriesQuery(ctx *gin.Context) (snmsmodels.SeriesQuery, error) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))

	query := snmsmodels.SeriesQuery{
		Duration:          ctx.Query("duration"),
		GroupDuration:     ctx.Query("group_duration"),
		AggregateFunction: ctx.Query("aggregate_function"),
		OffsetInterval:    ctx.Query("offset_interval"),
		Limit:             limit,
		Offset:            offset,
	}

	if s := ctx.Query("start_date"); s != "" {
		t, err := parseQueryDate(s)
		if err != nil {
			return query, err
		}
		query.StartDate = &t
	}
	if s := ctx.Query("end_date"); s != "" {
		t, err := parseQueryDate(s)
		if err != nil {
			return query, err
		}
		if now := time.Now().UTC(); t.After(now) {
			t = now
		}
		query.EndDate = &t
	}
	return query, nil
}

func rewritePointFiles(sensorType *snmsmodels.SensorType, sensor *snmsmodels.Sensor, points []snmsmodels.Point) {
	for _, point := range points {
		for name, v := range point {
			if sensorType.Fields[name].Type != snmsmodels.FieldFile {
				continue
			}
			if id, ok := v.(string); ok && id != "" {
				point[name] = fmt.Sprintf("/sensors/%s/files/%s", sensor.UID, id)
			}
		}
	}
}

func parseQueryDate(s string) (time.Time, error) {
	for _, layout := range queryDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date: %q", s)
}

func csvCell(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return n
	default:
		return fmt.Sprintf("%v", n)
	}
}

// parseSubmission reads a value submission from either a JSON body or a
// multipart form with file fields.
func parseSubmission(ctx *gin.Context) (snmsmodels.RawSubmission, error) {
	raw := snmsmodels.RawSubmission{Fields: make(map[string]snmsmodels.RawField)}

	form, err := ctx.MultipartForm()
	if err == nil && form != nil {
		for name, values := range form.Value {
			if len(values) == 0 {
				continue
			}
			if name == "time" {
				raw.Time = values[0]
				continue
			}
			if n, err := strconv.ParseFloat(values[0], 64); err == nil {
				raw.Fields[name] = snmsmodels.RawField{Number: &n}
			}
		}
		for name, headers := range form.File {
			if len(headers) == 0 {
				continue
			}
			header := headers[0]
			f, err := header.Open()
			if err != nil {
				return raw, err
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return raw, err
			}
			raw.Fields[name] = snmsmodels.RawField{File: &snmsmodels.FileUpload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			}}
		}
		return raw, nil
	}

	var body map[string]interface{}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return raw, err
	}
	for name, v := range body {
		if name == "time" {
			if s, ok := v.(string); ok {
				raw.Time = s
			}
			continue
		}
		switch n := v.(type) {
		case float64:
			value := n
			raw.Fields[name] = snmsmodels.RawField{Number: &value}
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				raw.Fields[name] = snmsmodels.RawField{Number: &parsed}
			}
		case json.Number:
			if parsed, err := n.Float64(); err == nil {
				raw.Fields[name] = snmsmodels.RawField{Number: &parsed}
			}
		}
	}
	return raw, nil
}
