package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/middleware"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

type fakeHistorySeries struct {
	interfaces.SeriesRepository

	result *snmsmodels.SeriesResult
}

func (f *fakeHistorySeries) GetPoints(_ context.Context, _ *snmsmodels.Sensor, _ snmsmodels.SeriesQuery) (*snmsmodels.SeriesResult, error) {
	return f.result, nil
}

type fakeTypes struct {
	interfaces.TypeRegistry

	types map[string]snmsmodels.SensorType
}

func (f *fakeTypes) Get(_ context.Context, name string) (*snmsmodels.SensorType, error) {
	t, ok := f.types[name]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func historyContext(t *testing.T, sensor *snmsmodels.Sensor) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/sensors/"+sensor.UID+"/history", nil)
	c.Set(string(middleware.SensorContextKey), sensor)
	return c, w
}

func TestGetHistoryReturnsFieldSchemaAndFileLinks(t *testing.T) {
	sensor := &snmsmodels.Sensor{ID: 7, UID: "s-1", Type: "weather"}

	series := &fakeHistorySeries{result: &snmsmodels.SeriesResult{
		Data: []snmsmodels.Point{{
			"time":        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			"temperature": 21.5,
			"snapshot":    "file-123",
		}},
		Total: 1,
	}}
	types := &fakeTypes{types: map[string]snmsmodels.SensorType{
		"weather": {
			Name: "weather",
			Fields: map[string]snmsmodels.FieldSpec{
				"temperature": {Type: snmsmodels.FieldNumeric},
				"snapshot":    {Type: snmsmodels.FieldFile},
			},
		},
	}}

	controller := &ValueController{seriesRepo: series, typeRegistry: types}

	c, w := historyContext(t, sensor)
	controller.GetHistory(c)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data   []map[string]interface{}          `json:"data"`
		Total  int                               `json:"total"`
		Fields map[string]map[string]interface{} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	require.Len(t, body.Data, 1)
	assert.Equal(t, "/sensors/s-1/files/file-123", body.Data[0]["snapshot"])
	assert.Equal(t, 21.5, body.Data[0]["temperature"])

	require.Contains(t, body.Fields, "temperature")
	assert.Equal(t, string(snmsmodels.FieldNumeric), body.Fields["temperature"]["type"])
	require.Contains(t, body.Fields, "snapshot")
	assert.Equal(t, string(snmsmodels.FieldFile), body.Fields["snapshot"]["type"])
}

func TestGetHistoryGroupedKeepsRawValues(t *testing.T) {
	sensor := &snmsmodels.Sensor{ID: 7, UID: "s-1", Type: "weather"}

	series := &fakeHistorySeries{result: &snmsmodels.SeriesResult{
		Data:  []snmsmodels.Point{{"snapshot": "file-123"}},
		Total: 1,
	}}
	types := &fakeTypes{types: map[string]snmsmodels.SensorType{
		"weather": {
			Name:   "weather",
			Fields: map[string]snmsmodels.FieldSpec{"snapshot": {Type: snmsmodels.FieldFile}},
		},
	}}

	controller := &ValueController{seriesRepo: series, typeRegistry: types}

	c, w := historyContext(t, sensor)
	c.Request = httptest.NewRequest(http.MethodGet, "/sensors/s-1/history?group_duration=1h", nil)
	controller.GetHistory(c)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "file-123", body.Data[0]["snapshot"])
}
