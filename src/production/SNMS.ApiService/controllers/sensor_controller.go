package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/middleware"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

// SensorController handles sensor management requests
type SensorController struct {
	sensorRepo     interfaces.SensorRepository
	fileRepo       interfaces.BinFileRepository
	typeRegistry   interfaces.TypeRegistry
	eventLog       interfaces.EventLogRepository
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
	access         *middleware.SensorAccess
}

// NewSensorController creates a new sensor controller
func NewSensorController(
	sensorRepo interfaces.SensorRepository,
	fileRepo interfaces.BinFileRepository,
	typeRegistry interfaces.TypeRegistry,
	eventLog interfaces.EventLogRepository,
	logger *logger.Logger,
	authMiddleware *middleware.AuthMiddleware,
	access *middleware.SensorAccess,
) *SensorController {
	return &SensorController{
		sensorRepo:     sensorRepo,
		fileRepo:       fileRepo,
		typeRegistry:   typeRegistry,
		eventLog:       eventLog,
		logger:         logger,
		authMiddleware: authMiddleware,
		access:         access,
	}
}

// RegisterRoutes registers the sensor routes with Gin
func (c *SensorController) RegisterRoutes(router *gin.Engine) {
	companies := router.Group("/companies/:company_uid")
	{
		companies.POST("/sensors", c.authMiddleware.Authenticate(), c.access.ResolveCompany(),
			c.access.RequireCompanyRole(snmsmodels.RoleAdmin), c.CreateSensor)
		companies.GET("/sensors", c.authMiddleware.Authenticate(), c.access.ResolveCompany(),
			c.access.RequireCompanyRole(snmsmodels.RoleRead), c.ListSensors)
		companies.GET("/sensors/type/:sensor_type", c.authMiddleware.Authenticate(), c.access.ResolveCompany(),
			c.access.RequireCompanyRole(snmsmodels.RoleRead), c.ListSensorsByType)
		companies.GET("/sensors_hid/:hid", c.authMiddleware.Authenticate(), c.access.ResolveByHID(),
			c.access.RequireRole(snmsmodels.RoleRead), c.GetSensor)
	}

	router.GET("/sensors_hid/:hid", c.authMiddleware.Authenticate(), c.access.ResolveByHIDGlobal(),
		c.access.RequireRole(snmsmodels.RoleRead), c.GetSensor)

	router.GET("/sensor_types", c.authMiddleware.Authenticate(), c.ListSensorTypes)

	sensors := router.Group("/sensors/:uid")
	{
		sensors.GET("", c.authMiddleware.Authenticate(), c.access.ResolveByUID(),
			c.access.RequireRole(snmsmodels.RoleRead), c.GetSensor)
		sensors.PUT("", c.authMiddleware.Authenticate(), c.access.ResolveByUID(),
			c.access.RequireRole(snmsmodels.RoleAdmin), c.UpdateSensor)
		sensors.DELETE("", c.authMiddleware.Authenticate(), c.access.ResolveByUID(),
			c.access.RequireRole(snmsmodels.RoleAdmin), c.DeleteSensor)
		sensors.GET("/files/:file_uid", c.authMiddleware.Authenticate(), c.access.ResolveByUID(),
			c.access.RequireRole(snmsmodels.RoleRead), c.DownloadFile)
	}
}

type CreateSensorRequest struct {
	Name         string                `json:"name" binding:"required"`
	Type         string                `json:"type" binding:"required"`
	HID          string                `json:"hid"`
	Description  string                `json:"description"`
	LocationLat  *float64              `json:"location_lat"`
	LocationLong *float64              `json:"location_long"`
	TimeStart    *snmsmodels.TimeOfDay `json:"time_start"`
	TimeEnd      *snmsmodels.TimeOfDay `json:"time_end"`
}

func (c *SensorController) CreateSensor(ctx *gin.Context) {
	var req CreateSensorRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	company, err := middleware.GetCompanyFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sensorType, err := c.typeRegistry.Get(ctx.Request.Context(), req.Type)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sensorType == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "unknown sensor type"})
		return
	}

	now := time.Now().UTC()
	sensor := &snmsmodels.Sensor{
		UID:           uuid.New().String(),
		HID:           req.HID,
		Name:          req.Name,
		Type:          req.Type,
		Description:   req.Description,
		CompanyID:     company.ID,
		CompanyUID:    company.UID,
		Key:           uuid.New().String(),
		Config:        sensorType.ConfigDefaults(),
		ConfigUpdated: &now,
		LocationLat:   req.LocationLat,
		LocationLong:  req.LocationLong,
		TimeStart:     req.TimeStart,
		TimeEnd:       req.TimeEnd,
		CreatedAt:     now,
	}
	if sensor.HID == "" {
		sensor.HID = sensor.UID
	}

	if err := c.sensorRepo.Create(ctx.Request.Context(), sensor); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.eventLog.Add(ctx.Request.Context(), company.UID, sensor.UID, "Sensor Added")
	c.logger.WithSensor(sensor.UID).Info("Sensor created")

	ctx.JSON(http.StatusCreated, sensor)
}

func (c *SensorController) ListSensors(ctx *gin.Context) {
	company, err := middleware.GetCompanyFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filters := c.listFilters(ctx)
	filters.Type = ctx.Query("type")

	result, err := c.sensorRepo.ListByCompany(ctx.Request.Context(), company.ID, filters)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.respondSensorList(ctx, result)
}

func (c *SensorController) ListSensorsByType(ctx *gin.Context) {
	company, err := middleware.GetCompanyFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	typeName := ctx.Param("sensor_type")
	sensorType, err := c.typeRegistry.Get(ctx.Request.Context(), typeName)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sensorType == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Sensor type not found"})
		return
	}

	filters := c.listFilters(ctx)
	filters.Type = typeName

	result, err := c.sensorRepo.ListByCompany(ctx.Request.Context(), company.ID, filters)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.respondSensorList(ctx, result)
}

func (c *SensorController) ListSensorTypes(ctx *gin.Context) {
	types, err := c.typeRegistry.All(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": types, "total": len(types)})
}

func (c *SensorController) GetSensor(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	role := middleware.GetSensorRoleFromContext(ctx)
	view := middleware.SanitizeSensor(sensor, role)
	c.rewriteFileFields(ctx, view)

	ctx.JSON(http.StatusOK, view)
}

func (c *SensorController) UpdateSensor(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var update snmsmodels.SensorUpdate
	if err := ctx.ShouldBindJSON(&update); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if update.Name == "" {
		update.Name = sensor.Name
	}
	if update.HID == "" {
		update.HID = sensor.HID
	}

	if err := c.sensorRepo.Update(ctx.Request.Context(), sensor.ID, update); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	updated, err := c.sensorRepo.GetByUID(ctx.Request.Context(), sensor.UID)
	if err != nil || updated == nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload sensor"})
		return
	}
	ctx.JSON(http.StatusOK, updated)
}

func (c *SensorController) DeleteSensor(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := c.sensorRepo.SoftDelete(ctx.Request.Context(), sensor.ID); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.eventLog.Add(ctx.Request.Context(), sensor.CompanyUID, sensor.UID, "Sensor Deleted")
	c.logger.WithSensor(sensor.UID).Info("Sensor deleted")

	ctx.JSON(http.StatusOK, gin.H{"message": "Sensor deleted"})
}

func (c *SensorController) DownloadFile(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	file, err := c.fileRepo.Get(ctx.Request.Context(), sensor.ID, ctx.Param("file_uid"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if file == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	contentType := "application/octet-stream"
	if ct, ok := file.Meta["content_type"].(string); ok && ct != "" {
		contentType = ct
	}
	if name, ok := file.Meta["filename"].(string); ok && name != "" {
		ctx.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	}

	ctx.Data(http.StatusOK, contentType, file.Data)
}

func (c *SensorController) listFilters(ctx *gin.Context) interfaces.SensorListFilters {
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "100"))

	return interfaces.SensorListFilters{
		Query:     ctx.Query("q"),
		OrderBy:   ctx.Query("order_by"),
		OrderType: ctx.Query("order_type"),
		Offset:    offset,
		Limit:     limit,
	}
}

func (c *SensorController) respondSensorList(ctx *gin.Context, result *interfaces.SensorListResult) {
	role := middleware.GetSensorRoleFromContext(ctx)

	views := make([]snmsmodels.Sensor, 0, len(result.Data))
	for i := range result.Data {
		view := middleware.SanitizeSensor(&result.Data[i], role)
		c.rewriteFileFields(ctx, view)
		views = append(views, *view)
	}

	ctx.JSON(http.StatusOK, gin.H{"data": views, "total": result.Total})
}

// rewriteFileFields replaces stored file ids in the live value with download
// URLs, so clients never see raw blob ids.
func (c *SensorController) rewriteFileFields(ctx *gin.Context, sensor *snmsmodels.Sensor) {
	if len(sensor.Value) == 0 {
		return
	}
	sensorType, err := c.typeRegistry.Get(ctx.Request.Context(), sensor.Type)
	if err != nil || sensorType == nil {
		return
	}

	value := make(map[string]interface{}, len(sensor.Value))
	for name, v := range sensor.Value {
		if sensorType.Fields[name].Type == snmsmodels.FieldFile {
			if id, ok := v.(string); ok && id != "" {
				value[name] = fmt.Sprintf("/sensors/%s/files/%s", sensor.UID, id)
				continue
			}
		}
		value[name] = v
	}
	sensor.Value = value
}
