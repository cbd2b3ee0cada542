package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/middleware"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

// ConfigController handles sensor configuration reads, pushes and device
// acknowledgments.
type ConfigController struct {
	sensorRepo     interfaces.SensorRepository
	typeRegistry   interfaces.TypeRegistry
	publisher      interfaces.Publisher
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
	access         *middleware.SensorAccess
}

// NewConfigController creates a new config controller. publisher may be nil
// when MQTT is disabled.
func NewConfigController(
	sensorRepo interfaces.SensorRepository,
	typeRegistry interfaces.TypeRegistry,
	publisher interfaces.Publisher,
	logger *logger.Logger,
	authMiddleware *middleware.AuthMiddleware,
	access *middleware.SensorAccess,
) *ConfigController {
	return &ConfigController{
		sensorRepo:     sensorRepo,
		typeRegistry:   typeRegistry,
		publisher:      publisher,
		logger:         logger,
		authMiddleware: authMiddleware,
		access:         access,
	}
}

// RegisterRoutes registers the config routes with Gin
func (c *ConfigController) RegisterRoutes(router *gin.Engine) {
	sensors := router.Group("/sensors/:uid/config")
	{
		sensors.GET("", c.authMiddleware.Authenticate(), c.access.ResolveByUID(),
			c.access.RequireRole(snmsmodels.RoleRead), c.GetConfig)
		sensors.PUT("", c.authMiddleware.Authenticate(), c.access.ResolveByUID(),
			c.access.RequireRole(snmsmodels.RoleAdmin), c.UpdateConfig)
	}

	hid := router.Group("/companies/:company_uid/sensors_hid/:hid/config")
	{
		hid.GET("", c.authMiddleware.AuthenticateOptional(), c.access.ResolveByHID(),
			c.access.RequireRole(snmsmodels.RoleWrite), c.GetConfig)
		hid.PUT("", c.authMiddleware.Authenticate(), c.access.ResolveByHID(),
			c.access.RequireRole(snmsmodels.RoleAdmin), c.UpdateConfig)
		// Devices acknowledge a received configuration with their key.
		hid.POST("/ack", c.authMiddleware.AuthenticateOptional(), c.access.ResolveByHID(),
			c.access.RequireRole(snmsmodels.RoleWrite), c.AckConfig)
	}
}

func (c *ConfigController) GetConfig(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	config, err := c.effectiveConfig(ctx, sensor)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"config":         config,
		"config_updated": sensor.ConfigUpdated,
	})
}

func (c *ConfigController) UpdateConfig(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var patch map[string]interface{}
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sensorType, err := c.typeRegistry.Get(ctx.Request.Context(), sensor.Type)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	config, err := c.effectiveConfig(ctx, sensor)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for name, v := range patch {
		// Unknown keys are dropped when the type declares a config schema.
		if sensorType != nil && len(sensorType.ConfigFields) > 0 {
			if _, known := sensorType.ConfigFields[name]; !known {
				continue
			}
		}
		config[name] = v
	}

	now := time.Now().UTC()
	if err := c.sensorRepo.UpdateConfig(ctx.Request.Context(), sensor.ID, config, now); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.publishConfig(sensor, config)

	ctx.JSON(http.StatusOK, gin.H{"config": config, "config_updated": now})
}

func (c *ConfigController) AckConfig(ctx *gin.Context) {
	sensor, err := middleware.GetSensorFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := c.sensorRepo.ClearConfigUpdated(ctx.Request.Context(), sensor.ID); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.logger.WithSensor(sensor.UID).Debug("Configuration acknowledged")
	ctx.JSON(http.StatusOK, gin.H{"message": "Configuration acknowledged"})
}

// effectiveConfig is the stored config overlaid on the type defaults.
func (c *ConfigController) effectiveConfig(ctx *gin.Context, sensor *snmsmodels.Sensor) (map[string]interface{}, error) {
	config := make(map[string]interface{})

	sensorType, err := c.typeRegistry.Get(ctx.Request.Context(), sensor.Type)
	if err != nil {
		return nil, err
	}
	if sensorType != nil {
		for name, v := range sensorType.ConfigDefaults() {
			config[name] = v
		}
	}
	for name, v := range sensor.Config {
		config[name] = v
	}
	return config, nil
}

// publishConfig pushes the new configuration to both device-facing topics.
func (c *ConfigController) publishConfig(sensor *snmsmodels.Sensor, config map[string]interface{}) {
	if c.publisher == nil {
		return
	}
	topics := []string{
		fmt.Sprintf("sensors/%s/configuration", sensor.UID),
		fmt.Sprintf("sensors_hid/%s/configuration", sensor.HID),
	}
	for _, topic := range topics {
		if err := c.publisher.PublishJSON(topic, config); err != nil {
			c.logger.WithSensor(sensor.UID).WithError(err).Warn("Failed to publish configuration")
		}
	}
}
