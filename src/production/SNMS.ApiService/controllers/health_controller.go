package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/health"
)

// HealthController handles health requests
type HealthController struct {
	checker *health.HealthChecker
}

// NewHealthController creates a new health controller
func NewHealthController(checker *health.HealthChecker) *HealthController {
	return &HealthController{checker: checker}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	status := c.checker.GetHealthStatus(ctx.Request.Context())

	code := http.StatusOK
	if status["status"] != "ok" {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, status)
}
