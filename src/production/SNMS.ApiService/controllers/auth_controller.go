package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auth "gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/implementation/auth"
	"gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/middleware"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	api_models "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models/api"
)

// AuthController handles authentication requests
type AuthController struct {
	authService    *auth.AuthService
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewAuthController creates a new auth controller
func NewAuthController(authService *auth.AuthService, logger *logger.Logger, authMiddleware *middleware.AuthMiddleware) *AuthController {
	return &AuthController{
		authService:    authService,
		logger:         logger,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers the auth routes with Gin
func (c *AuthController) RegisterRoutes(router *gin.Engine) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", c.Login)
		authGroup.POST("/refresh", c.Refresh)
		authGroup.GET("/me", c.authMiddleware.Authenticate(), c.Me)
	}
}

func (c *AuthController) Login(ctx *gin.Context) {
	var req api_models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := c.authService.Login(ctx.Request.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.logger.WithError(err).Error("Login failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

func (c *AuthController) Refresh(ctx *gin.Context) {
	var req api_models.RefreshRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := c.authService.RefreshTokens(ctx.Request.Context(), req.RefreshToken)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

func (c *AuthController) Me(ctx *gin.Context) {
	userID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	user, err := c.authService.GetUserByID(ctx.Request.Context(), userID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if user == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user_id":     user.UserID,
		"username":    user.Username,
		"email":       user.Email,
		"super_admin": user.SuperAdmin,
	})
}
