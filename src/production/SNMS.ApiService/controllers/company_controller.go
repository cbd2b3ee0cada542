package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/middleware"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

// CompanyController handles company and membership management requests
type CompanyController struct {
	companyRepo    interfaces.CompanyRepository
	userRepo       interfaces.UserRepository
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
	access         *middleware.SensorAccess
}

// NewCompanyController creates a new company controller
func NewCompanyController(
	companyRepo interfaces.CompanyRepository,
	userRepo interfaces.UserRepository,
	logger *logger.Logger,
	authMiddleware *middleware.AuthMiddleware,
	access *middleware.SensorAccess,
) *CompanyController {
	return &CompanyController{
		companyRepo:    companyRepo,
		userRepo:       userRepo,
		logger:         logger,
		authMiddleware: authMiddleware,
		access:         access,
	}
}

// RegisterRoutes registers the company routes with Gin
func (c *CompanyController) RegisterRoutes(router *gin.Engine) {
	router.POST("/companies", c.authMiddleware.Authenticate(),
		c.authMiddleware.RequireSuperAdmin(), c.CreateCompany)
	router.GET("/companies/:company_uid", c.authMiddleware.Authenticate(),
		c.access.ResolveCompany(), c.access.RequireCompanyRole(snmsmodels.RoleRead), c.GetCompany)
	router.PUT("/companies/:company_uid/users/:user_id", c.authMiddleware.Authenticate(),
		c.access.ResolveCompany(), c.access.RequireCompanyRole(snmsmodels.RoleAdmin), c.SetMemberRole)
}

type CreateCompanyRequest struct {
	Name string `json:"name" binding:"required"`
}

func (c *CompanyController) CreateCompany(ctx *gin.Context) {
	var req CreateCompanyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	company := &snmsmodels.Company{
		UID:  uuid.New().String(),
		Name: req.Name,
	}
	if err := c.companyRepo.Create(ctx.Request.Context(), company); err != nil {
		c.logger.WithError(err).Error("Failed to create company")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create company"})
		return
	}

	ctx.JSON(http.StatusCreated, company)
}

func (c *CompanyController) GetCompany(ctx *gin.Context) {
	company, err := middleware.GetCompanyFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, company)
}

type SetMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (c *CompanyController) SetMemberRole(ctx *gin.Context) {
	company, err := middleware.GetCompanyFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req SetMemberRoleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role != snmsmodels.RoleAdmin && req.Role != snmsmodels.RoleWrite && req.Role != snmsmodels.RoleRead {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	userID := ctx.Param("user_id")
	user, err := c.userRepo.GetByID(ctx.Request.Context(), userID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if user == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := c.userRepo.SetCompanyRole(ctx.Request.Context(), userID, company.ID, req.Role); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user_id": userID, "role": req.Role})
}
