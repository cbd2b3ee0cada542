package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

const (
	SensorContextKey     contextKey = "sensor"
	SensorRoleContextKey contextKey = "sensor_role"
	CompanyContextKey    contextKey = "company"

	// SensorKeyHeader carries the device write credential on value
	// submissions that arrive without a user token.
	SensorKeyHeader = "X-Sensor-Key"
)

var roleRank = map[string]int{
	snmsmodels.RoleRead:  1,
	snmsmodels.RoleWrite: 2,
	snmsmodels.RoleAdmin: 3,
}

// SensorAccess resolves the addressed sensor and gates access to it. The
// resolution middlewares return 404 both for unknown and soft-deleted
// sensors so their existence is never leaked across companies.
type SensorAccess struct {
	sensors   interfaces.SensorRepository
	companies interfaces.CompanyRepository
	users     interfaces.UserRepository
}

func NewSensorAccess(
	sensors interfaces.SensorRepository,
	companies interfaces.CompanyRepository,
	users interfaces.UserRepository,
) *SensorAccess {
	return &SensorAccess{sensors: sensors, companies: companies, users: users}
}

// ResolveByUID loads the sensor addressed by the :uid route parameter.
func (a *SensorAccess) ResolveByUID() gin.HandlerFunc {
	return func(c *gin.Context) {
		sensor, err := a.sensors.GetByUID(c.Request.Context(), c.Param("uid"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sensor"})
			c.Abort()
			return
		}
		if sensor == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sensor not found"})
			c.Abort()
			return
		}
		c.Set(string(SensorContextKey), sensor)
		c.Next()
	}
}

// ResolveByHID loads the sensor addressed by :company_uid and :hid.
func (a *SensorAccess) ResolveByHID() gin.HandlerFunc {
	return func(c *gin.Context) {
		company, err := a.companies.GetByUID(c.Request.Context(), c.Param("company_uid"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load company"})
			c.Abort()
			return
		}
		if company == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Company not found"})
			c.Abort()
			return
		}

		sensor, err := a.sensors.GetByHID(c.Request.Context(), company.ID, c.Param("hid"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sensor"})
			c.Abort()
			return
		}
		if sensor == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sensor not found"})
			c.Abort()
			return
		}
		c.Set(string(SensorContextKey), sensor)
		c.Next()
	}
}

// ResolveByHIDGlobal loads the sensor addressed by :hid alone, across all
// companies. HIDs are only unique per company; the first match wins.
func (a *SensorAccess) ResolveByHIDGlobal() gin.HandlerFunc {
	return func(c *gin.Context) {
		sensor, err := a.sensors.GetByHIDGlobal(c.Request.Context(), c.Param("hid"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sensor"})
			c.Abort()
			return
		}
		if sensor == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sensor not found"})
			c.Abort()
			return
		}
		c.Set(string(SensorContextKey), sensor)
		c.Next()
	}
}

// ResolveCompany loads the company addressed by the :company_uid route
// parameter.
func (a *SensorAccess) ResolveCompany() gin.HandlerFunc {
	return func(c *gin.Context) {
		company, err := a.companies.GetByUID(c.Request.Context(), c.Param("company_uid"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load company"})
			c.Abort()
			return
		}
		if company == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Company not found"})
			c.Abort()
			return
		}
		c.Set(string(CompanyContextKey), company)
		c.Next()
	}
}

// RequireCompanyRole gates the request on the caller's role within the
// resolved company. Super admins act as company admins.
func (a *SensorAccess) RequireCompanyRole(minRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		company, err := GetCompanyFromContext(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Company not resolved"})
			c.Abort()
			return
		}

		role := ""
		if IsSuperAdmin(c) {
			role = snmsmodels.RoleAdmin
		} else {
			userID, err := GetUserFromGinContext(c)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
				c.Abort()
				return
			}
			role, err = a.users.CompanyRole(c.Request.Context(), userID, company.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
				c.Abort()
				return
			}
			if role == "" {
				c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
				c.Abort()
				return
			}
		}

		if roleRank[role] < roleRank[minRole] {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			c.Abort()
			return
		}

		c.Set(string(SensorRoleContextKey), role)
		c.Next()
	}
}

// RequireRole gates the request on the caller's role for the resolved
// sensor's company. Super admins act as company admins. A matching
// X-Sensor-Key device credential grants write access without a user.
func (a *SensorAccess) RequireRole(minRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sensor, err := GetSensorFromContext(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Sensor not resolved"})
			c.Abort()
			return
		}

		role := ""

		if key := c.GetHeader(SensorKeyHeader); key != "" && sensor.Key != "" &&
			subtle.ConstantTimeCompare([]byte(key), []byte(sensor.Key)) == 1 {
			role = snmsmodels.RoleWrite
		}

		if role == "" {
			userID, err := GetUserFromGinContext(c)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
				c.Abort()
				return
			}

			if IsSuperAdmin(c) {
				role = snmsmodels.RoleAdmin
			} else {
				role, err = a.users.CompanyRole(c.Request.Context(), userID, sensor.CompanyID)
				if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
					c.Abort()
					return
				}
				if role == "" {
					c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
					c.Abort()
					return
				}
			}
		}

		if roleRank[role] < roleRank[minRole] {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			c.Abort()
			return
		}

		c.Set(string(SensorRoleContextKey), role)
		c.Next()
	}
}

// GetSensorFromContext retrieves the resolved sensor from the Gin context
func GetSensorFromContext(c *gin.Context) (*snmsmodels.Sensor, error) {
	v, exists := c.Get(string(SensorContextKey))
	if !exists {
		return nil, errors.New("sensor not found in context")
	}
	sensor, ok := v.(*snmsmodels.Sensor)
	if !ok {
		return nil, errors.New("invalid sensor in context")
	}
	return sensor, nil
}

// GetCompanyFromContext retrieves the resolved company from the Gin context
func GetCompanyFromContext(c *gin.Context) (*snmsmodels.Company, error) {
	v, exists := c.Get(string(CompanyContextKey))
	if !exists {
		return nil, errors.New("company not found in context")
	}
	company, ok := v.(*snmsmodels.Company)
	if !ok {
		return nil, errors.New("invalid company in context")
	}
	return company, nil
}

// GetSensorRoleFromContext retrieves the caller's role for the resolved sensor
func GetSensorRoleFromContext(c *gin.Context) string {
	v, exists := c.Get(string(SensorRoleContextKey))
	if !exists {
		return ""
	}
	role, _ := v.(string)
	return role
}

// SanitizeSensor strips the write credential from representations returned
// to read-only callers.
func SanitizeSensor(sensor *snmsmodels.Sensor, role string) *snmsmodels.Sensor {
	if role != snmsmodels.RoleRead {
		return sensor
	}
	cleaned := *sensor
	cleaned.Key = ""
	return &cleaned
}
