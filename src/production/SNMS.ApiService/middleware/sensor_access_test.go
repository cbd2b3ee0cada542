package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

type fakeUserRepo struct {
	interfaces.UserRepository

	roles map[string]string
}

func (f *fakeUserRepo) CompanyRole(_ context.Context, userID string, _ int64) (string, error) {
	return f.roles[userID], nil
}

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	return c, w
}

func gateSensor() *snmsmodels.Sensor {
	return &snmsmodels.Sensor{ID: 7, UID: "s-1", CompanyID: 3, Key: "device-key"}
}

func TestRequireRoleDeviceKeyGrantsWrite(t *testing.T) {
	access := NewSensorAccess(nil, nil, &fakeUserRepo{})

	c, w := testContext(t)
	c.Set(string(SensorContextKey), gateSensor())
	c.Request.Header.Set(SensorKeyHeader, "device-key")

	access.RequireRole(snmsmodels.RoleWrite)(c)

	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, snmsmodels.RoleWrite, GetSensorRoleFromContext(c))
}

func TestRequireRoleWrongDeviceKeyNeedsUser(t *testing.T) {
	access := NewSensorAccess(nil, nil, &fakeUserRepo{})

	c, w := testContext(t)
	c.Set(string(SensorContextKey), gateSensor())
	c.Request.Header.Set(SensorKeyHeader, "wrong-key")

	access.RequireRole(snmsmodels.RoleWrite)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoleCompanyMembership(t *testing.T) {
	access := NewSensorAccess(nil, nil, &fakeUserRepo{roles: map[string]string{
		"reader": snmsmodels.RoleRead,
		"writer": snmsmodels.RoleWrite,
	}})

	cases := []struct {
		name    string
		userID  string
		minRole string
		status  int
	}{
		{"reader can read", "reader", snmsmodels.RoleRead, http.StatusOK},
		{"reader cannot write", "reader", snmsmodels.RoleWrite, http.StatusForbidden},
		{"writer can write", "writer", snmsmodels.RoleWrite, http.StatusOK},
		{"stranger denied", "stranger", snmsmodels.RoleRead, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := testContext(t)
			c.Set(string(SensorContextKey), gateSensor())
			c.Set(string(UserIDContextKey), tc.userID)

			access.RequireRole(tc.minRole)(c)

			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRequireRoleSuperAdminActsAsAdmin(t *testing.T) {
	access := NewSensorAccess(nil, nil, &fakeUserRepo{})

	c, w := testContext(t)
	c.Set(string(SensorContextKey), gateSensor())
	c.Set(string(UserIDContextKey), "root")
	c.Set(string(SuperAdminContextKey), true)

	access.RequireRole(snmsmodels.RoleAdmin)(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, snmsmodels.RoleAdmin, GetSensorRoleFromContext(c))
}

func TestSanitizeSensorStripsKeyForReadRole(t *testing.T) {
	sensor := gateSensor()

	cleaned := SanitizeSensor(sensor, snmsmodels.RoleRead)
	require.NotSame(t, sensor, cleaned)
	assert.Empty(t, cleaned.Key)
	assert.Equal(t, "device-key", sensor.Key)

	assert.Equal(t, "device-key", SanitizeSensor(sensor, snmsmodels.RoleWrite).Key)
	assert.Equal(t, "device-key", SanitizeSensor(sensor, snmsmodels.RoleAdmin).Key)
}
