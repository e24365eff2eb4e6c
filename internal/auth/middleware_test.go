package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbus/internal/constants"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	svc := NewTokenService(testSecret)

	router.GET("/user-only", RequireUser(svc), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(ContextUserID)})
	})
	router.POST("/service-only", RequireService(svc), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": c.GetString(ContextService)})
	})
	return router, svc
}

func TestRequireUser(t *testing.T) {
	router, svc := newAuthRouter(t)

	userToken, err := svc.SignUserToken("user-123", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantCode   int
	}{
		{name: "valid token", authHeader: "Bearer " + userToken, wantCode: http.StatusOK},
		{name: "missing header", authHeader: "", wantCode: http.StatusUnauthorized},
		{name: "no bearer prefix", authHeader: userToken, wantCode: http.StatusUnauthorized},
		{name: "invalid token", authHeader: "Bearer garbage", wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/user-only", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestRequireUserRejectsServiceToken(t *testing.T) {
	router, svc := newAuthRouter(t)

	serviceToken, err := svc.SignServiceToken("email-service", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/user-only", nil)
	req.Header.Set("Authorization", "Bearer "+serviceToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireService(t *testing.T) {
	router, svc := newAuthRouter(t)

	serviceToken, err := svc.SignServiceToken("user-service", time.Hour)
	require.NoError(t, err)
	userToken, err := svc.SignUserToken("user-123", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		wantCode int
	}{
		{name: "valid service token", token: serviceToken, wantCode: http.StatusOK},
		{name: "missing token", token: "", wantCode: http.StatusUnauthorized},
		{name: "user token rejected", token: userToken, wantCode: http.StatusForbidden},
		{name: "garbage token", token: "garbage", wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/service-only", nil)
			if tt.token != "" {
				req.Header.Set(constants.HeaderServiceToken, tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
