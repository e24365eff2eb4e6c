package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbus/internal/logger"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()

	store := NewStore()
	handler := NewHandler(store, logger.NopLogger())
	handler.RegisterRoutes(router)
	return router, store
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/register",
		`{"serviceName":"user-service","serviceUrl":"http://localhost:3001"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "user-service registered successfully", resp.Message)
	assert.Equal(t, []string{"user-service"}, resp.RegisteredServices)
}

func TestRegisterEndpointValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing serviceName", body: `{"serviceUrl":"http://localhost:3001"}`},
		{name: "missing serviceUrl", body: `{"serviceName":"user-service"}`},
		{name: "not json", body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestLookupEndpoint(t *testing.T) {
	router, store := newTestRouter(t)
	store.Register("email-service", "http://localhost:3002")

	w := doRequest(router, http.MethodGet, "/services/email-service", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp LookupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "email-service", resp.ServiceName)
	assert.Equal(t, "http://localhost:3002", resp.ServiceURL)
}

func TestLookupEndpointNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/services/ghost-service", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Service not found", resp["message"])
}

func TestListEndpoint(t *testing.T) {
	router, store := newTestRouter(t)
	store.Register("a", "http://a:1")
	store.Register("b", "http://b:2")

	w := doRequest(router, http.MethodGet, "/services", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Services, 2)
	assert.Equal(t, "http://a:1", resp.Services["a"])
}

func TestHealthEndpoint(t *testing.T) {
	router, store := newTestRouter(t)
	store.Register("a", "http://a:1")

	w := doRequest(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "service-registry", resp["service"])
	assert.Equal(t, float64(1), resp["registeredServices"])
}
