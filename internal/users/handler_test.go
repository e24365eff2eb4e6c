package users

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

func newUsersRouter(t *testing.T) (*gin.Engine, *fakeRepo, *fakePublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()

	repo := &fakeRepo{}
	publisher := &fakePublisher{}
	svc := NewService(repo, publisher, logger.NopLogger())

	handler := NewHandler(svc, logger.NopLogger())
	handler.RegisterRoutes(router)
	return router, repo, publisher
}

func TestRegisterEndpoint(t *testing.T) {
	router, repo, publisher := newUsersRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/register",
		strings.NewReader(`{"name":"Alice","email":"alice@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp RegisterUserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Alice", resp.User.Name)
	assert.NotEmpty(t, resp.User.ID)

	assert.Len(t, repo.users, 1)
	assert.Len(t, publisher.events, 1)
}

func TestRegisterEndpointValidation(t *testing.T) {
	router, _, publisher := newUsersRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/register",
		strings.NewReader(`{"name":"Alice"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Name and email are required", resp["message"])
	assert.Empty(t, publisher.events)
}

func TestListEndpoint(t *testing.T) {
	router, repo, _ := newUsersRouter(t)
	repo.users = []User{{ID: "1", Name: "Alice", Email: "alice@example.com"}}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp ListUsersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Alice", resp.Data[0].Name)
}
