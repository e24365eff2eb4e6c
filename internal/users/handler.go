package users

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nimbus/internal/logger"
	pkgerrors "nimbus/pkg/errors"
)

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Root)
	router.POST("/register", h.Register)
	router.GET("/users", h.List)
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "User Service",
		"endpoints": []string{"/health", "/register", "/users", "/metrics"},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, pkgerrors.ToErrorResponse(pkgerrors.ErrValidation.WithCause(err)))
		return
	}

	user, err := h.service.RegisterUser(c.Request.Context(), req)
	if err != nil {
		h.logger.ErrorwCtx(c.Request.Context(), "Registration failed", "error", err)
		c.JSON(pkgerrors.ToHTTPStatus(err), pkgerrors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, RegisterUserResponse{
		Status:  "success",
		Message: "User registered",
		User:    *user,
	})
}

func (h *Handler) List(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		h.logger.ErrorwCtx(c.Request.Context(), "Failed to list users", "error", err)
		c.JSON(pkgerrors.ToHTTPStatus(err), pkgerrors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, ListUsersResponse{
		Status: "success",
		Data:   users,
		Count:  len(users),
	})
}
