package registry

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nimbus/internal/constants"
	"nimbus/internal/logger"
	pkgerrors "nimbus/pkg/errors"
)

type Handler struct {
	store  *Store
	logger logger.Logger
}

func NewHandler(store *Store, log logger.Logger) *Handler {
	return &Handler{store: store, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/register", h.Register)
	router.GET("/services/:serviceName", h.Lookup)
	router.GET("/services", h.List)
	router.GET("/health", h.Health)
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, pkgerrors.ToErrorResponse(pkgerrors.ErrValidation.WithCause(err)))
		return
	}

	names := h.store.Register(req.ServiceName, req.ServiceURL)

	h.logger.InfowCtx(c.Request.Context(), "Service registered",
		"registered_service", req.ServiceName,
		"address", req.ServiceURL,
	)

	c.JSON(http.StatusOK, RegisterResponse{
		Status:             "success",
		Message:            req.ServiceName + " registered successfully",
		RegisteredServices: names,
	})
}

func (h *Handler) Lookup(c *gin.Context) {
	name := c.Param("serviceName")

	record, err := h.store.Lookup(name)
	if err != nil {
		c.JSON(pkgerrors.ToHTTPStatus(err), pkgerrors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, LookupResponse{
		ServiceName: record.Name,
		ServiceURL:  record.Address,
	})
}

func (h *Handler) List(c *gin.Context) {
	c.JSON(http.StatusOK, ListResponse{Services: h.store.List()})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"service":            constants.ServiceNameRegistry,
		"registeredServices": h.store.Count(),
	})
}
