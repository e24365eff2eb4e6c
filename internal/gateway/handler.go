package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nimbus/internal/constants"
	"nimbus/internal/logger"
)

type Handler struct {
	forwarder *Forwarder
	table     *RouteTable
	logger    logger.Logger
}

func NewHandler(forwarder *Forwarder, table *RouteTable, log logger.Logger) *Handler {
	return &Handler{forwarder: forwarder, table: table, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	// Everything else is proxy traffic.
	router.NoRoute(h.forwarder.Forward)
}

func (h *Handler) Root(c *gin.Context) {
	routes := make([]gin.H, 0, len(h.table.Rules()))
	for _, rule := range h.table.Rules() {
		routes = append(routes, gin.H{
			"prefix":  rule.Prefix,
			"service": rule.Service,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "API Gateway",
		"routes":    routes,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": constants.ServiceNameGateway,
	})
}
