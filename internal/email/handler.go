package email

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nimbus/internal/auth"
	"nimbus/internal/logger"
	pkgerrors "nimbus/pkg/errors"
)

const serviceTokenTTL = time.Hour

type Handler struct {
	service       *Service
	tokens        *auth.TokenService
	serviceSecret string
	logger        logger.Logger
}

func NewHandler(service *Service, tokens *auth.TokenService, serviceSecret string, log logger.Logger) *Handler {
	return &Handler{
		service:       service,
		tokens:        tokens,
		serviceSecret: serviceSecret,
		logger:        log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Root)
	router.POST("/send-email", auth.RequireService(h.tokens), h.SendEmail)
	router.GET("/email-logs", auth.RequireUser(h.tokens), h.ListLogs)
	router.POST("/generate-service-token", h.GenerateServiceToken)
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Email Service",
		"endpoints": []string{"/health", "/send-email", "/email-logs", "/generate-service-token"},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) SendEmail(c *gin.Context) {
	var req SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, pkgerrors.ToErrorResponse(pkgerrors.ErrValidation.WithCause(err)))
		return
	}

	requestedBy := c.GetString(auth.ContextService)
	if err := h.service.SendEmail(c.Request.Context(), req, requestedBy); err != nil {
		c.JSON(pkgerrors.ToHTTPStatus(err), pkgerrors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, SendEmailResponse{
		Status:  "success",
		Message: "Email sent",
	})
}

func (h *Handler) ListLogs(c *gin.Context) {
	logs, err := h.service.ListLogs(c.Request.Context())
	if err != nil {
		h.logger.ErrorwCtx(c.Request.Context(), "Failed to list email logs", "error", err)
		c.JSON(pkgerrors.ToHTTPStatus(err), pkgerrors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, ListLogsResponse{
		Status: "success",
		Data:   logs,
		Count:  len(logs),
	})
}

// GenerateServiceToken bootstraps service-to-service auth: a caller holding
// the shared secret trades it for a short-lived signed token.
func (h *Handler) GenerateServiceToken(c *gin.Context) {
	var req ServiceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, pkgerrors.ToErrorResponse(pkgerrors.ErrValidation.WithCause(err)))
		return
	}

	if req.ServiceName == "" {
		c.JSON(http.StatusBadRequest, pkgerrors.ToErrorResponse(
			pkgerrors.ErrValidation.WithDetail("message", "serviceName is required")))
		return
	}
	if req.SecretKey != h.serviceSecret {
		c.JSON(http.StatusUnauthorized, pkgerrors.ToErrorResponse(
			pkgerrors.ErrUnauthorized.WithDetail("message", "invalid secret key")))
		return
	}

	token, err := h.tokens.SignServiceToken(req.ServiceName, serviceTokenTTL)
	if err != nil {
		h.logger.ErrorwCtx(c.Request.Context(), "Failed to sign service token", "error", err)
		c.JSON(http.StatusInternalServerError, pkgerrors.ToErrorResponse(pkgerrors.ErrInternal.WithCause(err)))
		return
	}

	c.JSON(http.StatusOK, ServiceTokenResponse{
		Status:    "success",
		Token:     token,
		ExpiresIn: serviceTokenTTL.String(),
	})
}
