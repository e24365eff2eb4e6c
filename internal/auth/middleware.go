package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nimbus/internal/constants"
	pkgerrors "nimbus/pkg/errors"
)

const (
	ContextUserID  = "user_id"
	ContextService = "service"
)

// RequireUser guards endpoints that need a user-scoped bearer credential.
func RequireUser(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, pkgerrors.ToErrorResponse(
				pkgerrors.ErrUnauthorized.WithDetail("message", "access token required")))
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil || identity.UserID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, pkgerrors.ToErrorResponse(
				pkgerrors.ErrForbidden.WithDetail("message", "invalid or expired token")))
			return
		}

		c.Set(ContextUserID, identity.UserID)
		c.Next()
	}
}

// RequireService guards service-to-service endpoints: the token must carry a
// service identity claim, a user token is not accepted.
func RequireService(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(constants.HeaderServiceToken)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, pkgerrors.ToErrorResponse(
				pkgerrors.ErrUnauthorized.WithDetail("message", "service token required")))
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil || !identity.IsService() {
			c.AbortWithStatusJSON(http.StatusForbidden, pkgerrors.ToErrorResponse(
				pkgerrors.ErrForbidden.WithDetail("message", "invalid service token")))
			return
		}

		c.Set(ContextService, identity.Service)
		c.Next()
	}
}
