// Package http provides HTTP handlers and middleware for access control and
// principal management.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
	accessUseCase "github.com/aknoru/lacbot-security/internal/access/usecase"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
	"github.com/aknoru/lacbot-security/internal/httputil"
)

// principalHeader carries the caller's principal ID, set by the fronting
// identity layer after session validation.
const principalHeader = "X-Principal-Id"

// PrincipalMiddleware resolves the X-Principal-Id header into a principal and
// stores it in the request context.
//
// The header is optional: anonymous traffic continues with no principal in
// context, and route guards decide whether that is acceptable. A header that
// is present but malformed or unresolvable is a hard 401, since it means the
// identity layer and this service disagree about who is calling.
func PrincipalMiddleware(
	accessControl accessUseCase.AccessControlUseCase,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(principalHeader)
		if header == "" {
			c.Next()
			return
		}

		principalID, err := uuid.Parse(header)
		if err != nil {
			logger.Debug("principal resolution failed: malformed principal id",
				slog.String("header", header))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		principal, err := accessControl.Get(c.Request.Context(), principalID)
		if err != nil {
			logger.Debug("principal resolution failed",
				slog.String("principal_id", principalID.String()),
				slog.String("error", err.Error()))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		ctx := WithPrincipal(c.Request.Context(), principal)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireAction guards a route behind one authorization decision.
//
// This middleware MUST be used after PrincipalMiddleware. It authorizes the
// resolved principal for the given action against the route itself, treated as
// a Restricted resource so every access lands in the audit trail. Anonymous
// requests are denied outright.
func RequireAction(
	accessControl accessUseCase.AccessControlUseCase,
	action accessDomain.Action,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c.Request.Context())
		if !ok || principal == nil {
			logger.Debug("authorization failed: no principal in context",
				slog.String("path", c.Request.URL.Path),
				slog.String("action", string(action)))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		resource := accessDomain.Resource{
			Type:           c.Request.URL.Path,
			Classification: accessDomain.ClassRestricted,
		}
		decision := accessControl.Authorize(c.Request.Context(), principal, c.ClientIP(), action, resource)
		if !decision.Permitted() {
			logger.Debug("authorization failed: action not permitted",
				slog.String("principal_id", principal.ID.String()),
				slog.String("role", string(principal.Role)),
				slog.String("path", c.Request.URL.Path),
				slog.String("action", string(action)))
			httputil.HandleErrorGin(c, apperrors.ErrForbidden, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}
