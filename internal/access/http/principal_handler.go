// Package http provides HTTP handlers and middleware for access control and
// principal management.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
	"github.com/aknoru/lacbot-security/internal/access/http/dto"
	accessUseCase "github.com/aknoru/lacbot-security/internal/access/usecase"
	"github.com/aknoru/lacbot-security/internal/httputil"
)

// PrincipalHandler handles HTTP requests for principal lifecycle operations.
type PrincipalHandler struct {
	accessControl accessUseCase.AccessControlUseCase
	logger        *slog.Logger
}

// NewPrincipalHandler creates a new principal handler with required dependencies.
func NewPrincipalHandler(
	accessControl accessUseCase.AccessControlUseCase,
	logger *slog.Logger,
) *PrincipalHandler {
	return &PrincipalHandler{
		accessControl: accessControl,
		logger:        logger,
	}
}

// RegisterRoutes mounts the principal routes. Reads and registration sit
// behind the user:manage guard; role changes and deactivation authorize
// inside the use case, which also audits the attempt.
func (h *PrincipalHandler) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/v1/principals")
	group.Use(PrincipalMiddleware(h.accessControl, h.logger))

	manageGuard := RequireAction(h.accessControl, accessDomain.ActionUserManage, h.logger)
	group.POST("", manageGuard, h.RegisterHandler)
	group.GET("", manageGuard, h.ListHandler)
	group.GET("/:id", manageGuard, h.GetHandler)

	group.PUT("/:id/role", h.ChangeRoleHandler)
	group.POST("/:id/deactivate", h.DeactivateHandler)
}

// RegisterHandler creates a new principal with the given role.
// POST /v1/principals - Requires user:manage.
// Returns 201 Created with the principal.
func (h *PrincipalHandler) RegisterHandler(c *gin.Context) {
	var req dto.RegisterPrincipalRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	principal, err := h.accessControl.Register(c.Request.Context(), accessDomain.Role(req.Role))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapPrincipalToResponse(principal))
}

// GetHandler retrieves a principal by ID.
// GET /v1/principals/:id - Requires user:manage.
// Returns 200 OK with the principal.
func (h *PrincipalHandler) GetHandler(c *gin.Context) {
	principalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid principal ID format: must be a valid UUID"),
			h.logger)
		return
	}

	principal, err := h.accessControl.Get(c.Request.Context(), principalID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPrincipalToResponse(principal))
}

// ListHandler retrieves principals with pagination support.
// GET /v1/principals?offset=0&limit=50 - Requires user:manage.
// Returns 200 OK with principals ordered by created_at descending.
func (h *PrincipalHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	principals, err := h.accessControl.List(c.Request.Context(), uint(limit), uint(offset))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPrincipalsToListResponse(principals))
}

// ChangeRoleHandler changes a principal's role. The acting principal must hold
// user:manage; the use case enforces and audits this.
// PUT /v1/principals/:id/role
// Returns 200 OK with the updated principal.
func (h *PrincipalHandler) ChangeRoleHandler(c *gin.Context) {
	principalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid principal ID format: must be a valid UUID"),
			h.logger)
		return
	}

	var req dto.ChangeRoleRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	actor, _ := GetPrincipal(c.Request.Context())
	if err := h.accessControl.ChangeRole(c.Request.Context(), actor, principalID,
		accessDomain.Role(req.Role)); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	principal, err := h.accessControl.Get(c.Request.Context(), principalID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPrincipalToResponse(principal))
}

// DeactivateHandler disables a principal. Principals are never deleted, so
// audit events stay resolvable. The acting principal must hold user:manage.
// POST /v1/principals/:id/deactivate
// Returns 204 No Content.
func (h *PrincipalHandler) DeactivateHandler(c *gin.Context) {
	principalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid principal ID format: must be a valid UUID"),
			h.logger)
		return
	}

	actor, _ := GetPrincipal(c.Request.Context())
	if err := h.accessControl.Deactivate(c.Request.Context(), actor, principalID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}
