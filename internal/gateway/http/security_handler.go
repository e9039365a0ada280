// Package http provides HTTP handlers and middleware for the security gateway.
package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
	accessHTTP "github.com/aknoru/lacbot-security/internal/access/http"
	accessUseCase "github.com/aknoru/lacbot-security/internal/access/usecase"
	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	auditUseCase "github.com/aknoru/lacbot-security/internal/audit/usecase"
	"github.com/aknoru/lacbot-security/internal/gateway/http/dto"
	gatewayUseCase "github.com/aknoru/lacbot-security/internal/gateway/usecase"
	"github.com/aknoru/lacbot-security/internal/httputil"
	ratelimitUseCase "github.com/aknoru/lacbot-security/internal/ratelimit/usecase"
	sanitizerDomain "github.com/aknoru/lacbot-security/internal/sanitizer/domain"
)

// SecurityHandler handles HTTP requests for the security gateway: admission
// checks, data protection, event reporting, and the administrative surface.
type SecurityHandler struct {
	gateway       gatewayUseCase.SecurityGatewayUseCase
	events        auditUseCase.SecurityEventUseCase
	rateLimiter   ratelimitUseCase.RateLimiterUseCase
	accessControl accessUseCase.AccessControlUseCase
	logger        *slog.Logger
}

// NewSecurityHandler creates a new security handler with required dependencies.
func NewSecurityHandler(
	gateway gatewayUseCase.SecurityGatewayUseCase,
	events auditUseCase.SecurityEventUseCase,
	rateLimiter ratelimitUseCase.RateLimiterUseCase,
	accessControl accessUseCase.AccessControlUseCase,
	logger *slog.Logger,
) *SecurityHandler {
	return &SecurityHandler{
		gateway:       gateway,
		events:        events,
		rateLimiter:   rateLimiter,
		accessControl: accessControl,
		logger:        logger,
	}
}

// RegisterRoutes mounts the gateway routes. Every route resolves the optional
// X-Principal-Id header first; the read-only administrative routes require
// security:read and the mutating ones require system:configure.
func (h *SecurityHandler) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/v1/security")
	group.Use(accessHTTP.PrincipalMiddleware(h.accessControl, h.logger))

	group.POST("/check", h.CheckHandler)

	readGuard := accessHTTP.RequireAction(h.accessControl, accessDomain.ActionSecurityRead, h.logger)
	group.GET("/status", readGuard, h.StatusHandler)
	group.GET("/events", readGuard, h.ListEventsHandler)
	group.GET("/events/:id", readGuard, h.GetEventHandler)
	group.POST("/verify-chain", readGuard, h.VerifyChainHandler)

	adminGuard := accessHTTP.RequireAction(h.accessControl, accessDomain.ActionSystemConfigure, h.logger)
	group.POST("/events", adminGuard, h.RecordEventHandler)
	group.POST("/protect", adminGuard, h.ProtectHandler)
	group.POST("/reveal", adminGuard, h.RevealHandler)
	group.POST("/unblock", adminGuard, h.UnblockHandler)
}

// CheckHandler runs the full admission pipeline for one inbound request.
// POST /v1/security/check
// Returns 200 OK with the verdict for both admitted and rejected requests: a
// rejection is a routine outcome for the calling service, not a caller error.
// Rejected malicious input carries the violation code; the raw payload is
// never echoed back. 4xx is reserved for malformed check requests and 5xx for
// infrastructure failures.
func (h *SecurityHandler) CheckHandler(c *gin.Context) {
	var req dto.CheckRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	principal, _ := accessHTTP.GetPrincipal(c.Request.Context())

	resource := accessDomain.Resource{
		Type:           req.Resource.Type,
		Classification: accessDomain.Classification(req.Resource.Classification),
	}
	if req.Resource.OwnerID != nil {
		ownerID, err := uuid.Parse(*req.Resource.OwnerID)
		if err != nil {
			httputil.HandleValidationErrorGin(c,
				fmt.Errorf("invalid resource owner_id format: must be a valid UUID"),
				h.logger)
			return
		}
		resource.OwnerID = &ownerID
	}

	result, err := h.gateway.CheckRequest(c.Request.Context(), gatewayUseCase.CheckRequest{
		RawInput:  req.Input,
		Class:     sanitizerDomain.ContentClass(req.Class),
		Principal: principal,
		IP:        c.ClientIP(),
		Action:    accessDomain.Action(req.Action),
		Resource:  resource,
	})
	if err != nil {
		var violation *sanitizerDomain.ViolationError
		if errors.As(err, &violation) {
			c.JSON(http.StatusOK, dto.MapCheckResultToResponse(result, string(violation.Code)))
			return
		}
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapCheckResultToResponse(result, ""))
}

// ProtectHandler seals one sensitive field under the active key.
// POST /v1/security/protect - Requires system:configure.
// Returns 200 OK with the self-describing envelope.
func (h *SecurityHandler) ProtectHandler(c *gin.Context) {
	var req dto.ProtectRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	blob, err := h.gateway.Protect(c.Request.Context(), []byte(req.Plaintext))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapBlobToResponse(blob))
}

// RevealHandler opens a previously protected envelope.
// POST /v1/security/reveal - Requires system:configure.
// Returns 200 OK with the plaintext, or 422 when the envelope fails to open.
func (h *SecurityHandler) RevealHandler(c *gin.Context) {
	var req dto.RevealRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	plaintext, err := h.gateway.Reveal(c.Request.Context(), req.ToBlob())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.RevealResponse{Plaintext: string(plaintext)})
}

// RecordEventHandler reports a security occurrence from business logic into
// the audit trail and threat scoring.
// POST /v1/security/events - Requires system:configure.
// Returns 202 Accepted: a store outage parks the event on the retry buffer
// rather than losing it, so acceptance does not imply durability yet.
func (h *SecurityHandler) RecordEventHandler(c *gin.Context) {
	var req dto.RecordEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	draft := &auditDomain.EventDraft{
		Type:     auditDomain.EventType(req.Type),
		IP:       req.IP,
		Severity: auditDomain.Severity(req.Severity),
		Details:  req.Details,
	}
	if req.PrincipalID != nil {
		principalID, err := uuid.Parse(*req.PrincipalID)
		if err != nil {
			httputil.HandleValidationErrorGin(c,
				fmt.Errorf("invalid principal_id format: must be a valid UUID"),
				h.logger)
			return
		}
		draft.PrincipalID = &principalID
	}

	if err := h.gateway.RecordEvent(c.Request.Context(), draft); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusAccepted, "application/json", nil)
}

// StatusHandler returns the security posture summary.
// GET /v1/security/status - Requires security:read.
// Returns 200 OK with the overall risk score, active blocks, and recent
// high/critical events.
func (h *SecurityHandler) StatusHandler(c *gin.Context) {
	status, err := h.gateway.SecurityStatus(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatusToResponse(status))
}

// ListEventsHandler retrieves security events with pagination support and
// optional time-based filtering.
// GET /v1/security/events?offset=0&limit=50&created_at_from=2026-08-01T00:00:00Z&created_at_to=2026-08-31T23:59:59Z
// Requires security:read. Returns 200 OK with events ordered by created_at
// descending. Accepts optional created_at_from and created_at_to query
// parameters in RFC3339 format; both boundaries are inclusive.
func (h *SecurityHandler) ListEventsHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var createdAtFrom *time.Time
	if fromStr := c.Query("created_at_from"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			httputil.HandleValidationErrorGin(c,
				fmt.Errorf("invalid created_at_from format: must be RFC3339 (e.g., 2026-08-01T00:00:00Z)"),
				h.logger)
			return
		}
		utcTime := parsed.UTC()
		createdAtFrom = &utcTime
	}

	var createdAtTo *time.Time
	if toStr := c.Query("created_at_to"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			httputil.HandleValidationErrorGin(c,
				fmt.Errorf("invalid created_at_to format: must be RFC3339 (e.g., 2026-08-31T23:59:59Z)"),
				h.logger)
			return
		}
		utcTime := parsed.UTC()
		createdAtTo = &utcTime
	}

	if createdAtFrom != nil && createdAtTo != nil && createdAtFrom.After(*createdAtTo) {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("created_at_from must be before or equal to created_at_to"),
			h.logger)
		return
	}

	events, err := h.events.List(c.Request.Context(), offset, limit, createdAtFrom, createdAtTo)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEventsToListResponse(events))
}

// GetEventHandler retrieves a single security event by ID.
// GET /v1/security/events/:id - Requires security:read.
// Returns 200 OK with the event including its chain hashes and signature.
func (h *SecurityHandler) GetEventHandler(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid event ID format: must be a valid UUID"),
			h.logger)
		return
	}

	event, err := h.events.Get(c.Request.Context(), eventID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEventToResponse(event))
}

// VerifyChainHandler recomputes every hash link and signature between two
// events, inclusive.
// POST /v1/security/verify-chain - Requires security:read.
// Returns 200 OK with the number of verified links and the first broken event,
// if any.
func (h *SecurityHandler) VerifyChainHandler(c *gin.Context) {
	var req dto.VerifyChainRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	fromID, err := uuid.Parse(req.FromID)
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid from_id format: must be a valid UUID"),
			h.logger)
		return
	}
	toID, err := uuid.Parse(req.ToID)
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid to_id format: must be a valid UUID"),
			h.logger)
		return
	}

	result, err := h.events.VerifyChain(c.Request.Context(), fromID, toID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapVerifyResultToResponse(result))
}

// UnblockHandler clears a subject's penalty block and escalation cycles.
// POST /v1/security/unblock - Requires system:configure.
// Returns 204 No Content, or 404 when the subject has no block.
func (h *SecurityHandler) UnblockHandler(c *gin.Context) {
	var req dto.UnblockRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := h.rateLimiter.Unblock(c.Request.Context(), req.SubjectKey); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}
