package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	"github.com/aknoru/lacbot-security/internal/metrics"
	threatDomain "github.com/aknoru/lacbot-security/internal/threat/domain"
)

// EventPipeline fans one security event into the audit trail and the threat
// monitor. It satisfies the Recorder interface the other components declare.
//
// An audit store failure is logged and swallowed on the Record path: audit
// degradation must never stop a protective control from completing. The
// append layer buffers the draft for retry and self-reports once the store
// recovers.
type EventPipeline struct {
	audit   EventAppender
	logger  *slog.Logger
	monitor EventConsumer
	metrics metrics.SecurityMetrics
}

// NewEventPipeline creates the pipeline. The threat monitor is attached with
// Bind once constructed; the monitor's escalator records through this same
// pipeline, so the two cannot be built in one pass.
func NewEventPipeline(audit EventAppender, logger *slog.Logger) *EventPipeline {
	return &EventPipeline{audit: audit, logger: logger, metrics: metrics.NewNoOpSecurityMetrics()}
}

// WithMetrics attaches a violation counter. Call during composition.
func (p *EventPipeline) WithMetrics(securityMetrics metrics.SecurityMetrics) *EventPipeline {
	p.metrics = securityMetrics
	return p
}

// Bind attaches the threat monitor. Call during composition, before traffic.
func (p *EventPipeline) Bind(monitor EventConsumer) {
	p.monitor = monitor
}

// Record appends the draft and feeds the finalized event into threat scoring.
func (p *EventPipeline) Record(ctx context.Context, draft *auditDomain.EventDraft) {
	if err := p.RecordErr(ctx, draft); err != nil {
		p.logger.Error("failed to append security event",
			"type", string(draft.Type),
			"error", err,
		)
	}
}

// RecordErr is Record surfacing the append error to callers that care.
func (p *EventPipeline) RecordErr(ctx context.Context, draft *auditDomain.EventDraft) error {
	if isViolation(draft.Type) {
		p.metrics.RecordViolation(ctx, string(draft.Type), string(draft.Severity))
	}

	event, err := p.audit.Append(ctx, draft)
	if err != nil {
		return err
	}
	if p.monitor != nil {
		p.monitor.OnEvent(ctx, event)
	}
	return nil
}

// isViolation reports whether the event type counts toward the violation
// metric. Lifecycle and permitted restricted access records do not.
func isViolation(eventType auditDomain.EventType) bool {
	switch eventType {
	case auditDomain.SanitizationViolationEvent,
		auditDomain.RateLimitViolationEvent,
		auditDomain.AuthorizationViolationEvent,
		auditDomain.AuthenticationFailureEvent,
		auditDomain.ThreatEscalationEvent:
		return true
	}
	return false
}

// ThreatEscalator executes the directives the threat monitor emits: it blocks
// the subject, installs a deny override regardless of role, and records the
// escalation. Block and override durations scale with the risk level.
type ThreatEscalator struct {
	limiter  Blocker
	access   Overrider
	recorder *EventPipeline
	logger   *slog.Logger

	HighDuration     time.Duration
	CriticalDuration time.Duration
}

// NewThreatEscalator wires escalation directives to the rate limiter and
// access control.
func NewThreatEscalator(
	limiter Blocker,
	access Overrider,
	recorder *EventPipeline,
	logger *slog.Logger,
) *ThreatEscalator {
	return &ThreatEscalator{
		limiter:          limiter,
		access:           access,
		recorder:         recorder,
		logger:           logger,
		HighDuration:     15 * time.Minute,
		CriticalDuration: time.Hour,
	}
}

// Escalate applies the block and override for a subject that crossed into
// High or Critical risk.
func (e *ThreatEscalator) Escalate(
	ctx context.Context,
	subjectKey string,
	level threatDomain.RiskLevel,
	score float64,
	reason string,
) {
	duration := e.HighDuration
	severity := auditDomain.SeverityHigh
	if level == threatDomain.RiskCritical {
		duration = e.CriticalDuration
		severity = auditDomain.SeverityCritical
	}

	if err := e.limiter.ForceBlock(ctx, subjectKey, duration, reason); err != nil {
		e.logger.Error("failed to apply threat block",
			"subject", subjectKey,
			"error", err,
		)
	}
	e.access.SetOverride(subjectKey, time.Now().Add(duration))

	draft := &auditDomain.EventDraft{
		Type:     auditDomain.ThreatEscalationEvent,
		Severity: severity,
		Details: map[string]any{
			"level":    string(level),
			"score":    score,
			"reason":   reason,
			"duration": duration.String(),
		},
	}
	// Subject keys are principal IDs when authenticated, addresses otherwise.
	if id, err := uuid.Parse(subjectKey); err == nil {
		draft.PrincipalID = &id
	} else {
		draft.IP = subjectKey
	}
	e.recorder.Record(ctx, draft)
}
