// Package domain defines the security event model and hash-chain primitives used
// by the append-only audit log.
package domain

// EventType identifies the kind of security-relevant occurrence an event records.
type EventType string

const (
	// KeyLifecycleEvent records key generation, rotation, and revocation.
	KeyLifecycleEvent EventType = "key_lifecycle"

	// SanitizationViolationEvent records rejected malicious input.
	SanitizationViolationEvent EventType = "sanitization_violation"

	// RateLimitViolationEvent records denied requests and penalty escalations.
	RateLimitViolationEvent EventType = "rate_limit_violation"

	// AuthorizationViolationEvent records denied authorization decisions.
	AuthorizationViolationEvent EventType = "authorization_violation"

	// RestrictedAccessEvent records any access (permitted or denied) to a
	// Restricted-classified resource.
	RestrictedAccessEvent EventType = "restricted_access"

	// AuthenticationFailureEvent records failed login attempts reported by the
	// identity layer.
	AuthenticationFailureEvent EventType = "authentication_failure"

	// ThreatEscalationEvent records a subject crossing into High or Critical risk.
	ThreatEscalationEvent EventType = "threat_escalation"

	// AuditFailureEvent is the critical self-report appended after the audit
	// store recovers from an outage that exceeded the retry budget.
	AuditFailureEvent EventType = "audit_failure"
)

// EventTypes lists every known event type.
var EventTypes = []EventType{
	KeyLifecycleEvent,
	SanitizationViolationEvent,
	RateLimitViolationEvent,
	AuthorizationViolationEvent,
	RestrictedAccessEvent,
	AuthenticationFailureEvent,
	ThreatEscalationEvent,
	AuditFailureEvent,
}

// IsValid reports whether the event type is one of the known types.
func (t EventType) IsValid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Severity classifies how serious a security event is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid reports whether the severity is one of the known levels.
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

// Rank returns a numeric ordering for severity comparisons (higher is worse).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}
