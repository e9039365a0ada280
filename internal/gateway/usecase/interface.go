// Package usecase implements the composed security gateway: the single entry
// point the HTTP layer and persistence layer call into.
package usecase

import (
	"context"
	"time"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
	ratelimitDomain "github.com/aknoru/lacbot-security/internal/ratelimit/domain"
	ratelimitUsecase "github.com/aknoru/lacbot-security/internal/ratelimit/usecase"
	sanitizerDomain "github.com/aknoru/lacbot-security/internal/sanitizer/domain"
	threatDomain "github.com/aknoru/lacbot-security/internal/threat/domain"
)

// Sanitizer cleans one untrusted input field.
type Sanitizer interface {
	Sanitize(class sanitizerDomain.ContentClass, input string) (string, error)
}

// RateChecker runs the throttling tiers for one request.
type RateChecker interface {
	Check(ctx context.Context, subject ratelimitUsecase.Subject) (ratelimitDomain.Decision, error)
	ActiveBlocks(ctx context.Context) []*ratelimitDomain.Block
}

// Authorizer resolves one authorization decision.
type Authorizer interface {
	Authorize(
		ctx context.Context,
		principal *accessDomain.Principal,
		ip string,
		action accessDomain.Action,
		resource accessDomain.Resource,
	) accessDomain.Decision
}

// Protector seals and opens sensitive payloads.
type Protector interface {
	Encrypt(ctx context.Context, plaintext, aad []byte) (*cryptoDomain.EncryptedBlob, error)
	Decrypt(ctx context.Context, blob *cryptoDomain.EncryptedBlob, aad []byte) ([]byte, error)
}

// EventAppender is the audit trail surface the gateway writes to and reads
// summaries from.
type EventAppender interface {
	Append(ctx context.Context, draft *auditDomain.EventDraft) (*auditDomain.SecurityEvent, error)
	RecentCritical(ctx context.Context, limit int) ([]*auditDomain.SecurityEvent, error)
}

// EventConsumer folds appended events into threat scores.
type EventConsumer interface {
	OnEvent(ctx context.Context, event *auditDomain.SecurityEvent)
}

// RiskReader exposes current threat classification.
type RiskReader interface {
	Classify(subjectKey string) threatDomain.RiskLevel
	OverallScore() float64
}

// Blocker is the rate limiter surface a threat escalation drives.
type Blocker interface {
	ForceBlock(ctx context.Context, subjectKey string, duration time.Duration, reason string) error
}

// Overrider is the access control surface a threat escalation drives.
type Overrider interface {
	SetOverride(subjectKey string, until time.Time)
}

// CheckRequest is one inbound request presented to the gateway.
type CheckRequest struct {
	RawInput  string
	Class     sanitizerDomain.ContentClass
	Principal *accessDomain.Principal
	IP        string
	Action    accessDomain.Action
	Resource  accessDomain.Resource
}

// CheckResult is the gateway's verdict. Sanitized is empty unless the request
// passed sanitization; Reason is set on Deny.
type CheckResult struct {
	Sanitized    string
	Decision     accessDomain.Decision
	RateDecision ratelimitDomain.Decision
	RiskLevel    threatDomain.RiskLevel
	Reason       string
}

// SecurityStatus is the read-only posture summary for dashboards.
type SecurityStatus struct {
	OverallScore         float64
	ActiveBlocks         []*ratelimitDomain.Block
	RecentCriticalEvents []*auditDomain.SecurityEvent
}

// SecurityGatewayUseCase is the composed entry point chaining sanitization,
// rate limiting and authorization, plus the data protection and reporting
// surfaces.
type SecurityGatewayUseCase interface {
	// CheckRequest runs sanitizer, rate limiter and access control in order,
	// returning early on the first rejection. A sanitization rejection also
	// returns the violation error so callers can inspect the code; rate and
	// authorization denials are routine outcomes conveyed by the result
	// alone. The returned error otherwise reports infrastructure failures.
	CheckRequest(ctx context.Context, request CheckRequest) (*CheckResult, error)

	// Protect seals one sensitive field under the active key.
	Protect(ctx context.Context, plaintext []byte) (*cryptoDomain.EncryptedBlob, error)

	// Reveal opens a previously protected field. Fails closed.
	Reveal(ctx context.Context, blob *cryptoDomain.EncryptedBlob) ([]byte, error)

	// RecordEvent lets business logic report a domain security occurrence
	// (for example a failed login) into the audit trail and threat scoring.
	RecordEvent(ctx context.Context, draft *auditDomain.EventDraft) error

	// SecurityStatus returns the posture summary for administrative use.
	SecurityStatus(ctx context.Context) (*SecurityStatus, error)
}
