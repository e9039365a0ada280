package usecase

import (
	"context"
	"time"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
	"github.com/aknoru/lacbot-security/internal/metrics"
	ratelimitUsecase "github.com/aknoru/lacbot-security/internal/ratelimit/usecase"
	sanitizerDomain "github.com/aknoru/lacbot-security/internal/sanitizer/domain"
)

const recentCriticalLimit = 10

type securityGatewayUseCase struct {
	sanitizer Sanitizer
	limiter   RateChecker
	access    Authorizer
	crypto    Protector
	recorder  *EventPipeline
	risk      RiskReader
	metrics   metrics.SecurityMetrics
}

// NewSecurityGatewayUseCase composes the protection chain.
func NewSecurityGatewayUseCase(
	sanitizer Sanitizer,
	limiter RateChecker,
	access Authorizer,
	crypto Protector,
	recorder *EventPipeline,
	risk RiskReader,
	securityMetrics metrics.SecurityMetrics,
) SecurityGatewayUseCase {
	if securityMetrics == nil {
		securityMetrics = metrics.NewNoOpSecurityMetrics()
	}
	return &securityGatewayUseCase{
		sanitizer: sanitizer,
		limiter:   limiter,
		access:    access,
		crypto:    crypto,
		recorder:  recorder,
		risk:      risk,
		metrics:   securityMetrics,
	}
}

func (u *securityGatewayUseCase) CheckRequest(
	ctx context.Context,
	request CheckRequest,
) (*CheckResult, error) {
	subject := ratelimitUsecase.Subject{
		IP:        request.IP,
		Operation: string(request.Action),
	}
	if request.Principal != nil {
		id := request.Principal.ID
		subject.PrincipalID = &id
	}

	start := time.Now()
	result := &CheckResult{Decision: accessDomain.Deny}
	defer func() {
		result.RiskLevel = u.risk.Classify(subject.Key())
		u.metrics.RecordDuration(ctx, "gateway", "check_request",
			time.Since(start), string(result.Decision))
	}()

	sanitized, err := u.sanitizer.Sanitize(request.Class, request.RawInput)
	if err != nil {
		u.metrics.RecordDecision(ctx, "sanitizer", "sanitize", "violation")
		result.Reason = u.recordViolation(ctx, request, subject, err)
		return result, err
	}
	result.Sanitized = sanitized
	u.metrics.RecordDecision(ctx, "sanitizer", "sanitize", "clean")

	decision, err := u.limiter.Check(ctx, subject)
	if err != nil {
		return nil, err
	}
	result.RateDecision = decision
	u.metrics.RecordDecision(ctx, "ratelimit", "check", string(decision))
	if !decision.Admitted() {
		result.Reason = "rate limit exceeded"
		return result, nil
	}

	authz := u.access.Authorize(ctx, request.Principal, request.IP, request.Action, request.Resource)
	u.metrics.RecordDecision(ctx, "access", "authorize", string(authz))
	if !authz.Permitted() {
		result.Reason = "authorization denied"
		return result, nil
	}

	result.Decision = accessDomain.Permit
	return result, nil
}

// recordViolation audits a sanitizer rejection and returns the reason string
// for the caller. The offending payload is never logged, only the code.
func (u *securityGatewayUseCase) recordViolation(
	ctx context.Context,
	request CheckRequest,
	subject ratelimitUsecase.Subject,
	err error,
) string {
	var violation *sanitizerDomain.ViolationError
	if !apperrors.As(err, &violation) {
		return "invalid input"
	}

	u.recorder.Record(ctx, &auditDomain.EventDraft{
		Type:        auditDomain.SanitizationViolationEvent,
		PrincipalID: subject.PrincipalID,
		IP:          request.IP,
		Severity:    violation.Severity,
		Details: map[string]any{
			"code":  string(violation.Code),
			"class": string(violation.Class),
		},
	})
	return string(violation.Code)
}

func (u *securityGatewayUseCase) Protect(
	ctx context.Context,
	plaintext []byte,
) (*cryptoDomain.EncryptedBlob, error) {
	return u.crypto.Encrypt(ctx, plaintext, nil)
}

func (u *securityGatewayUseCase) Reveal(
	ctx context.Context,
	blob *cryptoDomain.EncryptedBlob,
) ([]byte, error) {
	return u.crypto.Decrypt(ctx, blob, nil)
}

func (u *securityGatewayUseCase) RecordEvent(
	ctx context.Context,
	draft *auditDomain.EventDraft,
) error {
	return u.recorder.RecordErr(ctx, draft)
}

func (u *securityGatewayUseCase) SecurityStatus(ctx context.Context) (*SecurityStatus, error) {
	events, err := u.recorder.audit.RecentCritical(ctx, recentCriticalLimit)
	if err != nil {
		return nil, err
	}

	return &SecurityStatus{
		OverallScore:         u.risk.OverallScore(),
		ActiveBlocks:         u.limiter.ActiveBlocks(ctx),
		RecentCriticalEvents: events,
	}, nil
}
