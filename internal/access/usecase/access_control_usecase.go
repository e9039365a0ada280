package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

type denyOverride struct {
	until      time.Time
	indefinite bool
}

func (o denyOverride) activeAt(now time.Time) bool {
	return o.indefinite || now.Before(o.until)
}

type accessControlUseCase struct {
	policy    accessDomain.Policy
	repo      PrincipalRepository
	recorder  Recorder
	overrides sync.Map // subjectKey -> denyOverride
}

// NewAccessControlUseCase creates the access control use case. The policy
// table is validated for totality; a gap is a construction error.
func NewAccessControlUseCase(
	policy accessDomain.Policy,
	repo PrincipalRepository,
	recorder Recorder,
) (AccessControlUseCase, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &accessControlUseCase{
		policy:   policy,
		repo:     repo,
		recorder: recorder,
	}, nil
}

func (u *accessControlUseCase) Authorize(
	ctx context.Context,
	principal *accessDomain.Principal,
	ip string,
	action accessDomain.Action,
	resource accessDomain.Resource,
) accessDomain.Decision {
	decision, reason := u.decide(principal, action, resource)

	if decision == accessDomain.Deny {
		u.record(ctx, principal, ip, auditDomain.AuthorizationViolationEvent,
			auditDomain.SeverityMedium, map[string]any{
				"action":   string(action),
				"resource": resource.Type,
				"reason":   reason,
			})
	}

	// Restricted resources are audited on every access, permitted or not.
	if resource.Classification == accessDomain.ClassRestricted {
		severity := auditDomain.SeverityLow
		if decision == accessDomain.Deny {
			severity = auditDomain.SeverityMedium
		}
		u.record(ctx, principal, ip, auditDomain.RestrictedAccessEvent, severity, map[string]any{
			"action":   string(action),
			"resource": resource.Type,
			"decision": string(decision),
		})
	}

	return decision
}

// decide is the pure core: no I/O, no side effects.
func (u *accessControlUseCase) decide(
	principal *accessDomain.Principal,
	action accessDomain.Action,
	resource accessDomain.Resource,
) (accessDomain.Decision, string) {
	if principal == nil {
		return accessDomain.Deny, "no principal"
	}
	if !principal.Active {
		return accessDomain.Deny, "principal inactive"
	}
	if !action.IsValid() {
		return accessDomain.Deny, "unknown action"
	}
	if u.overridden(principal.ID.String(), time.Now()) {
		return accessDomain.Deny, "threat override"
	}
	if action == accessDomain.ActionChatReadOwn {
		if resource.OwnerID == nil || *resource.OwnerID != principal.ID {
			return accessDomain.Deny, "not resource owner"
		}
	}
	if u.policy.Lookup(principal.Role, action) != accessDomain.Permit {
		return accessDomain.Deny, "role not permitted"
	}
	return accessDomain.Permit, ""
}

func (u *accessControlUseCase) overridden(subjectKey string, now time.Time) bool {
	value, ok := u.overrides.Load(subjectKey)
	if !ok {
		return false
	}
	override := value.(denyOverride)
	if !override.activeAt(now) {
		u.overrides.Delete(subjectKey)
		return false
	}
	return true
}

func (u *accessControlUseCase) SetOverride(subjectKey string, until time.Time) {
	u.overrides.Store(subjectKey, denyOverride{
		until:      until,
		indefinite: until.IsZero(),
	})
}

func (u *accessControlUseCase) ClearOverride(subjectKey string) {
	u.overrides.Delete(subjectKey)
}

func (u *accessControlUseCase) Register(
	ctx context.Context,
	role accessDomain.Role,
) (*accessDomain.Principal, error) {
	if !role.IsValid() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unknown role")
	}

	now := time.Now().UTC()
	principal := &accessDomain.Principal{
		ID:        uuid.Must(uuid.NewV7()),
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := u.repo.Create(ctx, principal); err != nil {
		return nil, err
	}
	return principal, nil
}

func (u *accessControlUseCase) Get(ctx context.Context, id uuid.UUID) (*accessDomain.Principal, error) {
	return u.repo.Get(ctx, id)
}

func (u *accessControlUseCase) List(
	ctx context.Context,
	limit, offset uint,
) ([]*accessDomain.Principal, error) {
	return u.repo.List(ctx, limit, offset)
}

func (u *accessControlUseCase) ChangeRole(
	ctx context.Context,
	actor *accessDomain.Principal,
	id uuid.UUID,
	role accessDomain.Role,
) error {
	if !role.IsValid() {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "unknown role")
	}
	if err := u.requireUserManage(ctx, actor, "change_role"); err != nil {
		return err
	}
	return u.repo.UpdateRole(ctx, id, role, time.Now().UTC())
}

func (u *accessControlUseCase) Deactivate(
	ctx context.Context,
	actor *accessDomain.Principal,
	id uuid.UUID,
) error {
	if err := u.requireUserManage(ctx, actor, "deactivate"); err != nil {
		return err
	}
	return u.repo.SetActive(ctx, id, false, time.Now().UTC())
}

func (u *accessControlUseCase) requireUserManage(
	ctx context.Context,
	actor *accessDomain.Principal,
	operation string,
) error {
	resource := accessDomain.Resource{
		Type:           "principal",
		Classification: accessDomain.ClassRestricted,
	}
	decision := u.Authorize(ctx, actor, "", accessDomain.ActionUserManage, resource)
	if !decision.Permitted() {
		return apperrors.Wrap(accessDomain.ErrAuthorizationDenied, operation+" requires user:manage")
	}
	return nil
}

func (u *accessControlUseCase) record(
	ctx context.Context,
	principal *accessDomain.Principal,
	ip string,
	eventType auditDomain.EventType,
	severity auditDomain.Severity,
	details map[string]any,
) {
	if u.recorder == nil {
		return
	}
	draft := &auditDomain.EventDraft{
		Type:     eventType,
		IP:       ip,
		Severity: severity,
		Details:  details,
	}
	if principal != nil {
		id := principal.ID
		draft.PrincipalID = &id
	}
	u.recorder.Record(ctx, draft)
}
