// Package usecase implements role-based authorization over a total decision
// table, plus principal lifecycle management.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
)

// PrincipalRepository defines persistence operations for principals.
type PrincipalRepository interface {
	Create(ctx context.Context, principal *accessDomain.Principal) error
	Get(ctx context.Context, id uuid.UUID) (*accessDomain.Principal, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role accessDomain.Role, at time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error
	List(ctx context.Context, limit, offset uint) ([]*accessDomain.Principal, error)
}

// Recorder receives authorization events for the audit trail.
type Recorder interface {
	Record(ctx context.Context, draft *auditDomain.EventDraft)
}

// AccessControlUseCase defines authorization and principal operations.
type AccessControlUseCase interface {
	// Authorize resolves (role, active flag, action) plus the ownership
	// check against the decision table. Every Deny is audited; Permits are
	// audited only for Restricted resources. The check itself is pure
	// in-memory computation.
	Authorize(
		ctx context.Context,
		principal *accessDomain.Principal,
		ip string,
		action accessDomain.Action,
		resource accessDomain.Resource,
	) accessDomain.Decision

	// SetOverride forces Deny for a subject regardless of role until the
	// given instant. A zero instant makes the override indefinite.
	SetOverride(subjectKey string, until time.Time)

	// ClearOverride lifts a subject's deny override.
	ClearOverride(subjectKey string)

	// Register creates a new principal with the given role.
	Register(ctx context.Context, role accessDomain.Role) (*accessDomain.Principal, error)

	// Get retrieves a principal by id.
	Get(ctx context.Context, id uuid.UUID) (*accessDomain.Principal, error)

	// List retrieves principals newest-first with pagination.
	List(ctx context.Context, limit, offset uint) ([]*accessDomain.Principal, error)

	// ChangeRole mutates a principal's role. The actor must hold
	// user:manage; anything else is denied and audited.
	ChangeRole(ctx context.Context, actor *accessDomain.Principal, id uuid.UUID, role accessDomain.Role) error

	// Deactivate disables a principal. Principals are never deleted, so the
	// audit trail keeps resolvable subjects. The actor must hold user:manage.
	Deactivate(ctx context.Context, actor *accessDomain.Principal, id uuid.UUID) error
}
