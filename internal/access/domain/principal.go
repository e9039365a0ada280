package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

var (
	// ErrPrincipalNotFound indicates the principal does not exist.
	ErrPrincipalNotFound = apperrors.Wrap(apperrors.ErrNotFound, "principal not found")

	// ErrPrincipalExists indicates a principal with the same id already exists.
	ErrPrincipalExists = apperrors.Wrap(apperrors.ErrConflict, "principal already exists")

	// ErrAuthorizationDenied is returned by callers that convert a Deny
	// decision into an error.
	ErrAuthorizationDenied = apperrors.Wrap(apperrors.ErrForbidden, "authorization denied")
)

// Principal is an authenticated identity. Principals are never deleted, only
// deactivated, so historical audit events keep a resolvable subject.
type Principal struct {
	ID        uuid.UUID
	Role      Role
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Resource is the target of an authorization check. OwnerID is consulted only
// for "own resource" actions; Classification controls audit verbosity.
type Resource struct {
	Type           string
	OwnerID        *uuid.UUID
	Classification Classification
}
