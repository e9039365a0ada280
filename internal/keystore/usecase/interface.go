// Package usecase implements key lifecycle management: generation, rotation,
// retirement and revocation.
package usecase

import (
	"context"
	"time"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	keystoreDomain "github.com/aknoru/lacbot-security/internal/keystore/domain"
)

// KeyRepository defines persistence operations for wrapped key material.
type KeyRepository interface {
	Create(ctx context.Context, key *keystoreDomain.KeyMaterial) error
	GetByVersion(ctx context.Context, kind keystoreDomain.KeyKind, version uint) (*keystoreDomain.KeyMaterial, error)
	ListUsable(ctx context.Context) ([]*keystoreDomain.KeyMaterial, error)
	MaxVersion(ctx context.Context, kind keystoreDomain.KeyKind) (uint, error)
	UpdateState(ctx context.Context, kind keystoreDomain.KeyKind, version uint, state keystoreDomain.KeyState, at time.Time) error
	ListRetiredBefore(ctx context.Context, cutoff time.Time) ([]*keystoreDomain.KeyMaterial, error)
}

// Recorder receives key lifecycle events for the audit trail. Implementations
// must not block lifecycle operations on audit availability.
type Recorder interface {
	Record(ctx context.Context, draft *auditDomain.EventDraft)
}

// KeyStoreUseCase defines key lifecycle operations. Lifecycle mutations are
// serialized; reads go through the lock-free key chain.
type KeyStoreUseCase interface {
	// Load hydrates the key chain from the store. Call once at startup.
	Load(ctx context.Context) error

	// Generate creates the first key version for a kind. Returns
	// ErrKeyAlreadyExists when an active version is present; rotate instead.
	Generate(ctx context.Context, kind keystoreDomain.KeyKind) (*keystoreDomain.KeyMaterial, error)

	// Rotate atomically creates a new active version and demotes the current
	// one to retiring. Data sealed under the old version stays readable until
	// the grace period expires.
	Rotate(ctx context.Context, kind keystoreDomain.KeyKind) (*keystoreDomain.KeyMaterial, error)

	// Revoke immediately removes a version from service. Anything still
	// sealed under it becomes unreadable.
	Revoke(ctx context.Context, kind keystoreDomain.KeyKind, version uint) error

	// RevokeExpired revokes every retiring version whose grace period has
	// elapsed and returns how many were revoked.
	RevokeExpired(ctx context.Context) (int, error)

	// ActiveKey returns the active symmetric key material and its version.
	ActiveKey(ctx context.Context) ([]byte, uint, error)

	// KeyByVersion returns usable symmetric key material by version.
	// Revoked or absent versions yield ErrKeyNotFound.
	KeyByVersion(ctx context.Context, version uint) ([]byte, error)

	// Chain exposes the published key chain for hot-path readers.
	Chain() *keystoreDomain.KeyChain
}
