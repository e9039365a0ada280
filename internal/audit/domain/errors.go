package domain

import (
	"github.com/aknoru/lacbot-security/internal/errors"
)

// Audit log errors.
var (
	// ErrEventNotFound indicates a security event with the specified ID was not found.
	ErrEventNotFound = errors.Wrap(errors.ErrNotFound, "security event not found")

	// ErrAuditUnavailable indicates the audit store could not be reached or the
	// append deadline expired. Protective controls must still complete when this
	// error is returned; only observability degrades.
	ErrAuditUnavailable = errors.Wrap(errors.ErrUnavailable, "audit store unavailable")

	// ErrChainBroken indicates hash-chain verification failed for a stored event,
	// meaning the log was mutated after the fact.
	ErrChainBroken = errors.New("audit chain broken")
)
