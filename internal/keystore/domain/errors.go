package domain

import (
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

var (
	// ErrKeyGeneration indicates key creation failed; no partial key is stored.
	ErrKeyGeneration = apperrors.New("key generation failed")

	// ErrKeyNotFound indicates the requested key version does not exist or is
	// revoked. Revoked keys are indistinguishable from absent ones.
	ErrKeyNotFound = apperrors.Wrap(apperrors.ErrNotFound, "key not found")

	// ErrNoActiveKey indicates no active key exists for the requested kind.
	ErrNoActiveKey = apperrors.Wrap(apperrors.ErrNotFound, "no active key")

	// ErrKeyAlreadyExists indicates a Generate call for a kind that already
	// has an active key; use Rotate instead.
	ErrKeyAlreadyExists = apperrors.Wrap(apperrors.ErrConflict, "active key already exists")
)
