package domain

import (
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

var (
	// ErrIntegrity indicates ciphertext or signature verification failed.
	// Decryption is fail-closed: no partial plaintext is ever returned.
	ErrIntegrity = apperrors.Wrap(apperrors.ErrInvalidInput, "integrity check failed")

	// ErrInvalidAlgorithm indicates an unsupported cipher was requested.
	ErrInvalidAlgorithm = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid algorithm")

	// ErrInvalidKeySize indicates key material of the wrong length.
	ErrInvalidKeySize = apperrors.Wrap(apperrors.ErrInvalidInput, "key must be 32 bytes")
)
