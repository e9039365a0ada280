// Package domain defines key material, lifecycle states and the in-memory key chain.
package domain

// KeyKind distinguishes the two families of managed keys.
type KeyKind string

const (
	// KindSymmetric keys drive AEAD encryption and audit event signing.
	KindSymmetric KeyKind = "symmetric"
	// KindSigning keys are Ed25519 pairs for detached signatures.
	KindSigning KeyKind = "signing"
)

// KeyState is the lifecycle state of a stored key version.
//
// Active keys encrypt and decrypt. Retiring keys only decrypt; they exist so
// data sealed before a rotation stays readable through the grace period.
// Revoked keys do nothing: a lookup behaves as if the key never existed.
type KeyState string

const (
	StateActive   KeyState = "active"
	StateRetiring KeyState = "retiring"
	StateRevoked  KeyState = "revoked"
)

// IsValid reports whether the kind is known.
func (k KeyKind) IsValid() bool {
	return k == KindSymmetric || k == KindSigning
}
