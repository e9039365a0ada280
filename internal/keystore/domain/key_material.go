package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
)

// KeyMaterial is one version of a managed key. At rest the Material field
// holds the wrapped (master-key or KMS encrypted) bytes; inside a published
// KeyChain snapshot it holds the plain bytes, which never leave the process.
type KeyMaterial struct {
	ID        uuid.UUID
	Kind      KeyKind
	Version   uint
	State     KeyState
	Material  []byte
	PublicKey []byte // Ed25519 public half, nil for symmetric keys
	CreatedAt time.Time
	RetiredAt *time.Time
	RevokedAt *time.Time
}

// CanEncrypt reports whether this version may seal new data or sign.
func (k *KeyMaterial) CanEncrypt() bool {
	return k.State == StateActive
}

// CanDecrypt reports whether this version may open existing data.
func (k *KeyMaterial) CanDecrypt() bool {
	return k.State == StateActive || k.State == StateRetiring
}

// Zero wipes the secret material. The public key is not secret.
func (k *KeyMaterial) Zero() {
	cryptoDomain.Zero(k.Material)
}
