package service

import (
	"context"
	"encoding/json"

	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

// wrappedBlob is the stored form of master-key-wrapped key material. The
// master key ID travels with the ciphertext so material wrapped before a
// master key rotation stays readable.
type wrappedBlob struct {
	MasterKeyID string                 `json:"master_key_id"`
	Algorithm   cryptoDomain.Algorithm `json:"algorithm"`
	Nonce       []byte                 `json:"nonce"`
	Ciphertext  []byte                 `json:"ciphertext"`
}

// MasterKeyWrapper protects key material with a locally held master key chain.
type MasterKeyWrapper struct {
	chain   *cryptoDomain.MasterKeyChain
	manager AEADManager
}

// NewMasterKeyWrapper creates a Wrapper backed by the master key chain.
func NewMasterKeyWrapper(chain *cryptoDomain.MasterKeyChain, manager AEADManager) *MasterKeyWrapper {
	return &MasterKeyWrapper{chain: chain, manager: manager}
}

// Wrap seals the plaintext with the active master key using AES-256-GCM. The
// master key ID is bound as AAD so a blob cannot be re-attributed to another key.
func (w *MasterKeyWrapper) Wrap(_ context.Context, plaintext []byte) ([]byte, error) {
	activeID := w.chain.ActiveMasterKeyID()
	masterKey, ok := w.chain.Get(activeID)
	if !ok {
		return nil, cryptoDomain.ErrMasterKeyNotFound
	}

	aead, err := w.manager.CreateCipher(masterKey.Key, cryptoDomain.AESGCM)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create wrapping cipher")
	}

	ciphertext, nonce, err := aead.Encrypt(plaintext, []byte(activeID))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to wrap key material")
	}

	return json.Marshal(wrappedBlob{
		MasterKeyID: activeID,
		Algorithm:   cryptoDomain.AESGCM,
		Nonce:       nonce,
		Ciphertext:  ciphertext,
	})
}

// Unwrap opens a wrapped blob with whichever master key sealed it.
func (w *MasterKeyWrapper) Unwrap(_ context.Context, wrapped []byte) ([]byte, error) {
	var blob wrappedBlob
	if err := json.Unmarshal(wrapped, &blob); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode wrapped key material")
	}

	masterKey, ok := w.chain.Get(blob.MasterKeyID)
	if !ok {
		return nil, cryptoDomain.ErrMasterKeyNotFound
	}

	aead, err := w.manager.CreateCipher(masterKey.Key, blob.Algorithm)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create unwrapping cipher")
	}

	return aead.Decrypt(blob.Ciphertext, blob.Nonce, []byte(blob.MasterKeyID))
}

// KMSWrapper protects key material with an external keeper.
type KMSWrapper struct {
	keeper cryptoDomain.KMSKeeper
}

// NewKMSWrapper creates a Wrapper backed by a KMS keeper.
func NewKMSWrapper(keeper cryptoDomain.KMSKeeper) *KMSWrapper {
	return &KMSWrapper{keeper: keeper}
}

// Wrap delegates sealing to the keeper.
func (w *KMSWrapper) Wrap(ctx context.Context, plaintext []byte) ([]byte, error) {
	wrapped, err := w.keeper.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to wrap key material with KMS")
	}
	return wrapped, nil
}

// Unwrap delegates opening to the keeper.
func (w *KMSWrapper) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	plaintext, err := w.keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to unwrap key material with KMS")
	}
	return plaintext, nil
}
