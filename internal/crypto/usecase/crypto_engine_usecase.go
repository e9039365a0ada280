package usecase

import (
	"context"
	"crypto/sha256"

	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
	cryptoService "github.com/aknoru/lacbot-security/internal/crypto/service"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
	keystoreDomain "github.com/aknoru/lacbot-security/internal/keystore/domain"
)

type cryptoEngineUseCase struct {
	chain     *keystoreDomain.KeyChain
	manager   cryptoService.AEADManager
	signer    cryptoService.Signer
	algorithm cryptoDomain.Algorithm
}

// NewCryptoEngineUseCase creates the encryption engine. The algorithm selects
// which AEAD new blobs are sealed with; existing blobs decrypt with whatever
// algorithm they were sealed under.
func NewCryptoEngineUseCase(
	chain *keystoreDomain.KeyChain,
	manager cryptoService.AEADManager,
	signer cryptoService.Signer,
	algorithm cryptoDomain.Algorithm,
) (CryptoEngineUseCase, error) {
	if !algorithm.IsValid() {
		return nil, cryptoDomain.ErrInvalidAlgorithm
	}
	return &cryptoEngineUseCase{
		chain:     chain,
		manager:   manager,
		signer:    signer,
		algorithm: algorithm,
	}, nil
}

func (u *cryptoEngineUseCase) Encrypt(
	_ context.Context,
	plaintext, aad []byte,
) (*cryptoDomain.EncryptedBlob, error) {
	key, err := u.chain.Active(keystoreDomain.KindSymmetric)
	if err != nil {
		return nil, err
	}

	aead, err := u.manager.CreateCipher(key.Material, u.algorithm)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create cipher")
	}

	ciphertext, nonce, err := aead.Encrypt(plaintext, aad)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt")
	}

	return &cryptoDomain.EncryptedBlob{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		KeyVersion: key.Version,
		Algorithm:  u.algorithm,
	}, nil
}

func (u *cryptoEngineUseCase) Decrypt(
	_ context.Context,
	blob *cryptoDomain.EncryptedBlob,
	aad []byte,
) ([]byte, error) {
	key, err := u.chain.ByVersion(keystoreDomain.KindSymmetric, blob.KeyVersion)
	if err != nil {
		return nil, err
	}

	aead, err := u.manager.CreateCipher(key.Material, blob.Algorithm)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create cipher")
	}

	return aead.Decrypt(blob.Ciphertext, blob.Nonce, aad)
}

func (u *cryptoEngineUseCase) Sign(
	_ context.Context,
	payload []byte,
) ([]byte, uint, error) {
	key, err := u.chain.Active(keystoreDomain.KindSigning)
	if err != nil {
		return nil, 0, err
	}

	signature, err := u.signer.Sign(key.Material, payload)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, "failed to sign")
	}

	return signature, key.Version, nil
}

func (u *cryptoEngineUseCase) Verify(
	_ context.Context,
	payload, signature []byte,
	keyVersion uint,
) error {
	key, err := u.chain.ByVersion(keystoreDomain.KindSigning, keyVersion)
	if err != nil {
		return err
	}

	return u.signer.Verify(key.PublicKey, payload, signature)
}

func (u *cryptoEngineUseCase) Hash(payload []byte) []byte {
	digest := sha256.Sum256(payload)
	return digest[:]
}
