package usecase

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
	cryptoService "github.com/aknoru/lacbot-security/internal/crypto/service"
	"github.com/aknoru/lacbot-security/internal/database"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
	keystoreDomain "github.com/aknoru/lacbot-security/internal/keystore/domain"
)

type keyStoreUseCase struct {
	repo        KeyRepository
	wrapper     cryptoService.Wrapper
	signer      cryptoService.Signer
	txManager   database.TxManager
	recorder    Recorder
	chain       *keystoreDomain.KeyChain
	gracePeriod time.Duration

	// mu serializes lifecycle mutations. Reads never take it; they go
	// through the published chain snapshot.
	mu sync.Mutex
}

// NewKeyStoreUseCase creates the key lifecycle use case.
func NewKeyStoreUseCase(
	repo KeyRepository,
	wrapper cryptoService.Wrapper,
	signer cryptoService.Signer,
	txManager database.TxManager,
	recorder Recorder,
	gracePeriod time.Duration,
) KeyStoreUseCase {
	return &keyStoreUseCase{
		repo:        repo,
		wrapper:     wrapper,
		signer:      signer,
		txManager:   txManager,
		recorder:    recorder,
		chain:       keystoreDomain.NewKeyChain(),
		gracePeriod: gracePeriod,
	}
}

func (u *keyStoreUseCase) Load(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.reload(ctx)
}

// reload rebuilds the published snapshot from the store, unwrapping every
// usable version. Caller holds mu.
func (u *keyStoreUseCase) reload(ctx context.Context) error {
	stored, err := u.repo.ListUsable(ctx)
	if err != nil {
		return apperrors.Wrap(err, "failed to load key material")
	}

	unwrapped := make([]*keystoreDomain.KeyMaterial, 0, len(stored))
	for _, key := range stored {
		plain, err := u.wrapper.Unwrap(ctx, key.Material)
		if err != nil {
			return apperrors.Wrap(err, "failed to unwrap key material")
		}
		open := *key
		open.Material = plain
		unwrapped = append(unwrapped, &open)
	}

	u.chain.Publish(keystoreDomain.NewSnapshot(unwrapped))
	return nil
}

func (u *keyStoreUseCase) Generate(
	ctx context.Context,
	kind keystoreDomain.KeyKind,
) (*keystoreDomain.KeyMaterial, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, err := u.chain.Active(kind); err == nil {
		return nil, keystoreDomain.ErrKeyAlreadyExists
	}

	var created *keystoreDomain.KeyMaterial
	err := u.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = u.createVersion(txCtx, kind)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := u.reload(ctx); err != nil {
		return nil, err
	}

	u.record(ctx, kind, created.Version, "generated", auditDomain.SeverityLow)
	return created, nil
}

func (u *keyStoreUseCase) Rotate(
	ctx context.Context,
	kind keystoreDomain.KeyKind,
) (*keystoreDomain.KeyMaterial, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	current, err := u.chain.Active(kind)
	if err != nil {
		return nil, err
	}

	var created *keystoreDomain.KeyMaterial
	err = u.txManager.WithTx(ctx, func(txCtx context.Context) error {
		// Demote and create inside one transaction: there is never a
		// committed state with zero or two active versions.
		if err := u.repo.UpdateState(
			txCtx, kind, current.Version, keystoreDomain.StateRetiring, time.Now().UTC(),
		); err != nil {
			return err
		}

		var err error
		created, err = u.createVersion(txCtx, kind)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := u.reload(ctx); err != nil {
		return nil, err
	}

	u.record(ctx, kind, current.Version, "retired", auditDomain.SeverityLow)
	u.record(ctx, kind, created.Version, "rotated", auditDomain.SeverityLow)
	return created, nil
}

func (u *keyStoreUseCase) Revoke(
	ctx context.Context,
	kind keystoreDomain.KeyKind,
	version uint,
) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.repo.UpdateState(ctx, kind, version, keystoreDomain.StateRevoked, time.Now().UTC()); err != nil {
		return err
	}

	if err := u.reload(ctx); err != nil {
		return err
	}

	u.record(ctx, kind, version, "revoked", auditDomain.SeverityMedium)
	return nil
}

func (u *keyStoreUseCase) RevokeExpired(ctx context.Context) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	cutoff := time.Now().UTC().Add(-u.gracePeriod)
	expired, err := u.repo.ListRetiredBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	for _, key := range expired {
		if err := u.repo.UpdateState(
			ctx, key.Kind, key.Version, keystoreDomain.StateRevoked, time.Now().UTC(),
		); err != nil {
			return 0, err
		}
	}

	if err := u.reload(ctx); err != nil {
		return 0, err
	}

	for _, key := range expired {
		u.record(ctx, key.Kind, key.Version, "revoked", auditDomain.SeverityMedium)
	}
	return len(expired), nil
}

func (u *keyStoreUseCase) ActiveKey(_ context.Context) ([]byte, uint, error) {
	key, err := u.chain.Active(keystoreDomain.KindSymmetric)
	if err != nil {
		return nil, 0, err
	}
	return key.Material, key.Version, nil
}

func (u *keyStoreUseCase) KeyByVersion(_ context.Context, version uint) ([]byte, error) {
	key, err := u.chain.ByVersion(keystoreDomain.KindSymmetric, version)
	if err != nil {
		return nil, err
	}
	return key.Material, nil
}

func (u *keyStoreUseCase) Chain() *keystoreDomain.KeyChain {
	return u.chain
}

// createVersion generates fresh material, wraps it and persists the row.
// Caller supplies transaction context.
func (u *keyStoreUseCase) createVersion(
	ctx context.Context,
	kind keystoreDomain.KeyKind,
) (*keystoreDomain.KeyMaterial, error) {
	maxVersion, err := u.repo.MaxVersion(ctx, kind)
	if err != nil {
		return nil, err
	}

	var material, publicKey []byte
	switch kind {
	case keystoreDomain.KindSymmetric:
		material = make([]byte, cryptoDomain.KeySize)
		if _, err := rand.Read(material); err != nil {
			return nil, apperrors.Wrap(keystoreDomain.ErrKeyGeneration, err.Error())
		}
	case keystoreDomain.KindSigning:
		publicKey, material, err = u.signer.GenerateKeyPair()
		if err != nil {
			return nil, apperrors.Wrap(keystoreDomain.ErrKeyGeneration, err.Error())
		}
	default:
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unknown key kind")
	}
	defer cryptoDomain.Zero(material)

	wrapped, err := u.wrapper.Wrap(ctx, material)
	if err != nil {
		return nil, apperrors.Wrap(keystoreDomain.ErrKeyGeneration, err.Error())
	}

	key := &keystoreDomain.KeyMaterial{
		ID:        uuid.Must(uuid.NewV7()),
		Kind:      kind,
		Version:   maxVersion + 1,
		State:     keystoreDomain.StateActive,
		Material:  wrapped,
		PublicKey: publicKey,
		CreatedAt: time.Now().UTC(),
	}

	if err := u.repo.Create(ctx, key); err != nil {
		return nil, err
	}

	return key, nil
}

func (u *keyStoreUseCase) record(
	ctx context.Context,
	kind keystoreDomain.KeyKind,
	version uint,
	action string,
	severity auditDomain.Severity,
) {
	if u.recorder == nil {
		return
	}
	u.recorder.Record(ctx, &auditDomain.EventDraft{
		Type:     auditDomain.KeyLifecycleEvent,
		Severity: severity,
		Details: map[string]any{
			"kind":    string(kind),
			"version": version,
			"action":  action,
		},
	})
}
