package repository

import (
	"context"
	"database/sql"
	"time"

	keystoreDomain "github.com/aknoru/lacbot-security/internal/keystore/domain"

	"github.com/aknoru/lacbot-security/internal/database"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

// MySQLKeyRepository implements key material persistence for MySQL.
type MySQLKeyRepository struct {
	db *sql.DB
}

// NewMySQLKeyRepository creates a new MySQL key material repository.
func NewMySQLKeyRepository(db *sql.DB) *MySQLKeyRepository {
	return &MySQLKeyRepository{db: db}
}

// Create inserts a new key version. The (kind, version) pair is unique.
func (m *MySQLKeyRepository) Create(ctx context.Context, key *keystoreDomain.KeyMaterial) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO key_material (id, kind, version, state, material, public_key, created_at, retired_at, revoked_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		string(key.Kind),
		key.Version,
		string(key.State),
		key.Material,
		key.PublicKey,
		key.CreatedAt,
		key.RetiredAt,
		key.RevokedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create key material")
	}

	return nil
}

// GetByVersion retrieves one key version regardless of state.
func (m *MySQLKeyRepository) GetByVersion(
	ctx context.Context,
	kind keystoreDomain.KeyKind,
	version uint,
) (*keystoreDomain.KeyMaterial, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, kind, version, state, material, public_key, created_at, retired_at, revoked_at
			  FROM key_material
			  WHERE kind = ? AND version = ?`

	row := querier.QueryRowContext(ctx, query, string(kind), version)
	key, err := scanKey(row)
	if err == sql.ErrNoRows {
		return nil, keystoreDomain.ErrKeyNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get key material")
	}

	return key, nil
}

// ListUsable retrieves all active and retiring key versions across kinds.
func (m *MySQLKeyRepository) ListUsable(ctx context.Context) ([]*keystoreDomain.KeyMaterial, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, kind, version, state, material, public_key, created_at, retired_at, revoked_at
			  FROM key_material
			  WHERE state IN (?, ?)
			  ORDER BY kind, version`

	rows, err := querier.QueryContext(
		ctx, query,
		string(keystoreDomain.StateActive),
		string(keystoreDomain.StateRetiring),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list usable key material")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanKeys(rows)
}

// MaxVersion returns the highest version ever assigned for the kind, zero when
// none exists.
func (m *MySQLKeyRepository) MaxVersion(ctx context.Context, kind keystoreDomain.KeyKind) (uint, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COALESCE(MAX(version), 0) FROM key_material WHERE kind = ?`

	var version uint
	if err := querier.QueryRowContext(ctx, query, string(kind)).Scan(&version); err != nil {
		return 0, apperrors.Wrap(err, "failed to get max key version")
	}

	return version, nil
}

// UpdateState transitions a key version to a new lifecycle state.
func (m *MySQLKeyRepository) UpdateState(
	ctx context.Context,
	kind keystoreDomain.KeyKind,
	version uint,
	state keystoreDomain.KeyState,
	at time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	var query string
	switch state {
	case keystoreDomain.StateRetiring:
		query = `UPDATE key_material SET state = ?, retired_at = ? WHERE kind = ? AND version = ?`
	case keystoreDomain.StateRevoked:
		query = `UPDATE key_material SET state = ?, revoked_at = ?, material = '' WHERE kind = ? AND version = ?`
	default:
		return apperrors.Wrap(apperrors.ErrInvalidInput, "keys only transition to retiring or revoked")
	}

	result, err := querier.ExecContext(ctx, query, string(state), at, string(kind), version)
	if err != nil {
		return apperrors.Wrap(err, "failed to update key state")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check key state update")
	}
	if affected == 0 {
		return keystoreDomain.ErrKeyNotFound
	}

	return nil
}

// ListRetiredBefore retrieves retiring key versions whose retirement predates
// the cutoff.
func (m *MySQLKeyRepository) ListRetiredBefore(
	ctx context.Context,
	cutoff time.Time,
) ([]*keystoreDomain.KeyMaterial, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, kind, version, state, material, public_key, created_at, retired_at, revoked_at
			  FROM key_material
			  WHERE state = ? AND retired_at < ?
			  ORDER BY kind, version`

	rows, err := querier.QueryContext(ctx, query, string(keystoreDomain.StateRetiring), cutoff)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list retired key material")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanKeys(rows)
}
