// Package repository implements key material persistence for PostgreSQL and MySQL.
//
// Stored material is always wrapped: the plaintext bytes exist only inside
// published key chain snapshots. Both implementations support transaction
// context via database.GetTx(), which key rotation relies on to demote the old
// active version and insert its replacement atomically.
package repository

import (
	"context"
	"database/sql"
	"time"

	keystoreDomain "github.com/aknoru/lacbot-security/internal/keystore/domain"

	"github.com/aknoru/lacbot-security/internal/database"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

// PostgreSQLKeyRepository implements key material persistence for PostgreSQL.
type PostgreSQLKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLKeyRepository creates a new PostgreSQL key material repository.
func NewPostgreSQLKeyRepository(db *sql.DB) *PostgreSQLKeyRepository {
	return &PostgreSQLKeyRepository{db: db}
}

// Create inserts a new key version. The (kind, version) pair is unique.
func (p *PostgreSQLKeyRepository) Create(ctx context.Context, key *keystoreDomain.KeyMaterial) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO key_material (id, kind, version, state, material, public_key, created_at, retired_at, revoked_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

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

// GetByVersion retrieves one key version regardless of state. Callers decide
// whether a revoked version may be surfaced; the published chain never does.
func (p *PostgreSQLKeyRepository) GetByVersion(
	ctx context.Context,
	kind keystoreDomain.KeyKind,
	version uint,
) (*keystoreDomain.KeyMaterial, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, kind, version, state, material, public_key, created_at, retired_at, revoked_at
			  FROM key_material
			  WHERE kind = $1 AND version = $2`

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

// ListUsable retrieves all active and retiring key versions across kinds,
// the set a fresh key chain snapshot is built from.
func (p *PostgreSQLKeyRepository) ListUsable(ctx context.Context) ([]*keystoreDomain.KeyMaterial, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, kind, version, state, material, public_key, created_at, retired_at, revoked_at
			  FROM key_material
			  WHERE state IN ($1, $2)
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
// none exists. Called inside the rotation transaction to allocate the next
// version without races.
func (p *PostgreSQLKeyRepository) MaxVersion(ctx context.Context, kind keystoreDomain.KeyKind) (uint, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COALESCE(MAX(version), 0) FROM key_material WHERE kind = $1`

	var version uint
	if err := querier.QueryRowContext(ctx, query, string(kind)).Scan(&version); err != nil {
		return 0, apperrors.Wrap(err, "failed to get max key version")
	}

	return version, nil
}

// UpdateState transitions a key version to a new lifecycle state, stamping the
// matching timestamp column.
func (p *PostgreSQLKeyRepository) UpdateState(
	ctx context.Context,
	kind keystoreDomain.KeyKind,
	version uint,
	state keystoreDomain.KeyState,
	at time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	var query string
	switch state {
	case keystoreDomain.StateRetiring:
		query = `UPDATE key_material SET state = $1, retired_at = $2 WHERE kind = $3 AND version = $4`
	case keystoreDomain.StateRevoked:
		// Revocation also drops the wrapped material; the version becomes
		// a tombstone that can never decrypt again.
		query = `UPDATE key_material SET state = $1, revoked_at = $2, material = ''::bytea WHERE kind = $3 AND version = $4`
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
// the cutoff, the candidates for the revocation sweep.
func (p *PostgreSQLKeyRepository) ListRetiredBefore(
	ctx context.Context,
	cutoff time.Time,
) ([]*keystoreDomain.KeyMaterial, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, kind, version, state, material, public_key, created_at, retired_at, revoked_at
			  FROM key_material
			  WHERE state = $1 AND retired_at < $2
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (*keystoreDomain.KeyMaterial, error) {
	var key keystoreDomain.KeyMaterial
	var kind, state string

	err := row.Scan(
		&key.ID,
		&kind,
		&key.Version,
		&state,
		&key.Material,
		&key.PublicKey,
		&key.CreatedAt,
		&key.RetiredAt,
		&key.RevokedAt,
	)
	if err != nil {
		return nil, err
	}

	key.Kind = keystoreDomain.KeyKind(kind)
	key.State = keystoreDomain.KeyState(state)
	return &key, nil
}

func scanKeys(rows *sql.Rows) ([]*keystoreDomain.KeyMaterial, error) {
	keys := make([]*keystoreDomain.KeyMaterial, 0)
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan key material")
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate key material")
	}

	return keys, nil
}
