// Package repository implements penalty block persistence for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"

	"github.com/aknoru/lacbot-security/internal/database"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
	ratelimitDomain "github.com/aknoru/lacbot-security/internal/ratelimit/domain"
)

// PostgreSQLBlockRepository implements block persistence for PostgreSQL.
type PostgreSQLBlockRepository struct {
	db *sql.DB
}

// NewPostgreSQLBlockRepository creates a new PostgreSQL block repository.
func NewPostgreSQLBlockRepository(db *sql.DB) *PostgreSQLBlockRepository {
	return &PostgreSQLBlockRepository{db: db}
}

// Upsert inserts or replaces the block state for a subject.
func (p *PostgreSQLBlockRepository) Upsert(ctx context.Context, block *ratelimitDomain.Block) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO rate_blocks (subject_key, cycles, blocked_until, indefinite, reason, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (subject_key) DO UPDATE SET
			    cycles = EXCLUDED.cycles,
			    blocked_until = EXCLUDED.blocked_until,
			    indefinite = EXCLUDED.indefinite,
			    reason = EXCLUDED.reason,
			    updated_at = EXCLUDED.updated_at`

	_, err := querier.ExecContext(
		ctx,
		query,
		block.SubjectKey,
		block.Cycles,
		block.BlockedUntil,
		block.Indefinite,
		block.Reason,
		block.CreatedAt,
		block.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert rate block")
	}

	return nil
}

// Get retrieves the block state for a subject.
func (p *PostgreSQLBlockRepository) Get(ctx context.Context, subjectKey string) (*ratelimitDomain.Block, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT subject_key, cycles, blocked_until, indefinite, reason, created_at, updated_at
			  FROM rate_blocks
			  WHERE subject_key = $1`

	row := querier.QueryRowContext(ctx, query, subjectKey)
	block, err := scanBlock(row)
	if err == sql.ErrNoRows {
		return nil, ratelimitDomain.ErrBlockNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get rate block")
	}

	return block, nil
}

// Delete removes the block state for a subject.
func (p *PostgreSQLBlockRepository) Delete(ctx context.Context, subjectKey string) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM rate_blocks WHERE subject_key = $1`, subjectKey)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete rate block")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check rate block delete")
	}
	if affected == 0 {
		return ratelimitDomain.ErrBlockNotFound
	}

	return nil
}

// List retrieves all persisted block states, used to warm the in-memory cache
// at startup.
func (p *PostgreSQLBlockRepository) List(ctx context.Context) ([]*ratelimitDomain.Block, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT subject_key, cycles, blocked_until, indefinite, reason, created_at, updated_at
			  FROM rate_blocks
			  ORDER BY subject_key`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list rate blocks")
	}
	defer func() {
		_ = rows.Close()
	}()

	blocks := make([]*ratelimitDomain.Block, 0)
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan rate block")
		}
		blocks = append(blocks, block)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate rate blocks")
	}

	return blocks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*ratelimitDomain.Block, error) {
	var block ratelimitDomain.Block
	err := row.Scan(
		&block.SubjectKey,
		&block.Cycles,
		&block.BlockedUntil,
		&block.Indefinite,
		&block.Reason,
		&block.CreatedAt,
		&block.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &block, nil
}
