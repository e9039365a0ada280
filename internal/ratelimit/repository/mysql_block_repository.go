package repository

import (
	"context"
	"database/sql"

	"github.com/aknoru/lacbot-security/internal/database"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
	ratelimitDomain "github.com/aknoru/lacbot-security/internal/ratelimit/domain"
)

// MySQLBlockRepository implements block persistence for MySQL.
type MySQLBlockRepository struct {
	db *sql.DB
}

// NewMySQLBlockRepository creates a new MySQL block repository.
func NewMySQLBlockRepository(db *sql.DB) *MySQLBlockRepository {
	return &MySQLBlockRepository{db: db}
}

// Upsert inserts or replaces the block state for a subject.
func (m *MySQLBlockRepository) Upsert(ctx context.Context, block *ratelimitDomain.Block) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO rate_blocks (subject_key, cycles, blocked_until, indefinite, reason, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			    cycles = VALUES(cycles),
			    blocked_until = VALUES(blocked_until),
			    indefinite = VALUES(indefinite),
			    reason = VALUES(reason),
			    updated_at = VALUES(updated_at)`

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
func (m *MySQLBlockRepository) Get(ctx context.Context, subjectKey string) (*ratelimitDomain.Block, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT subject_key, cycles, blocked_until, indefinite, reason, created_at, updated_at
			  FROM rate_blocks
			  WHERE subject_key = ?`

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
func (m *MySQLBlockRepository) Delete(ctx context.Context, subjectKey string) error {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM rate_blocks WHERE subject_key = ?`, subjectKey)
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

// List retrieves all persisted block states.
func (m *MySQLBlockRepository) List(ctx context.Context) ([]*ratelimitDomain.Block, error) {
	querier := database.GetTx(ctx, m.db)

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
