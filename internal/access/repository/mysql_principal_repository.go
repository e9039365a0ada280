package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
	"github.com/aknoru/lacbot-security/internal/database"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

// MySQLPrincipalRepository implements principal persistence for MySQL.
type MySQLPrincipalRepository struct {
	db *sql.DB
}

// NewMySQLPrincipalRepository creates a new MySQL principal repository.
func NewMySQLPrincipalRepository(db *sql.DB) *MySQLPrincipalRepository {
	return &MySQLPrincipalRepository{db: db}
}

// Create inserts a new principal.
func (m *MySQLPrincipalRepository) Create(ctx context.Context, principal *accessDomain.Principal) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO principals (id, role, active, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		principal.ID,
		string(principal.Role),
		principal.Active,
		principal.CreatedAt,
		principal.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create principal")
	}

	return nil
}

// Get retrieves a principal by id.
func (m *MySQLPrincipalRepository) Get(ctx context.Context, id uuid.UUID) (*accessDomain.Principal, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, role, active, created_at, updated_at
			  FROM principals
			  WHERE id = ?`

	row := querier.QueryRowContext(ctx, query, id)
	principal, err := scanPrincipal(row)
	if err == sql.ErrNoRows {
		return nil, accessDomain.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get principal")
	}

	return principal, nil
}

// UpdateRole changes a principal's role.
func (m *MySQLPrincipalRepository) UpdateRole(
	ctx context.Context,
	id uuid.UUID,
	role accessDomain.Role,
	at time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE principals SET role = ?, updated_at = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, string(role), at, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update principal role")
	}

	return checkAffected(result)
}

// SetActive activates or deactivates a principal.
func (m *MySQLPrincipalRepository) SetActive(
	ctx context.Context,
	id uuid.UUID,
	active bool,
	at time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE principals SET active = ?, updated_at = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, active, at, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update principal active flag")
	}

	return checkAffected(result)
}

// List retrieves principals ordered by creation, newest first.
func (m *MySQLPrincipalRepository) List(ctx context.Context, limit, offset uint) ([]*accessDomain.Principal, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, role, active, created_at, updated_at
			  FROM principals
			  ORDER BY created_at DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list principals")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanPrincipals(rows)
}
