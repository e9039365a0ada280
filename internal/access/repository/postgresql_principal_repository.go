// Package repository implements principal persistence for PostgreSQL and
// MySQL. Principals are never deleted; deactivation keeps the audit trail's
// subjects resolvable.
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

// PostgreSQLPrincipalRepository implements principal persistence for PostgreSQL.
type PostgreSQLPrincipalRepository struct {
	db *sql.DB
}

// NewPostgreSQLPrincipalRepository creates a new PostgreSQL principal repository.
func NewPostgreSQLPrincipalRepository(db *sql.DB) *PostgreSQLPrincipalRepository {
	return &PostgreSQLPrincipalRepository{db: db}
}

// Create inserts a new principal.
func (p *PostgreSQLPrincipalRepository) Create(ctx context.Context, principal *accessDomain.Principal) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO principals (id, role, active, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5)`

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
func (p *PostgreSQLPrincipalRepository) Get(ctx context.Context, id uuid.UUID) (*accessDomain.Principal, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, role, active, created_at, updated_at
			  FROM principals
			  WHERE id = $1`

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
func (p *PostgreSQLPrincipalRepository) UpdateRole(
	ctx context.Context,
	id uuid.UUID,
	role accessDomain.Role,
	at time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE principals SET role = $1, updated_at = $2 WHERE id = $3`

	result, err := querier.ExecContext(ctx, query, string(role), at, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update principal role")
	}

	return checkAffected(result)
}

// SetActive activates or deactivates a principal.
func (p *PostgreSQLPrincipalRepository) SetActive(
	ctx context.Context,
	id uuid.UUID,
	active bool,
	at time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE principals SET active = $1, updated_at = $2 WHERE id = $3`

	result, err := querier.ExecContext(ctx, query, active, at, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update principal active flag")
	}

	return checkAffected(result)
}

// List retrieves principals ordered by creation, newest first.
func (p *PostgreSQLPrincipalRepository) List(ctx context.Context, limit, offset uint) ([]*accessDomain.Principal, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, role, active, created_at, updated_at
			  FROM principals
			  ORDER BY created_at DESC
			  LIMIT $1 OFFSET $2`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list principals")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanPrincipals(rows)
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check principal update")
	}
	if affected == 0 {
		return accessDomain.ErrPrincipalNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*accessDomain.Principal, error) {
	var principal accessDomain.Principal
	var role string

	err := row.Scan(
		&principal.ID,
		&role,
		&principal.Active,
		&principal.CreatedAt,
		&principal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	principal.Role = accessDomain.Role(role)
	return &principal, nil
}

func scanPrincipals(rows *sql.Rows) ([]*accessDomain.Principal, error) {
	principals := make([]*accessDomain.Principal, 0)
	for rows.Next() {
		principal, err := scanPrincipal(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan principal")
		}
		principals = append(principals, principal)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate principals")
	}

	return principals, nil
}
