package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	"github.com/aknoru/lacbot-security/internal/database"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

// MySQLEventRepository implements append-only SecurityEvent persistence for MySQL.
type MySQLEventRepository struct {
	db *sql.DB
}

// NewMySQLEventRepository creates a new MySQL SecurityEvent repository.
func NewMySQLEventRepository(db *sql.DB) *MySQLEventRepository {
	return &MySQLEventRepository{db: db}
}

// Create appends a new SecurityEvent. Uses transaction support via database.GetTx().
// Handles nil details as database NULL.
func (m *MySQLEventRepository) Create(ctx context.Context, event *auditDomain.SecurityEvent) error {
	querier := database.GetTx(ctx, m.db)

	var detailsJSON []byte
	var err error

	if event.Details != nil {
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal event details")
		}
	}

	query := `INSERT INTO security_events
			  (id, type, principal_id, ip, severity, details, prev_hash, event_hash, signature, key_version, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		event.ID,
		string(event.Type),
		event.PrincipalID,
		event.IP,
		string(event.Severity),
		detailsJSON,
		event.PrevHash,
		event.EventHash,
		event.Signature,
		event.KeyVersion,
		event.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create security event")
	}

	return nil
}

// Latest returns the most recently appended event. Returns ErrEventNotFound
// when the log is empty.
func (m *MySQLEventRepository) Latest(ctx context.Context) (*auditDomain.SecurityEvent, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, type, principal_id, ip, severity, details, prev_hash, event_hash, signature, key_version, created_at
			  FROM security_events
			  ORDER BY id DESC
			  LIMIT 1`

	row := querier.QueryRowContext(ctx, query)
	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, auditDomain.ErrEventNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load latest security event")
	}

	return event, nil
}

// Get retrieves a single event by ID. Returns ErrEventNotFound if not found.
func (m *MySQLEventRepository) Get(ctx context.Context, id uuid.UUID) (*auditDomain.SecurityEvent, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, type, principal_id, ip, severity, details, prev_hash, event_hash, signature, key_version, created_at
			  FROM security_events
			  WHERE id = ?`

	row := querier.QueryRowContext(ctx, query, id)
	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, auditDomain.ErrEventNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get security event")
	}

	return event, nil
}

// ListRange retrieves events in append order (ascending ID) between two IDs,
// both inclusive.
func (m *MySQLEventRepository) ListRange(
	ctx context.Context,
	fromID, toID uuid.UUID,
) ([]*auditDomain.SecurityEvent, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, type, principal_id, ip, severity, details, prev_hash, event_hash, signature, key_version, created_at
			  FROM security_events
			  WHERE id >= ? AND id <= ?
			  ORDER BY id ASC`

	rows, err := querier.QueryContext(ctx, query, fromID, toID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list security events")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanEvents(rows)
}

// List retrieves events ordered by ID descending (newest first) with pagination
// and optional time-based filtering (nil means no filter, boundaries inclusive).
func (m *MySQLEventRepository) List(
	ctx context.Context,
	offset, limit int,
	createdAtFrom, createdAtTo *time.Time,
) ([]*auditDomain.SecurityEvent, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, type, principal_id, ip, severity, details, prev_hash, event_hash, signature, key_version, created_at
			  FROM security_events
			  WHERE 1=1`
	args := []any{}

	if createdAtFrom != nil {
		query += " AND created_at >= ?"
		args = append(args, *createdAtFrom)
	}
	if createdAtTo != nil {
		query += " AND created_at <= ?"
		args = append(args, *createdAtTo)
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list security events")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanEvents(rows)
}

// ListBySeverity retrieves the newest events matching the given severities.
func (m *MySQLEventRepository) ListBySeverity(
	ctx context.Context,
	severities []auditDomain.Severity,
	limit int,
) ([]*auditDomain.SecurityEvent, error) {
	querier := database.GetTx(ctx, m.db)

	placeholders := make([]string, 0, len(severities))
	args := make([]any, 0, len(severities)+1)
	for _, s := range severities {
		placeholders = append(placeholders, "?")
		args = append(args, string(s))
	}
	args = append(args, limit)

	query := `SELECT id, type, principal_id, ip, severity, details, prev_hash, event_hash, signature, key_version, created_at
			  FROM security_events
			  WHERE severity IN (` + strings.Join(placeholders, ", ") + `)
			  ORDER BY id DESC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list security events by severity")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanEvents(rows)
}
