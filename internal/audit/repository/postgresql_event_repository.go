// Package repository implements SecurityEvent persistence for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	"github.com/aknoru/lacbot-security/internal/database"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

// PostgreSQLEventRepository implements append-only SecurityEvent persistence for
// PostgreSQL. The table carries no UPDATE or DELETE paths; retention is handled
// by export, never by deletion.
type PostgreSQLEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLEventRepository creates a new PostgreSQL SecurityEvent repository.
func NewPostgreSQLEventRepository(db *sql.DB) *PostgreSQLEventRepository {
	return &PostgreSQLEventRepository{db: db}
}

// Create appends a new SecurityEvent. Uses transaction support via database.GetTx().
// Handles nil details as database NULL.
func (p *PostgreSQLEventRepository) Create(ctx context.Context, event *auditDomain.SecurityEvent) error {
	querier := database.GetTx(ctx, p.db)

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
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

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

// Latest returns the most recently appended event, used to seed the chain head
// at startup. Returns ErrEventNotFound when the log is empty.
func (p *PostgreSQLEventRepository) Latest(ctx context.Context) (*auditDomain.SecurityEvent, error) {
	querier := database.GetTx(ctx, p.db)

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
func (p *PostgreSQLEventRepository) Get(ctx context.Context, id uuid.UUID) (*auditDomain.SecurityEvent, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, type, principal_id, ip, severity, details, prev_hash, event_hash, signature, key_version, created_at
			  FROM security_events
			  WHERE id = $1`

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
// both inclusive. Chain verification walks this range.
func (p *PostgreSQLEventRepository) ListRange(
	ctx context.Context,
	fromID, toID uuid.UUID,
) ([]*auditDomain.SecurityEvent, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, type, principal_id, ip, severity, details, prev_hash, event_hash, signature, key_version, created_at
			  FROM security_events
			  WHERE id >= $1 AND id <= $2
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
func (p *PostgreSQLEventRepository) List(
	ctx context.Context,
	offset, limit int,
	createdAtFrom, createdAtTo *time.Time,
) ([]*auditDomain.SecurityEvent, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, type, principal_id, ip, severity, details, prev_hash, event_hash, signature, key_version, created_at
			  FROM security_events
			  WHERE ($3::timestamptz IS NULL OR created_at >= $3)
			    AND ($4::timestamptz IS NULL OR created_at <= $4)
			  ORDER BY id DESC
			  LIMIT $1 OFFSET $2`

	rows, err := querier.QueryContext(ctx, query, limit, offset, createdAtFrom, createdAtTo)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list security events")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanEvents(rows)
}

// ListBySeverity retrieves the newest events at or above the given severity.
func (p *PostgreSQLEventRepository) ListBySeverity(
	ctx context.Context,
	severities []auditDomain.Severity,
	limit int,
) ([]*auditDomain.SecurityEvent, error) {
	querier := database.GetTx(ctx, p.db)

	names := make([]string, 0, len(severities))
	for _, s := range severities {
		names = append(names, string(s))
	}

	query := `SELECT id, type, principal_id, ip, severity, details, prev_hash, event_hash, signature, key_version, created_at
			  FROM security_events
			  WHERE severity = ANY($1)
			  ORDER BY id DESC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, pq.Array(names), limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list security events by severity")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanEvents(rows)
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning logic.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*auditDomain.SecurityEvent, error) {
	var event auditDomain.SecurityEvent
	var eventType, severity string
	var principalID uuid.NullUUID
	var detailsJSON []byte

	err := row.Scan(
		&event.ID,
		&eventType,
		&principalID,
		&event.IP,
		&severity,
		&detailsJSON,
		&event.PrevHash,
		&event.EventHash,
		&event.Signature,
		&event.KeyVersion,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.Type = auditDomain.EventType(eventType)
	event.Severity = auditDomain.Severity(severity)
	if principalID.Valid {
		id := principalID.UUID
		event.PrincipalID = &id
	}
	if detailsJSON != nil {
		if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal event details")
		}
	}

	return &event, nil
}

func scanEvents(rows *sql.Rows) ([]*auditDomain.SecurityEvent, error) {
	// Initialize empty slice to avoid returning nil for empty results
	events := make([]*auditDomain.SecurityEvent, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan security event")
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate security events")
	}

	return events, nil
}
