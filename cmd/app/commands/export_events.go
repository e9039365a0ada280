package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	auditUseCase "github.com/aknoru/lacbot-security/internal/audit/usecase"
)

// exportPageSize bounds one repository read during an export walk.
const exportPageSize = 100

// exportedEvent is the archival form of a security event. Hashes and the
// signature are carried so an exported range can still be chain-verified.
type exportedEvent struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	PrincipalID *string        `json:"principal_id,omitempty"`
	IP          string         `json:"ip,omitempty"`
	Severity    string         `json:"severity"`
	Details     map[string]any `json:"details,omitempty"`
	PrevHash    []byte         `json:"prev_hash"`
	EventHash   []byte         `json:"event_hash"`
	Signature   []byte         `json:"signature"`
	KeyVersion  uint           `json:"key_version"`
	CreatedAt   time.Time      `json:"created_at"`
}

// RunExportEvents writes security events to the writer as JSON lines, one
// event per line, oldest first. Events are never deleted; export is the
// retention story, feeding an external archive.
//
// fromStr and toStr bound the export by creation time (RFC 3339); either may
// be empty for an open bound.
func RunExportEvents(
	ctx context.Context,
	events auditUseCase.SecurityEventUseCase,
	logger *slog.Logger,
	writer io.Writer,
	fromStr, toStr string,
) error {
	var createdAtFrom, createdAtTo *time.Time

	if fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return fmt.Errorf("invalid from timestamp: %w", err)
		}
		createdAtFrom = &from
	}

	if toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return fmt.Errorf("invalid to timestamp: %w", err)
		}
		createdAtTo = &to
	}

	logger.Info("exporting security events",
		slog.String("from", fromStr),
		slog.String("to", toStr),
	)

	// List returns newest-first; collect pages first so the archive reads
	// oldest-first, matching append order.
	var collected []*auditDomain.SecurityEvent
	for offset := 0; ; offset += exportPageSize {
		page, err := events.List(ctx, offset, exportPageSize, createdAtFrom, createdAtTo)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		collected = append(collected, page...)
		if len(page) < exportPageSize {
			break
		}
	}

	encoder := json.NewEncoder(writer)
	for i := len(collected) - 1; i >= 0; i-- {
		if err := encoder.Encode(mapEventToExport(collected[i])); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}

	logger.Info("export completed", slog.Int("exported", len(collected)))
	return nil
}

func mapEventToExport(event *auditDomain.SecurityEvent) exportedEvent {
	var principalID *string
	if event.PrincipalID != nil {
		id := event.PrincipalID.String()
		principalID = &id
	}
	return exportedEvent{
		ID:          event.ID.String(),
		Type:        string(event.Type),
		PrincipalID: principalID,
		IP:          event.IP,
		Severity:    string(event.Severity),
		Details:     event.Details,
		PrevHash:    event.PrevHash,
		EventHash:   event.EventHash,
		Signature:   event.Signature,
		KeyVersion:  event.KeyVersion,
		CreatedAt:   event.CreatedAt,
	}
}
