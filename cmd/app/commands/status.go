package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	gatewayUseCase "github.com/aknoru/lacbot-security/internal/gateway/usecase"
)

// RunStatus prints the current security posture: the overall risk score,
// active penalty blocks and the most recent high severity events.
func RunStatus(
	ctx context.Context,
	gateway gatewayUseCase.SecurityGatewayUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	status, err := gateway.SecurityStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get security status: %w", err)
	}

	if format == "json" {
		if err := outputStatusJSON(writer, status); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
	} else {
		outputStatusText(writer, status)
	}

	logger.Info("status reported",
		slog.Float64("overall_score", status.OverallScore),
		slog.Int("active_blocks", len(status.ActiveBlocks)),
	)
	return nil
}

// outputStatusText outputs the posture summary in human-readable text format.
func outputStatusText(writer io.Writer, status *gatewayUseCase.SecurityStatus) {
	_, _ = fmt.Fprintf(writer, "Security Status\n")
	_, _ = fmt.Fprintf(writer, "===============\n\n")
	_, _ = fmt.Fprintf(writer, "Overall Risk Score: %.2f\n\n", status.OverallScore)

	_, _ = fmt.Fprintf(writer, "Active Blocks: %d\n", len(status.ActiveBlocks))
	for _, block := range status.ActiveBlocks {
		if block.Indefinite {
			_, _ = fmt.Fprintf(writer, "  %s  indefinite  (%s)\n", block.SubjectKey, block.Reason)
			continue
		}
		until := ""
		if block.BlockedUntil != nil {
			until = block.BlockedUntil.Format("2006-01-02 15:04:05 MST")
		}
		_, _ = fmt.Fprintf(writer, "  %s  until %s  (%s)\n", block.SubjectKey, until, block.Reason)
	}

	_, _ = fmt.Fprintf(writer, "\nRecent Critical Events: %d\n", len(status.RecentCriticalEvents))
	for _, event := range status.RecentCriticalEvents {
		_, _ = fmt.Fprintf(writer, "  %s  %s  %s  %s\n",
			event.CreatedAt.Format("2006-01-02 15:04:05"),
			event.Severity, event.Type, event.ID)
	}
}

// outputStatusJSON outputs the posture summary in JSON format for machine consumption.
func outputStatusJSON(writer io.Writer, status *gatewayUseCase.SecurityStatus) error {
	blocks := make([]map[string]interface{}, 0, len(status.ActiveBlocks))
	for _, block := range status.ActiveBlocks {
		entry := map[string]interface{}{
			"subject_key": block.SubjectKey,
			"cycles":      block.Cycles,
			"indefinite":  block.Indefinite,
			"reason":      block.Reason,
		}
		if block.BlockedUntil != nil {
			entry["blocked_until"] = block.BlockedUntil
		}
		blocks = append(blocks, entry)
	}

	events := make([]map[string]interface{}, 0, len(status.RecentCriticalEvents))
	for _, event := range status.RecentCriticalEvents {
		events = append(events, map[string]interface{}{
			"id":         event.ID.String(),
			"type":       string(event.Type),
			"severity":   string(event.Severity),
			"created_at": event.CreatedAt,
		})
	}

	out := map[string]interface{}{
		"overall_score":          status.OverallScore,
		"active_blocks":          blocks,
		"recent_critical_events": events,
	}

	jsonBytes, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, _ = fmt.Fprintln(writer, string(jsonBytes))
	return nil
}
