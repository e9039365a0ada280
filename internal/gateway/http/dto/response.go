// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	auditUseCase "github.com/aknoru/lacbot-security/internal/audit/usecase"
	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
	gatewayUseCase "github.com/aknoru/lacbot-security/internal/gateway/usecase"
	ratelimitDomain "github.com/aknoru/lacbot-security/internal/ratelimit/domain"
)

// CheckResponse is the gateway's verdict on one admission check. Sanitized is
// present only when the request passed sanitization; ViolationCode is present
// only when it did not.
type CheckResponse struct {
	Allowed       bool   `json:"allowed"`
	Sanitized     string `json:"sanitized,omitempty"`
	Decision      string `json:"decision"`
	RateDecision  string `json:"rate_decision,omitempty"`
	RiskLevel     string `json:"risk_level"`
	Reason        string `json:"reason,omitempty"`
	ViolationCode string `json:"violation_code,omitempty"`
}

// MapCheckResultToResponse converts a gateway verdict to an API response.
func MapCheckResultToResponse(result *gatewayUseCase.CheckResult, violationCode string) CheckResponse {
	return CheckResponse{
		Allowed:       result.Decision.Permitted(),
		Sanitized:     result.Sanitized,
		Decision:      string(result.Decision),
		RateDecision:  string(result.RateDecision),
		RiskLevel:     string(result.RiskLevel),
		Reason:        result.Reason,
		ViolationCode: violationCode,
	}
}

// ProtectResponse is the sealed envelope returned by the protect operation.
// Byte fields serialize as base64 strings.
type ProtectResponse struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	KeyVersion uint   `json:"key_version"`
	Algorithm  string `json:"algorithm"`
}

// MapBlobToResponse converts an encrypted envelope to an API response.
func MapBlobToResponse(blob *cryptoDomain.EncryptedBlob) ProtectResponse {
	return ProtectResponse{
		Ciphertext: blob.Ciphertext,
		Nonce:      blob.Nonce,
		KeyVersion: blob.KeyVersion,
		Algorithm:  string(blob.Algorithm),
	}
}

// RevealResponse is the recovered plaintext of a protected payload.
type RevealResponse struct {
	Plaintext string `json:"plaintext"`
}

// EventResponse represents a security event in API responses. Chain hashes and
// the signature serialize as base64 strings.
type EventResponse struct {
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

// MapEventToResponse converts a domain security event to an API response.
func MapEventToResponse(event *auditDomain.SecurityEvent) EventResponse {
	var principalID *string
	if event.PrincipalID != nil {
		id := event.PrincipalID.String()
		principalID = &id
	}
	return EventResponse{
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

// ListEventsResponse represents a paginated list of security events.
type ListEventsResponse struct {
	Data []EventResponse `json:"data"`
}

// MapEventsToListResponse converts a slice of domain events to a list API response.
func MapEventsToListResponse(events []*auditDomain.SecurityEvent) ListEventsResponse {
	eventResponses := make([]EventResponse, 0, len(events))
	for _, event := range events {
		eventResponses = append(eventResponses, MapEventToResponse(event))
	}
	return ListEventsResponse{
		Data: eventResponses,
	}
}

// VerifyChainResponse reports the outcome of a chain verification walk.
type VerifyChainResponse struct {
	Checked  int     `json:"checked"`
	Intact   bool    `json:"intact"`
	BrokenAt *string `json:"broken_at,omitempty"`
}

// MapVerifyResultToResponse converts a verification result to an API response.
func MapVerifyResultToResponse(result *auditUseCase.VerifyResult) VerifyChainResponse {
	response := VerifyChainResponse{
		Checked: result.Checked,
		Intact:  result.BrokenAt == nil,
	}
	if result.BrokenAt != nil {
		id := result.BrokenAt.String()
		response.BrokenAt = &id
	}
	return response
}

// BlockResponse represents an active penalty block in API responses.
type BlockResponse struct {
	SubjectKey   string     `json:"subject_key"`
	Cycles       int        `json:"cycles"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	Indefinite   bool       `json:"indefinite"`
	Reason       string     `json:"reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// MapBlockToResponse converts a domain block to an API response.
func MapBlockToResponse(block *ratelimitDomain.Block) BlockResponse {
	return BlockResponse{
		SubjectKey:   block.SubjectKey,
		Cycles:       block.Cycles,
		BlockedUntil: block.BlockedUntil,
		Indefinite:   block.Indefinite,
		Reason:       block.Reason,
		CreatedAt:    block.CreatedAt,
	}
}

// StatusResponse is the security posture summary for administrative use.
type StatusResponse struct {
	OverallScore         float64         `json:"overall_score"`
	ActiveBlocks         []BlockResponse `json:"active_blocks"`
	RecentCriticalEvents []EventResponse `json:"recent_critical_events"`
}

// MapStatusToResponse converts a gateway status summary to an API response.
func MapStatusToResponse(status *gatewayUseCase.SecurityStatus) StatusResponse {
	blocks := make([]BlockResponse, 0, len(status.ActiveBlocks))
	for _, block := range status.ActiveBlocks {
		blocks = append(blocks, MapBlockToResponse(block))
	}
	events := make([]EventResponse, 0, len(status.RecentCriticalEvents))
	for _, event := range status.RecentCriticalEvents {
		events = append(events, MapEventToResponse(event))
	}
	return StatusResponse{
		OverallScore:         status.OverallScore,
		ActiveBlocks:         blocks,
		RecentCriticalEvents: events,
	}
}
