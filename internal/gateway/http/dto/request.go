// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
	sanitizerDomain "github.com/aknoru/lacbot-security/internal/sanitizer/domain"
	customValidation "github.com/aknoru/lacbot-security/internal/validation"
)

// ResourceRequest describes the resource a request wants to act on.
type ResourceRequest struct {
	Type           string  `json:"type"`
	OwnerID        *string `json:"owner_id,omitempty"`
	Classification string  `json:"classification"`
}

// CheckRequest contains the parameters for a full gateway admission check.
type CheckRequest struct {
	Input    string          `json:"input"`
	Class    string          `json:"class"`
	Action   string          `json:"action"`
	Resource ResourceRequest `json:"resource"`
}

// Validate checks if the check request is valid.
func (r *CheckRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Class,
			validation.Required,
			validation.By(validateContentClass),
		),
		validation.Field(&r.Action,
			validation.Required,
			validation.By(validateAction),
		),
		validation.Field(&r.Resource,
			validation.Required,
			validation.By(validateResource),
		),
	)
}

// validateContentClass validates a sanitizer content class value.
func validateContentClass(value interface{}) error {
	class, ok := value.(string)
	if !ok || !sanitizerDomain.ContentClass(class).IsValid() {
		return validation.NewError("validation_content_class", "must be a known content class")
	}
	return nil
}

// validateAction validates an access control action value.
func validateAction(value interface{}) error {
	action, ok := value.(string)
	if !ok || !accessDomain.Action(action).IsValid() {
		return validation.NewError("validation_action", "must be a known action")
	}
	return nil
}

// validateResource validates the resource block of a check request.
func validateResource(value interface{}) error {
	resource, ok := value.(ResourceRequest)
	if !ok {
		return validation.NewError("validation_resource_type", "must be a resource")
	}

	return validation.ValidateStruct(&resource,
		validation.Field(&resource.Type,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&resource.Classification,
			validation.Required,
			validation.By(validateClassification),
		),
	)
}

// validateClassification validates a resource classification value.
func validateClassification(value interface{}) error {
	class, ok := value.(string)
	if !ok || !accessDomain.Classification(class).IsValid() {
		return validation.NewError("validation_classification", "must be a known classification")
	}
	return nil
}

// ProtectRequest contains the sensitive payload to seal.
type ProtectRequest struct {
	Plaintext string `json:"plaintext"`
}

// Validate checks if the protect request is valid.
func (r *ProtectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Plaintext,
			validation.Required,
		),
	)
}

// RevealRequest contains a previously sealed envelope to open.
type RevealRequest struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	KeyVersion uint   `json:"key_version"`
	Algorithm  string `json:"algorithm"`
}

// Validate checks if the reveal request is valid.
func (r *RevealRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Ciphertext, validation.Required),
		validation.Field(&r.Nonce, validation.Required),
		validation.Field(&r.KeyVersion, validation.Required),
		validation.Field(&r.Algorithm, validation.Required),
	)
}

// ToBlob converts the reveal request into the engine's envelope form.
func (r *RevealRequest) ToBlob() *cryptoDomain.EncryptedBlob {
	return &cryptoDomain.EncryptedBlob{
		Ciphertext: r.Ciphertext,
		Nonce:      r.Nonce,
		KeyVersion: r.KeyVersion,
		Algorithm:  cryptoDomain.Algorithm(r.Algorithm),
	}
}

// RecordEventRequest contains a security occurrence reported by business logic.
type RecordEventRequest struct {
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	PrincipalID *string        `json:"principal_id,omitempty"`
	IP          string         `json:"ip,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Validate checks if the record event request is valid.
func (r *RecordEventRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Type,
			validation.Required,
			validation.By(validateEventType),
		),
		validation.Field(&r.Severity,
			validation.Required,
			validation.By(validateSeverity),
		),
		validation.Field(&r.IP,
			validation.When(r.IP != "", customValidation.IPAddress),
		),
	)
}

// validateEventType validates a security event type value.
func validateEventType(value interface{}) error {
	eventType, ok := value.(string)
	if !ok || !auditDomain.EventType(eventType).IsValid() {
		return validation.NewError("validation_event_type", "must be a known event type")
	}
	return nil
}

// validateSeverity validates a severity value.
func validateSeverity(value interface{}) error {
	severity, ok := value.(string)
	if !ok || !auditDomain.Severity(severity).IsValid() {
		return validation.NewError("validation_severity", "must be a known severity")
	}
	return nil
}

// VerifyChainRequest contains the inclusive bounds of a chain verification walk.
type VerifyChainRequest struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

// Validate checks if the verify chain request is valid.
func (r *VerifyChainRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.FromID, validation.Required, customValidation.NotBlank),
		validation.Field(&r.ToID, validation.Required, customValidation.NotBlank),
	)
}

// UnblockRequest contains the subject whose penalty state an operator clears.
type UnblockRequest struct {
	SubjectKey string `json:"subject_key"`
}

// Validate checks if the unblock request is valid.
func (r *UnblockRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SubjectKey, validation.Required, customValidation.NotBlank),
	)
}
