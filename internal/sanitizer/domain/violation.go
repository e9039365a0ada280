package domain

import (
	"fmt"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

// ViolationCode names what a rejected payload tripped on. Codes are safe to
// log and return to callers; the payload itself never is.
type ViolationCode string

const (
	CodeTooLong           ViolationCode = "too_long"
	CodeSQLInjection      ViolationCode = "sql_injection"
	CodeXSS               ViolationCode = "xss"
	CodePathTraversal     ViolationCode = "path_traversal"
	CodePathEscape        ViolationCode = "path_escape"
	CodeInvalidIdentifier ViolationCode = "invalid_identifier"
	CodeEmptyInput        ViolationCode = "empty_input"
)

// ErrMaliciousInput is the base error for every sanitizer rejection.
var ErrMaliciousInput = apperrors.Wrap(apperrors.ErrInvalidInput, "malicious input")

// ViolationError carries the violation code and a severity hint for the audit
// trail. It never carries the offending payload.
type ViolationError struct {
	Code     ViolationCode
	Class    ContentClass
	Severity auditDomain.Severity
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("malicious input: %s (%s)", e.Code, e.Class)
}

// Unwrap makes every violation match ErrMaliciousInput (and through it,
// ErrInvalidInput).
func (e *ViolationError) Unwrap() error {
	return ErrMaliciousInput
}

// NewViolation builds a ViolationError. Injection attempts rank High; the
// rest are Medium.
func NewViolation(code ViolationCode, class ContentClass) *ViolationError {
	severity := auditDomain.SeverityMedium
	if code == CodeSQLInjection || code == CodeXSS {
		severity = auditDomain.SeverityHigh
	}
	return &ViolationError{Code: code, Class: class, Severity: severity}
}
