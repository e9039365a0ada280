// Package validation provides custom validation rules shared by the sanitizer
// and the admin HTTP DTOs.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

var (
	// identifierRegex accepts usernames, document slugs and similar handles.
	identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-]+$`)

	// ipRegex is a loose address shape check; net.ParseIP does the real work
	// where an address must be valid.
	ipRegex = regexp.MustCompile(`^[0-9a-fA-F.:]+$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Identifier validates that a string is a safe opaque handle.
var Identifier = validation.NewStringRuleWithError(
	func(s string) bool {
		return identifierRegex.MatchString(s)
	},
	validation.NewError(
		"validation_identifier_format",
		"must contain only letters, digits, dot, underscore or hyphen",
	),
)

// IPAddress validates the rough shape of an IPv4 or IPv6 address.
var IPAddress = validation.NewStringRuleWithError(
	func(s string) bool {
		return ipRegex.MatchString(s)
	},
	validation.NewError("validation_ip_format", "must be an IP address"),
)

// NotBlank validates that a string is not empty after trimming whitespace.
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace.
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)
