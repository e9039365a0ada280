// Package domain defines the sanitizer's content classes and violations.
package domain

// ContentClass selects which sanitization rules apply to a payload.
type ContentClass string

const (
	// FreeText is conversational input: chat messages, FAQ answers.
	FreeText ContentClass = "free_text"
	// Identifier is an opaque handle: usernames, document slugs.
	Identifier ContentClass = "identifier"
	// FilePath is a path that must stay inside the managed files root.
	FilePath ContentClass = "file_path"
	// StructuredQuery is user input destined for a search or filter expression.
	StructuredQuery ContentClass = "structured_query"
)

// MaxLength returns the class length limit in bytes.
func (c ContentClass) MaxLength() int {
	switch c {
	case Identifier:
		return 128
	case FilePath:
		return 512
	case StructuredQuery:
		return 1024
	default:
		return 8192
	}
}

// IsValid reports whether the class is known.
func (c ContentClass) IsValid() bool {
	switch c {
	case FreeText, Identifier, FilePath, StructuredQuery:
		return true
	}
	return false
}
