// Package service implements the input sanitization pipeline.
package service

import (
	"path/filepath"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	sanitizerDomain "github.com/aknoru/lacbot-security/internal/sanitizer/domain"
	valrules "github.com/aknoru/lacbot-security/internal/validation"
)

// Deny patterns. FreeText uses compound SQL patterns (keyword plus injection
// syntax) so ordinary sentences mentioning "select" or "delete" pass, while
// structured query input is held to the stricter metacharacter set.
var (
	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script[^>]*>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)vbscript:`),
		regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus)\s*=`),
	}

	sqlFreeTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)\b(select|insert|update|delete|drop|create|alter|union|exec)\b.*(--|;|/\*|\btable\b|\bfrom\b)`),
		regexp.MustCompile(`(?i)\b(or|and)\s+\d+\s*=\s*\d+`),
		regexp.MustCompile(`(?i)'\s*(or|and)\s+`),
	}

	sqlStructuredPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(--|#|/\*|\*/)`),
		regexp.MustCompile(`[';]`),
		regexp.MustCompile(`(?i)\b(union|exec|drop|alter)\b`),
	}

	traversalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\.\./`),
		regexp.MustCompile(`\.\.\\`),
		regexp.MustCompile(`(?i)\.\.%2f`),
		regexp.MustCompile(`(?i)\.\.%5c`),
	}
)

// Sanitizer cleans untrusted input or rejects it with a ViolationError.
type Sanitizer interface {
	// Sanitize runs the class pipeline: control character strip, trim,
	// length check, deny patterns, canonicalization. Idempotent: feeding a
	// sanitized value back through yields the same value.
	Sanitize(class sanitizerDomain.ContentClass, input string) (string, error)
}

type sanitizerService struct {
	jailRoot string
}

// NewSanitizer creates the sanitizer. jailRoot is the absolute directory
// FilePath input must resolve inside.
func NewSanitizer(jailRoot string) Sanitizer {
	return &sanitizerService{jailRoot: filepath.Clean(jailRoot)}
}

func (s *sanitizerService) Sanitize(
	class sanitizerDomain.ContentClass,
	input string,
) (string, error) {
	if !class.IsValid() {
		return "", sanitizerDomain.NewViolation(sanitizerDomain.CodeInvalidIdentifier, class)
	}

	cleaned := strings.TrimSpace(stripControl(input, class == sanitizerDomain.FreeText))
	if cleaned == "" {
		return "", sanitizerDomain.NewViolation(sanitizerDomain.CodeEmptyInput, class)
	}
	if len(cleaned) > class.MaxLength() {
		return "", sanitizerDomain.NewViolation(sanitizerDomain.CodeTooLong, class)
	}

	switch class {
	case sanitizerDomain.FreeText:
		if matchAny(xssPatterns, cleaned) {
			return "", sanitizerDomain.NewViolation(sanitizerDomain.CodeXSS, class)
		}
		if matchAny(sqlFreeTextPatterns, cleaned) {
			return "", sanitizerDomain.NewViolation(sanitizerDomain.CodeSQLInjection, class)
		}
		return cleaned, nil

	case sanitizerDomain.Identifier:
		if err := validation.Validate(cleaned, valrules.Identifier); err != nil {
			return "", sanitizerDomain.NewViolation(sanitizerDomain.CodeInvalidIdentifier, class)
		}
		return cleaned, nil

	case sanitizerDomain.FilePath:
		if matchAny(traversalPatterns, cleaned) {
			return "", sanitizerDomain.NewViolation(sanitizerDomain.CodePathTraversal, class)
		}
		return s.canonicalizePath(cleaned)

	case sanitizerDomain.StructuredQuery:
		if matchAny(xssPatterns, cleaned) {
			return "", sanitizerDomain.NewViolation(sanitizerDomain.CodeXSS, class)
		}
		if matchAny(sqlStructuredPatterns, cleaned) {
			return "", sanitizerDomain.NewViolation(sanitizerDomain.CodeSQLInjection, class)
		}
		return cleaned, nil
	}

	return "", sanitizerDomain.NewViolation(sanitizerDomain.CodeInvalidIdentifier, class)
}

// canonicalizePath resolves the path and confirms it stays inside the jail
// root. Relative paths are anchored at the root; absolute paths must already
// be under it.
func (s *sanitizerService) canonicalizePath(input string) (string, error) {
	path := filepath.Clean(input)
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.jailRoot, path)
	}

	if path != s.jailRoot && !strings.HasPrefix(path, s.jailRoot+string(filepath.Separator)) {
		return "", sanitizerDomain.NewViolation(sanitizerDomain.CodePathEscape, sanitizerDomain.FilePath)
	}

	return path, nil
}

// stripControl removes NUL and other control bytes. Free text keeps newlines
// and tabs; every other class gets them stripped too.
func stripControl(input string, keepWhitespace bool) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		if r < 0x20 || r == 0x7f {
			if keepWhitespace && (r == '\n' || r == '\r' || r == '\t') {
				return r
			}
			return -1
		}
		return r
	}, input)
}

func matchAny(patterns []*regexp.Regexp, input string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}
