package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
	sanitizerDomain "github.com/aknoru/lacbot-security/internal/sanitizer/domain"
)

const jailRoot = "/var/lib/lacbot/files"

func violationCode(t *testing.T, err error) sanitizerDomain.ViolationCode {
	t.Helper()
	var violation *sanitizerDomain.ViolationError
	require.ErrorAs(t, err, &violation)
	return violation.Code
}

func TestSanitizer_FreeText(t *testing.T) {
	s := NewSanitizer(jailRoot)

	t.Run("CleanSentencePassesUnchanged", func(t *testing.T) {
		input := "What time does the campus library open on Monday?"
		out, err := s.Sanitize(sanitizerDomain.FreeText, input)
		require.NoError(t, err)
		assert.Equal(t, input, out)
	})

	t.Run("SQLInjectionRejected", func(t *testing.T) {
		_, err := s.Sanitize(sanitizerDomain.FreeText, "; DROP TABLE users;--")
		assert.ErrorIs(t, err, sanitizerDomain.ErrMaliciousInput)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Equal(t, sanitizerDomain.CodeSQLInjection, violationCode(t, err))
	})

	t.Run("TautologyRejected", func(t *testing.T) {
		_, err := s.Sanitize(sanitizerDomain.FreeText, "admin' OR 1=1")
		assert.Equal(t, sanitizerDomain.CodeSQLInjection, violationCode(t, err))
	})

	t.Run("ScriptTagRejected", func(t *testing.T) {
		_, err := s.Sanitize(sanitizerDomain.FreeText, `hello <script>alert(1)</script>`)
		assert.Equal(t, sanitizerDomain.CodeXSS, violationCode(t, err))
	})

	t.Run("InjectionSeverityIsHigh", func(t *testing.T) {
		_, err := s.Sanitize(sanitizerDomain.FreeText, "; DROP TABLE users;--")
		var violation *sanitizerDomain.ViolationError
		require.ErrorAs(t, err, &violation)
		assert.Equal(t, auditDomain.SeverityHigh, violation.Severity)
	})

	t.Run("NullBytesStripped", func(t *testing.T) {
		out, err := s.Sanitize(sanitizerDomain.FreeText, "hello\x00world")
		require.NoError(t, err)
		assert.Equal(t, "helloworld", out)
	})

	t.Run("NewlinesKept", func(t *testing.T) {
		out, err := s.Sanitize(sanitizerDomain.FreeText, "line one\nline two")
		require.NoError(t, err)
		assert.Equal(t, "line one\nline two", out)
	})

	t.Run("TooLong", func(t *testing.T) {
		long := make([]byte, sanitizerDomain.FreeText.MaxLength()+1)
		for i := range long {
			long[i] = 'a'
		}
		_, err := s.Sanitize(sanitizerDomain.FreeText, string(long))
		assert.Equal(t, sanitizerDomain.CodeTooLong, violationCode(t, err))
	})

	t.Run("OrdinaryKeywordsPass", func(t *testing.T) {
		out, err := s.Sanitize(sanitizerDomain.FreeText, "How do I select a course and update my plan?")
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	})
}

func TestSanitizer_Identifier(t *testing.T) {
	s := NewSanitizer(jailRoot)

	t.Run("Valid", func(t *testing.T) {
		out, err := s.Sanitize(sanitizerDomain.Identifier, "student_42.profile")
		require.NoError(t, err)
		assert.Equal(t, "student_42.profile", out)
	})

	t.Run("RejectsSpacesAndQuotes", func(t *testing.T) {
		for _, input := range []string{"two words", `x"y`, "a;b"} {
			_, err := s.Sanitize(sanitizerDomain.Identifier, input)
			assert.Equal(t, sanitizerDomain.CodeInvalidIdentifier, violationCode(t, err), input)
		}
	})
}

func TestSanitizer_FilePath(t *testing.T) {
	s := NewSanitizer(jailRoot)

	t.Run("TraversalRejected", func(t *testing.T) {
		for _, input := range []string{"../../etc/passwd", "..%2f..%2fetc/passwd", `..\secrets`} {
			_, err := s.Sanitize(sanitizerDomain.FilePath, input)
			assert.Equal(t, sanitizerDomain.CodePathTraversal, violationCode(t, err), input)
		}
	})

	t.Run("RelativeAnchoredAtJail", func(t *testing.T) {
		out, err := s.Sanitize(sanitizerDomain.FilePath, "notes/today.txt")
		require.NoError(t, err)
		assert.Equal(t, jailRoot+"/notes/today.txt", out)
	})

	t.Run("AbsoluteOutsideJailRejected", func(t *testing.T) {
		_, err := s.Sanitize(sanitizerDomain.FilePath, "/etc/passwd")
		assert.Equal(t, sanitizerDomain.CodePathEscape, violationCode(t, err))
	})
}

func TestSanitizer_StructuredQuery(t *testing.T) {
	s := NewSanitizer(jailRoot)

	t.Run("PlainTermsPass", func(t *testing.T) {
		out, err := s.Sanitize(sanitizerDomain.StructuredQuery, "library hours weekend")
		require.NoError(t, err)
		assert.Equal(t, "library hours weekend", out)
	})

	t.Run("MetacharactersRejected", func(t *testing.T) {
		for _, input := range []string{"term' --", "a;b", "x UNION y"} {
			_, err := s.Sanitize(sanitizerDomain.StructuredQuery, input)
			assert.Equal(t, sanitizerDomain.CodeSQLInjection, violationCode(t, err), input)
		}
	})
}

func TestSanitizer_Idempotent(t *testing.T) {
	s := NewSanitizer(jailRoot)

	cases := map[sanitizerDomain.ContentClass]string{
		sanitizerDomain.FreeText:        "  Where is  the cafeteria?\t",
		sanitizerDomain.Identifier:      " volunteer-7 ",
		sanitizerDomain.FilePath:        "handbook/clubs.md",
		sanitizerDomain.StructuredQuery: " exam schedule ",
	}

	for class, input := range cases {
		once, err := s.Sanitize(class, input)
		require.NoError(t, err, class)
		twice, err := s.Sanitize(class, once)
		require.NoError(t, err, class)
		assert.Equal(t, once, twice, class)
	}
}
