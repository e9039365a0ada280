package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertMetricLine checks that the Prometheus output contains a metric matching the
// given name, partial label pattern, and value. Uses regex to handle extra OTel
// scope labels injected by the Prometheus exporter.
func assertMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func TestNewSecurityMetrics(t *testing.T) {
	t.Run("Success_CreateSecurityMetrics", func(t *testing.T) {
		provider, err := NewProvider("test_security")
		require.NoError(t, err)

		securityMetrics, err := NewSecurityMetrics(provider.MeterProvider(), "test_security")

		require.NoError(t, err)
		assert.NotNil(t, securityMetrics)
	})
}

func TestSecurityMetrics_RecordDecision(t *testing.T) {
	provider, err := NewProvider("test_security")
	require.NoError(t, err)

	sm, err := NewSecurityMetrics(provider.MeterProvider(), "test_security")
	require.NoError(t, err)

	t.Run("Success_RecordDecisions", func(t *testing.T) {
		sm.RecordDecision(context.Background(), "ratelimit", "try_acquire", "allow")
		sm.RecordDecision(context.Background(), "ratelimit", "try_acquire", "deny")
		sm.RecordDecision(context.Background(), "access", "authorize", "permit")
	})

	t.Run("Success_ExposedViaHandler", func(t *testing.T) {
		sm.RecordDecision(context.Background(), "sanitizer", "sanitize", "violation")

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		provider.Handler().ServeHTTP(recorder, request)

		require.Equal(t, http.StatusOK, recorder.Code)
		output := recorder.Body.String()
		assertMetricLine(t, output,
			"test_security_decisions_total",
			`component="sanitizer",operation="sanitize",outcome="violation"`,
			"1",
		)
	})
}

func TestSecurityMetrics_RecordViolation(t *testing.T) {
	provider, err := NewProvider("test_security")
	require.NoError(t, err)

	sm, err := NewSecurityMetrics(provider.MeterProvider(), "test_security")
	require.NoError(t, err)

	sm.RecordViolation(context.Background(), "rate_limit_violation", "medium")
	sm.RecordViolation(context.Background(), "sanitization_violation", "high")

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	provider.Handler().ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	output := recorder.Body.String()
	assertMetricLine(t, output,
		"test_security_violations_total",
		`severity="medium",type="rate_limit_violation"`,
		"1",
	)
}

func TestSecurityMetrics_RecordDuration(t *testing.T) {
	provider, err := NewProvider("test_security")
	require.NoError(t, err)

	sm, err := NewSecurityMetrics(provider.MeterProvider(), "test_security")
	require.NoError(t, err)

	// Should not panic
	sm.RecordDuration(context.Background(), "audit", "append", 25*time.Millisecond, "success")
	sm.RecordDuration(context.Background(), "audit", "append", 2*time.Second, "timeout")
}

func TestNoOpSecurityMetrics(t *testing.T) {
	sm := NewNoOpSecurityMetrics()

	// All calls are no-ops and must not panic
	sm.RecordDecision(context.Background(), "access", "authorize", "deny")
	sm.RecordViolation(context.Background(), "authorization_violation", "medium")
	sm.RecordDuration(context.Background(), "crypto", "encrypt", time.Millisecond, "success")
}
