package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	threatDomain "github.com/aknoru/lacbot-security/internal/threat/domain"
)

type escalation struct {
	subjectKey string
	level      threatDomain.RiskLevel
	score      float64
	reason     string
}

type fakeEscalator struct {
	mu    sync.Mutex
	calls []escalation
}

func (e *fakeEscalator) Escalate(
	_ context.Context,
	subjectKey string,
	level threatDomain.RiskLevel,
	score float64,
	reason string,
) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, escalation{subjectKey, level, score, reason})
}

func (e *fakeEscalator) all() []escalation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]escalation(nil), e.calls...)
}

func newEvent(eventType auditDomain.EventType, severity auditDomain.Severity, ip string) *auditDomain.SecurityEvent {
	return &auditDomain.SecurityEvent{
		ID:        uuid.Must(uuid.NewV7()),
		Type:      eventType,
		IP:        ip,
		Severity:  severity,
		CreatedAt: time.Now().UTC(),
	}
}

func TestThresholds_Level(t *testing.T) {
	thresholds := threatDomain.DefaultThresholds()

	assert.Equal(t, threatDomain.RiskLow, thresholds.Level(0))
	assert.Equal(t, threatDomain.RiskLow, thresholds.Level(29.9))
	assert.Equal(t, threatDomain.RiskMedium, thresholds.Level(30))
	assert.Equal(t, threatDomain.RiskHigh, thresholds.Level(60))
	assert.Equal(t, threatDomain.RiskCritical, thresholds.Level(85))
	assert.Equal(t, threatDomain.RiskCritical, thresholds.Level(100))
}

func TestThreatMonitorUseCase_OnEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("RepeatedViolationsReachCritical", func(t *testing.T) {
		escalator := &fakeEscalator{}
		monitor := NewThreatMonitorUseCase(DefaultConfig(), escalator)
		defer monitor.Close()

		for range 20 {
			monitor.OnEvent(ctx, newEvent(
				auditDomain.RateLimitViolationEvent,
				auditDomain.SeverityMedium,
				"203.0.113.9",
			))
		}

		assert.Equal(t, threatDomain.RiskCritical, monitor.Classify("203.0.113.9"))
		assert.InDelta(t, threatDomain.MaxScore, monitor.Score("203.0.113.9"), 1)

		calls := escalator.all()
		require.NotEmpty(t, calls)
		last := calls[len(calls)-1]
		assert.Equal(t, "203.0.113.9", last.subjectKey)
		assert.Equal(t, threatDomain.RiskCritical, last.level)
		assert.Equal(t, "risk score threshold crossed", last.reason)
	})

	t.Run("EscalatesOnceOnCrossingNotPerEvent", func(t *testing.T) {
		escalator := &fakeEscalator{}
		monitor := NewThreatMonitorUseCase(DefaultConfig(), escalator)
		defer monitor.Close()

		for range 20 {
			monitor.OnEvent(ctx, newEvent(
				auditDomain.RateLimitViolationEvent,
				auditDomain.SeverityMedium,
				"203.0.113.9",
			))
		}

		// One directive entering High, one entering Critical.
		assert.Len(t, escalator.all(), 2)
	})

	t.Run("IsolatedLowEventFades", func(t *testing.T) {
		config := DefaultConfig()
		config.HalfLife = time.Millisecond
		monitor := NewThreatMonitorUseCase(config, nil)
		defer monitor.Close()

		monitor.OnEvent(ctx, newEvent(
			auditDomain.SanitizationViolationEvent,
			auditDomain.SeverityLow,
			"203.0.113.9",
		))

		assert.Eventually(t, func() bool {
			return monitor.Score("203.0.113.9") < 0.1
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, threatDomain.RiskLow, monitor.Classify("203.0.113.9"))
	})

	t.Run("SubjectsScoreIndependently", func(t *testing.T) {
		monitor := NewThreatMonitorUseCase(DefaultConfig(), nil)
		defer monitor.Close()

		for range 10 {
			monitor.OnEvent(ctx, newEvent(
				auditDomain.RateLimitViolationEvent,
				auditDomain.SeverityMedium,
				"203.0.113.9",
			))
		}

		assert.Equal(t, threatDomain.RiskCritical, monitor.Classify("203.0.113.9"))
		assert.Equal(t, threatDomain.RiskLow, monitor.Classify("198.51.100.7"))
	})

	t.Run("PrincipalEventsKeyedByPrincipal", func(t *testing.T) {
		monitor := NewThreatMonitorUseCase(DefaultConfig(), nil)
		defer monitor.Close()

		principalID := uuid.Must(uuid.NewV7())
		event := newEvent(auditDomain.AuthorizationViolationEvent, auditDomain.SeverityHigh, "203.0.113.9")
		event.PrincipalID = &principalID
		monitor.OnEvent(ctx, event)

		assert.Greater(t, monitor.Score(principalID.String()), 0.0)
		assert.Zero(t, monitor.Score("203.0.113.9"))
	})
}

func TestThreatMonitorUseCase_BruteForce(t *testing.T) {
	ctx := context.Background()

	t.Run("RepeatedFailuresEscalateImmediately", func(t *testing.T) {
		escalator := &fakeEscalator{}
		monitor := NewThreatMonitorUseCase(DefaultConfig(), escalator)
		defer monitor.Close()

		for range 5 {
			monitor.OnEvent(ctx, newEvent(
				auditDomain.AuthenticationFailureEvent,
				auditDomain.SeverityLow,
				"203.0.113.9",
			))
		}

		calls := escalator.all()
		require.Len(t, calls, 1)
		assert.Equal(t, "203.0.113.9", calls[0].subjectKey)
		assert.GreaterOrEqual(t, calls[0].level.Rank(), threatDomain.RiskHigh.Rank())
		assert.Equal(t, "repeated authentication failures", calls[0].reason)
	})

	t.Run("FewFailuresStayQuiet", func(t *testing.T) {
		escalator := &fakeEscalator{}
		monitor := NewThreatMonitorUseCase(DefaultConfig(), escalator)
		defer monitor.Close()

		for range 4 {
			monitor.OnEvent(ctx, newEvent(
				auditDomain.AuthenticationFailureEvent,
				auditDomain.SeverityLow,
				"203.0.113.9",
			))
		}

		assert.Empty(t, escalator.all())
	})
}

func TestThreatMonitorUseCase_OverallScore(t *testing.T) {
	ctx := context.Background()

	monitor := NewThreatMonitorUseCase(DefaultConfig(), nil)
	defer monitor.Close()

	assert.Zero(t, monitor.OverallScore())

	monitor.OnEvent(ctx, newEvent(auditDomain.RateLimitViolationEvent, auditDomain.SeverityMedium, "203.0.113.9"))
	monitor.OnEvent(ctx, newEvent(auditDomain.SanitizationViolationEvent, auditDomain.SeverityHigh, "198.51.100.7"))

	overall := monitor.OverallScore()
	assert.InDelta(t, monitor.Score("198.51.100.7"), overall, 0.5)
	assert.Greater(t, overall, monitor.Score("203.0.113.9")-0.5)
}
