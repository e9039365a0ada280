// Package usecase implements rolling risk scoring over the security event
// stream.
package usecase

import (
	"context"
	"time"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	threatDomain "github.com/aknoru/lacbot-security/internal/threat/domain"
)

// Escalator receives the directive emitted when a subject crosses into High
// or Critical risk. The monitor only emits directives; blocking, deny
// overrides and the audit record of the escalation are the escalator's job,
// wired at composition time.
type Escalator interface {
	Escalate(ctx context.Context, subjectKey string, level threatDomain.RiskLevel, score float64, reason string)
}

// Config tunes the scoring model.
type Config struct {
	// HalfLife is the time for an untouched score to decay by half.
	HalfLife time.Duration

	Thresholds threatDomain.Thresholds
	Weights    threatDomain.WeightTable

	// BruteForceThreshold failed authentications from one subject within
	// BruteForceWindow escalate immediately regardless of score.
	BruteForceThreshold int
	BruteForceWindow    time.Duration
}

// DefaultConfig returns the scoring configuration used in production.
func DefaultConfig() Config {
	return Config{
		HalfLife:            5 * time.Minute,
		Thresholds:          threatDomain.DefaultThresholds(),
		Weights:             threatDomain.DefaultWeights(),
		BruteForceThreshold: 5,
		BruteForceWindow:    15 * time.Minute,
	}
}

// ThreatMonitorUseCase consumes security events and classifies subjects.
type ThreatMonitorUseCase interface {
	// OnEvent folds one event into its subject's rolling score and fires
	// the escalator when the subject crosses into High or Critical.
	OnEvent(ctx context.Context, event *auditDomain.SecurityEvent)

	// Classify returns the subject's risk level at this instant. Unknown
	// subjects are Low.
	Classify(subjectKey string) threatDomain.RiskLevel

	// Score returns the subject's decayed score at this instant.
	Score(subjectKey string) float64

	// OverallScore returns the highest current subject score, the posture
	// figure surfaced on the security status summary.
	OverallScore() float64

	// Close stops the stale subject janitor.
	Close()
}
