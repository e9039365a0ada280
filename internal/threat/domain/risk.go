// Package domain defines risk levels, scoring thresholds and event weights
// for threat monitoring.
package domain

import (
	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
)

// MaxScore caps a subject's risk score. Weights accumulate toward it; decay
// pulls back toward zero.
const MaxScore = 100.0

// RiskLevel classifies a subject's current risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels for comparisons.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return -1
}

// Thresholds maps score ranges to risk levels. Scores below Medium are Low.
type Thresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

// DefaultThresholds returns the fixed classification boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Medium: 30, High: 60, Critical: 85}
}

// Level maps a score to its risk level.
func (t Thresholds) Level(score float64) RiskLevel {
	switch {
	case score >= t.Critical:
		return RiskCritical
	case score >= t.High:
		return RiskHigh
	case score >= t.Medium:
		return RiskMedium
	}
	return RiskLow
}

// WeightTable assigns each event a score contribution from its severity,
// scaled by an optional per-type multiplier.
type WeightTable struct {
	BySeverity map[auditDomain.Severity]float64
	ByType     map[auditDomain.EventType]float64
}

// DefaultWeights returns the scoring table. Isolated Low events fade within
// the evaluation window; repeated Medium and High events compound.
func DefaultWeights() WeightTable {
	return WeightTable{
		BySeverity: map[auditDomain.Severity]float64{
			auditDomain.SeverityLow:      5,
			auditDomain.SeverityMedium:   15,
			auditDomain.SeverityHigh:     30,
			auditDomain.SeverityCritical: 50,
		},
		ByType: map[auditDomain.EventType]float64{
			auditDomain.SanitizationViolationEvent: 1.2,
			auditDomain.AuthenticationFailureEvent: 1.5,
		},
	}
}

// Weight returns the score contribution of one event. Unlisted types use a
// multiplier of one; unlisted severities contribute nothing.
func (w WeightTable) Weight(eventType auditDomain.EventType, severity auditDomain.Severity) float64 {
	base := w.BySeverity[severity]
	multiplier, ok := w.ByType[eventType]
	if !ok {
		multiplier = 1
	}
	return base * multiplier
}
