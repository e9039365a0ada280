package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	threatDomain "github.com/aknoru/lacbot-security/internal/threat/domain"
)

const sweepInterval = time.Minute

// negligibleScore is the floor below which an idle subject's state is dropped;
// recreating it from zero is equivalent.
const negligibleScore = 0.5

// subjectState is one subject's mutable scoring state. Each subject locks
// independently so contention on one never blocks another.
type subjectState struct {
	mu           sync.Mutex
	score        float64
	level        threatDomain.RiskLevel
	updatedAt    time.Time
	authFailures []time.Time
}

type threatMonitorUseCase struct {
	config    Config
	escalator Escalator

	subjects sync.Map // subjectKey -> *subjectState

	done chan struct{}
	wg   sync.WaitGroup
}

// NewThreatMonitorUseCase creates the monitor and starts its stale subject
// janitor. Callers must Close() it on shutdown.
func NewThreatMonitorUseCase(config Config, escalator Escalator) ThreatMonitorUseCase {
	u := &threatMonitorUseCase{
		config:    config,
		escalator: escalator,
		done:      make(chan struct{}),
	}

	u.wg.Add(1)
	go u.janitor()

	return u
}

func (u *threatMonitorUseCase) OnEvent(ctx context.Context, event *auditDomain.SecurityEvent) {
	subjectKey := event.SubjectKey()
	if subjectKey == "" {
		return
	}

	state := u.state(subjectKey)
	now := time.Now()

	state.mu.Lock()
	u.decayLocked(state, now)

	state.score += u.config.Weights.Weight(event.Type, event.Severity)
	if state.score > threatDomain.MaxScore {
		state.score = threatDomain.MaxScore
	}

	previous := state.level
	state.level = u.config.Thresholds.Level(state.score)

	escalated := state.level.Rank() > previous.Rank() &&
		state.level.Rank() >= threatDomain.RiskHigh.Rank()
	level, score := state.level, state.score

	bruteForce := false
	if event.Type == auditDomain.AuthenticationFailureEvent {
		bruteForce = u.trackAuthFailureLocked(state, now)
		if bruteForce && level.Rank() < threatDomain.RiskHigh.Rank() {
			level = threatDomain.RiskHigh
			state.level = level
		}
	}
	state.mu.Unlock()

	// The escalator runs outside the subject lock; it may block on I/O.
	if (escalated || bruteForce) && u.escalator != nil {
		reason := "risk score threshold crossed"
		if bruteForce {
			reason = "repeated authentication failures"
		}
		u.escalator.Escalate(ctx, subjectKey, level, score, reason)
	}
}

// trackAuthFailureLocked records a failed authentication and reports whether
// the subject just hit the brute force threshold.
func (u *threatMonitorUseCase) trackAuthFailureLocked(state *subjectState, now time.Time) bool {
	cutoff := now.Add(-u.config.BruteForceWindow)
	kept := state.authFailures[:0]
	for _, at := range state.authFailures {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	state.authFailures = append(kept, now)

	return len(state.authFailures) == u.config.BruteForceThreshold
}

func (u *threatMonitorUseCase) Classify(subjectKey string) threatDomain.RiskLevel {
	return u.config.Thresholds.Level(u.Score(subjectKey))
}

func (u *threatMonitorUseCase) Score(subjectKey string) float64 {
	value, ok := u.subjects.Load(subjectKey)
	if !ok {
		return 0
	}

	state := value.(*subjectState)
	state.mu.Lock()
	defer state.mu.Unlock()

	return u.decayed(state.score, state.updatedAt, time.Now())
}

func (u *threatMonitorUseCase) OverallScore() float64 {
	now := time.Now()
	highest := 0.0
	u.subjects.Range(func(_, value any) bool {
		state := value.(*subjectState)
		state.mu.Lock()
		score := u.decayed(state.score, state.updatedAt, now)
		state.mu.Unlock()
		if score > highest {
			highest = score
		}
		return true
	})
	return highest
}

func (u *threatMonitorUseCase) Close() {
	close(u.done)
	u.wg.Wait()
}

func (u *threatMonitorUseCase) state(subjectKey string) *subjectState {
	if value, ok := u.subjects.Load(subjectKey); ok {
		return value.(*subjectState)
	}
	created := &subjectState{level: threatDomain.RiskLow, updatedAt: time.Now()}
	actual, _ := u.subjects.LoadOrStore(subjectKey, created)
	return actual.(*subjectState)
}

// decayLocked folds elapsed time into the stored score. Caller holds state.mu.
func (u *threatMonitorUseCase) decayLocked(state *subjectState, now time.Time) {
	state.score = u.decayed(state.score, state.updatedAt, now)
	state.updatedAt = now
}

// decayed applies exponential half-life decay to a score over the elapsed
// interval.
func (u *threatMonitorUseCase) decayed(score float64, since, now time.Time) float64 {
	if u.config.HalfLife <= 0 {
		return score
	}
	elapsed := now.Sub(since)
	if elapsed <= 0 {
		return score
	}
	return score * math.Exp2(-float64(elapsed)/float64(u.config.HalfLife))
}

// janitor drops subjects whose score has decayed to noise and that carry no
// recent authentication failures.
func (u *threatMonitorUseCase) janitor() {
	defer u.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-u.done:
			return
		case now := <-ticker.C:
			cutoff := now.Add(-u.config.BruteForceWindow)
			u.subjects.Range(func(key, value any) bool {
				state := value.(*subjectState)
				state.mu.Lock()
				stale := u.decayed(state.score, state.updatedAt, now) < negligibleScore
				for _, at := range state.authFailures {
					if at.After(cutoff) {
						stale = false
						break
					}
				}
				state.mu.Unlock()
				if stale {
					u.subjects.Delete(key)
				}
				return true
			})
		}
	}
}
