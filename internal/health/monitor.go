package health

import (
	"sync"
	"time"

	"github.com/klhsieh/punchd/internal/core/domain"
	"github.com/klhsieh/punchd/internal/resilience"
	"github.com/klhsieh/punchd/internal/schedule"
)

// Monitor aggregates health status from the agent's components.
type Monitor struct {
	breaker  *resilience.Breaker
	nextRuns func() []schedule.PlannedRun
	started  time.Time

	mu           sync.RWMutex
	last         *RunSummary
	consecFailed int
}

// NewMonitor creates a new health monitor. nextRuns may be nil when the
// scheduler is disabled.
func NewMonitor(breaker *resilience.Breaker, nextRuns func() []schedule.PlannedRun) *Monitor {
	return &Monitor{
		breaker:  breaker,
		nextRuns: nextRuns,
		started:  time.Now(),
	}
}

// RecordOutcome folds a finished run into the health state.
func (m *Monitor) RecordOutcome(o domain.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := summarize(o)
	m.last = &summary
	if o.Success {
		m.consecFailed = 0
	} else {
		m.consecFailed++
	}
}

// Report builds the current health report. An open breaker is critical; a
// half-open breaker or any recent failure streak degrades.
func (m *Monitor) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := Report{
		SystemStatus:        StatusHealthy,
		ConsecutiveFailures: m.consecFailed,
		UptimeSeconds:       int64(time.Since(m.started).Seconds()),
		LastRun:             m.last,
	}

	if m.breaker != nil {
		state := m.breaker.State()
		report.BreakerState = state.String()
		switch state {
		case resilience.StateOpen:
			report.SystemStatus = StatusCritical
		case resilience.StateHalfOpen:
			report.SystemStatus = StatusDegraded
		}
	}
	if report.SystemStatus == StatusHealthy && m.consecFailed > 0 {
		report.SystemStatus = StatusDegraded
	}

	if m.nextRuns != nil {
		report.NextRuns = m.nextRuns()
	}
	return report
}
