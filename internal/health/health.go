// Package health provides system health monitoring and status reporting.
package health

import (
	"time"

	"github.com/klhsieh/punchd/internal/core/domain"
	"github.com/klhsieh/punchd/internal/schedule"
)

// SystemStatus represents the overall health state of the agent.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// RunSummary is the digest of one finished run, kept for status surfaces.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Action     string    `json:"action"`
	Result     string    `json:"result"`
	Message    string    `json:"message"`
	FailedStep string    `json:"failed_step,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func summarize(o domain.Outcome) RunSummary {
	return RunSummary{
		RunID:      o.RunID,
		Action:     o.Action.Label(),
		Result:     o.Result(),
		Message:    o.Message,
		FailedStep: o.FailedStep,
		Timestamp:  o.Timestamp,
	}
}

// Report is the full health report served by /health/detailed.
type Report struct {
	SystemStatus        SystemStatus          `json:"system_status"`
	BreakerState        string                `json:"breaker_state"`
	ConsecutiveFailures int                   `json:"consecutive_failures"`
	UptimeSeconds       int64                 `json:"uptime_seconds"`
	NextRuns            []schedule.PlannedRun `json:"next_runs,omitempty"`
	LastRun             *RunSummary           `json:"last_run,omitempty"`
}
