// Package notify fans punch outcomes out to external channels. Providers
// are dumb transports; the dispatcher owns policy, retry and pacing.
package notify

import (
	"fmt"
	"time"

	"github.com/klhsieh/punchd/internal/core/domain"
)

// Level classifies a message for provider policies and channel styling.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Field is one ordered key/value detail line.
type Field struct {
	Key   string
	Value string
}

// Message is a provider-agnostic notification. It is built fresh per event
// and never mutated after dispatch.
type Message struct {
	Title       string
	Body        string
	Level       Level
	Timestamp   time.Time
	Details     []Field
	Attachments []string
}

// FromOutcome builds the notification for a finished run. Simulated passes
// are informational; a real success celebrates, everything else alarms.
func FromOutcome(o domain.Outcome) Message {
	var level Level
	var title string
	switch {
	case o.Success && o.Simulation:
		level = LevelInfo
		title = fmt.Sprintf("Simulated %s", o.Action.Label())
	case o.Success:
		level = LevelSuccess
		title = fmt.Sprintf("%s recorded", o.Action.Label())
	default:
		level = LevelError
		title = fmt.Sprintf("%s failed", o.Action.Label())
	}

	details := []Field{
		{Key: "Action", Value: o.Action.Label()},
		{Key: "Result", Value: o.Result()},
		{Key: "Time", Value: o.Timestamp.Format(time.RFC3339)},
		{Key: "Run", Value: o.RunID},
	}
	if o.ServerSignal != "" {
		details = append(details, Field{Key: "Server signal", Value: o.ServerSignal})
	}
	if o.FailedStep != "" {
		details = append(details, Field{Key: "Failed step", Value: o.FailedStep})
	}

	return Message{
		Title:       title,
		Body:        o.Message,
		Level:       level,
		Timestamp:   o.Timestamp,
		Details:     details,
		Attachments: o.Screenshots,
	}
}

// Event builds a free-form notification for non-run events such as startup,
// shutdown and heartbeats.
func Event(level Level, title, body string, details ...Field) Message {
	return Message{
		Title:     title,
		Body:      body,
		Level:     level,
		Timestamp: time.Now(),
		Details:   details,
	}
}
