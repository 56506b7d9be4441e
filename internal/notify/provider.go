package notify

import (
	"context"
	"time"
)

// Provider delivers a message over one concrete channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Policy decides which levels a provider wants to hear about.
type Policy struct {
	OnSuccess bool `yaml:"on_success"`
	OnWarning bool `yaml:"on_warning"`
	OnError   bool `yaml:"on_error"`
	OnInfo    bool `yaml:"on_info"`
}

// DefaultPolicy notifies on everything except informational chatter.
func DefaultPolicy() Policy {
	return Policy{OnSuccess: true, OnWarning: true, OnError: true}
}

func (p Policy) Allows(level Level) bool {
	switch level {
	case LevelSuccess:
		return p.OnSuccess
	case LevelWarning:
		return p.OnWarning
	case LevelError:
		return p.OnError
	case LevelInfo:
		return p.OnInfo
	default:
		return false
	}
}

// ProviderResult reports one delivery attempt chain.
type ProviderResult struct {
	Provider string
	// Delivered is true when the provider accepted the message. Skipped is
	// true when the policy filtered it before any attempt.
	Delivered bool
	Skipped   bool
	Err       error
	Elapsed   time.Duration
}
