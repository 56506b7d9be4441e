package config

import (
	"time"

	"github.com/klhsieh/punchd/internal/driver"
	"github.com/klhsieh/punchd/internal/notify"
	"github.com/klhsieh/punchd/internal/punch"
	"github.com/klhsieh/punchd/internal/resilience"
	"github.com/klhsieh/punchd/internal/schedule"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig             `yaml:"server"`
	Logging     LoggingConfig            `yaml:"logging"`
	Target      TargetConfig             `yaml:"target"`
	Driver      driver.WebDriverConfig   `yaml:"driver"`
	Selectors   punch.Selectors          `yaml:"selectors"`
	Retry       resilience.Config        `yaml:"retry"`
	Breaker     resilience.BreakerConfig `yaml:"breaker"`
	Verify      punch.VerifyConfig       `yaml:"verify"`
	Screenshots punch.ScreenshotConfig   `yaml:"screenshots"`
	Schedule    schedule.Config          `yaml:"schedule"`
	Notify      NotifyConfig             `yaml:"notify"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TargetConfig identifies the punch-clock application and the account.
// Username and password are normally injected via ${ENV} references.
type TargetConfig struct {
	URL         string        `yaml:"url"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	StepTimeout time.Duration `yaml:"step_timeout"`
}

// NotifyConfig wires the notification dispatcher and its providers.
type NotifyConfig struct {
	Retry       resilience.Config `yaml:"retry"`
	MinInterval time.Duration     `yaml:"min_interval"`
	Discord     DiscordProvider   `yaml:"discord"`
	Slack       SlackProvider     `yaml:"slack"`
}

// DiscordProvider configures the Discord channel.
type DiscordProvider struct {
	Enabled bool                 `yaml:"enabled"`
	Webhook notify.DiscordConfig `yaml:",inline"`
	Policy  notify.Policy        `yaml:"policy"`
}

// SlackProvider configures the Slack channel.
type SlackProvider struct {
	Enabled bool               `yaml:"enabled"`
	Webhook notify.SlackConfig `yaml:",inline"`
	Policy  notify.Policy      `yaml:"policy"`
}
