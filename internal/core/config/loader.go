package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/klhsieh/punchd/internal/notify"
	"github.com/klhsieh/punchd/internal/punch"
	"github.com/klhsieh/punchd/internal/resilience"
	"github.com/klhsieh/punchd/internal/schedule"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if cfg.Target.URL == "" {
		return nil, fmt.Errorf("target.url is required")
	}
	return &cfg, nil
}

// Default builds a configuration without reading any file, for commands that
// can run on defaults plus environment credentials.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Target.Username == "" {
		cfg.Target.Username = os.Getenv("PUNCHD_USERNAME")
	}
	if cfg.Target.Password == "" {
		cfg.Target.Password = os.Getenv("PUNCHD_PASSWORD")
	}
	if cfg.Target.StepTimeout <= 0 {
		cfg.Target.StepTimeout = 15 * time.Second
	}

	if cfg.Driver.Endpoint == "" {
		cfg.Driver.Endpoint = "http://127.0.0.1:9515"
	}
	if cfg.Driver.Timeout <= 0 {
		cfg.Driver.Timeout = 30 * time.Second
	}

	empty := punch.Selectors{}
	if cfg.Selectors == empty {
		cfg.Selectors = punch.DefaultSelectors()
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultConfig
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.RecoveryTimeout <= 0 {
		cfg.Breaker.RecoveryTimeout = time.Minute
	}

	if !cfg.Schedule.Enabled && cfg.Schedule.EnterAt == "" && cfg.Schedule.ExitAt == "" {
		cfg.Schedule = schedule.DefaultConfig()
	}
	if cfg.Schedule.MisfireGrace <= 0 {
		cfg.Schedule.MisfireGrace = 30 * time.Second
	}
	// Zero means unset; a negative value disables the heartbeat trigger.
	if cfg.Schedule.Heartbeat == 0 {
		cfg.Schedule.Heartbeat = time.Hour
	}

	if cfg.Screenshots.Dir == "" {
		cfg.Screenshots.Dir = "screenshots"
	}

	if cfg.Notify.Retry.MaxAttempts == 0 {
		cfg.Notify.Retry = resilience.Config{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
			BackoffBase: 2,
			Jitter:      true,
		}
	}
	if cfg.Notify.MinInterval <= 0 {
		cfg.Notify.MinInterval = time.Second
	}

	zeroPolicy := notify.Policy{}
	if cfg.Notify.Discord.Policy == zeroPolicy {
		cfg.Notify.Discord.Policy = notify.DefaultPolicy()
	}
	if cfg.Notify.Slack.Policy == zeroPolicy {
		cfg.Notify.Slack.Policy = notify.DefaultPolicy()
	}
}
