package control

import (
	"context"
	"testing"
	"time"

	"github.com/klhsieh/punchd/internal/core/config"
)

func testConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.Server.Port = 0 // random port
	cfg.Target.URL = "https://hr.example.test"
	cfg.Target.Username = "tester"
	cfg.Target.Password = "secret"
	return cfg
}

func TestApp_Lifecycle(t *testing.T) {
	cfg := testConfig()

	app, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	if app.scheduler == nil {
		t.Fatal("scheduler should be built when the schedule is enabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Let the goroutines spin up before tearing down.
	time.Sleep(50 * time.Millisecond)

	if err := app.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestApp_SchedulerDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.Enabled = false

	app, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	if app.scheduler != nil {
		t.Fatal("scheduler must not be built when disabled")
	}

	report := app.healthMon.Report()
	if len(report.NextRuns) != 0 {
		t.Fatalf("next runs = %+v, want none without a scheduler", report.NextRuns)
	}
}

func TestApp_ProviderWiring(t *testing.T) {
	cfg := testConfig()
	cfg.Notify.Discord.Enabled = true
	cfg.Notify.Discord.Webhook.WebhookURL = "https://discord.example.test/webhook"
	cfg.Notify.Slack.Enabled = true
	cfg.Notify.Slack.Webhook.WebhookURL = "https://slack.example.test/webhook"

	app, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}

	providers := app.Providers()
	if len(providers) != 2 {
		t.Fatalf("providers = %v, want discord and slack", providers)
	}
}
