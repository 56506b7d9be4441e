// Package control assembles the application: every component is constructed
// explicitly here and handed its dependencies, nothing reaches for globals.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/klhsieh/punchd/internal/core/config"
	"github.com/klhsieh/punchd/internal/core/domain"
	"github.com/klhsieh/punchd/internal/driver"
	"github.com/klhsieh/punchd/internal/health"
	"github.com/klhsieh/punchd/internal/notify"
	"github.com/klhsieh/punchd/internal/punch"
	"github.com/klhsieh/punchd/internal/resilience"
	"github.com/klhsieh/punchd/internal/schedule"
)

// App is the composition root. It owns the punch service, the scheduler, the
// notification dispatcher and the health surface for one process.
type App struct {
	cfg          *config.AppConfig
	service      *punch.Service
	scheduler    *schedule.Scheduler
	dispatcher   *notify.Dispatcher
	breaker      *resilience.Breaker
	healthMon    *health.Monitor
	healthServer *health.Server
	log          *slog.Logger
}

// NewApp wires all components from the loaded configuration.
func NewApp(cfg *config.AppConfig) (*App, error) {
	log := slog.Default()

	breaker := resilience.NewBreaker(cfg.Breaker)

	// Each run opens its own browser session and tears it down afterwards.
	sessions := func(ctx context.Context) (driver.Session, error) {
		wd := driver.NewWebDriver(cfg.Driver)
		if err := wd.Start(ctx); err != nil {
			return nil, fmt.Errorf("start browser session: %w", err)
		}
		return wd, nil
	}

	gate := punch.NewGate(punch.NewStdinPrompter(), log)
	service := punch.NewService(punch.Config{
		BaseURL: cfg.Target.URL,
		Credentials: domain.Credentials{
			Username: cfg.Target.Username,
			Password: cfg.Target.Password,
		},
		Selectors:   cfg.Selectors,
		StepTimeout: cfg.Target.StepTimeout,
		Retry:       cfg.Retry,
		Verify:      cfg.Verify,
		Screenshots: cfg.Screenshots,
	}, sessions, gate, breaker, log)

	dispatcher := notify.NewDispatcher(cfg.Notify.Retry, log)
	if cfg.Notify.Discord.Enabled {
		dispatcher.Add(notify.NewDiscord(cfg.Notify.Discord.Webhook, log),
			cfg.Notify.Discord.Policy, cfg.Notify.MinInterval)
	}
	if cfg.Notify.Slack.Enabled {
		dispatcher.Add(notify.NewSlack(cfg.Notify.Slack.Webhook),
			cfg.Notify.Slack.Policy, cfg.Notify.MinInterval)
	}

	app := &App{
		cfg:        cfg,
		service:    service,
		dispatcher: dispatcher,
		breaker:    breaker,
		log:        log,
	}

	if cfg.Schedule.Enabled {
		scheduler, err := schedule.New(cfg.Schedule, scheduledRunner{app}, log)
		if err != nil {
			return nil, fmt.Errorf("build scheduler: %w", err)
		}
		scheduler.OnOutcome = func(jobName string, outcome domain.Outcome) {
			app.afterRun(outcome)
		}
		scheduler.OnHeartbeat = func(next []schedule.PlannedRun) {
			app.heartbeat(next)
		}
		app.scheduler = scheduler
	}

	var nextRuns func() []schedule.PlannedRun
	if app.scheduler != nil {
		nextRuns = app.scheduler.NextRuns
	}
	app.healthMon = health.NewMonitor(breaker, nextRuns)
	app.healthServer = health.NewServer(app.healthMon, cfg.Server.Port)

	return app, nil
}

// scheduledRunner adapts the punch service to the scheduler. Scheduled runs
// are real and pre-confirmed: automated firing is the intent the operator
// expressed by enabling the schedule.
type scheduledRunner struct {
	app *App
}

func (r scheduledRunner) Run(ctx context.Context, action domain.Action) domain.Outcome {
	return r.app.service.Run(ctx, punch.RunRequest{
		Action:    action,
		Real:      true,
		Confirmed: true,
	})
}

// Start brings up the health server and the scheduler.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil && err != http.ErrServerClosed {
			a.log.Error("Health server failed", "error", err)
		}
	}()
	a.log.Info("Health server listening", "port", a.cfg.Server.Port)

	if a.scheduler != nil {
		if err := a.scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.dispatcher.Dispatch(ctx, a.startupMessage())
	}
	return nil
}

// Stop shuts the scheduler and health server down. An in-flight run finishes
// on its own timeout.
func (a *App) Stop(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.dispatcher.Dispatch(ctx, notify.Event(notify.LevelInfo, "punchd stopping", "scheduler halted"))
	}
	return a.healthServer.Stop(ctx)
}

// RunOnce executes a single punch flow outside the scheduler, for one-shot
// CLI invocations.
func (a *App) RunOnce(ctx context.Context, req punch.RunRequest) domain.Outcome {
	outcome := a.service.Run(ctx, req)
	a.afterRun(outcome)
	return outcome
}

// TestNotify pushes a probe message through every configured provider.
func (a *App) TestNotify(ctx context.Context) []notify.ProviderResult {
	msg := notify.Event(notify.LevelInfo, "punchd notification test",
		"If you can read this, the channel works.")
	return a.dispatcher.Dispatch(ctx, msg)
}

// Providers reports the configured notification channels.
func (a *App) Providers() []string {
	return a.dispatcher.Providers()
}

func (a *App) afterRun(outcome domain.Outcome) {
	a.healthMon.RecordOutcome(outcome)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.dispatcher.Dispatch(ctx, notify.FromOutcome(outcome))
}

func (a *App) heartbeat(next []schedule.PlannedRun) {
	details := make([]notify.Field, 0, len(next))
	for _, run := range next {
		details = append(details, notify.Field{Key: run.Job, Value: run.At.Format(time.RFC3339)})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.dispatcher.Dispatch(ctx, notify.Event(notify.LevelInfo, "punchd heartbeat", "scheduler alive", details...))
}

func (a *App) startupMessage() notify.Message {
	details := []notify.Field{}
	for _, run := range a.scheduler.NextRuns() {
		details = append(details, notify.Field{Key: run.Job, Value: run.At.Format(time.RFC3339)})
	}
	return notify.Event(notify.LevelInfo, "punchd started", "scheduler armed", details...)
}
