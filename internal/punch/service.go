package punch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/klhsieh/punchd/internal/core/domain"
	"github.com/klhsieh/punchd/internal/driver"
	"github.com/klhsieh/punchd/internal/metrics"
	"github.com/klhsieh/punchd/internal/resilience"
)

// Steps of the punch flow, reported in Outcome.FailedStep.
const (
	StepSession      = "session"
	StepAuthenticate = "authenticate"
	StepNavigate     = "navigate"
	StepCheckState   = "check-state"
	StepExecute      = "execute"
	StepVerify       = "verify"
	StepBreaker      = "breaker"
)

// SessionFactory opens a fresh browser session for one run.
type SessionFactory func(ctx context.Context) (driver.Session, error)

// Config carries everything a Service needs to drive the target application.
type Config struct {
	BaseURL     string
	Credentials domain.Credentials
	Selectors   Selectors
	StepTimeout time.Duration
	Retry       resilience.Config
	Verify      VerifyConfig
	Screenshots ScreenshotConfig
}

// RunRequest describes one requested punch.
type RunRequest struct {
	Action domain.Action
	// Real asks for an actual button click; false runs the flow up to the
	// click and stops.
	Real bool
	// Confirmed marks the request as pre-authorized (scheduler, explicit
	// CLI flag). When false and Real is true, the confirmation gate decides.
	Confirmed bool
	// Interactive reports whether an operator is present to answer the gate.
	Interactive bool
}

// Service runs the punch flow end to end. Every run opens its own session,
// walks the steps in order, and always produces an Outcome; errors along the
// way are folded into it rather than returned.
type Service struct {
	cfg      Config
	sessions SessionFactory
	gate     *Gate
	breaker  *resilience.Breaker
	log      *slog.Logger
}

func NewService(cfg Config, sessions SessionFactory, gate *Gate, breaker *resilience.Breaker, log *slog.Logger) *Service {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 15 * time.Second
	}
	return &Service{cfg: cfg, sessions: sessions, gate: gate, breaker: breaker, log: log}
}

// Run executes one punch flow. The circuit breaker guards the whole run:
// while open, runs are skipped outright. Only infrastructure failures
// (session, login, navigation, page reads, the click itself) count against
// the breaker; business outcomes like an unavailable button or an
// inconclusive verification do not.
func (s *Service) Run(ctx context.Context, req RunRequest) domain.Outcome {
	runID := uuid.New().String()
	log := s.log.With("run_id", runID, "action", req.Action.Label())

	if s.breaker != nil && !s.breaker.CanExecute() {
		log.Warn("Circuit breaker open, skipping run")
		outcome := domain.Outcome{
			RunID:      runID,
			Action:     req.Action,
			Timestamp:  time.Now(),
			Message:    "circuit breaker open, run skipped",
			Simulation: !req.Real,
			FailedStep: StepBreaker,
		}
		metrics.RunsTotal.WithLabelValues(string(req.Action), outcome.Result()).Inc()
		return outcome
	}

	log.Info("Run starting", "real", req.Real, "confirmed", req.Confirmed)
	outcome, infraErr := s.run(ctx, log, runID, req)

	if s.breaker != nil {
		if infraErr != nil {
			s.breaker.RecordFailure(infraErr)
		} else {
			// The infrastructure held up end to end; business outcomes such
			// as an unavailable button still count as a healthy probe.
			s.breaker.RecordSuccess()
		}
	}

	metrics.RunsTotal.WithLabelValues(string(req.Action), outcome.Result()).Inc()
	log.Info("Run finished", "result", outcome.Result(), "message", outcome.Message)
	return outcome
}

// run walks the punch steps and returns the outcome plus the infrastructure
// error that caused it, if any. Results are named so the deferred screenshot
// attachment lands on the value actually returned.
func (s *Service) run(ctx context.Context, log *slog.Logger, runID string, req RunRequest) (outcome domain.Outcome, infraErr error) {
	outcome = domain.Outcome{
		RunID:     runID,
		Action:    req.Action,
		Timestamp: time.Now(),
	}
	fail := func(step string, err error) (domain.Outcome, error) {
		outcome.Success = false
		outcome.Simulation = !req.Real
		outcome.FailedStep = step
		outcome.Message = fmt.Sprintf("%s failed: %v", step, err)
		log.Error("Run step failed", "step", step, "error", err)
		return outcome, err
	}

	var sess driver.Session
	err := resilience.Do(ctx, StepSession, s.cfg.Retry, func(ctx context.Context) error {
		var serr error
		sess, serr = s.sessions(ctx)
		return serr
	})
	if err != nil {
		return fail(StepSession, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := sess.Close(closeCtx); cerr != nil {
			log.Warn("Session close failed", "error", cerr)
		}
	}()

	evidence := newShots(sess, s.cfg.Screenshots, log)
	defer func() { outcome.Screenshots = evidence.paths }()

	auth := newAuthenticator(sess, s.cfg.Selectors, s.cfg.BaseURL, s.cfg.StepTimeout, log)
	err = resilience.Do(ctx, StepAuthenticate, s.cfg.Retry, func(ctx context.Context) error {
		return auth.Login(ctx, s.cfg.Credentials)
	})
	if err != nil {
		evidence.capture(ctx, "login_failed")
		return fail(StepAuthenticate, err)
	}
	evidence.capture(ctx, "logged_in")

	nav := newNavigator(sess, s.cfg.Selectors, s.cfg.StepTimeout, log)
	err = resilience.Do(ctx, StepNavigate, s.cfg.Retry, func(ctx context.Context) error {
		return nav.ToPunchPage(ctx)
	})
	if err != nil {
		evidence.capture(ctx, "navigate_failed")
		return fail(StepNavigate, err)
	}
	evidence.capture(ctx, "punch_page")

	check := newChecker(sess, s.cfg.Selectors, log)
	var status domain.PageStatus
	err = resilience.Do(ctx, StepCheckState, s.cfg.Retry, func(ctx context.Context) error {
		var cerr error
		status, cerr = check.Check(ctx)
		return cerr
	})
	if err != nil {
		return fail(StepCheckState, err)
	}
	log.Info("Page state read",
		"page_loaded", status.PageLoaded,
		"enter_available", status.EnterAvailable,
		"exit_available", status.ExitAvailable,
		"server_time", status.CurrentTime)

	if !status.Available(req.Action) {
		evidence.capture(ctx, "unavailable")
		outcome.Success = false
		outcome.Simulation = !req.Real
		outcome.Message = "action unavailable"
		return outcome, nil
	}

	performReal := req.Real
	if performReal && !req.Confirmed {
		authorized, gerr := s.gate.Authorize(ctx, req.Action, req.Interactive)
		if errors.Is(gerr, domain.ErrUserCancelled) {
			evidence.capture(ctx, "cancelled")
			outcome.Success = true
			outcome.Simulation = true
			outcome.Message = fmt.Sprintf("run aborted by operator before the real %s", req.Action.Label())
			return outcome, nil
		}
		if gerr != nil {
			log.Warn("Confirmation unavailable, downgrading to simulation", "error", gerr)
			authorized = false
		}
		performReal = authorized
	}

	if !performReal {
		evidence.capture(ctx, "simulated")
		outcome.Success = true
		outcome.Simulation = true
		if req.Real {
			outcome.Message = fmt.Sprintf("confirmation denied, %s simulated", req.Action.Label())
		} else {
			outcome.Message = fmt.Sprintf("simulated %s, button available", req.Action.Label())
		}
		return outcome, nil
	}

	exec := newExecutor(sess, s.cfg.Selectors, s.cfg.StepTimeout, log)
	if err := exec.Click(ctx, req.Action); err != nil {
		evidence.capture(ctx, "click_failed")
		return fail(StepExecute, err)
	}
	evidence.capture(ctx, "clicked")

	verify := newVerifier(sess, check, s.cfg.Verify, log)
	verdict := verify.Verify(ctx, req.Action, status)
	evidence.capture(ctx, "verified")

	outcome.Success = verdict.Success
	outcome.Message = verdict.Message
	outcome.ServerSignal = verdict.Signal
	if !verdict.Success {
		outcome.FailedStep = StepVerify
	}
	return outcome, nil
}
