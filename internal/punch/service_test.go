package punch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/klhsieh/punchd/internal/core/domain"
	"github.com/klhsieh/punchd/internal/driver"
	"github.com/klhsieh/punchd/internal/resilience"
)

//////////////////////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////////////////////

// readyPage builds a fake session where login and navigation succeed and the
// button for the given action is available.
func readyPage(action domain.Action) *fakeSession {
	sel := DefaultSelectors()
	sess := newFakeSession()
	sess.show(sel.UsernameInput, "")
	sess.show(sel.PasswordInput, "")
	sess.show(sel.LoginButton, "")
	sess.show(sel.HomePanel, "")
	sess.show(sel.PunchMenuItem, "")
	sess.show(sel.PunchPanel, "Punch")
	sess.show(sel.GPSFrame, "")
	if action == domain.ActionEnter {
		sess.show(sel.EnterButton, "")
		sess.hide(sel.ExitButton)
	} else {
		sess.show(sel.ExitButton, "")
		sess.hide(sel.EnterButton)
	}
	return sess
}

func testServiceConfig() Config {
	return Config{
		BaseURL:     "https://hr.example.test/login",
		Credentials: domain.Credentials{Username: "tester", Password: "secret"},
		Selectors:   DefaultSelectors(),
		StepTimeout: 50 * time.Millisecond,
		Retry: resilience.Config{
			MaxAttempts: 1,
			BaseDelay:   time.Millisecond,
			MaxDelay:    time.Millisecond,
			BackoffBase: 2,
		},
		Verify:      fastVerifyConfig(),
		Screenshots: ScreenshotConfig{Enabled: true, Dir: "/tmp/shots"},
	}
}

func newTestService(cfg Config, sess driver.Session, prompter Prompter, breaker *resilience.Breaker) *Service {
	factory := func(ctx context.Context) (driver.Session, error) { return sess, nil }
	gate := NewGate(prompter, testLogger())
	return NewService(cfg, factory, gate, breaker, testLogger())
}

//////////////////////////////////////////////////////////////////////////////
// Simulated and short-circuited runs
//////////////////////////////////////////////////////////////////////////////

func TestServiceSimulatedRunSucceeds(t *testing.T) {
	sess := readyPage(domain.ActionEnter)
	svc := newTestService(testServiceConfig(), sess, &scriptPrompter{}, nil)

	outcome := svc.Run(context.Background(), RunRequest{Action: domain.ActionEnter})

	if !outcome.Success || !outcome.Simulation {
		t.Fatalf("got %+v, want simulated success", outcome)
	}
	if outcome.Message != "simulated clock-in, button available" {
		t.Fatalf("message = %q", outcome.Message)
	}
	if n := sess.clickCount(DefaultSelectors().EnterButton); n != 0 {
		t.Fatalf("simulation clicked the punch button %d times", n)
	}
	if len(outcome.Screenshots) == 0 {
		t.Fatal("expected checkpoint screenshots")
	}
	if !sess.closed {
		t.Fatal("session was not closed")
	}
}

func TestServiceUnavailableActionShortCircuits(t *testing.T) {
	sess := readyPage(domain.ActionExit) // exit available, enter requested
	prompter := &scriptPrompter{answers: []string{"yes"}}
	svc := newTestService(testServiceConfig(), sess, prompter, nil)

	outcome := svc.Run(context.Background(), RunRequest{
		Action:      domain.ActionEnter,
		Real:        true,
		Interactive: true,
	})

	if outcome.Success {
		t.Fatalf("got %+v, want failure", outcome)
	}
	if outcome.Message != "action unavailable" {
		t.Fatalf("message = %q", outcome.Message)
	}
	if len(prompter.prompts) != 0 {
		t.Fatal("gate must not be consulted for an unavailable action")
	}
	if n := sess.clickCount(DefaultSelectors().EnterButton); n != 0 {
		t.Fatalf("unavailable action was clicked %d times", n)
	}
}

//////////////////////////////////////////////////////////////////////////////
// Confirmation gate interplay
//////////////////////////////////////////////////////////////////////////////

func TestServiceInteractiveDenialDowngrades(t *testing.T) {
	sess := readyPage(domain.ActionEnter)
	svc := newTestService(testServiceConfig(), sess, &scriptPrompter{answers: []string{"no"}}, nil)

	outcome := svc.Run(context.Background(), RunRequest{
		Action:      domain.ActionEnter,
		Real:        true,
		Interactive: true,
	})

	if !outcome.Success || !outcome.Simulation {
		t.Fatalf("got %+v, want downgraded simulation", outcome)
	}
	if outcome.Message != "confirmation denied, clock-in simulated" {
		t.Fatalf("message = %q", outcome.Message)
	}
	if n := sess.clickCount(DefaultSelectors().EnterButton); n != 0 {
		t.Fatalf("denied run clicked the punch button %d times", n)
	}
}

func TestServiceOperatorAbort(t *testing.T) {
	sess := readyPage(domain.ActionEnter)
	svc := newTestService(testServiceConfig(), sess, &scriptPrompter{answers: []string{"q"}}, nil)

	outcome := svc.Run(context.Background(), RunRequest{
		Action:      domain.ActionEnter,
		Real:        true,
		Interactive: true,
	})

	if !outcome.Success || !outcome.Simulation {
		t.Fatalf("got %+v, want aborted-as-simulation", outcome)
	}
	if !strings.Contains(outcome.Message, "aborted") {
		t.Fatalf("message = %q", outcome.Message)
	}
	if n := sess.clickCount(DefaultSelectors().EnterButton); n != 0 {
		t.Fatalf("aborted run clicked the punch button %d times", n)
	}
}

//////////////////////////////////////////////////////////////////////////////
// Real runs
//////////////////////////////////////////////////////////////////////////////

func TestServiceRealConfirmedRun(t *testing.T) {
	sel := DefaultSelectors()
	sess := readyPage(domain.ActionEnter)
	sess.onClick = func(selector string) {
		if selector == sel.EnterButton {
			sess.show(`.success-message`, "Punch recorded")
		}
	}
	svc := newTestService(testServiceConfig(), sess, &scriptPrompter{}, nil)

	outcome := svc.Run(context.Background(), RunRequest{
		Action:    domain.ActionEnter,
		Real:      true,
		Confirmed: true,
	})

	if !outcome.Success || outcome.Simulation {
		t.Fatalf("got %+v, want real success", outcome)
	}
	if outcome.ServerSignal != "Punch recorded" {
		t.Fatalf("server signal = %q", outcome.ServerSignal)
	}
	if n := sess.clickCount(sel.EnterButton); n != 1 {
		t.Fatalf("punch button clicked %d times, want 1", n)
	}
}

func TestServiceInconclusiveVerificationIsFailure(t *testing.T) {
	sel := DefaultSelectors()
	sess := readyPage(domain.ActionEnter)
	// The click swallows the button but no feedback or exit button ever
	// appears, so neither signals nor the state diff can settle the result.
	sess.onClick = func(selector string) {
		if selector == sel.EnterButton {
			sess.hide(sel.EnterButton)
		}
	}
	svc := newTestService(testServiceConfig(), sess, &scriptPrompter{}, nil)

	outcome := svc.Run(context.Background(), RunRequest{
		Action:    domain.ActionEnter,
		Real:      true,
		Confirmed: true,
	})

	if outcome.Success {
		t.Fatalf("got %+v, want failure", outcome)
	}
	if outcome.Message != "result verification timed out" {
		t.Fatalf("message = %q", outcome.Message)
	}
	if outcome.FailedStep != StepVerify {
		t.Fatalf("failed step = %q, want %q", outcome.FailedStep, StepVerify)
	}
}

//////////////////////////////////////////////////////////////////////////////
// Circuit breaker interplay
//////////////////////////////////////////////////////////////////////////////

func TestServiceBreakerOpenSkipsRun(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	breaker.RecordFailure(errors.New("warm-up failure"))

	factoryCalls := 0
	factory := func(ctx context.Context) (driver.Session, error) {
		factoryCalls++
		return newFakeSession(), nil
	}
	svc := NewService(testServiceConfig(), factory, NewGate(&scriptPrompter{}, testLogger()), breaker, testLogger())

	outcome := svc.Run(context.Background(), RunRequest{Action: domain.ActionEnter})

	if outcome.Success {
		t.Fatalf("got %+v, want skipped failure", outcome)
	}
	if outcome.FailedStep != StepBreaker {
		t.Fatalf("failed step = %q, want %q", outcome.FailedStep, StepBreaker)
	}
	if outcome.Message != "circuit breaker open, run skipped" {
		t.Fatalf("message = %q", outcome.Message)
	}
	if factoryCalls != 0 {
		t.Fatalf("session factory called %d times for a skipped run", factoryCalls)
	}
}

func TestServiceInfraFailureTripsBreaker(t *testing.T) {
	sel := DefaultSelectors()
	sess := readyPage(domain.ActionEnter)
	sess.hide(sel.PunchMenuItem) // navigation can never find the menu

	breaker := resilience.NewBreaker(resilience.BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	svc := newTestService(testServiceConfig(), sess, &scriptPrompter{}, breaker)

	outcome := svc.Run(context.Background(), RunRequest{Action: domain.ActionEnter})

	if outcome.Success {
		t.Fatalf("got %+v, want failure", outcome)
	}
	if outcome.FailedStep != StepNavigate {
		t.Fatalf("failed step = %q, want %q", outcome.FailedStep, StepNavigate)
	}
	if breaker.CanExecute() {
		t.Fatal("infrastructure failure must count against the breaker")
	}
}

func TestServiceBusinessFailureDoesNotTripBreaker(t *testing.T) {
	sess := readyPage(domain.ActionExit) // requested enter is unavailable
	breaker := resilience.NewBreaker(resilience.BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	svc := newTestService(testServiceConfig(), sess, &scriptPrompter{}, breaker)

	outcome := svc.Run(context.Background(), RunRequest{Action: domain.ActionEnter})

	if outcome.Success {
		t.Fatalf("got %+v, want failure", outcome)
	}
	if !breaker.CanExecute() {
		t.Fatal("an unavailable button is not an infrastructure failure")
	}
}

func TestServiceHalfOpenProbeResolvesOnBusinessOutcome(t *testing.T) {
	sess := readyPage(domain.ActionExit) // requested enter is unavailable
	breaker := resilience.NewBreaker(resilience.BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})
	breaker.RecordFailure(errors.New("warm-up failure"))
	time.Sleep(20 * time.Millisecond)

	svc := newTestService(testServiceConfig(), sess, &scriptPrompter{}, breaker)

	// The probe run ends in a business failure, but the infrastructure held
	// up, so the breaker must close rather than stay half-open.
	outcome := svc.Run(context.Background(), RunRequest{Action: domain.ActionEnter})
	if outcome.FailedStep == StepBreaker {
		t.Fatalf("probe run was not admitted: %+v", outcome)
	}
	if state := breaker.State(); state != resilience.StateClosed {
		t.Fatalf("breaker state after probe = %v, want closed", state)
	}

	next := svc.Run(context.Background(), RunRequest{Action: domain.ActionEnter})
	if next.FailedStep == StepBreaker {
		t.Fatalf("run after resolved probe was skipped: %+v", next)
	}
}

func TestServiceRejectedCredentialsNotRetried(t *testing.T) {
	sel := DefaultSelectors()
	sess := readyPage(domain.ActionEnter)
	sess.hide(sel.HomePanel)
	sess.show(sel.LoginError, "Invalid credentials")

	cfg := testServiceConfig()
	cfg.Retry.MaxAttempts = 3
	svc := newTestService(cfg, sess, &scriptPrompter{}, nil)

	outcome := svc.Run(context.Background(), RunRequest{Action: domain.ActionEnter})

	if outcome.Success {
		t.Fatalf("got %+v, want failure", outcome)
	}
	if outcome.FailedStep != StepAuthenticate {
		t.Fatalf("failed step = %q, want %q", outcome.FailedStep, StepAuthenticate)
	}
	if n := len(sess.navigated); n != 1 {
		t.Fatalf("login attempted %d times, want 1 (rejection is terminal)", n)
	}
}
