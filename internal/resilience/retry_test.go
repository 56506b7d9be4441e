package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/klhsieh/punchd/internal/core/domain"
)

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		BackoffBase: 2.0,
		Jitter:      false,
	}
}

func TestDo_TransientRetriedExactlyN(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastConfig(4), func(ctx context.Context) error {
		calls++
		return errors.New("connection reset")
	})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 4 {
		t.Errorf("expected exactly 4 attempts, got %d", calls)
	}
	// Last error must survive wrapping
	if !errors.Is(err, err) || err.Error() != "op failed after 4 attempts: connection reset" {
		t.Errorf("unexpected wrapped error: %v", err)
	}
}

func TestDo_TerminalNeverRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "login", fastConfig(5), func(ctx context.Context) error {
		calls++
		return domain.ErrCredentialsRejected
	})

	if calls != 1 {
		t.Errorf("terminal error should be attempted once, got %d attempts", calls)
	}
	if !errors.Is(err, domain.ErrCredentialsRejected) {
		t.Errorf("expected original error surfaced unchanged, got %v", err)
	}
}

func TestDo_SucceedsMidway(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastConfig(5), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := fastConfig(5)
	cfg.BaseDelay = time.Hour // would hang if backoff does not honor ctx
	cfg.MaxDelay = time.Hour  // keep the cap from shrinking the delay below the cancel window

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, "op", cfg, func(ctx context.Context) error {
		calls++
		return errors.New("network unreachable")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", calls)
	}
}

func TestBackoffDelay_IncreasesUntilCap(t *testing.T) {
	cfg := Config{
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		BackoffBase: 2.0,
	}

	// 1s, 2s, 4s, 8s, then capped at 10s
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	prev := time.Duration(0)
	for i, w := range want {
		got := backoffDelay(i+1, cfg)
		if got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
		if got < prev {
			t.Errorf("attempt %d: delay decreased from %v to %v", i+1, prev, got)
		}
		prev = got
	}
}

func TestBackoffDelay_JitterStaysInBounds(t *testing.T) {
	cfg := Config{
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
		BackoffBase: 2.0,
		Jitter:      true,
	}

	for i := 0; i < 100; i++ {
		d := backoffDelay(2, cfg) // nominal 2s
		if d < 1500*time.Millisecond || d > 2500*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±25%% of 2s", d)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryTransient},
		{"timeout", errors.New("wait for element: timeout"), CategoryTransient},
		{"connection refused", errors.New("dial tcp: connection refused"), CategoryTransient},
		{"credentials sentinel", domain.ErrCredentialsRejected, CategoryTerminal},
		{"cancelled sentinel", domain.ErrUserCancelled, CategoryTerminal},
		{"keyword terminal", errors.New("server said: invalid credentials"), CategoryTerminal},
		{"unknown defaults to retry", errors.New("weird page state"), CategoryTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
