package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/klhsieh/punchd/internal/metrics"
	"github.com/klhsieh/punchd/internal/resilience"
)

// boundProvider is a provider plus its delivery policy and pacing.
type boundProvider struct {
	provider Provider
	policy   Policy
	limiter  *rate.Limiter
}

// Dispatcher fans messages out to every registered provider concurrently.
// Notification failures are logged and counted but never propagate: a punch
// that worked must not be reported as failed because a webhook was down.
type Dispatcher struct {
	retry     resilience.Config
	log       *slog.Logger
	providers []boundProvider
}

func NewDispatcher(retry resilience.Config, log *slog.Logger) *Dispatcher {
	return &Dispatcher{retry: retry, log: log}
}

// Add registers a provider. minInterval is the minimum spacing between two
// requests to this provider; zero disables pacing.
func (d *Dispatcher) Add(p Provider, policy Policy, minInterval time.Duration) {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if minInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	d.providers = append(d.providers, boundProvider{provider: p, policy: policy, limiter: limiter})
}

// Providers reports the registered provider names.
func (d *Dispatcher) Providers() []string {
	names := make([]string, 0, len(d.providers))
	for _, bp := range d.providers {
		names = append(names, bp.provider.Name())
	}
	return names
}

// Dispatch sends msg to every provider whose policy admits its level and
// waits for all deliveries to finish. The per-provider results are returned
// for surfaces that want them; most callers ignore them.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) []ProviderResult {
	results := make([]ProviderResult, len(d.providers))

	var wg sync.WaitGroup
	for i, bp := range d.providers {
		name := bp.provider.Name()
		results[i].Provider = name

		if !bp.policy.Allows(msg.Level) {
			results[i].Skipped = true
			d.log.Debug("Notification filtered by policy", "provider", name, "level", msg.Level)
			continue
		}

		wg.Add(1)
		go func(i int, bp boundProvider) {
			defer wg.Done()
			start := time.Now()

			err := bp.limiter.Wait(ctx)
			if err == nil {
				err = resilience.Do(ctx, "notify-"+name, d.retry, func(ctx context.Context) error {
					return bp.provider.Send(ctx, msg)
				})
			}

			results[i].Elapsed = time.Since(start)
			if err != nil {
				results[i].Err = err
				metrics.NotificationsTotal.WithLabelValues(name, "error").Inc()
				d.log.Error("Notification delivery failed", "provider", name, "error", err)
				return
			}
			results[i].Delivered = true
			metrics.NotificationsTotal.WithLabelValues(name, "delivered").Inc()
			d.log.Info("Notification delivered", "provider", name, "title", msg.Title)
		}(i, bp)
	}
	wg.Wait()

	return results
}
