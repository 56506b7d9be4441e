package punch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/klhsieh/punchd/internal/core/domain"
	"github.com/klhsieh/punchd/internal/driver"
	"github.com/klhsieh/punchd/internal/metrics"
)

// SignalClass says what kind of feedback a page element carries.
type SignalClass string

const (
	// SignalSuccess elements confirm the punch unconditionally.
	SignalSuccess SignalClass = "success"
	// SignalFailure elements deny the punch unconditionally.
	SignalFailure SignalClass = "failure"
	// SignalGeneric elements (plain toasts) are classified by their text.
	SignalGeneric SignalClass = "generic"
)

// Rule ties a page selector to a signal class. Rules are ordered; within a
// scan the classes are ranked success > failure > generic regardless of rule
// order, so an explicit success banner always beats a stale error toast.
type Rule struct {
	Selector string      `yaml:"selector"`
	Class    SignalClass `yaml:"class"`
}

// VerifyConfig controls the post-click verification loop.
type VerifyConfig struct {
	Rules           []Rule        `yaml:"rules"`
	SuccessKeywords []string      `yaml:"success_keywords"`
	FailureKeywords []string      `yaml:"failure_keywords"`
	ActionKeywords  []string      `yaml:"action_keywords"`
	Interval        time.Duration `yaml:"interval"`
	Timeout         time.Duration `yaml:"timeout"`
}

// DefaultVerifyConfig matches the toast and banner vocabulary of the target
// frontend.
func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{
		Rules: []Rule{
			{Selector: `.success-message`, Class: SignalSuccess},
			{Selector: `ion-toast[color="success"]`, Class: SignalSuccess},
			{Selector: `.error-message`, Class: SignalFailure},
			{Selector: `ion-toast[color="danger"]`, Class: SignalFailure},
			{Selector: `ion-toast`, Class: SignalGeneric},
		},
		SuccessKeywords: []string{"success", "completed", "成功"},
		FailureKeywords: []string{"fail", "error", "denied", "失敗", "錯誤"},
		ActionKeywords:  []string{"punch", "clock", "sign", "打卡"},
		Interval:        500 * time.Millisecond,
		Timeout:         15 * time.Second,
	}
}

func (c *VerifyConfig) applyDefaults() {
	def := DefaultVerifyConfig()
	if len(c.Rules) == 0 {
		c.Rules = def.Rules
	}
	if len(c.SuccessKeywords) == 0 {
		c.SuccessKeywords = def.SuccessKeywords
	}
	if len(c.FailureKeywords) == 0 {
		c.FailureKeywords = def.FailureKeywords
	}
	if len(c.ActionKeywords) == 0 {
		c.ActionKeywords = def.ActionKeywords
	}
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
}

// Verdict is the verification result for one punch.
type Verdict struct {
	Success bool
	// Conclusive is false when no signal ever appeared and the state diff
	// could not settle the question either.
	Conclusive bool
	Message    string
	// Signal holds the raw on-page text the verdict was derived from, if any.
	Signal string
}

// verifier watches the page after a click and decides whether the punch
// landed. It prefers explicit feedback elements; when none appear before the
// timeout it falls back to diffing button availability against the pre-click
// snapshot, and only then reports an inconclusive timeout.
type verifier struct {
	sess    driver.Session
	checker *checker
	cfg     VerifyConfig
	log     *slog.Logger
}

func newVerifier(sess driver.Session, ch *checker, cfg VerifyConfig, log *slog.Logger) *verifier {
	cfg.applyDefaults()
	return &verifier{sess: sess, checker: ch, cfg: cfg, log: log}
}

// Verify polls for feedback until the timeout. before is the page state
// captured just before the click, used for the availability-diff fallback.
func (v *verifier) Verify(ctx context.Context, action domain.Action, before domain.PageStatus) Verdict {
	start := time.Now()
	defer func() {
		metrics.VerifyDuration.Observe(time.Since(start).Seconds())
	}()

	deadline := start.Add(v.cfg.Timeout)
	for {
		if verdict := v.scanOnce(ctx, action); verdict != nil {
			v.log.Info("Verification signal found",
				"action", action.Label(), "success", verdict.Success, "signal", verdict.Signal)
			return *verdict
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return Verdict{Success: false, Conclusive: false, Message: "verification cancelled"}
		case <-time.After(v.cfg.Interval):
		}
	}

	if verdict := v.diffState(ctx, action, before); verdict != nil {
		return *verdict
	}

	v.log.Warn("No verification signal before timeout", "action", action.Label(), "timeout", v.cfg.Timeout)
	return Verdict{Success: false, Conclusive: false, Message: "result verification timed out"}
}

// scanOnce evaluates every rule against the current page. Within one scan an
// explicit success match wins immediately; otherwise the first explicit
// failure, then the first keyword-classified generic match.
func (v *verifier) scanOnce(ctx context.Context, action domain.Action) *Verdict {
	var failure, generic *Verdict

	for _, rule := range v.cfg.Rules {
		visible, err := v.sess.IsVisible(ctx, rule.Selector)
		if err != nil || !visible {
			continue
		}
		text, err := v.sess.ReadText(ctx, rule.Selector)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		switch rule.Class {
		case SignalSuccess:
			return &Verdict{Success: true, Conclusive: true, Message: text, Signal: text}
		case SignalFailure:
			if failure == nil {
				failure = &Verdict{Success: false, Conclusive: true, Message: text, Signal: text}
			}
		case SignalGeneric:
			if generic == nil {
				generic = v.classifyGeneric(action, text)
			}
		}
	}

	if failure != nil {
		return failure
	}
	return generic
}

// classifyGeneric decides what a plain toast means. The text must mention the
// punch domain at all to count; an unrelated toast is ignored.
func (v *verifier) classifyGeneric(action domain.Action, text string) *Verdict {
	lower := strings.ToLower(text)

	related := containsAny(lower, v.cfg.ActionKeywords) ||
		strings.Contains(lower, strings.ToLower(action.Label()))
	if !related {
		return nil
	}
	if containsAny(lower, v.cfg.FailureKeywords) {
		return &Verdict{Success: false, Conclusive: true, Message: text, Signal: text}
	}
	if containsAny(lower, v.cfg.SuccessKeywords) {
		return &Verdict{Success: true, Conclusive: true, Message: text, Signal: text}
	}
	return nil
}

// diffState re-reads button availability and compares it to the pre-click
// snapshot. A successful clock-in consumes the enter button and exposes the
// exit button; the reverse holds for clock-out. An unchanged pre-click state
// means the click did nothing. Anything else stays inconclusive.
func (v *verifier) diffState(ctx context.Context, action domain.Action, before domain.PageStatus) *Verdict {
	after, err := v.checker.Check(ctx)
	if err != nil {
		v.log.Warn("State diff fallback failed", "error", err)
		return nil
	}

	flipped := !after.Available(action) && after.Available(action.Opposite())
	if flipped {
		return &Verdict{Success: true, Conclusive: true,
			Message: "verified by button state change"}
	}
	if before.Available(action) && after.Available(action) {
		return &Verdict{Success: false, Conclusive: true,
			Message: "button state unchanged after click"}
	}
	return nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
