// Package schedule fires punch runs at configured times of day. It is a
// deliberately small in-process scheduler: two daily triggers, weekday
// filtering, a misfire grace window and global run serialization.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klhsieh/punchd/internal/core/domain"
	"github.com/klhsieh/punchd/internal/metrics"
)

// ErrRunInProgress is returned by TriggerNow when another run holds the
// serialization slot.
var ErrRunInProgress = errors.New("another punch run is already in progress")

// Runner executes one punch run. The scheduler never inspects the outcome
// beyond handing it to the OnOutcome hook.
type Runner interface {
	Run(ctx context.Context, action domain.Action) domain.Outcome
}

// Config drives the scheduler. Times are local wall-clock "HH:MM" strings.
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	EnterAt      string        `yaml:"enter_at"`
	ExitAt       string        `yaml:"exit_at"`
	WeekdaysOnly bool          `yaml:"weekdays_only"`
	Timezone     string        `yaml:"timezone"`
	MisfireGrace time.Duration `yaml:"misfire_grace"`
	RunTimeout   time.Duration `yaml:"run_timeout"`
	Heartbeat    time.Duration `yaml:"heartbeat"`
}

// DefaultConfig fires a clock-in before a 09:00 workday and a clock-out
// after 18:00, weekdays only.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		EnterAt:      "08:55",
		ExitAt:       "18:05",
		WeekdaysOnly: true,
		MisfireGrace: 30 * time.Second,
		RunTimeout:   10 * time.Minute,
		Heartbeat:    time.Hour,
	}
}

// PlannedRun is one upcoming trigger, for status surfaces.
type PlannedRun struct {
	Job    string        `json:"job"`
	Action domain.Action `json:"action"`
	At     time.Time     `json:"at"`
}

type timeOfDay struct {
	hour, min int
}

func parseTimeOfDay(s string) (timeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return timeOfDay{}, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return timeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	min, err := strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return timeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return timeOfDay{hour: hour, min: min}, nil
}

type job struct {
	name   string
	action domain.Action
	at     timeOfDay
	next   time.Time
}

// Scheduler owns the trigger loop. A single busy flag serializes every run,
// scheduled or manual, so two browser sessions never race each other.
type Scheduler struct {
	cfg    Config
	runner Runner
	loc    *time.Location
	log    *slog.Logger

	mu   sync.Mutex
	jobs []*job

	busy    atomic.Bool
	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// OnOutcome runs after every completed scheduled run. OnHeartbeat runs
	// on the heartbeat interval with the upcoming triggers. Both are set
	// before Start and may be nil.
	OnOutcome   func(jobName string, outcome domain.Outcome)
	OnHeartbeat func(next []PlannedRun)
}

func New(cfg Config, runner Runner, log *slog.Logger) (*Scheduler, error) {
	if cfg.MisfireGrace <= 0 {
		cfg.MisfireGrace = 30 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}

	loc := time.Local
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
	}

	s := &Scheduler{
		cfg:    cfg,
		runner: runner,
		loc:    loc,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	for _, spec := range []struct {
		name   string
		action domain.Action
		at     string
	}{
		{"clock-in", domain.ActionEnter, cfg.EnterAt},
		{"clock-out", domain.ActionExit, cfg.ExitAt},
	} {
		if spec.at == "" {
			continue
		}
		at, err := parseTimeOfDay(spec.at)
		if err != nil {
			return nil, fmt.Errorf("%s trigger: %w", spec.name, err)
		}
		s.jobs = append(s.jobs, &job{name: spec.name, action: spec.action, at: at})
	}
	if len(s.jobs) == 0 {
		return nil, errors.New("no triggers configured")
	}
	return s, nil
}

// Start launches the trigger loop.
func (s *Scheduler) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("scheduler already running")
	}

	now := time.Now().In(s.loc)
	s.mu.Lock()
	for _, j := range s.jobs {
		j.next = s.nextAfter(now, j.at)
		s.log.Info("Trigger scheduled", "job", j.name, "next", j.next.Format(time.RFC3339))
	}
	s.mu.Unlock()

	go s.loop()
	return nil
}

// Stop halts the trigger loop and waits for it to exit. A run already in
// flight finishes on its own.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var heartbeat <-chan time.Time
	if s.cfg.Heartbeat > 0 {
		hb := time.NewTicker(s.cfg.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.tick(now)
		case <-heartbeat:
			if s.OnHeartbeat != nil {
				s.OnHeartbeat(s.NextRuns())
			}
		}
	}
}

// tick fires every job whose time has come. A trigger that is past its
// misfire grace (the process was suspended or the loop stalled) is skipped
// rather than fired late into the wrong part of the day.
func (s *Scheduler) tick(now time.Time) {
	now = now.In(s.loc)

	var due []*job
	s.mu.Lock()
	for _, j := range s.jobs {
		if j.next.IsZero() {
			j.next = s.nextAfter(now, j.at)
		}
		if now.Before(j.next) {
			continue
		}
		late := now.Sub(j.next)
		scheduled := j.next
		j.next = s.nextAfter(now, j.at)

		if late > s.cfg.MisfireGrace {
			s.log.Warn("Trigger missed beyond grace window, skipping",
				"job", j.name, "scheduled", scheduled.Format(time.RFC3339), "late", late)
			metrics.TriggerFires.WithLabelValues(j.name, "misfired").Inc()
			continue
		}
		due = append(due, j)
	}
	s.mu.Unlock()

	for _, j := range due {
		s.fire(j.name, j.action)
	}
}

// fire claims the serialization slot and runs the job asynchronously. If a
// previous run still holds the slot the trigger is dropped, not queued; a
// punch fired an hour late is worse than one skipped.
func (s *Scheduler) fire(name string, action domain.Action) {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Warn("Previous run still in progress, skipping trigger", "job", name)
		metrics.TriggerFires.WithLabelValues(name, "skipped_overlap").Inc()
		return
	}

	metrics.TriggerFires.WithLabelValues(name, "fired").Inc()
	s.log.Info("Trigger fired", "job", name, "action", action.Label())

	go func() {
		defer s.busy.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
		defer cancel()

		outcome := s.runner.Run(ctx, action)
		if s.OnOutcome != nil {
			s.OnOutcome(name, outcome)
		}
	}()
}

// TriggerNow runs an action immediately under the same serialization as
// scheduled triggers.
func (s *Scheduler) TriggerNow(ctx context.Context, action domain.Action) (domain.Outcome, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return domain.Outcome{}, ErrRunInProgress
	}
	defer s.busy.Store(false)

	metrics.TriggerFires.WithLabelValues("manual", "fired").Inc()
	s.log.Info("Manual trigger", "action", action.Label())
	return s.runner.Run(ctx, action), nil
}

// NextRuns reports the upcoming trigger for every job, soonest first.
func (s *Scheduler) NextRuns() []PlannedRun {
	now := time.Now().In(s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make([]PlannedRun, 0, len(s.jobs))
	for _, j := range s.jobs {
		next := j.next
		if next.IsZero() || !next.After(now) {
			next = s.nextAfter(now, j.at)
		}
		runs = append(runs, PlannedRun{Job: j.name, Action: j.action, At: next})
	}
	sort.Slice(runs, func(i, k int) bool { return runs[i].At.Before(runs[k].At) })
	return runs
}

// nextAfter computes the first fire time strictly after t for a wall-clock
// time of day, skipping weekends when configured.
func (s *Scheduler) nextAfter(t time.Time, at timeOfDay) time.Time {
	c := time.Date(t.Year(), t.Month(), t.Day(), at.hour, at.min, 0, 0, s.loc)
	if !c.After(t) {
		c = c.AddDate(0, 0, 1)
	}
	for s.cfg.WeekdaysOnly && isWeekend(c) {
		c = c.AddDate(0, 0, 1)
	}
	return c
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
