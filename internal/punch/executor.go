package punch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/klhsieh/punchd/internal/core/domain"
	"github.com/klhsieh/punchd/internal/driver"
)

// executor performs the actual button click for an action.
type executor struct {
	sess driver.Session
	sel  Selectors
	wait time.Duration
	log  *slog.Logger
}

func newExecutor(sess driver.Session, sel Selectors, wait time.Duration, log *slog.Logger) *executor {
	return &executor{sess: sess, sel: sel, wait: wait, log: log}
}

// Click presses the punch button for the given action and gives the page a
// moment to start processing before verification begins.
func (e *executor) Click(ctx context.Context, action domain.Action) error {
	selector := e.sel.buttonFor(action == domain.ActionEnter)

	if err := e.sess.WaitForElement(ctx, selector, e.wait); err != nil {
		return fmt.Errorf("%s button: %w", action.Label(), err)
	}
	if err := e.sess.Click(ctx, selector); err != nil {
		return fmt.Errorf("click %s button: %w", action.Label(), err)
	}
	e.log.Info("Punch button clicked", "action", action.Label())

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Second):
	}
	return nil
}
