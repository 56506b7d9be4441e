package punch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/klhsieh/punchd/internal/driver"
)

// navigator walks from the authenticated landing page to the punch page.
type navigator struct {
	sess driver.Session
	sel  Selectors
	wait time.Duration
	log  *slog.Logger
}

func newNavigator(sess driver.Session, sel Selectors, wait time.Duration, log *slog.Logger) *navigator {
	return &navigator{sess: sess, sel: sel, wait: wait, log: log}
}

// ToPunchPage opens the punch page via the side menu and waits for its
// toolbar to render. The embedded GPS map is best-effort: it frequently
// loads late or not at all, and the punch buttons work without it, so a
// missing frame is logged rather than failed.
func (n *navigator) ToPunchPage(ctx context.Context) error {
	if err := n.sess.WaitForElement(ctx, n.sel.PunchMenuItem, n.wait); err != nil {
		return fmt.Errorf("punch menu item: %w", err)
	}
	if err := n.sess.Click(ctx, n.sel.PunchMenuItem); err != nil {
		return fmt.Errorf("open punch page: %w", err)
	}
	if err := n.sess.WaitForElement(ctx, n.sel.PunchPanel, n.wait); err != nil {
		return fmt.Errorf("punch page did not render: %w", err)
	}

	if err := n.sess.WaitForElement(ctx, n.sel.GPSFrame, 5*time.Second); err != nil {
		n.log.Warn("GPS frame did not load, continuing without it", "error", err)
	}

	n.log.Debug("Punch page ready")
	return nil
}
