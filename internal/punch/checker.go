package punch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/klhsieh/punchd/internal/core/domain"
	"github.com/klhsieh/punchd/internal/driver"
)

// checker reads the punch page into a PageStatus snapshot.
type checker struct {
	sess driver.Session
	sel  Selectors
	log  *slog.Logger
}

func newChecker(sess driver.Session, sel Selectors, log *slog.Logger) *checker {
	return &checker{sess: sess, sel: sel, log: log}
}

// Check waits for the page to settle and reads every informational field it
// can. Soft fields (date, time, location, GPS) degrade to zero values with a
// warning; only when neither punch button can be read does Check fail, since
// the availability flags are the one thing callers cannot do without.
func (c *checker) Check(ctx context.Context) (domain.PageStatus, error) {
	var st domain.PageStatus

	c.waitStable(ctx)

	if visible, err := c.sess.IsVisible(ctx, c.sel.PunchPanel); err == nil {
		st.PageLoaded = visible
	} else {
		c.log.Warn("Could not read punch panel", "error", err)
	}
	if visible, err := c.sess.IsVisible(ctx, c.sel.GPSFrame); err == nil {
		st.GPSLoaded = visible
	}

	st.CurrentDate = c.softText(ctx, c.sel.DateText, "date")
	st.CurrentTime = c.softText(ctx, c.sel.TimeText, "time")
	if loc, err := c.sess.Attribute(ctx, c.sel.LocationInput, "value"); err == nil {
		st.Location = strings.TrimSpace(loc)
	} else {
		c.log.Warn("Could not read location field", "error", err)
	}

	var enterErr, exitErr error
	st.EnterAvailable, enterErr = c.available(ctx, c.sel.EnterButton)
	st.ExitAvailable, exitErr = c.available(ctx, c.sel.ExitButton)
	if enterErr != nil && exitErr != nil {
		return st, fmt.Errorf("read punch buttons: %w", enterErr)
	}
	if enterErr != nil {
		c.log.Warn("Could not read clock-in button", "error", enterErr)
	}
	if exitErr != nil {
		c.log.Warn("Could not read clock-out button", "error", exitErr)
	}

	return st, nil
}

// waitStable polls until the loading overlay is gone, bounded at 10s. A
// still-spinning page is not fatal; the button reads below decide.
func (c *checker) waitStable(ctx context.Context) {
	deadline := time.Now().Add(10 * time.Second)
	for {
		visible, err := c.sess.IsVisible(ctx, c.sel.LoadingHint)
		if err != nil || !visible {
			return
		}
		if time.Now().After(deadline) {
			c.log.Warn("Page still loading after 10s, reading state anyway")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (c *checker) softText(ctx context.Context, selector, field string) string {
	text, err := c.sess.ReadText(ctx, selector)
	if err != nil {
		c.log.Warn("Could not read page field", "field", field, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// available reports whether a button is both rendered and enabled.
func (c *checker) available(ctx context.Context, selector string) (bool, error) {
	visible, err := c.sess.IsVisible(ctx, selector)
	if err != nil {
		return false, err
	}
	if !visible {
		return false, nil
	}
	enabled, err := c.sess.IsEnabled(ctx, selector)
	if err != nil {
		return false, err
	}
	return enabled, nil
}
