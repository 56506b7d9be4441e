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

// authenticator performs the login step against the target application.
type authenticator struct {
	sess    driver.Session
	sel     Selectors
	baseURL string
	wait    time.Duration
	log     *slog.Logger
}

func newAuthenticator(sess driver.Session, sel Selectors, baseURL string, wait time.Duration, log *slog.Logger) *authenticator {
	return &authenticator{sess: sess, sel: sel, baseURL: baseURL, wait: wait, log: log}
}

// Login navigates to the login page, submits the credentials and waits for
// the authenticated landing page. A rejection banner on the page maps to
// domain.ErrCredentialsRejected so the retry layer stops immediately.
func (a *authenticator) Login(ctx context.Context, creds domain.Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("login: missing credentials: %w", domain.ErrCredentialsRejected)
	}

	if err := a.sess.NavigateTo(ctx, a.baseURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := a.sess.WaitForElement(ctx, a.sel.UsernameInput, a.wait); err != nil {
		return fmt.Errorf("login form did not appear: %w", err)
	}
	if err := a.sess.Fill(ctx, a.sel.UsernameInput, creds.Username); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	if err := a.sess.Fill(ctx, a.sel.PasswordInput, creds.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := a.sess.Click(ctx, a.sel.LoginButton); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	if err := a.sess.WaitForElement(ctx, a.sel.HomePanel, a.wait); err != nil {
		// Landing page never showed up. Check whether the server rejected
		// the credentials before reporting a generic timeout.
		if visible, verr := a.sess.IsVisible(ctx, a.sel.LoginError); verr == nil && visible {
			text, _ := a.sess.ReadText(ctx, a.sel.LoginError)
			text = strings.TrimSpace(text)
			a.log.Error("Login rejected by server", "detail", text)
			if text != "" {
				return fmt.Errorf("login rejected: %s: %w", text, domain.ErrCredentialsRejected)
			}
			return fmt.Errorf("login rejected: %w", domain.ErrCredentialsRejected)
		}
		return fmt.Errorf("wait for home page: %w", err)
	}

	a.log.Info("Logged in", "user", creds.Username)
	return nil
}
