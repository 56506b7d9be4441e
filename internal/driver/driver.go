// Package driver abstracts the remote interactive session that actually
// performs page interactions. The punch flow only talks to the Session
// interface; the concrete transport is a W3C WebDriver client.
package driver

import (
	"context"
	"fmt"
	"time"
)

// Session is the remote interactive surface the punch flow drives. Every
// method can fail transiently; callers wrap invocations in the retry policy.
type Session interface {
	// NavigateTo loads the given URL.
	NavigateTo(ctx context.Context, url string) error

	// WaitForElement polls until the selector matches a present element or
	// the timeout elapses.
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error

	// ReadText returns the visible text of the first matching element.
	ReadText(ctx context.Context, selector string) (string, error)

	// Attribute returns the named attribute of the first matching element.
	Attribute(ctx context.Context, selector, name string) (string, error)

	// IsVisible reports whether the first matching element is displayed.
	// A missing element is reported as not visible, not as an error.
	IsVisible(ctx context.Context, selector string) (bool, error)

	// IsEnabled reports whether the first matching element is enabled.
	IsEnabled(ctx context.Context, selector string) (bool, error)

	// Click clicks the first matching element.
	Click(ctx context.Context, selector string) error

	// Fill clears the first matching element and types the given value.
	Fill(ctx context.Context, selector, value string) error

	// CaptureScreenshot stores a screenshot under dir and returns its path.
	CaptureScreenshot(ctx context.Context, dir, name string) (string, error)

	// Close tears down the remote session.
	Close(ctx context.Context) error
}

// Error wraps any failure of the remote session so the retry policy can
// treat driver failures uniformly as transient.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("driver %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
