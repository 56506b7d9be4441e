package punch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/klhsieh/punchd/internal/driver"
)

// fakeSession is an in-memory driver.Session backed by plain maps. Tests
// script page behavior by mutating the maps or installing hooks.
type fakeSession struct {
	mu      sync.Mutex
	visible map[string]bool
	enabled map[string]bool
	texts   map[string]string
	attrs   map[string]string

	clicks    []string
	fills     map[string]string
	navigated []string
	closed    bool

	errs      map[string]error
	onClick   func(selector string)
	onVisible func(selector string)
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		visible: make(map[string]bool),
		enabled: make(map[string]bool),
		texts:   make(map[string]string),
		attrs:   make(map[string]string),
		fills:   make(map[string]string),
		errs:    make(map[string]error),
	}
}

func attrKey(selector, name string) string {
	return selector + "\x00" + name
}

// show makes a selector visible, enabled and optionally textual.
func (f *fakeSession) show(selector, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible[selector] = true
	f.enabled[selector] = true
	if text != "" {
		f.texts[selector] = text
	}
}

func (f *fakeSession) hide(selector string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible[selector] = false
}

func (f *fakeSession) disable(selector string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled[selector] = false
}

func (f *fakeSession) NavigateTo(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["navigate"]; err != nil {
		return err
	}
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeSession) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		f.mu.Lock()
		err := f.errs["wait"]
		visible := f.visible[selector]
		f.mu.Unlock()
		if err != nil {
			return err
		}
		if visible {
			return nil
		}
		if time.Now().After(deadline) {
			return &driver.Error{Op: "wait", Err: fmt.Errorf("no element matched %q within %v", selector, timeout)}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (f *fakeSession) ReadText(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["text"]; err != nil {
		return "", err
	}
	return f.texts[selector], nil
}

func (f *fakeSession) Attribute(ctx context.Context, selector, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["attribute"]; err != nil {
		return "", err
	}
	return f.attrs[attrKey(selector, name)], nil
}

func (f *fakeSession) IsVisible(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	hook := f.onVisible
	err := f.errs["visible"]
	visible := f.visible[selector]
	f.mu.Unlock()
	if hook != nil {
		hook(selector)
	}
	if err != nil {
		return false, err
	}
	return visible, nil
}

func (f *fakeSession) IsEnabled(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["enabled"]; err != nil {
		return false, err
	}
	return f.enabled[selector], nil
}

func (f *fakeSession) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	err := f.errs["click"]
	hook := f.onClick
	if err == nil {
		f.clicks = append(f.clicks, selector)
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(selector)
	}
	return nil
}

func (f *fakeSession) Fill(ctx context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["fill"]; err != nil {
		return err
	}
	f.fills[selector] = value
	return nil
}

func (f *fakeSession) CaptureScreenshot(ctx context.Context, dir, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["screenshot"]; err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".png"), nil
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) clickCount(selector string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.clicks {
		if c == selector {
			n++
		}
	}
	return n
}
