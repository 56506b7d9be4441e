package driver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// elementKey is the W3C WebDriver element identifier key.
const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// WebDriver is a Session backed by a remote WebDriver endpoint
// (chromedriver, geckodriver, or a Selenium hub).
type WebDriver struct {
	endpoint   string
	httpClient *http.Client
	sessionID  string
	headless   bool
}

// WebDriverConfig holds connection settings for the remote endpoint.
type WebDriverConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	Headless bool          `yaml:"headless"`
}

// NewWebDriver creates a client for the given WebDriver endpoint. The
// session is created lazily by Start.
func NewWebDriver(cfg WebDriverConfig) *WebDriver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &WebDriver{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		headless: cfg.Headless,
	}
}

// Start creates the remote browser session.
func (w *WebDriver) Start(ctx context.Context) error {
	args := []string{"--disable-gpu", "--window-size=1280,900"}
	if w.headless {
		args = append(args, "--headless=new")
	}

	body := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": map[string]any{
				"browserName": "chrome",
				"goog:chromeOptions": map[string]any{
					"args": args,
				},
			},
		},
	}

	var resp struct {
		Value struct {
			SessionID string `json:"sessionId"`
		} `json:"value"`
	}
	if err := w.do(ctx, http.MethodPost, "/session", body, &resp); err != nil {
		return &Error{Op: "start session", Err: err}
	}
	if resp.Value.SessionID == "" {
		return &Error{Op: "start session", Err: fmt.Errorf("empty session id")}
	}

	w.sessionID = resp.Value.SessionID
	slog.Debug("WebDriver session created", "session", w.sessionID)
	return nil
}

func (w *WebDriver) NavigateTo(ctx context.Context, url string) error {
	err := w.do(ctx, http.MethodPost, w.sessionPath("/url"), map[string]string{"url": url}, nil)
	if err != nil {
		return &Error{Op: "navigate", Err: err}
	}
	return nil
}

func (w *WebDriver) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := w.findElement(ctx, selector); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return &Error{Op: "wait for element", Err: fmt.Errorf("timeout waiting for %q", selector)}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (w *WebDriver) ReadText(ctx context.Context, selector string) (string, error) {
	id, err := w.findElement(ctx, selector)
	if err != nil {
		return "", &Error{Op: "read text", Err: err}
	}

	var resp struct {
		Value string `json:"value"`
	}
	if err := w.do(ctx, http.MethodGet, w.elementPath(id, "/text"), nil, &resp); err != nil {
		return "", &Error{Op: "read text", Err: err}
	}
	return resp.Value, nil
}

func (w *WebDriver) Attribute(ctx context.Context, selector, name string) (string, error) {
	id, err := w.findElement(ctx, selector)
	if err != nil {
		return "", &Error{Op: "read attribute", Err: err}
	}

	var resp struct {
		Value *string `json:"value"`
	}
	if err := w.do(ctx, http.MethodGet, w.elementPath(id, "/attribute/"+name), nil, &resp); err != nil {
		return "", &Error{Op: "read attribute", Err: err}
	}
	if resp.Value == nil {
		return "", nil
	}
	return *resp.Value, nil
}

func (w *WebDriver) IsVisible(ctx context.Context, selector string) (bool, error) {
	id, err := w.findElement(ctx, selector)
	if err != nil {
		// A missing element is simply not visible
		return false, nil
	}

	var resp struct {
		Value bool `json:"value"`
	}
	if err := w.do(ctx, http.MethodGet, w.elementPath(id, "/displayed"), nil, &resp); err != nil {
		return false, &Error{Op: "is visible", Err: err}
	}
	return resp.Value, nil
}

func (w *WebDriver) IsEnabled(ctx context.Context, selector string) (bool, error) {
	id, err := w.findElement(ctx, selector)
	if err != nil {
		return false, nil
	}

	var resp struct {
		Value bool `json:"value"`
	}
	if err := w.do(ctx, http.MethodGet, w.elementPath(id, "/enabled"), nil, &resp); err != nil {
		return false, &Error{Op: "is enabled", Err: err}
	}
	return resp.Value, nil
}

func (w *WebDriver) Click(ctx context.Context, selector string) error {
	id, err := w.findElement(ctx, selector)
	if err != nil {
		return &Error{Op: "click", Err: err}
	}
	if err := w.do(ctx, http.MethodPost, w.elementPath(id, "/click"), map[string]any{}, nil); err != nil {
		return &Error{Op: "click", Err: err}
	}
	return nil
}

func (w *WebDriver) Fill(ctx context.Context, selector, value string) error {
	id, err := w.findElement(ctx, selector)
	if err != nil {
		return &Error{Op: "fill", Err: err}
	}
	if err := w.do(ctx, http.MethodPost, w.elementPath(id, "/clear"), map[string]any{}, nil); err != nil {
		return &Error{Op: "fill", Err: err}
	}
	body := map[string]any{"text": value}
	if err := w.do(ctx, http.MethodPost, w.elementPath(id, "/value"), body, nil); err != nil {
		return &Error{Op: "fill", Err: err}
	}
	return nil
}

func (w *WebDriver) CaptureScreenshot(ctx context.Context, dir, name string) (string, error) {
	var resp struct {
		Value string `json:"value"`
	}
	if err := w.do(ctx, http.MethodGet, w.sessionPath("/screenshot"), nil, &resp); err != nil {
		return "", &Error{Op: "screenshot", Err: err}
	}

	data, err := base64.StdEncoding.DecodeString(resp.Value)
	if err != nil {
		return "", &Error{Op: "screenshot", Err: fmt.Errorf("decode image: %w", err)}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &Error{Op: "screenshot", Err: err}
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", time.Now().Format("20060102_150405"), name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &Error{Op: "screenshot", Err: err}
	}
	return path, nil
}

func (w *WebDriver) Close(ctx context.Context) error {
	if w.sessionID == "" {
		return nil
	}
	err := w.do(ctx, http.MethodDelete, "/session/"+w.sessionID, nil, nil)
	w.sessionID = ""
	if err != nil {
		return &Error{Op: "close session", Err: err}
	}
	return nil
}

// findElement resolves a CSS selector to a WebDriver element id.
func (w *WebDriver) findElement(ctx context.Context, selector string) (string, error) {
	body := map[string]string{
		"using": "css selector",
		"value": selector,
	}

	var resp struct {
		Value map[string]string `json:"value"`
	}
	if err := w.do(ctx, http.MethodPost, w.sessionPath("/element"), body, &resp); err != nil {
		return "", fmt.Errorf("find element %q: %w", selector, err)
	}

	id, ok := resp.Value[elementKey]
	if !ok || id == "" {
		return "", fmt.Errorf("find element %q: no element id in response", selector)
	}
	return id, nil
}

func (w *WebDriver) sessionPath(suffix string) string {
	return "/session/" + w.sessionID + suffix
}

func (w *WebDriver) elementPath(id, suffix string) string {
	return w.sessionPath("/element/" + id + suffix)
}

// do performs one WebDriver HTTP call and decodes the response into out.
func (w *WebDriver) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, w.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webdriver call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// WebDriver errors carry {"value":{"error":..., "message":...}}
		var werr struct {
			Value struct {
				Error   string `json:"error"`
				Message string `json:"message"`
			} `json:"value"`
		}
		if json.Unmarshal(raw, &werr) == nil && werr.Value.Error != "" {
			return fmt.Errorf("%s: %s", werr.Value.Error, firstLine(werr.Value.Message))
		}
		return fmt.Errorf("http %d: %s", resp.StatusCode, firstLine(string(raw)))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
