package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Slack attachment sidebar colors per level.
var slackColors = map[Level]string{
	LevelSuccess: "#2eb67d",
	LevelWarning: "#ecb22e",
	LevelError:   "#e01e5a",
	LevelInfo:    "#36c5f0",
}

// SlackConfig configures the Slack incoming-webhook provider.
type SlackConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Slack posts messages to an incoming webhook using the legacy attachment
// format, which is the one incoming webhooks still render everywhere.
type Slack struct {
	cfg    SlackConfig
	client *http.Client
}

func NewSlack(cfg SlackConfig) *Slack {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Slack{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (s *Slack) Name() string { return "slack" }

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Ts     int64        `json:"ts"`
}

func (s *Slack) Send(ctx context.Context, msg Message) error {
	att := slackAttachment{
		Color: slackColors[msg.Level],
		Title: msg.Title,
		Text:  msg.Body,
		Ts:    msg.Timestamp.Unix(),
	}
	for _, f := range msg.Details {
		att.Fields = append(att.Fields, slackField{Title: f.Key, Value: f.Value, Short: true})
	}

	raw, err := json.Marshal(map[string]any{"attachments": []slackAttachment{att}})
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
