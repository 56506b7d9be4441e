package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Discord embed accent colors per level.
var discordColors = map[Level]int{
	LevelSuccess: 0x00ff00,
	LevelWarning: 0xffa500,
	LevelError:   0xff0000,
	LevelInfo:    0x0099ff,
}

// DiscordConfig configures the Discord webhook provider.
type DiscordConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Username   string        `yaml:"username"`
	Timeout    time.Duration `yaml:"timeout"`
	// MaxAttachmentBytes caps each uploaded screenshot; Discord rejects
	// files over 8 MiB on the free tier.
	MaxAttachmentBytes int64 `yaml:"max_attachment_bytes"`
}

// Discord posts messages as rich embeds to a webhook, attaching screenshots
// when the message carries any.
type Discord struct {
	cfg    DiscordConfig
	client *http.Client
	log    *slog.Logger
}

func NewDiscord(cfg DiscordConfig, log *slog.Logger) *Discord {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = 8 << 20
	}
	if cfg.Username == "" {
		cfg.Username = "punchd"
	}
	return &Discord{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

func (d *Discord) Name() string { return "discord" }

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color"`
	Timestamp   string              `json:"timestamp"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      discordEmbedFooter  `json:"footer"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

func (d *Discord) Send(ctx context.Context, msg Message) error {
	embed := discordEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       discordColors[msg.Level],
		Timestamp:   msg.Timestamp.UTC().Format(time.RFC3339),
		Footer:      discordEmbedFooter{Text: d.cfg.Username},
	}
	for _, f := range msg.Details {
		embed.Fields = append(embed.Fields, discordEmbedField{Name: f.Key, Value: f.Value, Inline: true})
	}
	payload := discordPayload{Username: d.cfg.Username, Embeds: []discordEmbed{embed}}

	body, contentType, err := d.encode(payload, msg.Attachments)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, body)
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		d.respectRetryAfter(ctx, resp)
		return fmt.Errorf("discord webhook rate limited")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// encode builds either a plain JSON body or, when attachments survive the
// size cap, a multipart body with payload_json plus the files.
func (d *Discord) encode(payload discordPayload, attachments []string) (io.Reader, string, error) {
	files := d.attachable(attachments)
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encode discord payload: %w", err)
	}
	if len(files) == 0 {
		return bytes.NewReader(raw), "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("payload_json", string(raw)); err != nil {
		return nil, "", fmt.Errorf("write payload_json: %w", err)
	}
	for i, path := range files {
		part, err := mw.CreateFormFile(fmt.Sprintf("files[%d]", i), filepath.Base(path))
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		f, err := os.Open(path)
		if err != nil {
			d.log.Warn("Attachment vanished before upload", "path", path, "error", err)
			continue
		}
		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return nil, "", fmt.Errorf("copy attachment %s: %w", path, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("finish multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// attachable filters attachments to files that exist and fit the size cap.
func (d *Discord) attachable(paths []string) []string {
	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			d.log.Warn("Skipping missing attachment", "path", path, "error", err)
			continue
		}
		if info.Size() > d.cfg.MaxAttachmentBytes {
			d.log.Warn("Skipping oversized attachment",
				"path", path, "size", info.Size(), "limit", d.cfg.MaxAttachmentBytes)
			continue
		}
		out = append(out, path)
	}
	return out
}

// respectRetryAfter sleeps out Discord's Retry-After hint (bounded) so the
// retry layer's next attempt is not instantly rejected again.
func (d *Discord) respectRetryAfter(ctx context.Context, resp *http.Response) {
	seconds, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64)
	if err != nil || seconds <= 0 {
		return
	}
	wait := time.Duration(seconds * float64(time.Second))
	if wait > 10*time.Second {
		wait = 10 * time.Second
	}
	d.log.Warn("Discord rate limit, honoring Retry-After", "wait", wait)
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
