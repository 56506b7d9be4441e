package punch

import (
	"context"
	"log/slog"

	"github.com/klhsieh/punchd/internal/driver"
)

// ScreenshotConfig controls evidence capture during a run.
type ScreenshotConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// shots captures checkpoint screenshots during a run. Capture failures never
// fail the run; evidence is a bonus, not a requirement.
type shots struct {
	sess  driver.Session
	cfg   ScreenshotConfig
	log   *slog.Logger
	paths []string
}

func newShots(sess driver.Session, cfg ScreenshotConfig, log *slog.Logger) *shots {
	return &shots{sess: sess, cfg: cfg, log: log}
}

func (s *shots) capture(ctx context.Context, name string) {
	if !s.cfg.Enabled {
		return
	}
	path, err := s.sess.CaptureScreenshot(ctx, s.cfg.Dir, name)
	if err != nil {
		s.log.Warn("Screenshot failed", "checkpoint", name, "error", err)
		return
	}
	s.paths = append(s.paths, path)
}
