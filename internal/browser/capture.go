package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// CaptureFailure writes a full-page screenshot and an HTML dump into the logs
// directory, named after the failed stage. Best-effort: a broken browser must
// not turn a workflow failure into a capture failure, so errors are logged
// and swallowed.
func (d *Driver) CaptureFailure(ctx context.Context, stage string) {
	if d.opts.LogsDir == "" {
		return
	}
	if err := os.MkdirAll(d.opts.LogsDir, 0755); err != nil {
		d.logger.Warn().Err(err).Msg("Cannot create logs directory for failure capture")
		return
	}

	stamp := captureTimestamp(time.Now())
	base := filepath.Join(d.opts.LogsDir, fmt.Sprintf("%s_%s", stage, stamp))

	var shot []byte
	if err := d.run(ctx, 20*time.Second, chromedp.FullScreenshot(&shot, 90)); err != nil {
		d.logger.Warn().Err(err).Str("stage", stage).Msg("Failure screenshot failed")
	} else if err := os.WriteFile(base+".png", shot, 0644); err != nil {
		d.logger.Warn().Err(err).Str("stage", stage).Msg("Failure screenshot write failed")
	} else {
		d.logger.Info().Str("path", base+".png").Msg("Failure screenshot saved")
	}

	if pageHTML, err := d.OuterHTML(ctx); err != nil {
		d.logger.Warn().Err(err).Str("stage", stage).Msg("Failure HTML dump failed")
	} else if err := os.WriteFile(base+".html", []byte(pageHTML), 0644); err != nil {
		d.logger.Warn().Err(err).Str("stage", stage).Msg("Failure HTML write failed")
	} else {
		d.logger.Info().Str("path", base+".html").Msg("Failure HTML dump saved")
	}
}

// captureTimestamp renders t as an ISO 8601 instant with the characters that
// are unsafe in filenames replaced by dashes.
func captureTimestamp(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.000Z")
	s = strings.ReplaceAll(s, ":", "-")
	return strings.ReplaceAll(s, ".", "-")
}
