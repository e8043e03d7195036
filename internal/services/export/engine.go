package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexport/internal/common"
	"github.com/ternarybob/lexport/internal/interfaces"
	"github.com/ternarybob/lexport/internal/models"
)

// Stage names the workflow states; failure captures are filed under them.
type Stage string

const (
	StageAccessingPage         Stage = "accessing-page"
	StageSelectingPreset       Stage = "selecting-preset"
	StageTriggeringExport      Stage = "triggering-export"
	StageAwaitingGeneration    Stage = "awaiting-generation"
	StageResolvingDownloadLink Stage = "resolving-download-link"
	StageDownloading           Stage = "downloading"
)

// AuthResolver is the authentication collaborator the engine hands off to
// when the export URL lands on a login page.
type AuthResolver interface {
	Ensure(ctx context.Context, job *models.ClientJob, url string) error
}

// AccountSwitcher changes tenant context inside an authenticated session.
type AccountSwitcher interface {
	SwitchTo(ctx context.Context, targetName string) (bool, error)
}

// Options tunes the workflow's waits and bounds.
type Options struct {
	DownloadDir         string
	Timeout             time.Duration // download wait bound
	GenerationSettle    time.Duration
	HistoryPollInterval time.Duration
	HistoryPollAttempts int
	HistoryLookback     int
	TriggerWait         time.Duration // wait for the trigger control after the preset click
}

func (o *Options) fillDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.TriggerWait <= 0 {
		o.TriggerWait = 30 * time.Second
	}
	if o.GenerationSettle < 0 {
		o.GenerationSettle = 0
	}
	if o.HistoryPollInterval <= 0 {
		o.HistoryPollInterval = time.Second
	}
	if o.HistoryPollAttempts <= 0 {
		o.HistoryPollAttempts = 60
	}
	if o.HistoryLookback <= 0 {
		o.HistoryLookback = 10
	}
}

// Engine runs the export workflow for one client job inside an established
// browser session.
type Engine struct {
	driver   interfaces.PageDriver
	auth     AuthResolver
	switcher AccountSwitcher
	opts     Options
	logger   arbor.ILogger
}

func NewEngine(driver interfaces.PageDriver, auth AuthResolver, switcher AccountSwitcher, opts Options, logger arbor.ILogger) *Engine {
	opts.fillDefaults()
	return &Engine{driver: driver, auth: auth, switcher: switcher, opts: opts, logger: logger}
}

// Run drives the workflow to completion and returns the downloaded file's
// absolute path. Every failure path captures a screenshot and HTML dump
// before the error propagates.
func (e *Engine) Run(ctx context.Context, job *models.ClientJob) (string, error) {
	e.logger.Info().Str("client", job.Name).Str("preset", job.PresetName).Msg("Export workflow starting")

	if err := e.accessPage(ctx, job); err != nil {
		return "", e.fail(ctx, StageAccessingPage, err)
	}

	if err := e.selectPreset(ctx, job); err != nil {
		return "", e.fail(ctx, StageSelectingPreset, err)
	}

	if err := e.triggerExport(ctx); err != nil {
		return "", e.fail(ctx, StageTriggeringExport, err)
	}

	if err := e.awaitGeneration(ctx, job); err != nil {
		return "", e.fail(ctx, StageAwaitingGeneration, err)
	}

	link, err := e.resolveDownloadLink(ctx, job)
	if err != nil {
		return "", e.fail(ctx, StageResolvingDownloadLink, err)
	}

	path, err := e.download(ctx, link)
	if err != nil {
		return "", e.fail(ctx, StageDownloading, err)
	}

	e.logger.Info().Str("client", job.Name).Str("file", path).Msg("Export workflow done")
	return path, nil
}

// fail runs the per-stage capture hook exactly once and wraps the error with
// its stage.
func (e *Engine) fail(ctx context.Context, stage Stage, err error) error {
	e.driver.CaptureFailure(ctx, string(stage)+"-error")
	return fmt.Errorf("%s: %w", stage, err)
}

// accessPage lands the session on the exporter. Login pages go through the
// auth resolver; a wrong tenant context goes through the account switcher; a
// still-wrong landing falls back to click-through navigation.
func (e *Engine) accessPage(ctx context.Context, job *models.ClientJob) error {
	if err := e.auth.Ensure(ctx, job, job.ExportURL); err != nil {
		return err
	}

	state, err := e.driver.State(ctx)
	if err != nil {
		return err
	}
	if onExporterPage(state) {
		return nil
	}

	e.logger.Info().Str("client", job.Name).Str("url", state.URL).Msg("Landed off the exporter, switching account context")
	if _, err := e.switcher.SwitchTo(ctx, job.Name); err != nil {
		return err
	}
	if state, err = e.driver.Navigate(ctx, job.ExportURL); err != nil {
		return err
	}
	if onExporterPage(state) {
		return nil
	}

	return e.clickThroughToExporter(ctx)
}

// onExporterPage recognizes the CSV exporter by URL path or page title.
func onExporterPage(state interfaces.PageState) bool {
	return strings.Contains(state.URL, "export") || strings.Contains(state.Title, "エクスポート")
}

// clickThroughToExporter walks the site menu: CSV operations, then the
// export list.
func (e *Engine) clickThroughToExporter(ctx context.Context) error {
	for _, label := range []string{"CSV操作", "CSVエクスポート"} {
		ref, err := e.driver.FindByText(ctx, label, "")
		if err != nil {
			return err
		}
		if ref == nil {
			return fmt.Errorf("navigation control %q not found", label)
		}
		if err := e.driver.Click(ctx, ref); err != nil {
			return err
		}
	}

	state, err := e.driver.State(ctx)
	if err != nil {
		return err
	}
	if !onExporterPage(state) {
		return fmt.Errorf("click-through navigation did not reach the exporter, at %s", state.URL)
	}
	return nil
}

// selectPreset finds the preset row and clicks its export control.
func (e *Engine) selectPreset(ctx context.Context, job *models.ClientJob) error {
	doc, err := e.snapshot(ctx)
	if err != nil {
		return err
	}

	ref, diag := findPresetControl(doc, job.PresetName)
	if ref == nil {
		for _, row := range diag.Rows {
			e.logger.Warn().Str("candidate", row).Msg("Preset scan candidate")
		}
		for _, btn := range diag.Buttons {
			e.logger.Warn().Str("button", btn).Msg("Preset scan button")
		}
		return fmt.Errorf("%w: %q", models.ErrPresetNotFound, job.PresetName)
	}

	e.logger.Info().Str("preset", job.PresetName).Str("button", ref.Text).Msg("Preset control located")
	return e.driver.Click(ctx, ref)
}

// triggerExport clicks the generation control on the copy page. The preset
// click navigates, so the control is polled for up to TriggerWait rather
// than checked once: an early check would still see the exporter page, whose
// history table carries its own ダウンロード links. The site renders the
// control as #submit_button; a text scan inside the settings form is the
// fallback for older markup (history links live in tables, never forms).
func (e *Engine) triggerExport(ctx context.Context) error {
	interval := e.opts.HistoryPollInterval
	var ref *interfaces.ElementRef

	result, err := common.PollFor(ctx, interval, e.opts.TriggerWait, func(ctx context.Context) (bool, error) {
		found, err := e.driver.Exists(ctx, "#submit_button")
		if err != nil {
			return false, err
		}
		if found {
			ref = &interfaces.ElementRef{Selector: "#submit_button", Text: "submit"}
			return true, nil
		}

		ref, err = e.driver.FindByText(ctx, "ダウンロード", "form")
		if err != nil {
			return false, err
		}
		return ref != nil, nil
	})
	if err != nil {
		return err
	}
	if result != common.PollSatisfied || ref == nil {
		return models.ErrDownloadTriggerNotFound
	}
	return e.driver.Click(ctx, ref)
}

// awaitGeneration gives the server its settle window, then reloads the
// exporter so the history list reflects the new entry.
func (e *Engine) awaitGeneration(ctx context.Context, job *models.ClientJob) error {
	if e.opts.GenerationSettle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.opts.GenerationSettle):
		}
	}
	_, err := e.driver.Navigate(ctx, job.ExportURL)
	return err
}

// resolveDownloadLink polls the history list until the row produced by this
// run turns ready. Processing and expired rows keep the poll alive; the
// top-of-list entry may change between scans, so every scan re-reads state.
func (e *Engine) resolveDownloadLink(ctx context.Context, job *models.ClientJob) (*interfaces.ElementRef, error) {
	var link *interfaces.ElementRef

	result, err := common.PollUntil(ctx, e.opts.HistoryPollInterval, e.opts.HistoryPollAttempts, func(ctx context.Context) (bool, error) {
		doc, err := e.snapshot(ctx)
		if err != nil {
			return false, err
		}

		rows := parseHistoryRows(doc, e.opts.HistoryLookback)
		row := matchHistoryRow(rows, job.PresetName)
		if row == nil {
			e.logger.Debug().Int("rows", len(rows)).Str("preset", job.PresetName).Msg("No matching history row yet")
			return false, nil
		}

		switch row.Status {
		case models.HistoryReady:
			if row.Download == nil {
				e.logger.Debug().Str("label", row.Label).Msg("Ready row has no download link yet")
				return false, nil
			}
			link = row.Download
			return true, nil
		case models.HistoryProcessing:
			e.logger.Debug().Str("label", row.Label).Msg("Export still generating")
		case models.HistoryExpired:
			e.logger.Debug().Str("label", row.Label).Msg("Matched row expired, waiting for a fresh one")
		default:
			e.logger.Debug().Str("label", row.Label).Msg("Unrecognized history status")
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if result != common.PollSatisfied {
		return nil, fmt.Errorf("%w: preset %q after %d scans", models.ErrDownloadLinkTimeout, job.PresetName, e.opts.HistoryPollAttempts)
	}
	return link, nil
}

// download configures the sink, clicks the resolved link, and waits for a
// completed CSV to land.
func (e *Engine) download(ctx context.Context, link *interfaces.ElementRef) (string, error) {
	before, err := snapshotDir(e.opts.DownloadDir)
	if err != nil {
		return "", fmt.Errorf("prepare download sink: %w", err)
	}
	if err := e.driver.SetDownloadDir(ctx, e.opts.DownloadDir); err != nil {
		return "", err
	}
	if err := e.driver.Click(ctx, link); err != nil {
		return "", err
	}

	var path string
	result, err := common.PollFor(ctx, time.Second, e.opts.Timeout, func(context.Context) (bool, error) {
		p, err := findNewDownload(e.opts.DownloadDir, before)
		if err != nil {
			return false, err
		}
		path = p
		return p != "", nil
	})
	if err != nil {
		return "", err
	}
	if result != common.PollSatisfied {
		return "", fmt.Errorf("%w: no file within %s", models.ErrDownloadTimeout, e.opts.Timeout)
	}

	e.logger.Info().Str("file", path).Msg("Download completed")
	return path, nil
}

// snapshot parses the current page into a queryable document.
func (e *Engine) snapshot(ctx context.Context) (*goquery.Document, error) {
	pageHTML, err := e.driver.OuterHTML(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
}
