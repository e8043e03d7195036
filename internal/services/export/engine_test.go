package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/lexport/internal/browser/browsertest"
	"github.com/ternarybob/lexport/internal/common"
	"github.com/ternarybob/lexport/internal/interfaces"
	"github.com/ternarybob/lexport/internal/models"
)

const (
	exporterURL = "https://manager.example.net/line/1/export"
	copyPageURL = "https://manager.example.net/line/1/export/copy"
)

// passthroughAuth is an auth collaborator for sessions that are already
// logged in: it only performs the navigation.
type passthroughAuth struct{ driver interfaces.PageDriver }

func (a passthroughAuth) Ensure(ctx context.Context, _ *models.ClientJob, url string) error {
	_, err := a.driver.Navigate(ctx, url)
	return err
}

type noopSwitcher struct{}

func (noopSwitcher) SwitchTo(context.Context, string) (bool, error) { return false, nil }

const presetTable = `<table><tbody>
	<tr><td>DailyReport</td><td><a>CSVエクスポート</a></td></tr>
	<tr><td>MonthlyReport</td><td><a class="btn-success">検索条件をコピーして利用</a></td></tr>
</tbody></table>`

func exporterPage(historyRows string) browsertest.Page {
	return browsertest.Page{
		Title: "CSVエクスポート | Lステップ",
		HTML: `<html><body>` + presetTable + `<table><tbody>` + historyRows + `</tbody></table></body></html>`,
	}
}

const (
	rowProcessing = `<tr><td>9</td><td>MonthlyReportのコピー1</td><td>a</td><td>b</td><td>c</td><td>処理中</td></tr>`
	rowReady      = `<tr><td>9</td><td>MonthlyReportのコピー1</td><td>a</td><td>b</td><td>c</td><td><a href="/dl/9">ダウンロード</a></td></tr>`
	rowOld        = `<tr><td>8</td><td>OldExport</td><td>a</td><td>b</td><td>c</td><td>期限切れ</td></tr>`
)

var copyPage = browsertest.Page{
	Title: "エクスポート設定",
	HTML:  `<html><body><form><button id="submit_button">エクスポート</button></form></body></html>`,
}

func testOptions(downloadDir string) Options {
	return Options{
		DownloadDir:         downloadDir,
		Timeout:             500 * time.Millisecond,
		GenerationSettle:    0,
		HistoryPollInterval: 2 * time.Millisecond,
		HistoryPollAttempts: 60,
		HistoryLookback:     10,
	}
}

func TestRunEndToEnd(t *testing.T) {
	downloadDir := t.TempDir()

	fake := browsertest.New(exporterURL, map[string]browsertest.Page{
		exporterURL: exporterPage(rowOld),
		copyPageURL: copyPage,
	})

	triggered := false
	historyPolls := 0

	fake.OnClick = func(f *browsertest.Fake, ref *interfaces.ElementRef) {
		switch {
		case ref.Text == "検索条件をコピーして利用":
			f.CurrentURL = copyPageURL
		case ref.Selector == "#submit_button":
			triggered = true
			f.SetPage(exporterURL, exporterPage(rowProcessing+rowOld))
		case ref.Text == "ダウンロード":
			require.NoError(t, os.WriteFile(filepath.Join(downloadDir, "export_20240101.csv"), []byte("x"), 0644))
		}
	}
	fake.OnOuterHTML = func(f *browsertest.Fake) {
		if !triggered || f.CurrentURL != exporterURL {
			return
		}
		historyPolls++
		if historyPolls == 3 {
			f.SetPage(exporterURL, exporterPage(rowReady+rowOld))
		}
	}

	engine := NewEngine(fake, passthroughAuth{fake}, noopSwitcher{}, testOptions(downloadDir), common.GetLogger())

	path, err := engine.Run(context.Background(), &models.ClientJob{
		Name:       "acme",
		ExportURL:  exporterURL,
		PresetName: "MonthlyReport",
	})
	require.NoError(t, err)
	assert.Equal(t, "export_20240101.csv", filepath.Base(path))

	// Processing rows on the first two scans; the engine proceeded only when
	// the third scan showed the ready marker.
	assert.Equal(t, 3, historyPolls)
	assert.Equal(t, downloadDir, fake.DownloadDir, "sink configured before the download click")
	assert.Empty(t, fake.CapturedStages)
}

func TestRunPresetNotFound(t *testing.T) {
	fake := browsertest.New(exporterURL, map[string]browsertest.Page{
		exporterURL: exporterPage(rowOld),
	})
	engine := NewEngine(fake, passthroughAuth{fake}, noopSwitcher{}, testOptions(t.TempDir()), common.GetLogger())

	_, err := engine.Run(context.Background(), &models.ClientJob{
		Name:       "acme",
		ExportURL:  exporterURL,
		PresetName: "NoSuchPreset",
	})
	require.ErrorIs(t, err, models.ErrPresetNotFound)

	// The failure capture hook ran exactly once, for the failing stage.
	require.Len(t, fake.CapturedStages, 1)
	assert.Equal(t, "selecting-preset-error", fake.CapturedStages[0])
}

func TestTriggerWaitsForPageTransition(t *testing.T) {
	// The copy page renders only after the preset click's navigation
	// finishes. The first two checks still see the exporter page; the engine
	// must keep waiting and click the submit control, never the history
	// table's download link.
	fake := browsertest.New(exporterURL, map[string]browsertest.Page{
		exporterURL: exporterPage(rowReady + rowOld),
		copyPageURL: copyPage,
	})

	checks := 0
	copyClicked := false
	fake.OnClick = func(f *browsertest.Fake, ref *interfaces.ElementRef) {
		if ref.Text == "検索条件をコピーして利用" {
			copyClicked = true
		}
	}
	fake.OnExists = func(f *browsertest.Fake, _ string) {
		if !copyClicked {
			return
		}
		checks++
		if checks == 3 {
			f.CurrentURL = copyPageURL
		}
	}

	opts := testOptions(t.TempDir())
	opts.TriggerWait = 100 * time.Millisecond
	engine := NewEngine(fake, passthroughAuth{fake}, noopSwitcher{}, opts, common.GetLogger())

	err := engine.triggerExport(contextAfterPresetClick(t, engine, fake))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, checks, 3, "waited through the transition")
	assert.Contains(t, fake.ClickedTexts, "submit")
	assert.NotContains(t, fake.ClickedTexts, "ダウンロード", "stale history link must not be clicked")
}

func TestTriggerNeverClicksStaleHistoryLink(t *testing.T) {
	// The transition never completes: the session stays on the exporter page
	// with a ready history row. The wait must expire with a distinct error
	// instead of firing the row's download link.
	fake := browsertest.New(exporterURL, map[string]browsertest.Page{
		exporterURL: exporterPage(rowReady + rowOld),
	})

	opts := testOptions(t.TempDir())
	opts.TriggerWait = 10 * time.Millisecond
	engine := NewEngine(fake, passthroughAuth{fake}, noopSwitcher{}, opts, common.GetLogger())

	err := engine.triggerExport(contextAfterPresetClick(t, engine, fake))
	require.ErrorIs(t, err, models.ErrDownloadTriggerNotFound)
	assert.NotContains(t, fake.ClickedTexts, "ダウンロード", "stale history link must not be clicked")
}

// contextAfterPresetClick drives the engine through the preset click so the
// trigger stage starts from the same session state a full run reaches.
func contextAfterPresetClick(t *testing.T, engine *Engine, fake *browsertest.Fake) context.Context {
	t.Helper()
	ctx := context.Background()
	job := &models.ClientJob{Name: "acme", ExportURL: exporterURL, PresetName: "MonthlyReport"}
	require.NoError(t, engine.accessPage(ctx, job))
	require.NoError(t, engine.selectPreset(ctx, job))
	return ctx
}

func TestRunDownloadLinkTimeout(t *testing.T) {
	fake := browsertest.New(exporterURL, map[string]browsertest.Page{
		exporterURL: exporterPage(rowProcessing),
		copyPageURL: copyPage,
	})
	fake.OnClick = func(f *browsertest.Fake, ref *interfaces.ElementRef) {
		if ref.Text == "検索条件をコピーして利用" {
			f.CurrentURL = copyPageURL
		}
	}

	opts := testOptions(t.TempDir())
	opts.HistoryPollAttempts = 3
	opts.HistoryPollInterval = time.Millisecond
	engine := NewEngine(fake, passthroughAuth{fake}, noopSwitcher{}, opts, common.GetLogger())

	_, err := engine.Run(context.Background(), &models.ClientJob{
		Name:       "acme",
		ExportURL:  exporterURL,
		PresetName: "MonthlyReport",
	})
	require.ErrorIs(t, err, models.ErrDownloadLinkTimeout)
	require.Len(t, fake.CapturedStages, 1)
	assert.Equal(t, "resolving-download-link-error", fake.CapturedStages[0])
}

func TestRunDownloadTimeout(t *testing.T) {
	fake := browsertest.New(exporterURL, map[string]browsertest.Page{
		exporterURL: exporterPage(rowReady),
		copyPageURL: copyPage,
	})
	fake.OnClick = func(f *browsertest.Fake, ref *interfaces.ElementRef) {
		if ref.Text == "検索条件をコピーして利用" {
			f.CurrentURL = copyPageURL
		}
		// The download click produces no file.
	}

	opts := testOptions(t.TempDir())
	opts.Timeout = 10 * time.Millisecond
	engine := NewEngine(fake, passthroughAuth{fake}, noopSwitcher{}, opts, common.GetLogger())

	_, err := engine.Run(context.Background(), &models.ClientJob{
		Name:       "acme",
		ExportURL:  exporterURL,
		PresetName: "MonthlyReport",
	})
	require.ErrorIs(t, err, models.ErrDownloadTimeout)
	require.Len(t, fake.CapturedStages, 1)
	assert.Equal(t, "downloading-error", fake.CapturedStages[0])
}

func TestRunExpiredRowKeepsPolling(t *testing.T) {
	fake := browsertest.New(exporterURL, map[string]browsertest.Page{
		exporterURL: exporterPage(rowOld),
		copyPageURL: copyPage,
	})

	triggered := false
	polls := 0
	expiredRow := `<tr><td>9</td><td>MonthlyReportのコピー1</td><td>a</td><td>b</td><td>c</td><td>期限切れ</td></tr>`

	fake.OnClick = func(f *browsertest.Fake, ref *interfaces.ElementRef) {
		switch {
		case ref.Text == "検索条件をコピーして利用":
			f.CurrentURL = copyPageURL
		case ref.Selector == "#submit_button":
			triggered = true
			f.SetPage(exporterURL, exporterPage(expiredRow))
		case ref.Text == "ダウンロード":
			require.NoError(t, os.WriteFile(filepath.Join(fake.DownloadDir, "export.csv"), []byte("x"), 0644))
		}
	}
	fake.OnOuterHTML = func(f *browsertest.Fake) {
		if !triggered || f.CurrentURL != exporterURL {
			return
		}
		polls++
		if polls == 2 {
			// A fresh ready row appears above the expired one.
			f.SetPage(exporterURL, exporterPage(rowReady+expiredRow))
		}
	}

	engine := NewEngine(fake, passthroughAuth{fake}, noopSwitcher{}, testOptions(t.TempDir()), common.GetLogger())

	path, err := engine.Run(context.Background(), &models.ClientJob{
		Name:       "acme",
		ExportURL:  exporterURL,
		PresetName: "MonthlyReport",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.GreaterOrEqual(t, polls, 2, "expired row must not fail the poll")
}
