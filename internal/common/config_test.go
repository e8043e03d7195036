package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/lexport/internal/interfaces"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFilesDefaults(t *testing.T) {
	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 3, cfg.Export.RetryCount)
	assert.Equal(t, 60, cfg.Export.HistoryPollAttempts)
	assert.Equal(t, time.Second, cfg.Export.HistoryPollInterval.Std())
	assert.Equal(t, "0 6 * * *", cfg.Schedule.Spec)
	assert.False(t, cfg.Schedule.Enabled)
}

func TestLoadFromFilesLaterFileWins(t *testing.T) {
	first := writeConfig(t, "base.toml", `
[export]
retry_count = 5
timeout = "90s"
`)
	second := writeConfig(t, "override.toml", `
[export]
retry_count = 2
`)

	cfg, err := LoadFromFiles(first, second)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Export.RetryCount, "later file overrides earlier")
	assert.Equal(t, 90*time.Second, cfg.Export.Timeout.Std(), "untouched keys keep the earlier value")
}

func TestLoadFromFilesDurationStrings(t *testing.T) {
	file := writeConfig(t, "durations.toml", `
[browser]
navigation_timeout = "45s"

[export]
timeout = "2m"
retry_delay = "2500ms"
generation_settle = "0s"
history_poll_interval = "500ms"
auth_wait_timeout = "3m"
request_delay = "1s"
`)

	cfg, err := LoadFromFiles(file)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Browser.NavigationTimeout.Std())
	assert.Equal(t, 2*time.Minute, cfg.Export.Timeout.Std())
	assert.Equal(t, 2500*time.Millisecond, cfg.Export.RetryDelay.Std())
	assert.Equal(t, time.Duration(0), cfg.Export.GenerationSettle.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Export.HistoryPollInterval.Std())
	assert.Equal(t, 3*time.Minute, cfg.Export.AuthWaitTimeout.Std())
	assert.Equal(t, time.Second, cfg.Export.RequestDelay.Std())
}

func TestLoadFromFilesRejectsBadDuration(t *testing.T) {
	file := writeConfig(t, "bad.toml", `
[export]
timeout = "ninety seconds"
`)
	_, err := LoadFromFiles(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadFromFilesEnvOverrides(t *testing.T) {
	t.Setenv("LEXPORT_HEADLESS", "false")
	t.Setenv("LEXPORT_RETRY_COUNT", "7")
	t.Setenv("LEXPORT_TIMEOUT", "45s")
	t.Setenv("LEXPORT_CLIENTS_FILE", "clients.yaml")

	file := writeConfig(t, "base.toml", `
[export]
retry_count = 4
`)

	cfg, err := LoadFromFiles(file)
	require.NoError(t, err)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 7, cfg.Export.RetryCount, "env beats file")
	assert.Equal(t, 45*time.Second, cfg.Export.Timeout.Std())
	assert.Equal(t, "clients.yaml", cfg.Clients.File)
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, true, "flag-clients.yaml")
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "flag-clients.yaml", cfg.Clients.File)

	// No-op flags leave the config alone.
	cfg2 := NewDefaultConfig()
	ApplyFlagOverrides(cfg2, false, "")
	assert.True(t, cfg2.Browser.Headless)
	assert.Empty(t, cfg2.Clients.File)
}

func TestApplyRunOptions(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ApplyRunOptions(&interfaces.RunOptions{
		TimeoutMS:        30000,
		RetryCount:       5,
		RetryDelayMS:     2000,
		Headless:         false,
		CleanupDownloads: false,
		StopOnFirstError: true,
		ScheduleEnabled:  true,
		ScheduleSpec:     "30 7 * * *",
	})

	assert.Equal(t, 30*time.Second, cfg.Export.Timeout.Std())
	assert.Equal(t, 5, cfg.Export.RetryCount)
	assert.Equal(t, 2*time.Second, cfg.Export.RetryDelay.Std())
	assert.False(t, cfg.Browser.Headless)
	assert.False(t, cfg.Export.CleanupDownloads)
	assert.True(t, cfg.Export.StopOnFirstError)
	assert.True(t, cfg.Schedule.Enabled)
	assert.Equal(t, "30 7 * * *", cfg.Schedule.Spec)

	cfg.ApplyRunOptions(nil) // must not panic
}

func TestValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Export.RetryCount = 0
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Schedule.Enabled = true
	cfg.Schedule.Spec = ""
	assert.Error(t, cfg.Validate())
}
