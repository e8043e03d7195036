package common

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/lexport/internal/interfaces"
)

// Duration is a time.Duration that decodes from TOML duration strings like
// "90s" or "5m" via time.ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig  `toml:"logging"`
	Browser     BrowserConfig  `toml:"browser"`
	Export      ExportConfig   `toml:"export"`
	Storage     StorageConfig  `toml:"storage"`
	Sheets      SheetsConfig   `toml:"sheets"`
	Schedule    ScheduleConfig `toml:"schedule"`
	Clients     ClientsConfig  `toml:"clients"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// BrowserConfig controls how Chrome sessions are launched
type BrowserConfig struct {
	Headless          bool          `toml:"headless"`           // Run Chrome without a window
	Interactive       bool          `toml:"interactive"`        // Whether a human can complete login challenges (false on CI)
	UserAgent         string        `toml:"user_agent"`         // User agent override
	ProfileBaseDir    string        `toml:"profile_base_dir"`   // Base directory for per-client Chrome profiles
	DownloadDir       string        `toml:"download_dir"`       // Download sink directory
	LogsDir           string        `toml:"logs_dir"`           // Directory for failure screenshots and HTML dumps
	NavigationTimeout Duration `toml:"navigation_timeout"` // Per-navigation timeout, e.g. "60s"
	LaunchAttempts    int      `toml:"launch_attempts"`    // Launch retries with lock cleanup between attempts
}

// ExportConfig controls the export workflow and batch retry envelope.
// Duration values are strings like "60s" or "5m".
type ExportConfig struct {
	Timeout             Duration `toml:"timeout"`               // Download wait bound
	RetryCount          int      `toml:"retry_count"`           // Attempts per client job
	RetryDelay          Duration `toml:"retry_delay"`           // Fixed delay between attempts
	GenerationSettle    Duration `toml:"generation_settle"`     // Wait before reloading the history list
	HistoryPollInterval Duration `toml:"history_poll_interval"` // Interval between history re-scans
	HistoryPollAttempts int      `toml:"history_poll_attempts"` // History re-scan bound
	HistoryLookback     int      `toml:"history_lookback"`      // How many recent history rows to scan
	AuthWaitTimeout     Duration `toml:"auth_wait_timeout"`     // Human/challenge login wait bound
	RequestDelay        Duration `toml:"request_delay"`         // Minimum delay between job starts
	SharedSession       bool     `toml:"shared_session"`        // One browser for the whole batch
	StopOnFirstError    bool     `toml:"stop_on_first_error"`   // Abort the batch on the first failed job
	CleanupDownloads    bool     `toml:"cleanup_downloads"`     // Delete CSV files after upload
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SheetsConfig holds Google Sheets credential sources
type SheetsConfig struct {
	CredentialsFile string `toml:"credentials_file"` // Service account JSON path
	CredentialsEnv  string `toml:"credentials_env"`  // Env var holding the JSON (takes precedence)
}

type ScheduleConfig struct {
	Enabled bool   `toml:"enabled"`
	Spec    string `toml:"spec"` // Cron schedule format
}

// ClientsConfig points at an optional YAML client list used instead of the store
type ClientsConfig struct {
	File string `toml:"file"`
}

// NewDefaultConfig returns configuration defaults matching the target site's
// observed timings (server-side CSV generation takes seconds to a minute).
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Browser: BrowserConfig{
			Headless:          true,
			Interactive:       detectInteractive(),
			UserAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ProfileBaseDir:    ".browser-data",
			DownloadDir:       "downloads",
			LogsDir:           "logs",
			NavigationTimeout: Duration(60 * time.Second),
			LaunchAttempts:    2,
		},
		Export: ExportConfig{
			Timeout:             Duration(60 * time.Second),
			RetryCount:          3,
			RetryDelay:          Duration(5 * time.Second),
			GenerationSettle:    Duration(5 * time.Second),
			HistoryPollInterval: Duration(time.Second),
			HistoryPollAttempts: 60,
			HistoryLookback:     10,
			AuthWaitTimeout:     Duration(180 * time.Second),
			RequestDelay:        Duration(2 * time.Second),
			SharedSession:       false,
			StopOnFirstError:    false,
			CleanupDownloads:    true,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/lexport",
				ResetOnStartup: false,
			},
		},
		Sheets: SheetsConfig{
			CredentialsFile: "config/credentials.json",
			CredentialsEnv:  "GOOGLE_CREDENTIALS",
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Spec:    "0 6 * * *",
		},
		Clients: ClientsConfig{
			File: "",
		},
	}
}

// detectInteractive reports whether a human could plausibly complete a login
// challenge in this environment. CI and display-less Linux hosts cannot.
func detectInteractive() bool {
	if os.Getenv("CI") != "" {
		return false
	}
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return false
	}
	return true
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("LEXPORT_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("LEXPORT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if headless := os.Getenv("LEXPORT_HEADLESS"); headless != "" {
		if b, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = b
		}
	}
	if interactive := os.Getenv("LEXPORT_INTERACTIVE"); interactive != "" {
		if b, err := strconv.ParseBool(interactive); err == nil {
			config.Browser.Interactive = b
		}
	}
	if dir := os.Getenv("LEXPORT_PROFILE_DIR"); dir != "" {
		config.Browser.ProfileBaseDir = dir
	}
	if dir := os.Getenv("LEXPORT_DOWNLOAD_DIR"); dir != "" {
		config.Browser.DownloadDir = dir
	}
	if path := os.Getenv("LEXPORT_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if retries := os.Getenv("LEXPORT_RETRY_COUNT"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil && n > 0 {
			config.Export.RetryCount = n
		}
	}
	if timeout := os.Getenv("LEXPORT_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Export.Timeout = Duration(d)
		}
	}
	if file := os.Getenv("LEXPORT_CLIENTS_FILE"); file != "" {
		config.Clients.File = file
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, headful bool, clientsFile string) {
	if headful {
		config.Browser.Headless = false
	}
	if clientsFile != "" {
		config.Clients.File = clientsFile
	}
}

// ApplyRunOptions overlays a user's persisted run options onto the loaded
// configuration. Stored options sit between config files and CLI flags in
// priority, so flag overrides are applied after this.
func (c *Config) ApplyRunOptions(opts *interfaces.RunOptions) {
	if opts == nil {
		return
	}
	if opts.TimeoutMS > 0 {
		c.Export.Timeout = Duration(time.Duration(opts.TimeoutMS) * time.Millisecond)
	}
	if opts.RetryCount > 0 {
		c.Export.RetryCount = opts.RetryCount
	}
	if opts.RetryDelayMS > 0 {
		c.Export.RetryDelay = Duration(time.Duration(opts.RetryDelayMS) * time.Millisecond)
	}
	c.Browser.Headless = opts.Headless
	c.Export.CleanupDownloads = opts.CleanupDownloads
	c.Export.StopOnFirstError = opts.StopOnFirstError
	if opts.ScheduleEnabled {
		c.Schedule.Enabled = true
		if opts.ScheduleSpec != "" {
			c.Schedule.Spec = opts.ScheduleSpec
		}
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing mid-batch failures.
func (c *Config) Validate() error {
	if c.Export.RetryCount < 1 {
		return fmt.Errorf("export.retry_count must be at least 1, got %d", c.Export.RetryCount)
	}
	if c.Export.HistoryPollAttempts < 1 {
		return fmt.Errorf("export.history_poll_attempts must be at least 1, got %d", c.Export.HistoryPollAttempts)
	}
	if c.Browser.LaunchAttempts < 1 {
		return fmt.Errorf("browser.launch_attempts must be at least 1, got %d", c.Browser.LaunchAttempts)
	}
	if c.Schedule.Enabled && c.Schedule.Spec == "" {
		return fmt.Errorf("schedule.spec is required when schedule.enabled is true")
	}
	return nil
}
