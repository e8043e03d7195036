package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexport/internal/browser"
	"github.com/ternarybob/lexport/internal/common"
	"github.com/ternarybob/lexport/internal/interfaces"
	"github.com/ternarybob/lexport/internal/models"
	"github.com/ternarybob/lexport/internal/services/auth"
	"github.com/ternarybob/lexport/internal/services/batch"
	"github.com/ternarybob/lexport/internal/services/csvdecode"
	"github.com/ternarybob/lexport/internal/services/export"
	"github.com/ternarybob/lexport/internal/services/profile"
	"github.com/ternarybob/lexport/internal/services/scheduler"
	"github.com/ternarybob/lexport/internal/services/sheets"
	badgerstore "github.com/ternarybob/lexport/internal/storage/badger"
	"github.com/ternarybob/lexport/internal/storage/clientsfile"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	userID       = flag.String("user", "all", "Run clients belonging to this user id, or \"all\"")
	clientsFile  = flag.String("clients", "", "YAML clients file (overrides the store)")
	headful      = flag.Bool("headful", false, "Run the browser with a visible window")
	runSchedule  = flag.Bool("schedule", false, "Stay resident and run on the configured cron schedule")
	runNow       = flag.Bool("run-now", false, "In schedule mode, also run a batch immediately on startup")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()
	common.LoadVersionFromFile()

	if *showVersion || *showVersionV {
		fmt.Printf("Lexport version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		for _, candidate := range []string{"lexport.toml", "config/lexport.toml"} {
			if _, err := os.Stat(candidate); err == nil {
				configFiles = append(configFiles, candidate)
				break
			}
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, *headful, *clientsFile)

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	if err := config.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	jobs, err := loadJobs()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load client jobs")
		os.Exit(1)
	}
	if len(jobs) == 0 {
		logger.Warn().Str("user", *userID).Msg("No client jobs to run")
		os.Exit(0)
	}
	// Stored run options may have been overlaid while loading jobs; flags
	// still win.
	common.ApplyFlagOverrides(config, *headful, *clientsFile)

	orchestrator, err := buildOrchestrator()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
		os.Exit(1)
	}

	if *runSchedule || config.Schedule.Enabled {
		runScheduled(orchestrator, jobs)
		return
	}

	summary, err := orchestrator.Run(context.Background(), jobs)
	if err != nil {
		logger.Error().Err(err).Msg("Batch aborted")
	}
	if err != nil || !summary.AllSucceeded() {
		os.Exit(1)
	}
}

// loadJobs reads the batch's client jobs: the YAML file when configured,
// otherwise the Badger store filtered by -user.
func loadJobs() ([]*models.ClientJob, error) {
	if config.Clients.File != "" {
		logger.Info().Str("file", config.Clients.File).Msg("Loading clients from file")
		return clientsfile.Load(config.Clients.File)
	}

	manager, err := badgerstore.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}
	defer manager.Close()

	ctx := context.Background()
	var records []*interfaces.ClientRecord
	if *userID == "all" {
		records, err = manager.ClientStorage().ListAllClients(ctx)
	} else {
		records, err = manager.ClientStorage().ListClientsByUser(ctx, *userID)
		if err == nil {
			applyStoredOptions(ctx, manager)
		}
	}
	if err != nil {
		return nil, err
	}

	jobs := make([]*models.ClientJob, 0, len(records))
	for _, rec := range records {
		job, err := clientsfile.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// applyStoredOptions overlays the user's persisted run options onto the
// export configuration.
func applyStoredOptions(ctx context.Context, manager interfaces.StorageManager) {
	opts, err := manager.OptionsStorage().GetOptions(ctx, *userID)
	if err != nil {
		logger.Warn().Err(err).Str("user", *userID).Msg("Could not load stored run options, using config values")
		return
	}
	config.ApplyRunOptions(opts)
}

// buildOrchestrator wires the production service graph.
func buildOrchestrator() (*batch.Orchestrator, error) {
	ctx := context.Background()

	uploader, err := sheets.NewService(ctx, config.Sheets, logger)
	if err != nil {
		return nil, err
	}

	profiles := profile.NewStore(config.Browser.ProfileBaseDir, logger)

	factory := func(ctx context.Context, profileDir string, headless bool) (interfaces.PageDriver, error) {
		return browser.Launch(ctx, browser.LaunchOptions{
			ProfileDir:        profileDir,
			Headless:          headless,
			UserAgent:         config.Browser.UserAgent,
			NavigationTimeout: config.Browser.NavigationTimeout.Std(),
			LogsDir:           config.Browser.LogsDir,
			Attempts:          config.Browser.LaunchAttempts,
			CleanupLocks:      profiles.CleanupLocks,
		}, logger)
	}

	workflow := &batch.ExportWorkflow{
		AuthOpts: auth.Options{
			Interactive: config.Browser.Interactive,
			WaitTimeout: config.Export.AuthWaitTimeout.Std(),
		},
		EngineOpts: export.Options{
			DownloadDir:         config.Browser.DownloadDir,
			Timeout:             config.Export.Timeout.Std(),
			GenerationSettle:    config.Export.GenerationSettle.Std(),
			HistoryPollInterval: config.Export.HistoryPollInterval.Std(),
			HistoryPollAttempts: config.Export.HistoryPollAttempts,
			HistoryLookback:     config.Export.HistoryLookback,
		},
		Logger: logger,
	}

	opts := batch.Options{
		SharedSession:    config.Export.SharedSession,
		Headless:         config.Browser.Headless,
		RetryCount:       config.Export.RetryCount,
		RetryDelay:       config.Export.RetryDelay.Std(),
		RequestDelay:     config.Export.RequestDelay.Std(),
		StopOnFirstError: config.Export.StopOnFirstError,
		CleanupDownloads: config.Export.CleanupDownloads,
	}

	return batch.NewOrchestrator(opts, profiles, factory, workflow, csvdecode.NewService(logger), uploader, logger), nil
}

// runScheduled keeps the process resident, running the batch on the cron
// spec until interrupted.
func runScheduled(orchestrator *batch.Orchestrator, jobs []*models.ClientJob) {
	sched := scheduler.NewScheduler(func(ctx context.Context) error {
		summary, err := orchestrator.Run(ctx, jobs)
		if err != nil {
			return err
		}
		if !summary.AllSucceeded() {
			return fmt.Errorf("%d of %d jobs failed", summary.Failed(), len(summary.Results))
		}
		return nil
	}, logger)

	if err := sched.Start(config.Schedule.Spec); err != nil {
		logger.Fatal().Err(err).Str("spec", config.Schedule.Spec).Msg("Failed to start scheduler")
		os.Exit(1)
	}
	if *runNow {
		sched.RunNow()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down")
	sched.Stop()
}
