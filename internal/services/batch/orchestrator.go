package batch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/lexport/internal/interfaces"
	"github.com/ternarybob/lexport/internal/models"
	"github.com/ternarybob/lexport/internal/services/profile"
)

// Workflow runs one export attempt for one job inside an established session.
// The production implementation wires the auth resolver, account switcher,
// and export engine together; tests substitute a stub.
type Workflow interface {
	Run(ctx context.Context, driver interfaces.PageDriver, job *models.ClientJob) (string, error)
}

// Options is the batch run policy.
type Options struct {
	SharedSession    bool
	Headless         bool
	RetryCount       int
	RetryDelay       time.Duration
	RequestDelay     time.Duration
	StopOnFirstError bool
	CleanupDownloads bool
}

func (o *Options) fillDefaults() {
	if o.RetryCount < 1 {
		o.RetryCount = 1
	}
}

// Orchestrator runs client jobs sequentially: one logical thread of control,
// no parallel sessions, job N+1 never starts before job N terminates.
type Orchestrator struct {
	opts     Options
	profiles *profile.Store
	factory  interfaces.DriverFactory
	workflow Workflow
	decoder  interfaces.CSVDecoder
	uploader interfaces.SheetUploader
	limiter  *rate.Limiter
	logger   arbor.ILogger
}

func NewOrchestrator(
	opts Options,
	profiles *profile.Store,
	factory interfaces.DriverFactory,
	workflow Workflow,
	decoder interfaces.CSVDecoder,
	uploader interfaces.SheetUploader,
	logger arbor.ILogger,
) *Orchestrator {
	opts.fillDefaults()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.RequestDelay), 1)
	}

	return &Orchestrator{
		opts:     opts,
		profiles: profiles,
		factory:  factory,
		workflow: workflow,
		decoder:  decoder,
		uploader: uploader,
		limiter:  limiter,
		logger:   logger,
	}
}

// Run executes the batch and returns its summary. The returned error is
// non-nil only when the batch itself aborted: a shared session that could not
// launch, a cancelled context, or stop-on-first-error tripping. Individual
// job failures live in the summary.
func (o *Orchestrator) Run(ctx context.Context, jobs []*models.ClientJob) (*models.BatchSummary, error) {
	summary := &models.BatchSummary{StartedAt: time.Now()}
	defer func() { summary.FinishedAt = time.Now() }()

	if len(jobs) == 0 {
		o.logger.Warn().Msg("Batch contains no jobs")
		return summary, nil
	}

	o.logger.Info().
		Int("jobs", len(jobs)).
		Bool("shared_session", o.opts.SharedSession).
		Int("retry_count", o.opts.RetryCount).
		Msg("Batch starting")

	var shared interfaces.PageDriver
	if o.opts.SharedSession {
		driver, err := o.launch(ctx, jobs[0])
		if err != nil {
			return summary, fmt.Errorf("shared session: %w", err)
		}
		shared = driver
		// Closed exactly once, whatever individual jobs do.
		defer shared.Close()
	}

	var abort error
	for _, job := range jobs {
		if err := o.limiter.Wait(ctx); err != nil {
			abort = err
			break
		}

		result := o.runJob(ctx, job, shared)
		summary.Results = append(summary.Results, result)

		if !result.Success && o.opts.StopOnFirstError {
			abort = fmt.Errorf("job %s failed with stop-on-first-error set: %s", job.Name, result.ErrorMessage)
			break
		}
	}

	o.logSummary(summary)
	return summary, abort
}

// runJob drives one job to a terminal state, retrying workflow failures up to
// the configured bound.
func (o *Orchestrator) runJob(ctx context.Context, job *models.ClientJob, shared interfaces.PageDriver) models.JobResult {
	result := models.JobResult{Name: job.Name}

	if err := job.Validate(); err != nil {
		result.ErrorMessage = err.Error()
		o.logger.Error().Err(err).Str("client", job.Name).Msg("Job rejected before execution")
		return result
	}

	driver := shared
	if driver == nil {
		d, err := o.launch(ctx, job)
		if err != nil {
			result.ErrorMessage = err.Error()
			result.Attempts = append(result.Attempts, failedAttempt(1, err))
			o.logger.Error().Err(err).Str("client", job.Name).Msg("Session launch failed")
			return result
		}
		driver = d
		defer driver.Close()
	}

	for attemptNum := 1; attemptNum <= o.opts.RetryCount; attemptNum++ {
		attempt := models.ExportAttempt{
			ID:            uuid.New().String(),
			AttemptNumber: attemptNum,
			StartedAt:     time.Now(),
			Outcome:       models.AttemptPending,
		}

		err := o.runAttempt(ctx, driver, job, &result)
		attempt.CompletedAt = time.Now()

		if err == nil {
			attempt.Outcome = models.AttemptSucceeded
			result.Attempts = append(result.Attempts, attempt)
			result.Success = true
			o.logger.Info().Str("client", job.Name).Int("attempt", attemptNum).Msg("Job succeeded")
			return result
		}

		attempt.Outcome = models.AttemptFailed
		attempt.FailureReason = err.Error()
		result.Attempts = append(result.Attempts, attempt)
		result.ErrorMessage = err.Error()

		o.logger.Warn().
			Err(err).
			Str("client", job.Name).
			Int("attempt", attemptNum).
			Int("max_attempts", o.opts.RetryCount).
			Msg("Export attempt failed")

		if !models.IsRetryable(err) {
			o.logger.Error().Str("client", job.Name).Msg("Failure is not retryable, giving up")
			break
		}
		if attemptNum < o.opts.RetryCount && o.opts.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				result.ErrorMessage = ctx.Err().Error()
				return result
			case <-time.After(o.opts.RetryDelay):
			}
		}
	}

	return result
}

// runAttempt is one full try: export workflow, decode, upload, cleanup. The
// upload is folded into the attempt so a failed upload is retried with a
// fresh export.
func (o *Orchestrator) runAttempt(ctx context.Context, driver interfaces.PageDriver, job *models.ClientJob, result *models.JobResult) error {
	path, err := o.workflow.Run(ctx, driver, job)
	if err != nil {
		return err
	}
	result.FilePath = path

	rows, err := o.decoder.Decode(path)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	uploaded, err := o.uploader.Upload(ctx, rows, job.Sheet.SpreadsheetID, job.Sheet.TabName)
	if err != nil {
		return fmt.Errorf("upload to sheet %s: %w", job.Sheet.SpreadsheetID, err)
	}
	result.UpdatedCells = uploaded.UpdatedCells
	result.UpdatedRows = uploaded.UpdatedRows

	if o.opts.CleanupDownloads {
		if err := os.Remove(path); err != nil {
			o.logger.Warn().Err(err).Str("file", path).Msg("Download cleanup failed")
		}
	}
	return nil
}

// launch prepares the job's profile directory and starts a browser on it.
func (o *Orchestrator) launch(ctx context.Context, job *models.ClientJob) (interfaces.PageDriver, error) {
	dir, err := o.profiles.EnsureDir(job)
	if err != nil {
		return nil, fmt.Errorf("%w: prepare profile: %v", models.ErrSessionLaunch, err)
	}
	return o.factory(ctx, dir, o.opts.Headless)
}

func failedAttempt(n int, err error) models.ExportAttempt {
	now := time.Now()
	return models.ExportAttempt{
		ID:            uuid.New().String(),
		AttemptNumber: n,
		StartedAt:     now,
		CompletedAt:   now,
		Outcome:       models.AttemptFailed,
		FailureReason: err.Error(),
	}
}

func (o *Orchestrator) logSummary(summary *models.BatchSummary) {
	for _, r := range summary.Results {
		if r.Success {
			o.logger.Info().
				Str("client", r.Name).
				Int64("cells", r.UpdatedCells).
				Int("attempts", len(r.Attempts)).
				Msg("Job result: success")
			continue
		}
		o.logger.Error().
			Str("client", r.Name).
			Str("error", r.ErrorMessage).
			Int("attempts", len(r.Attempts)).
			Msg("Job result: failed")
	}
	o.logger.Info().
		Int("succeeded", summary.Succeeded()).
		Int("failed", summary.Failed()).
		Dur("elapsed", time.Since(summary.StartedAt)).
		Msg("Batch finished")
}
