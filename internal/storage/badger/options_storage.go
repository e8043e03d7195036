package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/lexport/internal/interfaces"
)

// OptionsStorage implements the OptionsStorage interface for Badger
type OptionsStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewOptionsStorage creates a new OptionsStorage instance
func NewOptionsStorage(db *BadgerDB, logger arbor.ILogger) interfaces.OptionsStorage {
	return &OptionsStorage{
		db:     db,
		logger: logger,
	}
}

// defaultRunOptions mirrors the export workflow's baseline timings.
func defaultRunOptions(userID string) *interfaces.RunOptions {
	return &interfaces.RunOptions{
		UserID:           userID,
		TimeoutMS:        60000,
		RetryCount:       3,
		RetryDelayMS:     5000,
		Headless:         true,
		CleanupDownloads: true,
		StopOnFirstError: false,
		ScheduleEnabled:  false,
		ScheduleSpec:     "0 6 * * *",
	}
}

// GetOptions returns the user's run options, creating and persisting the
// defaults on first read.
func (s *OptionsStorage) GetOptions(ctx context.Context, userID string) (*interfaces.RunOptions, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var opts interfaces.RunOptions
	err := s.db.Store().Get(userID, &opts)
	if err == nil {
		return &opts, nil
	}
	if err != badgerhold.ErrNotFound {
		return nil, fmt.Errorf("failed to get options for user %s: %w", userID, err)
	}

	defaults := defaultRunOptions(userID)
	if err := s.SaveOptions(ctx, defaults); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("user", userID).Msg("Created default run options")
	return defaults, nil
}

func (s *OptionsStorage) SaveOptions(ctx context.Context, opts *interfaces.RunOptions) error {
	if opts == nil || opts.UserID == "" {
		return fmt.Errorf("options user id is required")
	}
	if err := s.db.Store().Upsert(opts.UserID, opts); err != nil {
		return fmt.Errorf("failed to save options: %w", err)
	}
	return nil
}
