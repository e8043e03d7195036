package interfaces

import (
	"context"

	"github.com/ternarybob/lexport/internal/models"
)

// ClientRecord is a stored client configuration row.
type ClientRecord struct {
	ID         string `badgerhold:"key"`
	UserID     string `badgerholdIndex:"UserID"`
	Name       string
	ExportURL  string
	PresetName string
	SheetID    string
	SheetTab   string
	Email      string
	Password   string
	// CookiesJSON holds serialized session cookies captured during setup.
	CookiesJSON []byte
	ProfileKey  string
	IsSetup     bool
}

// RunOptions is the per-user shared options record.
type RunOptions struct {
	UserID           string `badgerhold:"key"`
	TimeoutMS        int
	RetryCount       int
	RetryDelayMS     int
	Headless         bool
	CleanupDownloads bool
	StopOnFirstError bool
	ScheduleEnabled  bool
	ScheduleSpec     string
}

// ClientStorage persists client configurations.
type ClientStorage interface {
	SaveClient(ctx context.Context, client *ClientRecord) error
	GetClient(ctx context.Context, id string) (*ClientRecord, error)
	ListClientsByUser(ctx context.Context, userID string) ([]*ClientRecord, error)
	ListAllClients(ctx context.Context) ([]*ClientRecord, error)
	DeleteClient(ctx context.Context, id string) error
	SetClientCookies(ctx context.Context, id string, cookies []models.SessionCookie) error
}

// OptionsStorage persists per-user run options, creating defaults on first read.
type OptionsStorage interface {
	GetOptions(ctx context.Context, userID string) (*RunOptions, error)
	SaveOptions(ctx context.Context, opts *RunOptions) error
}

// StorageManager aggregates the storage interfaces over one database.
type StorageManager interface {
	ClientStorage() ClientStorage
	OptionsStorage() OptionsStorage
	Close() error
}
