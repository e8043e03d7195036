package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/lexport/internal/interfaces"
	"github.com/ternarybob/lexport/internal/models"
)

// ClientStorage implements the ClientStorage interface for Badger
type ClientStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewClientStorage creates a new ClientStorage instance
func NewClientStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ClientStorage {
	return &ClientStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ClientStorage) SaveClient(ctx context.Context, client *interfaces.ClientRecord) error {
	if client == nil {
		return fmt.Errorf("client is nil")
	}
	if client.Name == "" {
		return fmt.Errorf("client name is required")
	}
	if client.ID == "" {
		client.ID = uuid.New().String()
	}

	if err := s.db.Store().Upsert(client.ID, client); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	s.logger.Debug().Str("client", client.Name).Str("id", client.ID).Msg("Client saved")
	return nil
}

func (s *ClientStorage) GetClient(ctx context.Context, id string) (*interfaces.ClientRecord, error) {
	var client interfaces.ClientRecord
	if err := s.db.Store().Get(id, &client); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("client not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}

func (s *ClientStorage) ListClientsByUser(ctx context.Context, userID string) ([]*interfaces.ClientRecord, error) {
	var clients []interfaces.ClientRecord
	query := badgerhold.Where("UserID").Eq(userID).Index("UserID").SortBy("Name")
	if err := s.db.Store().Find(&clients, query); err != nil {
		return nil, fmt.Errorf("failed to list clients for user %s: %w", userID, err)
	}

	result := make([]*interfaces.ClientRecord, len(clients))
	for i := range clients {
		result[i] = &clients[i]
	}
	return result, nil
}

func (s *ClientStorage) ListAllClients(ctx context.Context) ([]*interfaces.ClientRecord, error) {
	var clients []interfaces.ClientRecord
	if err := s.db.Store().Find(&clients, badgerhold.Where("ID").Ne("").SortBy("Name")); err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	result := make([]*interfaces.ClientRecord, len(clients))
	for i := range clients {
		result[i] = &clients[i]
	}
	return result, nil
}

func (s *ClientStorage) DeleteClient(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &interfaces.ClientRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("client not found: %s", id)
		}
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return nil
}

// SetClientCookies replaces a client's stored session cookies, marking the
// record as set up. Called after a successful interactive login.
func (s *ClientStorage) SetClientCookies(ctx context.Context, id string, cookies []models.SessionCookie) error {
	client, err := s.GetClient(ctx, id)
	if err != nil {
		return err
	}

	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("failed to serialize cookies: %w", err)
	}
	client.CookiesJSON = data
	client.IsSetup = len(cookies) > 0

	return s.SaveClient(ctx, client)
}
