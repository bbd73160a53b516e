package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/gamedeck/internal/state"
)

// Store persists state records as Redis strings. Records never expire.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// Load retrieves a record, returning nil when it was never saved
func (s *Store) Load(ctx context.Context, record state.Record) ([]byte, error) {
	data, err := s.client.Get(ctx, RecordKey(record)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", record, err)
	}
	return data, nil
}

// Save overwrites a record
func (s *Store) Save(ctx context.Context, record state.Record, data []byte) error {
	if err := s.client.Set(ctx, RecordKey(record), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", record, err)
	}
	return nil
}

// Ping checks that Redis answers
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

var _ state.Backend = (*Store)(nil)
