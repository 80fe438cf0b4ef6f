// Package redis provides the Redis-backed record store used for the
// backend's CRUD records (installations, workflow runs, connector sources,
// OAuth tokens).
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/conduit-ai/conduit/pkg/domain"
	"github.com/conduit-ai/conduit/pkg/ports"
)

// Store implements ports.RecordStore using Redis. Each kind keeps a set of
// its record IDs alongside the JSON values so List does not require a scan.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for records. Zero means no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for records.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "conduit:",
		ttl:    0,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(kind, id string) string {
	return s.prefix + kind + ":" + id
}

func (s *Store) indexKey(kind string) string {
	return s.prefix + kind + ":index"
}

// Put persists the record and adds its ID to the kind index.
func (s *Store) Put(ctx context.Context, kind, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(kind, id), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(kind), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Get loads the record into out.
func (s *Store) Get(ctx context.Context, kind, id string, out any) error {
	val, err := s.client.Get(ctx, s.key(kind, id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.ErrRecordNotFound
		}
		return fmt.Errorf("failed to load from redis: %w", err)
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}

// Delete removes the record and its index entry.
func (s *Store) Delete(ctx context.Context, kind, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(kind, id))
	pipe.SRem(ctx, s.indexKey(kind), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// List returns the IDs of all records of the given kind.
func (s *Store) List(ctx context.Context, kind string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list from redis: %w", err)
	}
	return ids, nil
}

var _ ports.RecordStore = (*Store)(nil)
