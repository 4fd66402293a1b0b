package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/auditpump/auditpump/internal/utils/logger"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	// DefaultBoltFilePath is the default path for the BoltDB file
	DefaultBoltFilePath = "auditpump-state.db"

	// DefaultBoltFileMode is the default file mode for the BoltDB file
	DefaultBoltFileMode = 0600

	// DefaultBoltTimeout is the default timeout for BoltDB operations
	DefaultBoltTimeout = 1 * time.Second
)

var (
	stateBucket = []byte("state")
	tokenKey    = []byte("token")
	eventKey    = []byte("last_event")
)

// BoltStore implements the Store interface using BoltDB. Each Get/Set runs
// in its own transaction, so no lock is held between poll iterations and a
// completed Set is durable before the next fetch is issued.
type BoltStore struct {
	db      *bolt.DB
	path    string
	options *BoltOptions
}

// BoltOptions configures the BoltDB store
type BoltOptions struct {
	// Path to the BoltDB file
	Path string
	// File mode for the BoltDB file
	FileMode os.FileMode
	// Timeout for BoltDB operations
	Timeout time.Duration
}

// NewBoltStore creates a new BoltStore with the given options
func NewBoltStore(opts *BoltOptions) *BoltStore {
	if opts == nil {
		opts = &BoltOptions{}
	}

	if opts.Path == "" {
		opts.Path = DefaultBoltFilePath
	}
	if opts.FileMode == 0 {
		opts.FileMode = DefaultBoltFileMode
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultBoltTimeout
	}

	return &BoltStore{
		path:    opts.Path,
		options: opts,
	}
}

// Open initializes the BoltDB database
func (s *BoltStore) Open() error {
	logger.Debug("Opening state database", zap.String("path", s.path))

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for database: %w", err)
		}
	}

	db, err := bolt.Open(s.path, s.options.FileMode, &bolt.Options{Timeout: s.options.Timeout})
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	s.db = db

	err = s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		if err != nil {
			return fmt.Errorf("failed to create state bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		s.db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	return nil
}

// Close closes the BoltDB database
func (s *BoltStore) Close() error {
	if s.db != nil {
		logger.Debug("Closing state database")
		return s.db.Close()
	}
	return nil
}

// GetToken returns the persisted auth token, or "" when none is stored
func (s *BoltStore) GetToken(ctx context.Context) (string, error) {
	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(stateBucket)
		if b == nil {
			return fmt.Errorf("state bucket not found")
		}
		token = string(b.Get(tokenKey))
		return nil
	})
	return token, err
}

// SetToken persists the auth token, replacing any previous one
func (s *BoltStore) SetToken(ctx context.Context, token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(stateBucket)
		if b == nil {
			return fmt.Errorf("state bucket not found")
		}
		if err := b.Put(tokenKey, []byte(token)); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}
		return nil
	})
}

// GetState returns the persisted resume marker, or a zero EventState when
// none is stored
func (s *BoltStore) GetState(ctx context.Context) (EventState, error) {
	var state EventState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(stateBucket)
		if b == nil {
			return fmt.Errorf("state bucket not found")
		}
		data := b.Get(eventKey)
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &state); err != nil {
			return fmt.Errorf("failed to unmarshal event state: %w", err)
		}
		return nil
	})
	return state, err
}

// SetState persists the resume marker
func (s *BoltStore) SetState(ctx context.Context, state EventState) error {
	logger.Debug("Persisting event state", zap.String("event_id", state.EventID))
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(stateBucket)
		if b == nil {
			return fmt.Errorf("state bucket not found")
		}
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to marshal event state: %w", err)
		}
		if err := b.Put(eventKey, data); err != nil {
			return fmt.Errorf("failed to store event state: %w", err)
		}
		return nil
	})
}
