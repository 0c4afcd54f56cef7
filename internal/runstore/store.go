// Package runstore persists trial records and session summaries in BadgerDB.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

const (
	sessionPrefix = "session/"
	trialPrefix   = "trial/"
)

// ErrNotFound indicates an unknown session id.
var ErrNotFound = errors.New("session not found")

// Config configures the store.
type Config struct {
	// Path is the database directory. Required unless InMemory.
	Path string `koanf:"path"`
	// InMemory keeps everything in memory; used by tests and dry runs.
	InMemory bool `koanf:"in_memory"`
	// SyncWrites fsyncs every write.
	SyncWrites bool `koanf:"sync_writes"`
}

// InMemoryConfig returns a config for an ephemeral store.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.logger.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.logger.Debugf(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.logger.Debugf(format, args...) }

// Store implements experiment.TrialSink over BadgerDB.
type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

// Open opens or creates the store.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent run store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create run store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return &Store{db: db, logger: logger.Named("runstore")}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func trialKey(rec experiment.TrialRecord) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%s", trialPrefix, rec.SessionID, rec.At.UnixNano(), uuid.NewString()))
}

func (s *Store) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// RecordTrial implements experiment.TrialSink.
func (s *Store) RecordTrial(_ context.Context, rec experiment.TrialRecord) error {
	if rec.SessionID == "" {
		return errors.New("trial record has no session id")
	}
	return s.put(trialKey(rec), rec)
}

// RecordSession implements experiment.TrialSink.
func (s *Store) RecordSession(_ context.Context, summary experiment.SessionSummary) error {
	if summary.SessionID == "" {
		return errors.New("session summary has no id")
	}
	if err := s.put([]byte(sessionPrefix+summary.SessionID), summary); err != nil {
		return err
	}
	s.logger.Debug("session stored", zap.String("session_id", summary.SessionID))
	return nil
}

// Session returns the summary of session id.
func (s *Store) Session(_ context.Context, id string) (experiment.SessionSummary, error) {
	var summary experiment.SessionSummary
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &summary)
		})
	})
	return summary, err
}

// Sessions returns every stored summary, newest first.
func (s *Store) Sessions(_ context.Context) ([]experiment.SessionSummary, error) {
	var out []experiment.SessionSummary
	err := s.scan(sessionPrefix, func(val []byte) error {
		var summary experiment.SessionSummary
		if err := json.Unmarshal(val, &summary); err != nil {
			return err
		}
		out = append(out, summary)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// Trials returns the records of session id in the order they were made.
func (s *Store) Trials(_ context.Context, id string) ([]experiment.TrialRecord, error) {
	var out []experiment.TrialRecord
	err := s.scan(trialPrefix+id+"/", func(val []byte) error {
		var rec experiment.TrialRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *Store) scan(prefix string, fn func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			if err := it.Item().Value(fn); err != nil {
				return fmt.Errorf("decoding %s: %w", strings.TrimPrefix(key, prefix), err)
			}
		}
		return nil
	})
}
