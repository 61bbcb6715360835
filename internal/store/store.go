// Package store persists calibrated scheme documents and finished run
// records in an embedded BadgerDB.
//
// Keys are namespaced by kind:
//
//	scheme/<name>  XML scheme document
//	run/<id>       JSON run record
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/fuzzy"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

const (
	schemePrefix = "scheme/"
	runPrefix    = "run/"
)

// Config holds configuration for the store
type Config struct {
	// Path is the database directory; ignored when InMemory is true.
	Path     string
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Logger receives badger's internal logs; nil disables them.
	Logger *slog.Logger
}

// InMemoryConfig returns a configuration for tests and ephemeral daemons
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store is a BadgerDB-backed scheme and run store, safe for concurrent use
type Store struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Open opens the database described by cfg
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveScheme stores the scheme document under the scheme's name
func (s *Store) SaveScheme(scheme *fuzzy.Scheme) error {
	if scheme.Name() == "" {
		return fmt.Errorf("%w: scheme name is required", models.ErrInvalidConfiguration)
	}
	doc, err := scheme.MarshalText()
	if err != nil {
		return err
	}
	return s.put(schemePrefix+scheme.Name(), doc)
}

// SchemeDocument returns the stored XML document for name
func (s *Store) SchemeDocument(name string) ([]byte, error) {
	doc, err := s.get(schemePrefix + name)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrSchemeNotFound, name)
	}
	return doc, err
}

// LoadScheme parses the stored scheme document for name
func (s *Store) LoadScheme(name string) (*fuzzy.Scheme, error) {
	doc, err := s.SchemeDocument(name)
	if err != nil {
		return nil, err
	}
	return fuzzy.ParseScheme(doc)
}

// DeleteScheme removes a stored scheme; deleting a missing scheme is not an error
func (s *Store) DeleteScheme(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(schemePrefix + name))
	})
}

// ListSchemes returns the stored scheme names in ascending order
func (s *Store) ListSchemes() ([]string, error) {
	var names []string
	err := s.scan(schemePrefix, false, func(key string, _ []byte) error {
		names = append(names, strings.TrimPrefix(key, schemePrefix))
		return nil
	})
	return names, err
}

// SaveRun stores a run record
func (s *Store) SaveRun(run *models.Run) error {
	if run.ID == "" {
		return models.ErrRunIDMissing
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.ID, err)
	}
	return s.put(runPrefix+run.ID, data)
}

// GetRun loads a stored run record
func (s *Store) GetRun(id string) (*models.Run, error) {
	data, err := s.get(runPrefix + id)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var run models.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns every stored run, oldest first
func (s *Store) ListRuns() ([]*models.Run, error) {
	var runs []*models.Run
	err := s.scan(runPrefix, true, func(key string, val []byte) error {
		var run models.Run
		if err := json.Unmarshal(val, &run); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		runs = append(runs, &run)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

// RunGC runs value log garbage collection every interval until ctx is done
func (s *Store) RunGC(ctx context.Context, interval time.Duration, discardRatio float64) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when there is nothing to collect.
			for s.db.RunValueLogGC(discardRatio) == nil {
			}
		}
	}
}

func (s *Store) put(key string, val []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
}

func (s *Store) get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

func (s *Store) scan(prefix string, values bool, fn func(key string, val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = values
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var val []byte
			if values {
				v, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				val = v
			}
			if err := fn(string(item.KeyCopy(nil)), val); err != nil {
				return err
			}
		}
		return nil
	})
}
