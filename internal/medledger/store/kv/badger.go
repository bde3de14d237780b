package kv

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds the options for OpenBadger.
type BadgerConfig struct {
	// Path is the database directory.  Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM.  Used by tests.
	InMemory bool

	// SyncWrites fsyncs each committed batch.
	SyncWrites bool

	// Logger receives badger's internal messages.  nil silences them.
	Logger *log.Logger
}

// Badger adapts a BadgerDB instance to Backend.
type Badger struct {
	db *badger.DB
}

// badgerLogger adapts *log.Logger to badger.Logger.
type badgerLogger struct {
	logger *log.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Printf("badger error: "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Printf("badger warn: "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {}

func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger dir %s: %w", cfg.Path, err)
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
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return out, nil
}

func (b *Badger) Write(batch *Batch) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, p := range batch.puts {
			if err := txn.Set(p.key, p.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger write: %w", err)
	}
	return nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}
