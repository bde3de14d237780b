package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/BrandonDHaskell/medledger/internal/config"
	"github.com/BrandonDHaskell/medledger/internal/db"
	"github.com/BrandonDHaskell/medledger/internal/medledger/store"
	"github.com/BrandonDHaskell/medledger/internal/medledger/store/kv"
	"github.com/BrandonDHaskell/medledger/internal/medledger/store/memory"
	"github.com/BrandonDHaskell/medledger/internal/medledger/store/sqlite"
)

// backend bundles the stores selected by config.
type backend struct {
	ledger store.Ledger
	audit  store.AuditStore

	closers []func() error
}

func (b *backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openBackend opens the configured storage.  The kv backends keep their
// audit log in memory; only sqlite persists it.
func openBackend(ctx context.Context, cfg config.Config, logger *log.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return &backend{ledger: memory.New(), audit: memory.NewAuditEventStore()}, nil

	case config.BackendSQLite:
		sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		w := db.NewWorker(sqlDB)
		return &backend{
			ledger: sqlite.NewLedger(sqlDB, w),
			audit:  sqlite.NewAuditEventStore(sqlDB, w),
			closers: []func() error{
				sqlDB.Close,
				func() error { w.Close(); return nil },
			},
		}, nil

	case config.BackendLevelDB:
		ldb, err := kv.OpenLevelDB(cfg.LevelDBPath, false)
		if err != nil {
			return nil, fmt.Errorf("open leveldb: %w", err)
		}
		l := kv.New(ldb)
		return &backend{ledger: l, audit: memory.NewAuditEventStore(), closers: []func() error{l.Close}}, nil

	case config.BackendBadger:
		bdb, err := kv.OpenBadger(kv.BadgerConfig{Path: cfg.BadgerPath, SyncWrites: true, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		l := kv.New(bdb)
		return &backend{ledger: l, audit: memory.NewAuditEventStore(), closers: []func() error{l.Close}}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// openSQLite is used by the migrate command, which only applies to sqlite.
func openSQLite(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	return db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
}
