package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/medledger/internal/db"
	"github.com/BrandonDHaskell/medledger/internal/medledger/store"
)

type AuditEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAuditEventStore(db *sql.DB, writer *dbpkg.Worker) *AuditEventStore {
	return &AuditEventStore{db: db, writer: writer}
}

func (s *AuditEventStore) RecordEvent(ctx context.Context, rec store.AuditEventRecord) error {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	decidedMs := rec.DecidedAt.UTC().UnixMilli()

	var recordID any
	if rec.RecordID != nil {
		recordID = int64(*rec.RecordID)
	}

	var grantee any
	if rec.Grantee != "" {
		grantee = string(rec.Grantee)
	}

	var allowed int
	if rec.Allowed {
		allowed = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO audit_events(
  action, caller, record_id, grantee, allowed, reason, decided_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			rec.Action, string(rec.Caller), recordID, grantee, allowed, rec.Reason, decidedMs,
		); err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}
		return nil
	})
}

// PruneOlderThan deletes audit rows decided before cutoff and returns the
// number deleted.  Uses idx_audit_events_time.
func (s *AuditEventStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM audit_events
WHERE decided_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
