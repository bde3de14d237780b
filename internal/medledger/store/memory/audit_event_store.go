package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/medledger/internal/medledger/store"
)

// AuditEventStore is an in-memory append-only log of authorization
// decisions.  It is intended for use in tests and dev environments.
type AuditEventStore struct {
	mu     sync.Mutex
	events []store.AuditEventRecord
}

func NewAuditEventStore() *AuditEventStore {
	return &AuditEventStore{}
}

func (s *AuditEventStore) RecordEvent(_ context.Context, rec store.AuditEventRecord) error {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, rec)
	return nil
}

func (s *AuditEventStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, ev := range s.events {
		if ev.DecidedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return deleted, nil
}

// Events returns a copy of all recorded events.  Test-only helper.
func (s *AuditEventStore) Events() []store.AuditEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AuditEventRecord, len(s.events))
	copy(out, s.events)
	return out
}
