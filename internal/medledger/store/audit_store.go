package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

// Audited actions.
const (
	ActionMint  = "mint"
	ActionGrant = "grant_access"
	ActionRead  = "get_record"
)

// AuditEventRecord captures a single authorization decision.  It never
// carries record content; RecordID is nil when the call failed before an
// identifier was known.
type AuditEventRecord struct {
	Action    string
	Caller    types.Identity
	RecordID  *types.RecordID
	Grantee   types.Identity // grant_access only
	Allowed   bool
	Reason    string
	DecidedAt time.Time
}

// AuditStore persists decisions as an append-only log.  It sits outside the
// record transaction.
type AuditStore interface {
	RecordEvent(ctx context.Context, rec AuditEventRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
