package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

var (
	ErrInvalidPointerFormat = errors.New("content pointer must start with " + types.PointerScheme)
	ErrRecordNotFound       = errors.New("record not found")
)

// MintFunc runs as the last step of a mint, inside the same transaction as
// the record insert.  It receives the identifier about to be committed.  A
// non-nil error aborts the whole mint.
type MintFunc func(ctx context.Context, id types.RecordID, entry types.RecordEntry) (types.TokenID, error)

// RecordStore owns RecordEntry lifetime.  Mint is the only writer of the
// owner index, so the index can never drift from the records.
type RecordStore interface {
	// Mint validates the pointer, allocates the next id, stores the entry,
	// appends the id to the owner's index, increments the counter, runs fn
	// and records the token it returned.  Either all of it commits or none
	// of it does.
	Mint(ctx context.Context, owner types.Identity, pointer string, createdAt time.Time, fn MintFunc) (types.RecordID, types.TokenID, error)
	Get(ctx context.Context, id types.RecordID) (types.RecordEntry, error)
	AppendAccess(ctx context.Context, id types.RecordID, grantee types.Identity) error
	// NextID returns the identifier the next successful mint will receive.
	NextID(ctx context.Context) (types.RecordID, error)
}

// OwnerIndex is the derived owner -> ids side index.  It is read-only from
// the outside; entries appear only through RecordStore.Mint.
type OwnerIndex interface {
	ListForOwner(ctx context.Context, owner types.Identity) ([]types.RecordID, error)
}

// TokenIndex maps each committed record to the token minted with it.  The
// entry is written in the mint transaction, so an aborted mint leaves none.
type TokenIndex interface {
	TokenFor(ctx context.Context, id types.RecordID) (types.TokenID, error)
	// LastTokenID returns the highest token id held by a committed record.
	// ok is false when nothing has been minted.
	LastTokenID(ctx context.Context) (last types.TokenID, ok bool, err error)
}

// Ledger is a backend that serves all three stores.
type Ledger interface {
	RecordStore
	OwnerIndex
	TokenIndex
}

// ValidatePointer checks the scheme prefix.  The rest of the pointer is
// opaque.
func ValidatePointer(pointer string) error {
	if !strings.HasPrefix(pointer, types.PointerScheme) {
		return ErrInvalidPointerFormat
	}
	return nil
}
