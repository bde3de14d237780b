package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/BrandonDHaskell/medledger/internal/medledger/store"
	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

// Ledger is an in-memory store.Ledger.  A single mutex plays the part of
// the host transaction boundary.
type Ledger struct {
	mu      sync.RWMutex
	next    types.RecordID
	records map[types.RecordID]types.RecordEntry
	owners  map[types.Identity][]types.RecordID
	tokens  map[types.RecordID]types.TokenID

	lastToken types.TokenID
}

func New() *Ledger {
	return &Ledger{
		records: make(map[types.RecordID]types.RecordEntry),
		owners:  make(map[types.Identity][]types.RecordID),
		tokens:  make(map[types.RecordID]types.TokenID),
	}
}

func (l *Ledger) Mint(
	ctx context.Context,
	owner types.Identity,
	pointer string,
	createdAt time.Time,
	fn store.MintFunc,
) (types.RecordID, types.TokenID, error) {
	if err := store.ValidatePointer(pointer); err != nil {
		return 0, 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.next
	entry := types.NewRecordEntry(owner, pointer, createdAt)

	// Nothing is applied until the token step has succeeded.
	var tokenID types.TokenID
	if fn != nil {
		var err error
		tokenID, err = fn(ctx, id, entry.Clone())
		if err != nil {
			return 0, 0, err
		}
	}

	l.records[id] = entry
	l.recordMint(owner, id)
	l.tokens[id] = tokenID
	if len(l.tokens) == 1 || tokenID > l.lastToken {
		l.lastToken = tokenID
	}
	l.next++

	return id, tokenID, nil
}

// recordMint appends id to the owner's index.  Caller holds l.mu.
func (l *Ledger) recordMint(owner types.Identity, id types.RecordID) {
	l.owners[owner] = append(l.owners[owner], id)
}

func (l *Ledger) Get(_ context.Context, id types.RecordID) (types.RecordEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.records[id]
	if !ok {
		return types.RecordEntry{}, store.ErrRecordNotFound
	}
	return e.Clone(), nil
}

func (l *Ledger) AppendAccess(_ context.Context, id types.RecordID, grantee types.Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.records[id]
	if !ok {
		return store.ErrRecordNotFound
	}
	e.AccessList = append(slices.Clone(e.AccessList), grantee)
	l.records[id] = e
	return nil
}

func (l *Ledger) NextID(_ context.Context) (types.RecordID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.next, nil
}

func (l *Ledger) ListForOwner(_ context.Context, owner types.Identity) ([]types.RecordID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.RecordID, len(l.owners[owner]))
	copy(out, l.owners[owner])
	return out, nil
}

func (l *Ledger) TokenFor(_ context.Context, id types.RecordID) (types.TokenID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tok, ok := l.tokens[id]
	if !ok {
		return 0, store.ErrRecordNotFound
	}
	return tok, nil
}

func (l *Ledger) LastTokenID(_ context.Context) (types.TokenID, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastToken, len(l.tokens) > 0, nil
}
