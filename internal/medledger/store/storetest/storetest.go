// Package storetest holds the behaviour every store.Ledger backend must
// share.  Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/medledger/internal/medledger/store"
	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

// Factory returns a fresh, empty ledger.  Cleanup is the factory's job.
type Factory func(t *testing.T) store.Ledger

var created = time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

// tokenFrom returns a MintFunc that reports base+id as the token id.
func tokenFrom(base types.TokenID) store.MintFunc {
	return func(_ context.Context, id types.RecordID, _ types.RecordEntry) (types.TokenID, error) {
		return base + types.TokenID(id), nil
	}
}

func Run(t *testing.T, newLedger Factory) {
	t.Run("MintAssignsDenseIDs", func(t *testing.T) { testMintDense(t, newLedger(t)) })
	t.Run("MintStoresInitialEntry", func(t *testing.T) { testMintEntry(t, newLedger(t)) })
	t.Run("MintRejectsBadPointer", func(t *testing.T) { testMintBadPointer(t, newLedger(t)) })
	t.Run("MintTokenFailureCommitsNothing", func(t *testing.T) { testMintTokenFailure(t, newLedger(t)) })
	t.Run("MintPassesIDToToken", func(t *testing.T) { testMintPassesID(t, newLedger(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newLedger(t)) })
	t.Run("AppendAccess", func(t *testing.T) { testAppendAccess(t, newLedger(t)) })
	t.Run("AppendAccessKeepsDuplicates", func(t *testing.T) { testAppendDuplicates(t, newLedger(t)) })
	t.Run("AppendAccessMissing", func(t *testing.T) { testAppendMissing(t, newLedger(t)) })
	t.Run("ListForOwner", func(t *testing.T) { testListForOwner(t, newLedger(t)) })
	t.Run("ConcurrentMints", func(t *testing.T) { testConcurrentMints(t, newLedger(t)) })
	t.Run("TokenIndex", func(t *testing.T) { testTokenIndex(t, newLedger(t)) })
	t.Run("TokenIndexSkipsFailedMint", func(t *testing.T) { testTokenIndexFailedMint(t, newLedger(t)) })
}

func testMintDense(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		id, tok, err := l.Mint(ctx, "alice", fmt.Sprintf("ipfs://cid%d", i), created, tokenFrom(1000))
		require.NoError(t, err)
		assert.Equal(t, types.RecordID(i), id)
		assert.Equal(t, types.TokenID(1000+i), tok)
	}
	next, err := l.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.RecordID(5), next)
}

func testMintEntry(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	id, _, err := l.Mint(ctx, "alice", "ipfs://cid1", created, tokenFrom(0))
	require.NoError(t, err)

	e, err := l.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.Identity("alice"), e.Owner)
	assert.Equal(t, "ipfs://cid1", e.ContentPointer)
	assert.True(t, e.CreatedAt.Equal(created), "created_at=%v", e.CreatedAt)
	assert.False(t, e.Verified)
	assert.Equal(t, []types.Identity{"alice"}, e.AccessList)
}

func testMintBadPointer(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	_, _, err := l.Mint(ctx, "alice", "ipfs://cid1", created, tokenFrom(0))
	require.NoError(t, err)

	for _, p := range []string{"ftp://bad", "", "IPFS://cid", " ipfs://cid", "ipfs:/cid"} {
		called := false
		_, _, err := l.Mint(ctx, "alice", p, created, func(context.Context, types.RecordID, types.RecordEntry) (types.TokenID, error) {
			called = true
			return 0, nil
		})
		require.ErrorIs(t, err, store.ErrInvalidPointerFormat, "pointer %q", p)
		assert.False(t, called, "token step ran for %q", p)
	}

	next, err := l.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.RecordID(1), next)

	id, _, err := l.Mint(ctx, "alice", "ipfs://cid2", created, tokenFrom(0))
	require.NoError(t, err)
	assert.Equal(t, types.RecordID(1), id)
}

func testMintTokenFailure(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	boom := errors.New("token mint failed")

	_, _, err := l.Mint(ctx, "alice", "ipfs://cid1", created, func(context.Context, types.RecordID, types.RecordEntry) (types.TokenID, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	next, err := l.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.RecordID(0), next)

	_, err = l.Get(ctx, 0)
	require.ErrorIs(t, err, store.ErrRecordNotFound)

	ids, err := l.ListForOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, ids)

	id, _, err := l.Mint(ctx, "alice", "ipfs://cid2", created, tokenFrom(0))
	require.NoError(t, err)
	assert.Equal(t, types.RecordID(0), id)
}

func testMintPassesID(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	var seen []types.RecordID
	fn := func(_ context.Context, id types.RecordID, e types.RecordEntry) (types.TokenID, error) {
		seen = append(seen, id)
		assert.Equal(t, []types.Identity{e.Owner}, e.AccessList)
		return 7, nil
	}
	for i := 0; i < 3; i++ {
		_, tok, err := l.Mint(ctx, "bob", "ipfs://x", created, fn)
		require.NoError(t, err)
		assert.Equal(t, types.TokenID(7), tok)
	}
	assert.Equal(t, []types.RecordID{0, 1, 2}, seen)
}

func testGetMissing(t *testing.T, l store.Ledger) {
	_, err := l.Get(context.Background(), 42)
	require.ErrorIs(t, err, store.ErrRecordNotFound)
}

func testAppendAccess(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	id, _, err := l.Mint(ctx, "alice", "ipfs://cid1", created, tokenFrom(0))
	require.NoError(t, err)

	require.NoError(t, l.AppendAccess(ctx, id, "dr-carol"))
	require.NoError(t, l.AppendAccess(ctx, id, "dr-dave"))

	e, err := l.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []types.Identity{"alice", "dr-carol", "dr-dave"}, e.AccessList)
	assert.Equal(t, "ipfs://cid1", e.ContentPointer)
}

// Repeated grants are additive; nothing deduplicates them.
func testAppendDuplicates(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	id, _, err := l.Mint(ctx, "alice", "ipfs://cid1", created, tokenFrom(0))
	require.NoError(t, err)

	require.NoError(t, l.AppendAccess(ctx, id, "dr-carol"))
	require.NoError(t, l.AppendAccess(ctx, id, "dr-carol"))
	require.NoError(t, l.AppendAccess(ctx, id, "alice"))

	e, err := l.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []types.Identity{"alice", "dr-carol", "dr-carol", "alice"}, e.AccessList)
}

func testAppendMissing(t *testing.T, l store.Ledger) {
	err := l.AppendAccess(context.Background(), 3, "dr-carol")
	require.ErrorIs(t, err, store.ErrRecordNotFound)
}

func testListForOwner(t *testing.T, l store.Ledger) {
	ctx := context.Background()

	ids, err := l.ListForOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)

	owners := []types.Identity{"bob", "bob", "bob", "alice", "bob", "bob", "bob", "alice"}
	for _, o := range owners {
		_, _, err := l.Mint(ctx, o, "ipfs://cid", created, tokenFrom(0))
		require.NoError(t, err)
	}

	ids, err = l.ListForOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []types.RecordID{3, 7}, ids)

	ids, err = l.ListForOwner(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []types.RecordID{0, 1, 2, 4, 5, 6}, ids)
}

func testConcurrentMints(t *testing.T, l store.Ledger) {
	ctx := context.Background()
	const n = 32

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[types.RecordID]int)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := types.Identity(fmt.Sprintf("owner-%d", i%4))
			id, _, err := l.Mint(ctx, owner, "ipfs://cid", created, tokenFrom(0))
			if err != nil {
				t.Errorf("mint %d: %v", i, err)
				return
			}
			mu.Lock()
			ids[id]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, ids, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, 1, ids[types.RecordID(i)], "id %d", i)
	}

	total := 0
	for o := 0; o < 4; o++ {
		got, err := l.ListForOwner(ctx, types.Identity(fmt.Sprintf("owner-%d", o)))
		require.NoError(t, err)
		total += len(got)
		for _, id := range got {
			e, err := l.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, types.Identity(fmt.Sprintf("owner-%d", o)), e.Owner)
		}
	}
	assert.Equal(t, n, total)
}

func testTokenIndex(t *testing.T, l store.Ledger) {
	ctx := context.Background()

	_, ok, err := l.LastTokenID(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty ledger has no last token")

	// Token ids need not follow record ids; the high-water mark is a max.
	for _, tok := range []types.TokenID{1000, 1005, 1003} {
		_, _, err := l.Mint(ctx, "alice", "ipfs://cid", created, func(context.Context, types.RecordID, types.RecordEntry) (types.TokenID, error) {
			return tok, nil
		})
		require.NoError(t, err)
	}

	for id, want := range []types.TokenID{1000, 1005, 1003} {
		got, err := l.TokenFor(ctx, types.RecordID(id))
		require.NoError(t, err)
		assert.Equal(t, want, got, "record %d", id)
	}

	last, ok, err := l.LastTokenID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.TokenID(1005), last)

	_, err = l.TokenFor(ctx, 9)
	require.ErrorIs(t, err, store.ErrRecordNotFound)
}

func testTokenIndexFailedMint(t *testing.T, l store.Ledger) {
	ctx := context.Background()

	_, _, err := l.Mint(ctx, "alice", "ipfs://cid1", created, tokenFrom(1000))
	require.NoError(t, err)

	// The token step hands out 2000 and then the mint aborts.
	_, _, err = l.Mint(ctx, "alice", "ipfs://cid2", created, func(context.Context, types.RecordID, types.RecordEntry) (types.TokenID, error) {
		return 2000, errors.New("aborted after token")
	})
	require.Error(t, err)

	last, ok, err := l.LastTokenID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.TokenID(1000), last)

	_, err = l.TokenFor(ctx, 1)
	require.ErrorIs(t, err, store.ErrRecordNotFound)
}
