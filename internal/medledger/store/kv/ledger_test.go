package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/medledger/internal/medledger/store"
	"github.com/BrandonDHaskell/medledger/internal/medledger/store/kv"
	"github.com/BrandonDHaskell/medledger/internal/medledger/store/storetest"
	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

func TestLedger_LevelDB(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Ledger {
		db, err := kv.OpenLevelDBMemory()
		require.NoError(t, err)
		l := kv.New(db)
		t.Cleanup(func() { l.Close() })
		return l
	})
}

func TestLedger_Badger(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Ledger {
		db, err := kv.OpenBadger(kv.BadgerConfig{InMemory: true})
		require.NoError(t, err)
		l := kv.New(db)
		t.Cleanup(func() { l.Close() })
		return l
	})
}

func TestLedger_LevelDB_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	created := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	db, err := kv.OpenLevelDB(dir, false)
	require.NoError(t, err)
	l := kv.New(db)

	for _, p := range []string{"ipfs://cid1", "ipfs://cid2"} {
		_, _, err := l.Mint(ctx, "alice", p, created, nil)
		require.NoError(t, err)
	}
	require.NoError(t, l.AppendAccess(ctx, 1, "dr-carol"))
	require.NoError(t, l.Close())

	db, err = kv.OpenLevelDB(dir, false)
	require.NoError(t, err)
	l = kv.New(db)
	defer l.Close()

	next, err := l.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.RecordID(2), next)

	e, err := l.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://cid2", e.ContentPointer)
	assert.Equal(t, []types.Identity{"alice", "dr-carol"}, e.AccessList)

	ids, err := l.ListForOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []types.RecordID{0, 1}, ids)
}

func TestLedger_Badger_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := kv.OpenBadger(kv.BadgerConfig{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	l := kv.New(db)
	_, _, err = l.Mint(ctx, "bob", "ipfs://cid1", time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	db, err = kv.OpenBadger(kv.BadgerConfig{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	l = kv.New(db)
	defer l.Close()

	id, _, err := l.Mint(ctx, "bob", "ipfs://cid2", time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, types.RecordID(1), id)
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := kv.OpenBadger(kv.BadgerConfig{})
	require.Error(t, err)
}
