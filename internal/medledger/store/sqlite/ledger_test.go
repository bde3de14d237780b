package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/medledger/internal/medledger/store"
	sqlitestore "github.com/BrandonDHaskell/medledger/internal/medledger/store/sqlite"
	"github.com/BrandonDHaskell/medledger/internal/medledger/store/storetest"
	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

func newTestLedger(t *testing.T) *sqlitestore.Ledger {
	conn := openTestDB(t)
	return sqlitestore.NewLedger(conn, newTestWriter(t, conn))
}

func TestLedger(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Ledger { return newTestLedger(t) })
}

// ═══════════════════════════════════════════════════════════════════════════
// Mint: row layout
// ═══════════════════════════════════════════════════════════════════════════

func TestLedger_Mint_WritesAllTables(t *testing.T) {
	conn := openTestDB(t)
	l := sqlitestore.NewLedger(conn, newTestWriter(t, conn))
	ctx := context.Background()

	created := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	if _, _, err := l.Mint(ctx, "alice", "ipfs://cid1", created, nil); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	var (
		owner     string
		pointer   string
		createdMs int64
		verified  int
	)
	err := conn.QueryRowContext(ctx, `
SELECT owner, content_pointer, created_at_ms, verified FROM records WHERE record_id = 0`,
	).Scan(&owner, &pointer, &createdMs, &verified)
	if err != nil {
		t.Fatalf("query record: %v", err)
	}
	if owner != "alice" || pointer != "ipfs://cid1" {
		t.Errorf("unexpected row owner=%q pointer=%q", owner, pointer)
	}
	if createdMs != created.UnixMilli() {
		t.Errorf("expected created_at_ms=%d, got %d", created.UnixMilli(), createdMs)
	}
	if verified != 0 {
		t.Errorf("expected verified=0, got %d", verified)
	}

	var grantee string
	err = conn.QueryRowContext(ctx,
		`SELECT grantee FROM record_access WHERE record_id = 0 AND position = 0`,
	).Scan(&grantee)
	if err != nil {
		t.Fatalf("query access: %v", err)
	}
	if grantee != "alice" {
		t.Errorf("expected owner at access position 0, got %q", grantee)
	}

	var next int64
	if err := conn.QueryRowContext(ctx, `SELECT next_id FROM record_counter`).Scan(&next); err != nil {
		t.Fatalf("query counter: %v", err)
	}
	if next != 1 {
		t.Errorf("expected next_id=1, got %d", next)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Mint: rollback
// ═══════════════════════════════════════════════════════════════════════════

func TestLedger_Mint_TokenFailureLeavesNoRows(t *testing.T) {
	conn := openTestDB(t)
	l := sqlitestore.NewLedger(conn, newTestWriter(t, conn))
	ctx := context.Background()
	boom := errors.New("asset create rejected")

	_, _, err := l.Mint(ctx, "alice", "ipfs://cid1", time.Now(), func(context.Context, types.RecordID, types.RecordEntry) (types.TokenID, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected token error, got %v", err)
	}

	for _, table := range []string{"records", "record_access", "owner_records"} {
		var count int
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Errorf("expected 0 rows in %s after rollback, got %d", table, count)
		}
	}
}

func TestLedger_Mint_CanceledContext(t *testing.T) {
	l := newTestLedger(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := l.Mint(ctx, "alice", "ipfs://cid1", time.Now(), nil); err == nil {
		t.Fatal("expected error for canceled context")
	}

	next, err := l.NextID(context.Background())
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if next != 0 {
		t.Errorf("expected counter untouched, got %d", next)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Mint: token column
// ═══════════════════════════════════════════════════════════════════════════

func TestLedger_Mint_StoresTokenInRecordRow(t *testing.T) {
	conn := openTestDB(t)
	l := sqlitestore.NewLedger(conn, newTestWriter(t, conn))
	ctx := context.Background()

	_, _, err := l.Mint(ctx, "alice", "ipfs://cid1", time.Now(), func(context.Context, types.RecordID, types.RecordEntry) (types.TokenID, error) {
		return 4242, nil
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	var tok int64
	if err := conn.QueryRowContext(ctx, `SELECT token_id FROM records WHERE record_id = 0`).Scan(&tok); err != nil {
		t.Fatalf("query token_id: %v", err)
	}
	if tok != 4242 {
		t.Errorf("expected token_id=4242, got %d", tok)
	}
}
