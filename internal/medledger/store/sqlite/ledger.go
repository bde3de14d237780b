package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/medledger/internal/db"
	"github.com/BrandonDHaskell/medledger/internal/medledger/store"
	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

// Ledger is the SQLite RecordStore and OwnerIndex.  All writes go through
// the single-writer Worker, which is what makes the counter read, inserts
// and increment of a mint indivisible.
type Ledger struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewLedger(db *sql.DB, writer *dbpkg.Worker) *Ledger {
	return &Ledger{db: db, writer: writer}
}

func (s *Ledger) Mint(
	ctx context.Context,
	owner types.Identity,
	pointer string,
	createdAt time.Time,
	fn store.MintFunc,
) (types.RecordID, types.TokenID, error) {
	if err := store.ValidatePointer(pointer); err != nil {
		return 0, 0, err
	}

	entry := types.NewRecordEntry(owner, pointer, createdAt)
	createdMs := entry.CreatedAt.UnixMilli()

	var (
		id      types.RecordID
		tokenID types.TokenID
	)
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var next int64
		if err := tx.QueryRowContext(ctx, `
SELECT next_id FROM record_counter WHERE singleton = 1;
`).Scan(&next); err != nil {
			return fmt.Errorf("Mint read counter: %w", err)
		}
		id = types.RecordID(next)

		if _, err := tx.ExecContext(ctx, `
INSERT INTO records(record_id, owner, content_pointer, created_at_ms, verified)
VALUES (?, ?, ?, ?, 0);
`, next, string(owner), pointer, createdMs); err != nil {
			return fmt.Errorf("Mint insert record: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO record_access(record_id, position, grantee) VALUES (?, 0, ?);
`, next, string(owner)); err != nil {
			return fmt.Errorf("Mint insert owner access: %w", err)
		}

		if err := recordMint(ctx, tx, owner, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE record_counter SET next_id = next_id + 1 WHERE singleton = 1;
`); err != nil {
			return fmt.Errorf("Mint increment counter: %w", err)
		}

		if fn != nil {
			var err error
			tokenID, err = fn(ctx, id, entry.Clone())
			if err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE records SET token_id = ? WHERE record_id = ?;
`, int64(tokenID), next); err != nil {
			return fmt.Errorf("Mint record token: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return id, tokenID, nil
}

// recordMint appends id to the owner index.  Must be called inside the
// mint transaction.
func recordMint(ctx context.Context, tx *sql.Tx, owner types.Identity, id types.RecordID) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO owner_records(owner, position, record_id)
SELECT ?, COALESCE(MAX(position) + 1, 0), ?
FROM owner_records WHERE owner = ?;
`, string(owner), int64(id), string(owner)); err != nil {
		return fmt.Errorf("Mint index owner: %w", err)
	}
	return nil
}

func (s *Ledger) Get(ctx context.Context, id types.RecordID) (types.RecordEntry, error) {
	var (
		e         types.RecordEntry
		owner     string
		createdMs int64
		verified  int
	)
	err := s.db.QueryRowContext(ctx, `
SELECT owner, content_pointer, created_at_ms, verified
FROM records
WHERE record_id = ?;
`, int64(id)).Scan(&owner, &e.ContentPointer, &createdMs, &verified)
	if errors.Is(err, sql.ErrNoRows) {
		return types.RecordEntry{}, store.ErrRecordNotFound
	}
	if err != nil {
		return types.RecordEntry{}, fmt.Errorf("Get %d: %w", id, err)
	}
	e.Owner = types.Identity(owner)
	e.CreatedAt = time.UnixMilli(createdMs).UTC()
	e.Verified = verified == 1

	rows, err := s.db.QueryContext(ctx, `
SELECT grantee FROM record_access WHERE record_id = ? ORDER BY position;
`, int64(id))
	if err != nil {
		return types.RecordEntry{}, fmt.Errorf("Get %d access: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return types.RecordEntry{}, fmt.Errorf("Get %d access scan: %w", id, err)
		}
		e.AccessList = append(e.AccessList, types.Identity(g))
	}
	if err := rows.Err(); err != nil {
		return types.RecordEntry{}, fmt.Errorf("Get %d access rows: %w", id, err)
	}
	return e, nil
}

func (s *Ledger) AppendAccess(ctx context.Context, id types.RecordID, grantee types.Identity) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `
SELECT 1 FROM records WHERE record_id = ?;
`, int64(id)).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("AppendAccess lookup: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO record_access(record_id, position, grantee)
SELECT ?, MAX(position) + 1, ?
FROM record_access WHERE record_id = ?;
`, int64(id), string(grantee), int64(id)); err != nil {
			return fmt.Errorf("AppendAccess insert: %w", err)
		}
		return nil
	})
}

func (s *Ledger) NextID(ctx context.Context) (types.RecordID, error) {
	var next int64
	if err := s.db.QueryRowContext(ctx, `
SELECT next_id FROM record_counter WHERE singleton = 1;
`).Scan(&next); err != nil {
		return 0, fmt.Errorf("NextID: %w", err)
	}
	return types.RecordID(next), nil
}

func (s *Ledger) ListForOwner(ctx context.Context, owner types.Identity) ([]types.RecordID, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT record_id FROM owner_records WHERE owner = ? ORDER BY position;
`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("ListForOwner: %w", err)
	}
	defer rows.Close()

	out := []types.RecordID{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListForOwner scan: %w", err)
		}
		out = append(out, types.RecordID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListForOwner rows: %w", err)
	}
	return out, nil
}

func (s *Ledger) TokenFor(ctx context.Context, id types.RecordID) (types.TokenID, error) {
	var tok sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
SELECT token_id FROM records WHERE record_id = ?;
`, int64(id)).Scan(&tok)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrRecordNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("TokenFor %d: %w", id, err)
	}
	return types.TokenID(tok.Int64), nil
}

func (s *Ledger) LastTokenID(ctx context.Context) (types.TokenID, bool, error) {
	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `
SELECT MAX(token_id) FROM records;
`).Scan(&last); err != nil {
		return 0, false, fmt.Errorf("LastTokenID: %w", err)
	}
	return types.TokenID(last.Int64), last.Valid, nil
}
