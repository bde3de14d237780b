package kv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BrandonDHaskell/medledger/internal/medledger/codec"
	"github.com/BrandonDHaskell/medledger/internal/medledger/store"
	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

// key layout
//
//	0x00 'C' 'O' 'U' 'N' 'T'   -> next record id (8 byte big endian)
//	'R' ++ id(8)               -> codec.MarshalRecord bytes
//	'O' ++ owner               -> packed 8 byte big endian ids, mint order
//	'T' ++ id(8)               -> token id minted with the record
//	0x00 'T' 'O' 'K' 'E' 'N'   -> highest committed token id
var (
	counterKey   = []byte{0x00, 'C', 'O', 'U', 'N', 'T'}
	lastTokenKey = []byte{0x00, 'T', 'O', 'K', 'E', 'N'}
)

const (
	prefixRecord = 'R'
	prefixOwner  = 'O'
	prefixToken  = 'T'
)

// Ledger implements store.Ledger over any Backend.  The mutex serialises
// read-modify-write sequences; each mutation goes out as one Batch.
type Ledger struct {
	mu sync.Mutex
	db Backend
}

func New(db Backend) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func recordKey(id types.RecordID) []byte {
	k := make([]byte, 9)
	k[0] = prefixRecord
	binary.BigEndian.PutUint64(k[1:], uint64(id))
	return k
}

func ownerKey(owner types.Identity) []byte {
	return append([]byte{prefixOwner}, owner...)
}

func tokenKey(id types.RecordID) []byte {
	k := make([]byte, 9)
	k[0] = prefixToken
	binary.BigEndian.PutUint64(k[1:], uint64(id))
	return k
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

	id, err := l.nextID()
	if err != nil {
		return 0, 0, err
	}

	entry := types.NewRecordEntry(owner, pointer, createdAt)
	value, err := codec.MarshalRecord(id, entry)
	if err != nil {
		return 0, 0, fmt.Errorf("Mint encode: %w", err)
	}

	batch := new(Batch)
	batch.Put(recordKey(id), value)
	if err := l.recordMint(batch, owner, id); err != nil {
		return 0, 0, err
	}
	batch.Put(counterKey, binary.BigEndian.AppendUint64(nil, uint64(id)+1))

	var tokenID types.TokenID
	if fn != nil {
		tokenID, err = fn(ctx, id, entry.Clone())
		if err != nil {
			return 0, 0, err
		}
	}
	if err := l.recordToken(batch, id, tokenID); err != nil {
		return 0, 0, err
	}

	if err := l.db.Write(batch); err != nil {
		return 0, 0, fmt.Errorf("Mint commit: %w", err)
	}
	return id, tokenID, nil
}

// recordMint stages the owner index append into batch.  Caller holds l.mu.
func (l *Ledger) recordMint(batch *Batch, owner types.Identity, id types.RecordID) error {
	key := ownerKey(owner)
	packed, err := l.db.Get(key)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("Mint read owner index: %w", err)
	}
	next := make([]byte, len(packed), len(packed)+8)
	copy(next, packed)
	batch.Put(key, binary.BigEndian.AppendUint64(next, uint64(id)))
	return nil
}

// recordToken stages the record's token and the high-water mark into batch.
// Caller holds l.mu.
func (l *Ledger) recordToken(batch *Batch, id types.RecordID, tokenID types.TokenID) error {
	batch.Put(tokenKey(id), binary.BigEndian.AppendUint64(nil, uint64(tokenID)))

	last, ok, err := l.lastToken()
	if err != nil {
		return fmt.Errorf("Mint read last token: %w", err)
	}
	if !ok || tokenID > last {
		batch.Put(lastTokenKey, binary.BigEndian.AppendUint64(nil, uint64(tokenID)))
	}
	return nil
}

func (l *Ledger) lastToken() (types.TokenID, bool, error) {
	v, err := l.db.Get(lastTokenKey)
	if errors.Is(err, ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(v) != 8 {
		return 0, false, fmt.Errorf("last token value length: expected 8, got %d", len(v))
	}
	return types.TokenID(binary.BigEndian.Uint64(v)), true, nil
}

func (l *Ledger) LastTokenID(_ context.Context) (types.TokenID, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastToken()
}

func (l *Ledger) TokenFor(_ context.Context, id types.RecordID) (types.TokenID, error) {
	v, err := l.db.Get(tokenKey(id))
	if errors.Is(err, ErrKeyNotFound) {
		return 0, store.ErrRecordNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("TokenFor %d: %w", id, err)
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("TokenFor %d: value length %d", id, len(v))
	}
	return types.TokenID(binary.BigEndian.Uint64(v)), nil
}

func (l *Ledger) nextID() (types.RecordID, error) {
	v, err := l.db.Get(counterKey)
	if errors.Is(err, ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("counter value length: expected 8, got %d", len(v))
	}
	return types.RecordID(binary.BigEndian.Uint64(v)), nil
}

func (l *Ledger) NextID(_ context.Context) (types.RecordID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextID()
}

func (l *Ledger) Get(_ context.Context, id types.RecordID) (types.RecordEntry, error) {
	return l.get(id)
}

func (l *Ledger) get(id types.RecordID) (types.RecordEntry, error) {
	v, err := l.db.Get(recordKey(id))
	if errors.Is(err, ErrKeyNotFound) {
		return types.RecordEntry{}, store.ErrRecordNotFound
	}
	if err != nil {
		return types.RecordEntry{}, fmt.Errorf("Get %d: %w", id, err)
	}

	stored, e, err := codec.UnmarshalRecord(v)
	if err != nil {
		return types.RecordEntry{}, fmt.Errorf("Get %d: %w", id, err)
	}
	if stored != id {
		return types.RecordEntry{}, fmt.Errorf("Get %d: value holds record %d", id, stored)
	}
	return e, nil
}

func (l *Ledger) AppendAccess(_ context.Context, id types.RecordID, grantee types.Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.get(id)
	if err != nil {
		return err
	}
	e.AccessList = append(e.AccessList, grantee)

	value, err := codec.MarshalRecord(id, e)
	if err != nil {
		return fmt.Errorf("AppendAccess encode: %w", err)
	}
	batch := new(Batch)
	batch.Put(recordKey(id), value)
	if err := l.db.Write(batch); err != nil {
		return fmt.Errorf("AppendAccess commit: %w", err)
	}
	return nil
}

func (l *Ledger) ListForOwner(_ context.Context, owner types.Identity) ([]types.RecordID, error) {
	packed, err := l.db.Get(ownerKey(owner))
	if errors.Is(err, ErrKeyNotFound) {
		return []types.RecordID{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ListForOwner: %w", err)
	}
	if len(packed)%8 != 0 {
		return nil, fmt.Errorf("ListForOwner: index length %d is not a multiple of 8", len(packed))
	}

	out := make([]types.RecordID, 0, len(packed)/8)
	for i := 0; i < len(packed); i += 8 {
		out = append(out, types.RecordID(binary.BigEndian.Uint64(packed[i:i+8])))
	}
	return out, nil
}
