package types

import (
	"slices"
	"time"
)

// Identity is the authenticated identity of a caller (an account address
// on the host ledger).
type Identity string

// RecordID is the dense, zero-based identifier assigned at mint time.
type RecordID uint64

// TokenID identifies the asset token minted alongside a record.  It lives
// in a separate namespace from RecordID.
type TokenID uint64

// PointerScheme is the only content-pointer prefix accepted at mint time.
const PointerScheme = "ipfs://"

// RecordEntry is the persisted shape of one minted record.
//
// Owner, ContentPointer and CreatedAt never change after mint.  Verified has
// no setter yet.  AccessList always starts as [Owner] and only grows.
type RecordEntry struct {
	Owner          Identity
	ContentPointer string
	CreatedAt      time.Time
	Verified       bool
	AccessList     []Identity
}

// NewRecordEntry builds the entry stored for a fresh mint.
func NewRecordEntry(owner Identity, pointer string, createdAt time.Time) RecordEntry {
	return RecordEntry{
		Owner:          owner,
		ContentPointer: pointer,
		CreatedAt:      createdAt.UTC().Truncate(time.Millisecond),
		Verified:       false,
		AccessList:     []Identity{owner},
	}
}

// CanRead reports whether id may read the entry.
func (e RecordEntry) CanRead(id Identity) bool {
	return id == e.Owner || slices.Contains(e.AccessList, id)
}

// Clone returns a copy that shares no memory with e.
func (e RecordEntry) Clone() RecordEntry {
	e.AccessList = slices.Clone(e.AccessList)
	return e
}
