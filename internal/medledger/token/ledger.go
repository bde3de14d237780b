// Package token is a local stand-in for the host's asset-creation action.
// Each call creates one non-fungible asset shaped like an Algorand ASA:
// total supply 1, no decimals, the content pointer as its URL.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

const (
	AssetName = "MEDREC"
	UnitName  = "MREC"

	// MaxURLBytes is the host's limit on an asset URL.
	MaxURLBytes = 96
)

var (
	ErrEmptyURL    = errors.New("asset url is required")
	ErrURLTooLong  = fmt.Errorf("asset url exceeds %d bytes", MaxURLBytes)
	ErrNoSuchAsset = errors.New("asset not found")
)

// Request describes the asset to create.
type Request struct {
	Creator types.Identity
	URL     string
}

// Asset is a created token.  Manager, reserve and clawback are the creator;
// there is no freeze address.
type Asset struct {
	ID            types.TokenID
	Name          string
	UnitName      string
	URL           string
	MetadataHash  [32]byte
	Total         uint64
	Decimals      uint32
	Manager       types.Identity
	Reserve       types.Identity
	Clawback      types.Identity
	DefaultFrozen bool
}

// Ledger mints assets with ids allocated upward from a base.
type Ledger struct {
	mu     sync.Mutex
	next   types.TokenID
	assets map[types.TokenID]Asset
}

func NewLedger(base types.TokenID) *Ledger {
	return &Ledger{
		next:   base,
		assets: make(map[types.TokenID]Asset),
	}
}

func (l *Ledger) MintToken(ctx context.Context, req Request) (types.TokenID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if req.URL == "" {
		return 0, ErrEmptyURL
	}
	if len(req.URL) > MaxURLBytes {
		return 0, ErrURLTooLong
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.next
	l.assets[id] = Asset{
		ID:           id,
		Name:         AssetName,
		UnitName:     UnitName,
		URL:          req.URL,
		MetadataHash: sha3.Sum256([]byte(req.URL)),
		Total:        1,
		Decimals:     0,
		Manager:      req.Creator,
		Reserve:      req.Creator,
		Clawback:     req.Creator,
	}
	l.next++
	return id, nil
}

func (l *Ledger) Asset(id types.TokenID) (Asset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.assets[id]
	if !ok {
		return Asset{}, ErrNoSuchAsset
	}
	return a, nil
}
