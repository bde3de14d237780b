package token_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/BrandonDHaskell/medledger/internal/medledger/token"
)

func TestMintToken_AllocatesFromBase(t *testing.T) {
	l := token.NewLedger(1000)
	ctx := context.Background()

	for i, url := range []string{"ipfs://cid1", "ipfs://cid2"} {
		id, err := l.MintToken(ctx, token.Request{Creator: "alice", URL: url})
		if err != nil {
			t.Fatalf("MintToken: %v", err)
		}
		if int(id) != 1000+i {
			t.Errorf("expected token id %d, got %d", 1000+i, id)
		}
	}

	a, err := l.Asset(1001)
	if err != nil {
		t.Fatalf("Asset: %v", err)
	}
	if a.URL != "ipfs://cid2" || a.Name != token.AssetName || a.UnitName != token.UnitName {
		t.Errorf("unexpected asset: %+v", a)
	}
	if a.Total != 1 || a.Decimals != 0 {
		t.Errorf("expected a single indivisible unit, got total=%d decimals=%d", a.Total, a.Decimals)
	}
	if a.Manager != "alice" || a.Reserve != "alice" || a.Clawback != "alice" {
		t.Errorf("expected creator in every role, got %+v", a)
	}
	if a.MetadataHash != sha3.Sum256([]byte("ipfs://cid2")) {
		t.Error("metadata hash does not match the url")
	}
}

func TestMintToken_RejectsLongURL(t *testing.T) {
	l := token.NewLedger(0)

	url := "ipfs://" + strings.Repeat("a", token.MaxURLBytes)
	_, err := l.MintToken(context.Background(), token.Request{Creator: "alice", URL: url})
	if !errors.Is(err, token.ErrURLTooLong) {
		t.Fatalf("expected ErrURLTooLong, got %v", err)
	}

	// A rejected request must not burn an id.
	id, err := l.MintToken(context.Background(), token.Request{Creator: "alice", URL: "ipfs://ok"})
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	if id != 0 {
		t.Errorf("expected id 0 after rejection, got %d", id)
	}
}

func TestMintToken_RejectsEmptyURL(t *testing.T) {
	l := token.NewLedger(0)
	if _, err := l.MintToken(context.Background(), token.Request{Creator: "alice"}); !errors.Is(err, token.ErrEmptyURL) {
		t.Fatalf("expected ErrEmptyURL, got %v", err)
	}
}

func TestAsset_Missing(t *testing.T) {
	l := token.NewLedger(0)
	if _, err := l.Asset(5); !errors.Is(err, token.ErrNoSuchAsset) {
		t.Fatalf("expected ErrNoSuchAsset, got %v", err)
	}
}
