package httpapi

import (
	"time"

	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

func recordResponse(id types.RecordID, e types.RecordEntry) types.RecordResponse {
	access := make([]types.Identity, len(e.AccessList))
	copy(access, e.AccessList)

	return types.RecordResponse{
		RecordID:       id,
		Owner:          e.Owner,
		ContentPointer: e.ContentPointer,
		CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339Nano),
		Verified:       e.Verified,
		AccessList:     access,
	}
}
