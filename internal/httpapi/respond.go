package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error":code,"message":msg}.  msg must never carry
// record content.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: code, Message: msg})
}
