package httpapi

import (
	"mime"
	"net/http"
	"strings"

	"github.com/BrandonDHaskell/medledger/internal/medledger/codec"
	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

// maxRequestBody caps JSON request bodies.  The largest one (a mint with a
// content pointer) is well under 1 KiB.
const maxRequestBody = 4096

const protobufContentType = "application/x-protobuf"

// wantsProtobuf reports whether the client listed a protobuf media type in
// Accept.
func wantsProtobuf(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case "application/x-protobuf", "application/protobuf":
			return true
		}
	}
	return false
}

// writeRecordProto writes the record in its protobuf wire form.
func writeRecordProto(w http.ResponseWriter, status int, id types.RecordID, e types.RecordEntry) {
	data, err := codec.MarshalRecord(id, e)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
