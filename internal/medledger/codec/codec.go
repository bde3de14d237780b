// Package codec encodes record entries in protobuf wire format.  The same
// bytes are stored as kv values and served to clients that ask for
// application/x-protobuf.
//
//	message Record {
//	  uint64 record_id = 1;
//	  string owner = 2;
//	  string content_pointer = 3;
//	  google.protobuf.Timestamp created_at = 4;
//	  bool verified = 5;
//	  repeated string access_list = 6;
//	}
package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

var ErrMalformed = errors.New("malformed record encoding")

const (
	fieldRecordID       protowire.Number = 1
	fieldOwner          protowire.Number = 2
	fieldContentPointer protowire.Number = 3
	fieldCreatedAt      protowire.Number = 4
	fieldVerified       protowire.Number = 5
	fieldAccessList     protowire.Number = 6
)

// MarshalRecord encodes id and e.
func MarshalRecord(id types.RecordID, e types.RecordEntry) ([]byte, error) {
	ts, err := proto.Marshal(timestamppb.New(e.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("marshal created_at: %w", err)
	}

	var b []byte
	b = protowire.AppendTag(b, fieldRecordID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(id))
	b = protowire.AppendTag(b, fieldOwner, protowire.BytesType)
	b = protowire.AppendString(b, string(e.Owner))
	b = protowire.AppendTag(b, fieldContentPointer, protowire.BytesType)
	b = protowire.AppendString(b, e.ContentPointer)
	b = protowire.AppendTag(b, fieldCreatedAt, protowire.BytesType)
	b = protowire.AppendBytes(b, ts)
	if e.Verified {
		b = protowire.AppendTag(b, fieldVerified, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	for _, a := range e.AccessList {
		b = protowire.AppendTag(b, fieldAccessList, protowire.BytesType)
		b = protowire.AppendString(b, string(a))
	}
	return b, nil
}

// UnmarshalRecord decodes bytes produced by MarshalRecord.  Unknown fields
// are skipped.
func UnmarshalRecord(b []byte) (types.RecordID, types.RecordEntry, error) {
	var (
		id types.RecordID
		e  types.RecordEntry
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, types.RecordEntry{}, malformed(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldRecordID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, types.RecordEntry{}, malformed(protowire.ParseError(n))
			}
			id = types.RecordID(v)
			b = b[n:]
		case num == fieldOwner && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return 0, types.RecordEntry{}, malformed(protowire.ParseError(n))
			}
			e.Owner = types.Identity(v)
			b = b[n:]
		case num == fieldContentPointer && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return 0, types.RecordEntry{}, malformed(protowire.ParseError(n))
			}
			e.ContentPointer = v
			b = b[n:]
		case num == fieldCreatedAt && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, types.RecordEntry{}, malformed(protowire.ParseError(n))
			}
			var ts timestamppb.Timestamp
			if err := proto.Unmarshal(v, &ts); err != nil {
				return 0, types.RecordEntry{}, malformed(err)
			}
			e.CreatedAt = ts.AsTime()
			b = b[n:]
		case num == fieldVerified && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, types.RecordEntry{}, malformed(protowire.ParseError(n))
			}
			e.Verified = protowire.DecodeBool(v)
			b = b[n:]
		case num == fieldAccessList && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return 0, types.RecordEntry{}, malformed(protowire.ParseError(n))
			}
			e.AccessList = append(e.AccessList, types.Identity(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, types.RecordEntry{}, malformed(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return id, e, nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
