package repositories

import (
	"fmt"
	"time"

	"nerdsphere/domain"

	"google.golang.org/protobuf/encoding/protowire"
)

// Stored values use the protobuf wire format of:
//
//	message Message {
//	  string id = 1;
//	  string content = 2;
//	  string user_fingerprint = 3;
//	  int64 created_at = 4; // unix nanoseconds
//	}
const (
	fieldID          protowire.Number = 1
	fieldContent     protowire.Number = 2
	fieldFingerprint protowire.Number = 3
	fieldCreatedAt   protowire.Number = 4
)

func encodeMessage(message domain.Message) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldID, protowire.BytesType)
	b = protowire.AppendString(b, message.ID)
	b = protowire.AppendTag(b, fieldContent, protowire.BytesType)
	b = protowire.AppendString(b, message.Content)
	b = protowire.AppendTag(b, fieldFingerprint, protowire.BytesType)
	b = protowire.AppendString(b, message.Fingerprint)
	b = protowire.AppendTag(b, fieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(message.CreatedAt.UnixNano()))
	return b
}

// decodeMessage skips unknown fields so older binaries can read newer records.
func decodeMessage(b []byte) (domain.Message, error) {
	var message domain.Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.Message{}, fmt.Errorf("decode message tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldID && typ == protowire.BytesType:
			message.ID, n = protowire.ConsumeString(b)
		case num == fieldContent && typ == protowire.BytesType:
			message.Content, n = protowire.ConsumeString(b)
		case num == fieldFingerprint && typ == protowire.BytesType:
			message.Fingerprint, n = protowire.ConsumeString(b)
		case num == fieldCreatedAt && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			message.CreatedAt = time.Unix(0, int64(v)).UTC()
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return domain.Message{}, fmt.Errorf("decode message field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return message, nil
}

// DecodeRecord reads a stored Badger value back into a message.
// Used by the inspectors, which read the database outside of a repository.
func DecodeRecord(value []byte) (domain.Message, error) {
	return decodeMessage(value)
}
