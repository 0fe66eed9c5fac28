package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestDecodeMessage_Skips_Unknown_Fields(t *testing.T) {
	req := require.New(t)
	original := message("alice", base)

	encoded := encodeMessage(original)
	encoded = protowire.AppendTag(encoded, 9, protowire.BytesType)
	encoded = protowire.AppendString(encoded, "added by a newer release")

	decoded, err := decodeMessage(encoded)
	req.NoError(err)
	req.Equal(original, decoded)
}

func TestDecodeMessage_Truncated_Record(t *testing.T) {
	req := require.New(t)
	encoded := encodeMessage(message("alice", base))

	_, err := decodeMessage(encoded[:len(encoded)-3])
	req.Error(err)
}
