package solana

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metadataBlob(t *testing.T, name, symbol string) []byte {
	t.Helper()
	mint, err := PubkeyFromBase58("So11111111111111111111111111111111111111112")
	require.NoError(t, err)

	blob := []byte{4} // account kind
	blob = append(blob, make([]byte, 32)...)
	blob = append(blob, mint[:]...)
	for _, s := range []string{name, symbol} {
		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
		blob = append(blob, n[:]...)
		blob = append(blob, s...)
	}
	// Trailing URI and creator fields the decoder skips.
	blob = append(blob, make([]byte, 8)...)
	return blob
}

func TestDecodeTokenMetadata(t *testing.T) {
	blob := metadataBlob(t, "Wrapped SOL\x00\x00\x00\x00", "WSOL\x00\x00")

	md, err := DecodeTokenMetadata(blob)
	require.NoError(t, err)
	assert.Equal(t, "Wrapped SOL", md.Name)
	assert.Equal(t, "WSOL", md.Symbol)
	assert.Equal(t, "So11111111111111111111111111111111111111112", md.Mint.String())
}

func TestDecodeTokenMetadataRejectsTruncated(t *testing.T) {
	blob := metadataBlob(t, "Name", "SYM")

	// Shorter than the fixed header.
	_, err := DecodeTokenMetadata(blob[:40])
	assert.ErrorIs(t, err, ErrMalformedMetadata)

	// Header intact but the name string runs past the end.
	_, err = DecodeTokenMetadata(blob[:1+32+32+4+2])
	assert.ErrorIs(t, err, ErrMalformedMetadata)
}

func TestDecodeTokenMetadataLengthOverflow(t *testing.T) {
	blob := metadataBlob(t, "Name", "SYM")
	// Corrupt the name length prefix to a huge value.
	binary.LittleEndian.PutUint32(blob[1+32+32:], 1<<30)
	_, err := DecodeTokenMetadata(blob)
	assert.ErrorIs(t, err, ErrMalformedMetadata)
}
