package solana

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedMetadata = errors.New("malformed token metadata account")

// TokenMetadata is the on-chain name and symbol of a mint, read from its
// metadata PDA.
type TokenMetadata struct {
	UpdateAuthority Pubkey
	Mint            Pubkey
	Name            string
	Symbol          string
}

// DecodeTokenMetadata parses a token metadata account: a one-byte account
// kind, the update authority, the mint, then the borsh-encoded name and
// symbol strings. Trailing bytes (URI, creators, flags) are ignored. The
// on-chain strings are padded to a fixed width with NULs, which are
// stripped here.
func DecodeTokenMetadata(data []byte) (TokenMetadata, error) {
	var md TokenMetadata
	if len(data) < 1+32+32 {
		return md, fmt.Errorf("%w: %d bytes", ErrMalformedMetadata, len(data))
	}
	rest := data[1:]
	md.UpdateAuthority, rest = takePubkey(rest)
	md.Mint, rest = takePubkey(rest)

	name, rest, err := borshString(rest)
	if err != nil {
		return md, fmt.Errorf("%w: name: %v", ErrMalformedMetadata, err)
	}
	symbol, _, err := borshString(rest)
	if err != nil {
		return md, fmt.Errorf("%w: symbol: %v", ErrMalformedMetadata, err)
	}
	md.Name = strings.TrimRight(name, "\x00 ")
	md.Symbol = strings.TrimRight(symbol, "\x00 ")
	return md, nil
}

func takePubkey(b []byte) (Pubkey, []byte) {
	var pk Pubkey
	copy(pk[:], b[:32])
	return pk, b[32:]
}

// borshString reads a u32 length prefix followed by that many bytes.
func borshString(b []byte) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, errors.New("truncated length prefix")
	}
	n := binary.LittleEndian.Uint32(b)
	b = b[4:]
	if uint32(len(b)) < n {
		return "", nil, fmt.Errorf("declared %d bytes, %d remain", n, len(b))
	}
	return string(b[:n]), b[n:], nil
}
