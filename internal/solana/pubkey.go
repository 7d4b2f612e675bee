package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Pubkey is a 32-byte Solana account address.
type Pubkey [32]byte

var ErrInvalidPubkey = errors.New("invalid pubkey")

func PubkeyFromBase58(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	if len(raw) != len(pk) {
		return pk, fmt.Errorf("%w: decoded length %d", ErrInvalidPubkey, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

func PubkeyFromBytes(raw []byte) (Pubkey, error) {
	var pk Pubkey
	if len(raw) != len(pk) {
		return pk, fmt.Errorf("%w: length %d", ErrInvalidPubkey, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

const pdaMarker = "ProgramDerivedAddress"

// FindProgramAddress derives the canonical program-derived address for the
// given seeds, iterating the bump seed down from 255 until the candidate
// hash falls off the ed25519 curve.
func FindProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{uint8(bump)})
		h.Write(program[:])
		h.Write([]byte(pdaMarker))
		sum := h.Sum(nil)

		// A PDA must not be a valid curve point, otherwise it would have a
		// corresponding private key.
		if _, err := new(edwards25519.Point).SetBytes(sum); err != nil {
			pk, _ := PubkeyFromBytes(sum)
			return pk, uint8(bump), nil
		}
	}
	return Pubkey{}, 0, errors.New("unable to find a viable program address bump seed")
}

// BondingCurveAddress derives the launchpad bonding-curve PDA for a mint.
func BondingCurveAddress(mint, program Pubkey) (Pubkey, error) {
	pda, _, err := FindProgramAddress([][]byte{[]byte("bonding-curve"), mint[:]}, program)
	return pda, err
}

// MetadataAddress derives the token metadata PDA for a mint.
func MetadataAddress(mint, metadataProgram Pubkey) (Pubkey, error) {
	pda, _, err := FindProgramAddress(
		[][]byte{[]byte("metadata"), metadataProgram[:], mint[:]},
		metadataProgram,
	)
	return pda, err
}
