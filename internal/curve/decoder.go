package curve

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MSB0095/sol-beast-sub004/internal/solana"
)

// Anchor account discriminator for the launchpad bonding-curve account.
var Discriminator = []byte{0x17, 0xb7, 0xf8, 0x37, 0x60, 0xd8, 0xac, 0x60}

const (
	discriminatorLen = 8
	// Five little-endian u64 reserve/supply fields plus the completed flag.
	minBodyLen = 5*8 + 1
	creatorLen = 32
)

var (
	ErrMalformedAccount = errors.New("malformed bonding-curve account data")
	ErrPriceUnavailable = errors.New("price unavailable")
)

// State is the decoded bonding-curve account. Reserve quantities are raw
// on-chain units: lamports for SOL, 1e-6 base units for tokens. A decoded
// State is immutable; callers re-decode on every account fetch.
type State struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Completed            bool
	// Creator is present only in the post-2025 account layout; zero otherwise.
	Creator solana.Pubkey
}

var (
	lamportsPerSol = decimal.NewFromInt(1_000_000_000)
	tokenBaseUnits = decimal.NewFromInt(1_000_000)
)

// Decode parses a raw bonding-curve account blob. It validates the account
// discriminator and the fixed field layout, tolerating trailing bytes and
// the older creator-less layout.
func Decode(data []byte) (State, error) {
	if len(data) < discriminatorLen+minBodyLen {
		return State{}, fmt.Errorf("%w: %d bytes, want at least %d",
			ErrMalformedAccount, len(data), discriminatorLen+minBodyLen)
	}
	if !bytes.Equal(data[:discriminatorLen], Discriminator) {
		return State{}, fmt.Errorf("%w: discriminator mismatch", ErrMalformedAccount)
	}
	body := data[discriminatorLen:]

	st := State{
		VirtualTokenReserves: binary.LittleEndian.Uint64(body[0:8]),
		VirtualSolReserves:   binary.LittleEndian.Uint64(body[8:16]),
		RealTokenReserves:    binary.LittleEndian.Uint64(body[16:24]),
		RealSolReserves:      binary.LittleEndian.Uint64(body[24:32]),
		TokenTotalSupply:     binary.LittleEndian.Uint64(body[32:40]),
		Completed:            body[40] != 0,
	}
	if len(body) >= minBodyLen+creatorLen {
		creator, err := solana.PubkeyFromBytes(body[minBodyLen : minBodyLen+creatorLen])
		if err != nil {
			return State{}, fmt.Errorf("%w: creator field: %v", ErrMalformedAccount, err)
		}
		st.Creator = creator
	}
	return st, nil
}

// SpotPrice returns the current SOL-per-token price from the real reserves.
// A completed curve is delisted from the pricing function, and a zero token
// reserve has no defined price; both report ErrPriceUnavailable.
func (s State) SpotPrice() (decimal.Decimal, error) {
	if s.Completed {
		return decimal.Zero, fmt.Errorf("%w: curve completed", ErrPriceUnavailable)
	}
	return priceFromReserves(s.RealSolReserves, s.RealTokenReserves)
}

// VirtualPrice returns the display price derived from the virtual reserves,
// the figure the launchpad UI quotes.
func (s State) VirtualPrice() (decimal.Decimal, error) {
	if s.Completed {
		return decimal.Zero, fmt.Errorf("%w: curve completed", ErrPriceUnavailable)
	}
	return priceFromReserves(s.VirtualSolReserves, s.VirtualTokenReserves)
}

func priceFromReserves(solLamports, tokenUnits uint64) (decimal.Decimal, error) {
	if tokenUnits == 0 {
		return decimal.Zero, fmt.Errorf("%w: zero token reserves", ErrPriceUnavailable)
	}
	sol := decimal.NewFromUint64(solLamports).Div(lamportsPerSol)
	tokens := decimal.NewFromUint64(tokenUnits).Div(tokenBaseUnits)
	return sol.Div(tokens), nil
}
