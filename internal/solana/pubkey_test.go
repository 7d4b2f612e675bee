package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubkeyBase58RoundTrip(t *testing.T) {
	const addr = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	pk, err := PubkeyFromBase58(addr)
	require.NoError(t, err)
	assert.Equal(t, addr, pk.String())
	assert.False(t, pk.IsZero())
}

func TestPubkeyFromBase58Rejects(t *testing.T) {
	_, err := PubkeyFromBase58("not-base58-0OIl")
	assert.ErrorIs(t, err, ErrInvalidPubkey)

	// Valid base58 but wrong length.
	_, err = PubkeyFromBase58("3yZe7d")
	assert.ErrorIs(t, err, ErrInvalidPubkey)
}

func TestPubkeyFromBytes(t *testing.T) {
	_, err := PubkeyFromBytes(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidPubkey)

	pk, err := PubkeyFromBytes(make([]byte, 32))
	require.NoError(t, err)
	assert.True(t, pk.IsZero())
}

func TestFindProgramAddressDeterministic(t *testing.T) {
	program, err := PubkeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	require.NoError(t, err)
	mint, err := PubkeyFromBase58("So11111111111111111111111111111111111111112")
	require.NoError(t, err)

	a, bumpA, err := FindProgramAddress([][]byte{[]byte("bonding-curve"), mint[:]}, program)
	require.NoError(t, err)
	b, bumpB, err := FindProgramAddress([][]byte{[]byte("bonding-curve"), mint[:]}, program)
	require.NoError(t, err)

	assert.Equal(t, a, b, "derivation must be deterministic")
	assert.Equal(t, bumpA, bumpB)
	assert.False(t, a.IsZero())

	// Different seeds produce a different address.
	c, _, err := FindProgramAddress([][]byte{[]byte("metadata"), mint[:]}, program)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestBondingCurveAddressMatchesRawDerivation(t *testing.T) {
	program, err := PubkeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	require.NoError(t, err)
	mint, err := PubkeyFromBase58("So11111111111111111111111111111111111111112")
	require.NoError(t, err)

	viaHelper, err := BondingCurveAddress(mint, program)
	require.NoError(t, err)
	viaRaw, _, err := FindProgramAddress([][]byte{[]byte("bonding-curve"), mint[:]}, program)
	require.NoError(t, err)
	assert.Equal(t, viaRaw, viaHelper)
}
