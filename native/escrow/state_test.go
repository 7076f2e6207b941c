package escrow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vaultswap/crypto"
	"vaultswap/native/common"
)

func TestRecordLayout(t *testing.T) {
	require.Equal(t, 157, EscrowRecordSize)
	require.Equal(t, 189, RoomRecordSize)

	rec := &Record{
		Variant: VariantRoom,
		EscrowState: EscrowState{
			Identifier:                     strings.Repeat("r", MaxIdentifierLen),
			InitializerKey:                 crypto.ProgramID("init"),
			InitializerDepositTokenAccount: crypto.ProgramID("deposit"),
			InitializerReceiveTokenAccount: crypto.ProgramID("receive"),
			InitializerAmount:              50,
			TakerAmount:                    100,
			VaultAuthorityBump:             254,
		},
		CollectibleMint: crypto.ProgramID("collectible"),
	}
	data, err := rec.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, RoomRecordSize)

	decoded, err := UnmarshalRecord(data)
	require.NoError(t, err)
	require.Equal(t, rec, decoded)

	rec.Variant = VariantEscrow
	rec.Identifier = "short"
	rec.CollectibleMint = crypto.Address{}
	data, err = rec.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, EscrowRecordSize)
	decoded, err = UnmarshalRecord(data)
	require.NoError(t, err)
	require.Equal(t, rec, decoded)
}

func TestUnmarshalRecordRejectsForeignData(t *testing.T) {
	_, err := UnmarshalRecord(nil)
	require.ErrorIs(t, err, ErrRecordNotFound)

	other := common.AccountDiscriminator("Other")
	_, err = UnmarshalRecord(append(other[:], make([]byte, 64)...))
	require.ErrorIs(t, err, ErrRecordNotFound)

	_, err = ReadRecord(crypto.ProgramID("impostor"), make([]byte, EscrowRecordSize))
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestAuthorityDerivation(t *testing.T) {
	authority, bump := VaultAuthority()
	again, againBump := VaultAuthority()
	require.Equal(t, authority, again)
	require.Equal(t, bump, againBump)
	require.False(t, crypto.IsOnCurve(authority))

	fromBump, err := authorityFromBump(bump)
	require.NoError(t, err)
	require.Equal(t, authority, fromBump)

	a, _, err := RecordAddress("a")
	require.NoError(t, err)
	b, _, err := RecordAddress("b")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.NotEqual(t, VaultAddress(crypto.ProgramID("m1")), VaultAddress(crypto.ProgramID("m2")))
}

func TestKindOf(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(nil))
	require.Equal(t, KindValidation, KindOf(mismatch("vault", crypto.Address{}, crypto.Address{})))
	require.Equal(t, KindAuthorization, KindOf(ErrCollectionNotSame))
	require.Equal(t, KindArithmetic, KindOf(ErrMultiplierOverflow))
}
