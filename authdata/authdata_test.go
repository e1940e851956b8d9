package authdata_test

import (
	"encoding/binary"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-fido-fuzz/authdata"
)

func baseBytes(flags byte, signCount uint32) []byte {
	out := make([]byte, 37)
	for i := 0; i < 32; i++ {
		out[i] = byte(i)
	}
	out[32] = flags
	binary.BigEndian.PutUint32(out[33:37], signCount)
	return out
}

func keyCBOR(t *testing.T) []byte {
	t.Helper()
	b, err := cbor.Marshal(map[int64]int64{1: 2, 3: -7})
	require.NoError(t, err)
	return b
}

func TestUnmarshalBase(t *testing.T) {
	src := baseBytes(authdata.FlagUserPresent|authdata.FlagUserVerified, 1337)

	var ad authdata.T
	require.NoError(t, authdata.Unmarshal(src, &ad))
	require.Equal(t, src[:32], ad.RelyingPartyHash)
	require.Equal(t, authdata.FlagUserPresent|authdata.FlagUserVerified, ad.Flags)
	require.Equal(t, uint32(1337), ad.SignCount)
	require.Empty(t, ad.Extensions)
}

func TestUnmarshalTooShort(t *testing.T) {
	var ad authdata.T
	for _, n := range []int{0, 1, 32, 36} {
		err := authdata.Unmarshal(make([]byte, n), &ad)
		require.ErrorIs(t, err, authdata.ErrTooShort, "%d bytes", n)
	}
}

func TestUnmarshalAttestedCredentialData(t *testing.T) {
	aaguid := uuid.MustParse("a51a3cf4-1b87-4d5c-b4fc-7b3bbb8e6a44")
	credID := []byte{0xca, 0xfe, 0xd0, 0x0d}

	src := baseBytes(authdata.FlagHasAttestedCredentialData, 1)
	src = append(src, aaguid[:]...)
	src = append(src, 0x00, byte(len(credID)))
	src = append(src, credID...)
	src = append(src, keyCBOR(t)...)

	var ad authdata.T
	require.NoError(t, authdata.Unmarshal(src, &ad))
	require.Equal(t, aaguid, ad.AttestedCredentialData.AAGUID)
	require.Equal(t, credID, ad.AttestedCredentialData.CredentialID)
	require.NotEmpty(t, ad.AttestedCredentialData.CredentialPublicKey)
}

func TestUnmarshalExtensions(t *testing.T) {
	ext, err := cbor.Marshal(map[string][]byte{"hmac-secret": {0x01, 0x02}})
	require.NoError(t, err)

	src := append(baseBytes(authdata.FlagHasExtensionData, 1), ext...)

	var ad authdata.T
	require.NoError(t, authdata.Unmarshal(src, &ad))
	require.Equal(t, ext, ad.Extensions)
}

func TestUnmarshalCredentialIDOverdeclared(t *testing.T) {
	src := baseBytes(authdata.FlagHasAttestedCredentialData, 1)
	src = append(src, make([]byte, 16)...) // AAGUID
	src = append(src, 0xff, 0xff)          // credential id length way past the buffer

	var ad authdata.T
	require.ErrorIs(t, authdata.Unmarshal(src, &ad), authdata.ErrTooShort)
}

func TestUnmarshalTruncatedCredentialHeader(t *testing.T) {
	src := baseBytes(authdata.FlagHasAttestedCredentialData, 1)
	src = append(src, make([]byte, 10)...) // not even a whole AAGUID

	var ad authdata.T
	require.ErrorIs(t, authdata.Unmarshal(src, &ad), authdata.ErrTooShort)
}

func TestUnmarshalBadCredentialKey(t *testing.T) {
	src := baseBytes(authdata.FlagHasAttestedCredentialData, 1)
	src = append(src, make([]byte, 16)...)
	src = append(src, 0x00, 0x00) // empty credential id
	src = append(src, 0xff)       // not CBOR

	var ad authdata.T
	require.Error(t, authdata.Unmarshal(src, &ad))
}

func TestMarshalRoundTrip(t *testing.T) {
	in := &authdata.T{
		RelyingPartyHash: baseBytes(0, 0)[:32],
		Flags:            authdata.FlagUserPresent,
		SignCount:        7,
	}
	raw, err := authdata.Marshal(in)
	require.NoError(t, err)
	require.Len(t, raw, 37)

	var out authdata.T
	require.NoError(t, authdata.Unmarshal(raw, &out))
	require.Equal(t, in.RelyingPartyHash, out.RelyingPartyHash)
	require.Equal(t, in.Flags, out.Flags)
	require.Equal(t, in.SignCount, out.SignCount)
}

func TestMarshalRejectsBadHash(t *testing.T) {
	_, err := authdata.Marshal(&authdata.T{RelyingPartyHash: []byte{1, 2, 3}})
	require.Error(t, err)
}
