package assertion_test

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-fido-fuzz/assertion"
)

func TestES256KeyRoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	k, err := assertion.ES256KeyFromPublic(&priv.PublicKey)
	require.NoError(t, err)

	pub, err := assertion.PublicKey(assertion.AlgES256, k)
	require.NoError(t, err)
	require.True(t, priv.PublicKey.Equal(pub.(*ecdsa.PublicKey)))
}

func TestRS256KeyRoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	k, err := assertion.RS256KeyFromPublic(&priv.PublicKey)
	require.NoError(t, err)

	pub, err := assertion.PublicKey(assertion.AlgRS256, k)
	require.NoError(t, err)
	require.True(t, priv.PublicKey.Equal(pub.(*rsa.PublicKey)))
}

func TestEdDSAKeyRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	k, err := assertion.EdDSAKeyFromPublic(pub)
	require.NoError(t, err)

	got, err := assertion.PublicKey(assertion.AlgEdDSA, k)
	require.NoError(t, err)
	require.True(t, pub.Equal(got.(ed25519.PublicKey)))
}

func TestKeyMaterialLengths(t *testing.T) {
	_, err := assertion.ES256Key(make([]byte, 63))
	require.ErrorIs(t, err, assertion.ErrBadKeyMaterial)

	_, err = assertion.RS256Key(make([]byte, 256))
	require.ErrorIs(t, err, assertion.ErrBadKeyMaterial)

	_, err = assertion.EdDSAKey(make([]byte, 31))
	require.ErrorIs(t, err, assertion.ErrBadKeyMaterial)

	_, err = assertion.ES256Key(make([]byte, 64))
	require.NoError(t, err)
	_, err = assertion.RS256Key(make([]byte, 259))
	require.NoError(t, err)
	_, err = assertion.EdDSAKey(make([]byte, 32))
	require.NoError(t, err)
}

func TestPublicKeyRejectsZeroExponent(t *testing.T) {
	k, err := assertion.RS256Key(make([]byte, 259))
	require.NoError(t, err)

	_, err = assertion.PublicKey(assertion.AlgRS256, k)
	require.ErrorIs(t, err, assertion.ErrBadKeyMaterial)
}

func TestPublicKeyUnknownAlgorithm(t *testing.T) {
	k, err := assertion.ES256Key(make([]byte, 64))
	require.NoError(t, err)

	_, err = assertion.PublicKey(-1234, k)
	require.ErrorIs(t, err, assertion.ErrBadKeyMaterial)

	_, err = assertion.PublicKey(assertion.AlgES256, nil)
	require.ErrorIs(t, err, assertion.ErrBadKeyMaterial)
}
