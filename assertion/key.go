package assertion

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"math/big"

	cose_key "github.com/ldclabs/cose/key"
	"github.com/pkg/errors"
)

// COSE algorithm identifiers for the three signature families the
// harness drives.
const (
	AlgES256 = -7
	AlgEdDSA = -8
	AlgRS256 = -257
)

// COSE key type values and parameter labels used when building and
// reading key maps.
const (
	coseKtyOKP = 1
	coseKtyEC2 = 2
	coseKtyRSA = 3

	coseLabelKty = 1
	coseLabelAlg = 3

	coseLabelCrv = -1 // EC2/OKP
	coseLabelX   = -2 // EC2/OKP
	coseLabelY   = -3 // EC2

	coseLabelRSAN = -1
	coseLabelRSAE = -2

	coseCrvP256    = 1
	coseCrvEd25519 = 6
)

var ErrBadKeyMaterial = errors.New("assertion: bad key material")

// ES256Key builds a COSE EC2 key from 64 bytes of uncompressed X||Y
// point material.
func ES256Key(material []byte) (cose_key.Key, error) {
	if len(material) != 64 {
		return nil, errors.Wrapf(ErrBadKeyMaterial, "es256: %d bytes", len(material))
	}
	return cose_key.Key{
		coseLabelKty: coseKtyEC2,
		coseLabelAlg: AlgES256,
		coseLabelCrv: coseCrvP256,
		coseLabelX:   append([]byte(nil), material[:32]...),
		coseLabelY:   append([]byte(nil), material[32:]...),
	}, nil
}

// RS256Key builds a COSE RSA key from 259 bytes of material: a
// 256-byte modulus followed by a 3-byte public exponent.
func RS256Key(material []byte) (cose_key.Key, error) {
	if len(material) != 256+3 {
		return nil, errors.Wrapf(ErrBadKeyMaterial, "rs256: %d bytes", len(material))
	}
	return cose_key.Key{
		coseLabelKty:  coseKtyRSA,
		coseLabelAlg:  AlgRS256,
		coseLabelRSAN: append([]byte(nil), material[:256]...),
		coseLabelRSAE: append([]byte(nil), material[256:]...),
	}, nil
}

// EdDSAKey builds a COSE OKP key from a 32-byte Ed25519 public key.
func EdDSAKey(material []byte) (cose_key.Key, error) {
	if len(material) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(ErrBadKeyMaterial, "eddsa: %d bytes", len(material))
	}
	return cose_key.Key{
		coseLabelKty: coseKtyOKP,
		coseLabelAlg: AlgEdDSA,
		coseLabelCrv: coseCrvEd25519,
		coseLabelX:   append([]byte(nil), material...),
	}, nil
}

// ES256KeyFromPublic converts a stdlib ECDSA public key back into a
// COSE key.
func ES256KeyFromPublic(pub *ecdsa.PublicKey) (cose_key.Key, error) {
	if pub.X == nil || pub.Y == nil {
		return nil, errors.Wrap(ErrBadKeyMaterial, "es256: missing point")
	}
	material := make([]byte, 64)
	pub.X.FillBytes(material[:32])
	pub.Y.FillBytes(material[32:])
	return ES256Key(material)
}

// RS256KeyFromPublic converts a stdlib RSA public key back into a
// COSE key.
func RS256KeyFromPublic(pub *rsa.PublicKey) (cose_key.Key, error) {
	if pub.N == nil || pub.N.BitLen() > 2048 {
		return nil, errors.Wrap(ErrBadKeyMaterial, "rs256: bad modulus")
	}
	material := make([]byte, 256+3)
	pub.N.FillBytes(material[:256])
	material[256] = byte(pub.E >> 16)
	material[257] = byte(pub.E >> 8)
	material[258] = byte(pub.E)
	return RS256Key(material)
}

// EdDSAKeyFromPublic converts a stdlib Ed25519 public key back into a
// COSE key.
func EdDSAKeyFromPublic(pub ed25519.PublicKey) (cose_key.Key, error) {
	return EdDSAKey(pub)
}

func keyBytes(k cose_key.Key, label int) ([]byte, error) {
	v, ok := k[label]
	if !ok {
		return nil, errors.Wrapf(ErrBadKeyMaterial, "missing label %d", label)
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, errors.Wrapf(ErrBadKeyMaterial, "label %d is not bytes", label)
	}
	return b, nil
}

// PublicKey converts a COSE key of the given algorithm family into
// the matching stdlib public key type.
func PublicKey(alg int, k cose_key.Key) (crypto.PublicKey, error) {
	if k == nil {
		return nil, errors.Wrap(ErrBadKeyMaterial, "nil key")
	}
	switch alg {
	case AlgES256:
		x, err := keyBytes(k, coseLabelX)
		if err != nil {
			return nil, err
		}
		y, err := keyBytes(k, coseLabelY)
		if err != nil {
			return nil, err
		}
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		}, nil
	case AlgRS256:
		n, err := keyBytes(k, coseLabelRSAN)
		if err != nil {
			return nil, err
		}
		e, err := keyBytes(k, coseLabelRSAE)
		if err != nil {
			return nil, err
		}
		exp := 0
		for _, b := range e {
			exp = exp<<8 | int(b)
		}
		if exp == 0 {
			return nil, errors.Wrap(ErrBadKeyMaterial, "rs256: zero exponent")
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: exp}, nil
	case AlgEdDSA:
		x, err := keyBytes(k, coseLabelX)
		if err != nil {
			return nil, err
		}
		if len(x) != ed25519.PublicKeySize {
			return nil, errors.Wrapf(ErrBadKeyMaterial, "eddsa: %d bytes", len(x))
		}
		return ed25519.PublicKey(x), nil
	}
	return nil, errors.Wrapf(ErrBadKeyMaterial, "unknown algorithm %d", alg)
}
