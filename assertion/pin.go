package assertion

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/sha256"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/splitsecure/go-fido-fuzz/ctaphid"
)

// clientPIN subcommands (PIN protocol 1).
const (
	pinSubGetKeyAgreement = 0x02
	pinSubGetPINToken     = 0x05
)

// coseEC2Key is the COSE EC2 key shape exchanged by the clientPIN
// key-agreement subcommand.
type coseEC2Key struct {
	Kty int    `cbor:"1,keyasint"`
	Alg int    `cbor:"3,keyasint,omitempty"`
	Crv int    `cbor:"-1,keyasint,omitempty"`
	X   []byte `cbor:"-2,keyasint,omitempty"`
	Y   []byte `cbor:"-3,keyasint,omitempty"`
}

type clientPINRequest struct {
	Protocol     uint        `cbor:"1,keyasint"`
	Subcommand   uint        `cbor:"2,keyasint"`
	KeyAgreement *coseEC2Key `cbor:"3,keyasint,omitempty"`
	PinAuth      []byte      `cbor:"4,keyasint,omitempty"`
	NewPinEnc    []byte      `cbor:"5,keyasint,omitempty"`
	PinHashEnc   []byte      `cbor:"6,keyasint,omitempty"`
}

type clientPINResponse struct {
	KeyAgreement *coseEC2Key `cbor:"1,keyasint,omitempty"`
	PinToken     []byte      `cbor:"2,keyasint,omitempty"`
	Retries      uint        `cbor:"3,keyasint,omitempty"`
}

var ErrBadKeyAgreement = errors.New("assertion: bad key-agreement key")

// pinExchange holds the PIN-protocol-1 session state: the platform's
// ephemeral key and the SHA-256 of the ECDH shared point.
type pinExchange struct {
	platformKey  *coseEC2Key
	sharedSecret [32]byte
}

// newPINExchange runs the getKeyAgreement subcommand and derives the
// shared secret. The platform ephemeral key is drawn from rng so the
// whole exchange replays deterministically.
func newPINExchange(dev ctaphid.Device, cid uint32, rng *rand.Rand) (*pinExchange, error) {
	var resp clientPINResponse
	req := clientPINRequest{Protocol: 1, Subcommand: pinSubGetKeyAgreement}
	if err := roundTripCBOR(dev, cid, cmdClientPIN, &req, &resp); err != nil {
		return nil, err
	}
	if resp.KeyAgreement == nil {
		return nil, errors.Wrap(ErrBadKeyAgreement, "missing from response")
	}
	if len(resp.KeyAgreement.X) != 32 || len(resp.KeyAgreement.Y) != 32 {
		return nil, errors.Wrapf(ErrBadKeyAgreement, "point is %d/%d bytes",
			len(resp.KeyAgreement.X), len(resp.KeyAgreement.Y))
	}

	point := make([]byte, 1+32+32)
	point[0] = 4 // uncompressed
	copy(point[1:33], resp.KeyAgreement.X)
	copy(point[33:], resp.KeyAgreement.Y)
	devicePub, err := ecdh.P256().NewPublicKey(point)
	if err != nil {
		return nil, errors.Wrap(ErrBadKeyAgreement, err.Error())
	}

	platform, err := ecdh.P256().GenerateKey(rng)
	if err != nil {
		return nil, errors.Wrap(err, "generating platform key")
	}
	shared, err := platform.ECDH(devicePub)
	if err != nil {
		return nil, errors.Wrap(ErrBadKeyAgreement, err.Error())
	}

	platformPoint := platform.PublicKey().Bytes() // 0x04 || X || Y
	ex := &pinExchange{
		platformKey: &coseEC2Key{
			Kty: coseKtyEC2,
			Alg: -25, // ECDH-ES+HKDF-256, as CTAP2 labels the exchange key
			Crv: coseCrvP256,
			X:   platformPoint[1:33],
			Y:   platformPoint[33:],
		},
		sharedSecret: sha256.Sum256(shared),
	}
	return ex, nil
}

// pinToken runs the getPINToken subcommand: it sends the encrypted
// PIN hash and decrypts the token from the response.
func (ex *pinExchange) pinToken(dev ctaphid.Device, cid uint32, pin string) ([]byte, error) {
	pinHash := sha256.Sum256([]byte(pin))
	pinHashEnc, err := ex.encrypt(pinHash[:16])
	if err != nil {
		return nil, err
	}

	var resp clientPINResponse
	req := clientPINRequest{
		Protocol:     1,
		Subcommand:   pinSubGetPINToken,
		KeyAgreement: ex.platformKey,
		PinHashEnc:   pinHashEnc,
	}
	if err := roundTripCBOR(dev, cid, cmdClientPIN, &req, &resp); err != nil {
		return nil, err
	}
	return ex.decrypt(resp.PinToken)
}

// encrypt applies AES-256-CBC with a zero IV, PIN protocol 1 style.
// The plaintext length must already be block-aligned.
func (ex *pinExchange) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(ex.sharedSecret[:])
	if err != nil {
		return nil, err
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, errors.Errorf("assertion: plaintext is %d bytes, not block-aligned", len(plaintext))
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(out, plaintext)
	return out, nil
}

func (ex *pinExchange) decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(ex.sharedSecret[:])
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.Errorf("assertion: ciphertext is %d bytes, not block-aligned", len(ciphertext))
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(out, ciphertext)
	return out, nil
}
