// Package assertion implements the authenticator-client operations
// the fuzzing harness drives: a get-assertion call spoken over a
// CTAPHID device in either FIDO2 (CTAP2 CBOR) or U2F (APDU) framing,
// a verify-assertion call checking a statement's signature, and the
// construction of COSE public keys from raw corpus key material.
//
// Every byte read from the device is treated as adversarial: it comes
// from a replayed, mutated recording. Parse failures are ordinary
// errors the caller ignores, never panics.
package assertion

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"

	cose_key "github.com/ldclabs/cose/key"
	"github.com/pkg/errors"

	"github.com/splitsecure/go-fido-fuzz/authdata"
	"github.com/splitsecure/go-fido-fuzz/ctaphid"
)

// Request carries the parameters of one get-assertion call.
type Request struct {
	RPID           string
	ClientDataHash []byte
	PIN            string   // ignored in U2F mode
	AllowList      [][]byte // credential IDs
	HMACSalt       []byte   // hmac-secret extension salt
	HMACSecret     bool     // request the hmac-secret extension
	UP             bool
	UV             bool
	U2F            bool
}

// Statement is one assertion statement produced by the authenticator.
type Statement struct {
	CredentialID    []byte
	AuthDataRaw     []byte
	Signature       []byte
	UserID          []byte
	UserName        string
	UserDisplayName string
	UserIcon        string
	HMACSecretEnc   []byte
	Flags           byte
}

var (
	ErrShortInitResponse = errors.New("assertion: short INIT response")
	ErrUnexpectedCommand = errors.New("assertion: unexpected response command")
	ErrNoCredentials     = errors.New("assertion: u2f needs an allow-list credential")
)

// GetAssertion runs one get-assertion operation against dev. The rng
// supplies the INIT nonce and the PIN-exchange ephemeral key, so a
// replay with the same record is byte-for-byte deterministic.
func GetAssertion(dev ctaphid.Device, rng *rand.Rand, req *Request) ([]Statement, error) {
	cid, err := initChannel(dev, rng)
	if err != nil {
		return nil, err
	}
	if req.U2F {
		return u2fAuthenticate(dev, cid, req)
	}
	return ctap2GetAssertion(dev, cid, rng, req)
}

// initChannel performs CTAPHID INIT on the broadcast channel and
// returns the allocated channel ID. The nonce echo is not compared:
// replayed recordings carry the nonce of the original run.
func initChannel(dev ctaphid.Device, rng *rand.Rand) (uint32, error) {
	nonce := make([]byte, 8)
	rng.Read(nonce)

	if err := ctaphid.WriteMsg(dev, ctaphid.BroadcastCID, ctaphid.CommandInit, nonce); err != nil {
		return 0, err
	}
	cmd, payload, err := ctaphid.ReadMsg(dev, ctaphid.BroadcastCID)
	if err != nil {
		return 0, err
	}
	if cmd != ctaphid.CommandInit {
		return 0, errors.Wrapf(ErrUnexpectedCommand, "%s", cmd)
	}
	if len(payload) < 17 {
		return 0, errors.Wrapf(ErrShortInitResponse, "%d bytes", len(payload))
	}
	return binary.BigEndian.Uint32(payload[8:12]), nil
}

// Verify checks one assertion statement against the request
// parameters and a COSE public key of the selected algorithm family.
// It parses the statement's authenticator data strictly, compares the
// relying-party hash and the UP/UV flags, then verifies the signature
// over authData || clientDataHash.
func Verify(alg int, stmt *Statement, clientDataHash []byte, rpID string, up, uv bool, k cose_key.Key) error {
	if stmt == nil {
		return errors.New("assertion: nil statement")
	}

	var ad authdata.T
	if err := authdata.Unmarshal(stmt.AuthDataRaw, &ad); err != nil {
		return err
	}

	rpHash := sha256.Sum256([]byte(rpID))
	if !bytes.Equal(ad.RelyingPartyHash, rpHash[:]) {
		return errors.New("assertion: relying-party hash mismatch")
	}
	if up && ad.Flags&authdata.FlagUserPresent == 0 {
		return errors.New("assertion: user presence not asserted")
	}
	if uv && ad.Flags&authdata.FlagUserVerified == 0 {
		return errors.New("assertion: user verification not asserted")
	}

	pub, err := PublicKey(alg, k)
	if err != nil {
		return err
	}

	signed := make([]byte, 0, len(stmt.AuthDataRaw)+len(clientDataHash))
	signed = append(signed, stmt.AuthDataRaw...)
	signed = append(signed, clientDataHash...)

	switch alg {
	case AlgES256:
		digest := sha256.Sum256(signed)
		if !ecdsa.VerifyASN1(pub.(*ecdsa.PublicKey), digest[:], stmt.Signature) {
			return errors.New("assertion: es256 signature mismatch")
		}
	case AlgRS256:
		digest := sha256.Sum256(signed)
		if err := rsa.VerifyPKCS1v15(pub.(*rsa.PublicKey), crypto.SHA256, digest[:], stmt.Signature); err != nil {
			return errors.Wrap(err, "assertion: rs256 signature mismatch")
		}
	case AlgEdDSA:
		if !ed25519.Verify(pub.(ed25519.PublicKey), signed, stmt.Signature) {
			return errors.New("assertion: eddsa signature mismatch")
		}
	default:
		return errors.Errorf("assertion: unknown algorithm %d", alg)
	}

	return nil
}
