// Package mintwire mints synthetic authenticator recordings:
// correctly signed get-assertion responses framed into the HID report
// stream the fake device replays. Tests use it to drive the assertion
// client through positive paths without a recorded fixture.
package mintwire

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/splitsecure/go-fido-fuzz/authdata"
	"github.com/splitsecure/go-fido-fuzz/ctaphid"
)

// AssertInput describes the assertion to mint.
type AssertInput struct {
	PrivateKey     *ecdsa.PrivateKey
	RPID           string
	ClientDataHash []byte
	CredentialID   []byte
	SignCount      uint32
	Flags          byte
	ChannelID      uint32
}

// Wire shape of a CTAP2 get-assertion response body.
type assertionResponse struct {
	Credential credDescriptor `cbor:"1,keyasint"`
	AuthData   []byte         `cbor:"2,keyasint"`
	Signature  []byte         `cbor:"3,keyasint"`
}

type credDescriptor struct {
	Type string `cbor:"type"`
	ID   []byte `cbor:"id"`
}

// FIDO2WireData mints the report stream of a FIDO2 get-assertion: a
// CTAPHID INIT response allocating in.ChannelID, then a CBOR response
// carrying a signed assertion statement.
func FIDO2WireData(in *AssertInput) ([]byte, error) {
	adRaw, sig, err := signStatement(in)
	if err != nil {
		return nil, err
	}

	body, err := cbor.Marshal(&assertionResponse{
		Credential: credDescriptor{Type: "public-key", ID: in.CredentialID},
		AuthData:   adRaw,
		Signature:  sig,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshalling assertion response")
	}

	wire, err := packetizeAll(ctaphid.BroadcastCID, ctaphid.CommandInit, initPayload(in.ChannelID))
	if err != nil {
		return nil, err
	}
	resp, err := packetizeAll(in.ChannelID, ctaphid.CommandCBOR, append([]byte{0x00}, body...))
	if err != nil {
		return nil, err
	}
	return append(wire, resp...), nil
}

// Wire shapes of the clientPIN exchange responses.
type pinKeyResponse struct {
	KeyAgreement *coseEC2Key `cbor:"1,keyasint"`
}

type pinTokenResponse struct {
	PinToken []byte `cbor:"2,keyasint"`
}

type coseEC2Key struct {
	Kty int    `cbor:"1,keyasint"`
	Alg int    `cbor:"3,keyasint,omitempty"`
	Crv int    `cbor:"-1,keyasint,omitempty"`
	X   []byte `cbor:"-2,keyasint,omitempty"`
	Y   []byte `cbor:"-3,keyasint,omitempty"`
}

// FIDO2PINWireData mints a FIDO2 recording whose assertion is gated on
// a PIN exchange: the INIT response, a getKeyAgreement response with a
// fresh authenticator key, a getPINToken response carrying pinToken
// encrypted under the shared secret derived against platformPub, then
// the signed assertion. The caller supplies the platform public key it
// knows the client will generate.
func FIDO2PINWireData(in *AssertInput, platformPub *ecdh.PublicKey, pinToken []byte) ([]byte, error) {
	adRaw, sig, err := signStatement(in)
	if err != nil {
		return nil, err
	}

	authKey, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating authenticator key")
	}
	shared, err := authKey.ECDH(platformPub)
	if err != nil {
		return nil, errors.Wrap(err, "deriving shared secret")
	}
	secret := sha256.Sum256(shared)

	tokenEnc, err := encryptCBC(secret[:], pinToken)
	if err != nil {
		return nil, err
	}

	authPoint := authKey.PublicKey().Bytes() // 0x04 || X || Y
	keyBody, err := cbor.Marshal(&pinKeyResponse{KeyAgreement: &coseEC2Key{
		Kty: 2,
		Alg: -25,
		Crv: 1,
		X:   authPoint[1:33],
		Y:   authPoint[33:],
	}})
	if err != nil {
		return nil, errors.Wrap(err, "marshalling key-agreement response")
	}
	tokenBody, err := cbor.Marshal(&pinTokenResponse{PinToken: tokenEnc})
	if err != nil {
		return nil, errors.Wrap(err, "marshalling token response")
	}
	assertBody, err := cbor.Marshal(&assertionResponse{
		Credential: credDescriptor{Type: "public-key", ID: in.CredentialID},
		AuthData:   adRaw,
		Signature:  sig,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshalling assertion response")
	}

	var wire []byte
	for _, msg := range []struct {
		cid     uint32
		cmd     ctaphid.Command
		payload []byte
	}{
		{ctaphid.BroadcastCID, ctaphid.CommandInit, initPayload(in.ChannelID)},
		{in.ChannelID, ctaphid.CommandCBOR, append([]byte{0x00}, keyBody...)},
		{in.ChannelID, ctaphid.CommandCBOR, append([]byte{0x00}, tokenBody...)},
		{in.ChannelID, ctaphid.CommandCBOR, append([]byte{0x00}, assertBody...)},
	} {
		part, err := packetizeAll(msg.cid, msg.cmd, msg.payload)
		if err != nil {
			return nil, err
		}
		wire = append(wire, part...)
	}
	return wire, nil
}

func encryptCBC(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, errors.Errorf("mintwire: plaintext is %d bytes, not block-aligned", len(plaintext))
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(out, plaintext)
	return out, nil
}

// U2FWireData mints the report stream of a U2F authentication: an
// INIT response, retries responses demanding user presence, then a
// signed success response.
func U2FWireData(in *AssertInput, retries int) ([]byte, error) {
	adRaw, sig, err := signStatement(in)
	if err != nil {
		return nil, err
	}

	wire, err := packetizeAll(ctaphid.BroadcastCID, ctaphid.CommandInit, initPayload(in.ChannelID))
	if err != nil {
		return nil, err
	}

	for i := 0; i < retries; i++ {
		retry, err := packetizeAll(in.ChannelID, ctaphid.CommandMsg, []byte{0x69, 0x85})
		if err != nil {
			return nil, err
		}
		wire = append(wire, retry...)
	}

	// presence byte, counter and signature, closed by SW_NO_ERROR
	body := make([]byte, 0, 5+len(sig)+2)
	body = append(body, adRaw[32])     // presence
	body = append(body, adRaw[33:]...) // counter
	body = append(body, sig...)
	body = append(body, 0x90, 0x00)
	success, err := packetizeAll(in.ChannelID, ctaphid.CommandMsg, body)
	if err != nil {
		return nil, err
	}
	return append(wire, success...), nil
}

// signStatement builds the 37-byte authenticator data and signs
// authData || clientDataHash, the payload both transports attest to.
func signStatement(in *AssertInput) (adRaw, sig []byte, err error) {
	rpHash := sha256.Sum256([]byte(in.RPID))
	adRaw, err = authdata.Marshal(&authdata.T{
		RelyingPartyHash: rpHash[:],
		Flags:            in.Flags,
		SignCount:        in.SignCount,
	})
	if err != nil {
		return nil, nil, err
	}

	digest := sha256.Sum256(append(append([]byte(nil), adRaw...), in.ClientDataHash...))
	sig, err = ecdsa.SignASN1(rand.Reader, in.PrivateKey, digest[:])
	if err != nil {
		return nil, nil, errors.Wrap(err, "signing statement")
	}
	return adRaw, sig, nil
}

// initPayload builds the 17-byte INIT response allocating cid.
func initPayload(cid uint32) []byte {
	payload := make([]byte, 17)
	// minted recordings do not echo a nonce; the client ignores it
	binary.BigEndian.PutUint32(payload[8:12], cid)
	payload[12] = 2 // protocol version
	payload[13] = 1 // major
	return payload
}

func packetizeAll(cid uint32, cmd ctaphid.Command, payload []byte) ([]byte, error) {
	reports, err := ctaphid.Packetize(cid, cmd, payload)
	if err != nil {
		return nil, err
	}
	var wire []byte
	for _, report := range reports {
		wire = append(wire, report...)
	}
	return wire, nil
}
