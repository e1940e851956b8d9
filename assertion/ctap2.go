package assertion

import (
	"crypto/hmac"
	"crypto/sha256"
	"math/rand"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/splitsecure/go-fido-fuzz/authdata"
	"github.com/splitsecure/go-fido-fuzz/ctaphid"
)

// CTAP2 command bytes.
const (
	cmdGetAssertion     = 0x02
	cmdClientPIN        = 0x06
	cmdGetNextAssertion = 0x08
)

// getNextAssertion calls are bounded no matter what credential count
// the replayed device claims.
const maxStatements = 8

// CTAPStatusError is a non-zero CTAP2 status byte returned by the
// authenticator.
type CTAPStatusError byte

func (e CTAPStatusError) Error() string {
	return "assertion: CTAP status 0x" + hexByte(byte(e))
}

func hexByte(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}

type credDescriptor struct {
	Type string `cbor:"type"`
	ID   []byte `cbor:"id"`
}

type userEntity struct {
	ID          []byte `cbor:"id"`
	Name        string `cbor:"name,omitempty"`
	DisplayName string `cbor:"displayName,omitempty"`
	Icon        string `cbor:"icon,omitempty"`
}

type hmacSecretInput struct {
	KeyAgreement *coseEC2Key `cbor:"1,keyasint"`
	SaltEnc      []byte      `cbor:"2,keyasint"`
	SaltAuth     []byte      `cbor:"3,keyasint"`
}

type getExtensionInputs struct {
	HMACSecret *hmacSecretInput `cbor:"hmac-secret,omitempty"`
}

type getExtensionOutputs struct {
	HMACSecret []byte `cbor:"hmac-secret,omitempty"`
}

type getAssertionRequest struct {
	RPID              string              `cbor:"1,keyasint"`
	ClientDataHash    []byte              `cbor:"2,keyasint"`
	AllowList         []credDescriptor    `cbor:"3,keyasint,omitempty"`
	Extensions        *getExtensionInputs `cbor:"4,keyasint,omitempty"`
	Options           map[string]bool     `cbor:"5,keyasint,omitempty"`
	PinUvAuthParam    []byte              `cbor:"6,keyasint,omitempty"`
	PinUvAuthProtocol uint                `cbor:"7,keyasint,omitempty"`
}

type getAssertionResponse struct {
	Credential          credDescriptor `cbor:"1,keyasint,omitempty"`
	AuthData            []byte         `cbor:"2,keyasint,omitempty"`
	Signature           []byte         `cbor:"3,keyasint,omitempty"`
	User                userEntity     `cbor:"4,keyasint,omitempty"`
	NumberOfCredentials uint           `cbor:"5,keyasint,omitempty"`
}

// roundTripCBOR writes a CTAP2 command and decodes the status-checked
// CBOR response body into out. A nil out skips body decoding.
func roundTripCBOR(dev ctaphid.Device, cid uint32, ctapCmd byte, in, out any) error {
	payload := []byte{ctapCmd}
	if in != nil {
		body, err := cbor.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshalling request")
		}
		payload = append(payload, body...)
	}
	if err := ctaphid.WriteMsg(dev, cid, ctaphid.CommandCBOR, payload); err != nil {
		return err
	}

	cmd, resp, err := ctaphid.ReadMsg(dev, cid)
	if err != nil {
		return err
	}
	if cmd != ctaphid.CommandCBOR {
		return errors.Wrapf(ErrUnexpectedCommand, "%s", cmd)
	}
	if len(resp) < 1 {
		return errors.New("assertion: empty CTAP response")
	}
	if resp[0] != 0 {
		return CTAPStatusError(resp[0])
	}
	if out == nil {
		return nil
	}
	if err := cbor.Unmarshal(resp[1:], out); err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}

func ctap2GetAssertion(dev ctaphid.Device, cid uint32, rng *rand.Rand, req *Request) ([]Statement, error) {
	car := getAssertionRequest{
		RPID:           req.RPID,
		ClientDataHash: req.ClientDataHash,
	}
	for _, id := range req.AllowList {
		car.AllowList = append(car.AllowList, credDescriptor{Type: "public-key", ID: id})
	}
	if req.UP || req.UV {
		car.Options = map[string]bool{}
		if req.UP {
			car.Options["up"] = true
		}
		if req.UV {
			car.Options["uv"] = true
		}
	}

	needSecret := req.HMACSecret && len(req.HMACSalt) == 32

	if req.PIN != "" || needSecret {
		ex, err := newPINExchange(dev, cid, rng)
		if err != nil {
			return nil, err
		}
		if req.PIN != "" {
			token, err := ex.pinToken(dev, cid, req.PIN)
			if err != nil {
				return nil, err
			}
			mac := hmac.New(sha256.New, token)
			mac.Write(req.ClientDataHash)
			car.PinUvAuthParam = mac.Sum(nil)[:16]
			car.PinUvAuthProtocol = 1
		}
		if needSecret {
			saltEnc, err := ex.encrypt(req.HMACSalt)
			if err != nil {
				return nil, err
			}
			saltMAC := hmac.New(sha256.New, ex.sharedSecret[:])
			saltMAC.Write(saltEnc)
			car.Extensions = &getExtensionInputs{HMACSecret: &hmacSecretInput{
				KeyAgreement: ex.platformKey,
				SaltEnc:      saltEnc,
				SaltAuth:     saltMAC.Sum(nil)[:16],
			}}
		}
	}

	var first getAssertionResponse
	if err := roundTripCBOR(dev, cid, cmdGetAssertion, &car, &first); err != nil {
		return nil, err
	}

	stmts := []Statement{statementFrom(&first)}
	total := int(first.NumberOfCredentials)
	if total > maxStatements {
		total = maxStatements
	}
	for i := 1; i < total; i++ {
		var next getAssertionResponse
		if err := roundTripCBOR(dev, cid, cmdGetNextAssertion, nil, &next); err != nil {
			return nil, err
		}
		stmts = append(stmts, statementFrom(&next))
	}

	return stmts, nil
}

func statementFrom(r *getAssertionResponse) Statement {
	stmt := Statement{
		CredentialID:    r.Credential.ID,
		AuthDataRaw:     r.AuthData,
		Signature:       r.Signature,
		UserID:          r.User.ID,
		UserName:        r.User.Name,
		UserDisplayName: r.User.DisplayName,
		UserIcon:        r.User.Icon,
	}
	if len(r.AuthData) > 32 {
		stmt.Flags = r.AuthData[32]
	}
	// Surface the encrypted hmac-secret output when the replayed
	// response carries one. Parse failures leave the field empty.
	var ad authdata.T
	if err := authdata.Unmarshal(r.AuthData, &ad); err == nil && len(ad.Extensions) > 0 {
		var exts getExtensionOutputs
		if err := cbor.Unmarshal(ad.Extensions, &exts); err == nil {
			stmt.HMACSecretEnc = exts.HMACSecret
		}
	}
	return stmt
}
