package assertion

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/splitsecure/go-fido-fuzz/authdata"
	"github.com/splitsecure/go-fido-fuzz/ctaphid"
)

// U2F instruction and status words.
const (
	u2fInsAuthenticate  = 0x02
	u2fEnforceUPAndSign = 0x03

	swNoError                = 0x9000
	swConditionsNotSatisfied = 0x6985
)

// A user-presence poll loop is bounded regardless of how many retry
// responses the recording replays.
const maxU2FRetries = 16

var (
	ErrShortAPDUResponse = errors.New("assertion: short APDU response")
	ErrBadStatusWord     = errors.New("assertion: APDU status word")
)

// u2fAuthenticate runs U2F_AUTHENTICATE for each allow-list
// credential over CTAPHID MSG framing, polling while the device
// reports that user presence is required, and synthesizes one
// assertion statement per signed response.
func u2fAuthenticate(dev ctaphid.Device, cid uint32, req *Request) ([]Statement, error) {
	if len(req.AllowList) == 0 {
		return nil, ErrNoCredentials
	}
	if len(req.ClientDataHash) != 32 {
		return nil, errors.Errorf("assertion: client data hash is %d bytes", len(req.ClientDataHash))
	}

	rpHash := sha256.Sum256([]byte(req.RPID))

	var stmts []Statement
	for i, credID := range req.AllowList {
		if i >= maxStatements {
			break
		}
		stmt, err := u2fAuthenticateOne(dev, cid, req.ClientDataHash, rpHash[:], credID)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, *stmt)
	}
	return stmts, nil
}

func u2fAuthenticateOne(dev ctaphid.Device, cid uint32, challenge, application, credID []byte) (*Statement, error) {
	apdu := buildAuthenticateAPDU(challenge, application, credID)

	for attempt := 0; attempt < maxU2FRetries; attempt++ {
		if err := ctaphid.WriteMsg(dev, cid, ctaphid.CommandMsg, apdu); err != nil {
			return nil, err
		}
		cmd, resp, err := ctaphid.ReadMsg(dev, cid)
		if err != nil {
			return nil, err
		}
		if cmd != ctaphid.CommandMsg {
			return nil, errors.Wrapf(ErrUnexpectedCommand, "%s", cmd)
		}
		if len(resp) < 2 {
			return nil, errors.Wrapf(ErrShortAPDUResponse, "%d bytes", len(resp))
		}

		sw := binary.BigEndian.Uint16(resp[len(resp)-2:])
		if sw == swConditionsNotSatisfied {
			// test-of-user-presence required, poll again
			continue
		}
		if sw != swNoError {
			return nil, errors.Wrapf(ErrBadStatusWord, "0x%04x", sw)
		}

		body := resp[:len(resp)-2]
		if len(body) < 1+4 {
			return nil, errors.Wrapf(ErrShortAPDUResponse, "%d signature body bytes", len(body))
		}

		// Recast the raw U2F response as authenticator data so the
		// verify side speaks one format for both transports.
		ad := make([]byte, 0, 37)
		ad = append(ad, application...)
		if body[0]&1 == 1 {
			ad = append(ad, authdata.FlagUserPresent)
		} else {
			ad = append(ad, 0)
		}
		ad = append(ad, body[1:5]...) // signature counter

		return &Statement{
			CredentialID: credID,
			AuthDataRaw:  ad,
			Signature:    body[5:],
			Flags:        ad[32],
		}, nil
	}

	return nil, errors.Wrapf(ErrBadStatusWord, "0x%04x after %d attempts", swConditionsNotSatisfied, maxU2FRetries)
}

// buildAuthenticateAPDU frames a U2F_AUTHENTICATE request in extended
// length encoding: CLA INS P1 P2, a three-byte length, then
// challenge, application and the key handle.
func buildAuthenticateAPDU(challenge, application, credID []byte) []byte {
	dataLen := len(challenge) + len(application) + 1 + len(credID)
	apdu := make([]byte, 0, 4+3+dataLen+2)
	apdu = append(apdu, 0x00, u2fInsAuthenticate, u2fEnforceUPAndSign, 0x00)
	apdu = append(apdu, 0x00, byte(dataLen>>8), byte(dataLen))
	apdu = append(apdu, challenge...)
	apdu = append(apdu, application...)
	apdu = append(apdu, byte(len(credID)))
	apdu = append(apdu, credID...)
	apdu = append(apdu, 0x00, 0x00) // Le: maximum expected length
	return apdu
}
