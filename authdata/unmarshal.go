package authdata

import (
	"bytes"
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// ErrTooShort is returned when authenticator data is shorter than its
// declared structure.
var ErrTooShort = errors.New("authdata: too short")

// Unmarshal unmarshals authenticator data according to
// https://www.w3.org/TR/webauthn/#sctn-authenticator-data.
//
// Every read is bounds-checked: the bytes come out of a replayed,
// possibly mutated authenticator response and cannot be trusted to
// match their own flags.
func Unmarshal(src []byte, dst *T) error {
	rest, err := unmarshalBase(src, dst)
	if err != nil {
		return err
	}

	if dst.Flags&FlagHasAttestedCredentialData != 0 {
		rest, err = unmarshalAttestedCredentialData(rest, &dst.AttestedCredentialData)
		if err != nil {
			return err
		}
	}

	if dst.Flags&FlagHasExtensionData != 0 {
		dst.Extensions = rest
	}

	return nil
}

func unmarshalBase(src []byte, dst *T) (rest []byte, err error) {
	if len(src) < 32+1+4 {
		return nil, errors.Wrapf(ErrTooShort, "%d bytes", len(src))
	}

	dst.RelyingPartyHash = src[0:32]
	dst.Flags = src[32]
	dst.SignCount = binary.BigEndian.Uint32(src[33:37])

	return src[37:], nil
}

func unmarshalAttestedCredentialData(src []byte, dst *AttestedCredentialData) (rest []byte, err error) {
	if len(src) < 16+2 {
		return nil, errors.Wrap(ErrTooShort, "attested credential data header")
	}

	copy(dst.AAGUID[:], src[0:16])

	credLen := int(binary.BigEndian.Uint16(src[16:18]))
	if len(src) < 18+credLen {
		return nil, errors.Wrapf(ErrTooShort, "credential id declares %d bytes", credLen)
	}
	dst.CredentialID = src[18 : 18+credLen]

	dec := cbor.NewDecoder(bytes.NewReader(src[18+credLen:]))
	if err := dec.Decode(&dst.CredentialPublicKey); err != nil {
		return nil, errors.Wrap(err, "decoding credential public key")
	}

	return src[18+credLen+dec.NumBytesRead():], nil
}
