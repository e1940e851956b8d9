package authdata

import (
	"github.com/google/uuid"
	cose_key "github.com/ldclabs/cose/key"
)

// Flag bits of the authenticator-data flags byte.
const (
	FlagUserPresent               = byte(1)
	FlagRFU1                      = byte(1 << 1)
	FlagUserVerified              = byte(1 << 2)
	FlagHasAttestedCredentialData = byte(1 << 6)
	FlagHasExtensionData          = byte(1 << 7)
)

// T is decoded authenticator data as returned in a get-assertion
// response.
type T struct {
	RelyingPartyHash       []byte
	Flags                  byte
	SignCount              uint32
	AttestedCredentialData AttestedCredentialData
	// Extension data is left to the caller as raw CBOR.
	Extensions []byte
}

// AttestedCredentialData is present when FlagHasAttestedCredentialData
// is set.
type AttestedCredentialData struct {
	AAGUID              uuid.UUID
	CredentialID        []byte
	CredentialPublicKey cose_key.Key
}
