package authdata

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Marshal encodes the base authenticator data an assertion response
// carries: relying-party hash, flags and sign count. Attested
// credential data and extensions are not emitted.
func Marshal(t *T) ([]byte, error) {
	if len(t.RelyingPartyHash) != 32 {
		return nil, errors.Errorf("authdata: relying-party hash is %d bytes", len(t.RelyingPartyHash))
	}
	out := make([]byte, 37)
	copy(out[0:32], t.RelyingPartyHash)
	out[32] = t.Flags
	binary.BigEndian.PutUint32(out[33:37], t.SignCount)
	return out, nil
}
