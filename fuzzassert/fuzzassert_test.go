package fuzzassert_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-fido-fuzz/fuzzassert"
	"github.com/splitsecure/go-fido-fuzz/param"
)

func encode(t *testing.T, p *param.Param) []byte {
	t.Helper()
	buf := make([]byte, param.MaxCorpusLen)
	n, err := param.Encode(p, buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestExerciseIgnoresGarbage(t *testing.T) {
	fuzzassert.Exercise(nil)
	fuzzassert.Exercise([]byte{0x00})
	fuzzassert.Exercise(make([]byte, 4096))
}

func TestExerciseCanonicalRecord(t *testing.T) {
	// The canonical record replays a real FIDO2 recording: PIN
	// exchange, hmac-secret request, get-assertion, then the
	// past-the-end verify pass. None of it may panic.
	fuzzassert.Exercise(encode(t, param.Dummy()))
}

func TestExerciseU2FRecord(t *testing.T) {
	p := param.Dummy()
	p.U2F = 1
	p.UP = 1
	p.Type = 2 // EdDSA family
	p.CredCount = 2
	p.Cred = []byte{0x10, 0x20, 0x30}
	p.WireData = param.DummyWireDataU2F()
	fuzzassert.Exercise(encode(t, p))
}

func TestExerciseEverySignatureFamily(t *testing.T) {
	for typ := byte(0); typ < 4; typ++ {
		p := param.Dummy()
		p.Type = typ
		fuzzassert.Exercise(encode(t, p))
	}
}

func TestExerciseEmptyWireData(t *testing.T) {
	p := param.Dummy()
	p.WireData = nil
	fuzzassert.Exercise(encode(t, p))
}

func TestExerciseBadKeyMaterial(t *testing.T) {
	p := param.Dummy()
	p.ES256 = p.ES256[:10]
	p.RS256 = nil
	p.EdDSA = append(p.EdDSA, 0xff)
	for typ := byte(0); typ < 4; typ++ {
		p.Type = typ
		fuzzassert.Exercise(encode(t, p))
	}
}

func TestExerciseEdDSAScenario(t *testing.T) {
	// A FIDO2 record selecting the EdDSA family against the canonical
	// recording: the record must decode back identically and the
	// exercise pass, past-the-end iteration included, must stay within
	// the recorded wire data.
	p := param.Dummy()
	p.U2F = 0
	p.Type = 2
	data := encode(t, p)

	q, err := param.Decode(data)
	require.NoError(t, err)
	require.Equal(t, p, q)

	fuzzassert.Exercise(data)
}

func TestMutateProducesDecodableRecords(t *testing.T) {
	data := encode(t, param.Dummy())
	for seed := int64(0); seed < 32; seed++ {
		out := fuzzassert.Mutate(data, param.MaxCorpusLen, seed)
		if out == nil {
			continue
		}
		require.LessOrEqual(t, len(out), param.MaxCorpusLen)
		_, err := param.Decode(out)
		require.NoError(t, err)
		fuzzassert.Exercise(out)
	}
}
