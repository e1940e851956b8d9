//go:build fuzz
// +build fuzz

package param_test

import (
	"testing"

	"github.com/splitsecure/go-fido-fuzz/param"
)

func canonical() []byte {
	buf := make([]byte, param.MaxCorpusLen)
	n, err := param.Encode(param.Dummy(), buf)
	if err != nil {
		panic(err)
	}
	return buf[:n]
}

// FuzzDecode_MalformedData feeds arbitrary bytes to the decoder. The
// decoder must never panic, and anything it accepts must survive an
// encode/decode round trip unchanged.
func FuzzDecode_MalformedData(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x08})
	f.Add([]byte{0x08, 0x00, 0x07})
	f.Add(canonical())

	f.Fuzz(func(t *testing.T, data []byte) {
		p, err := param.Decode(data)
		if err != nil {
			return
		}

		// The decoder caps fields, not the whole record: six blobs at
		// full capacity encode past MaxCorpusLen, so the round-trip
		// buffer must fit the maximal record, not just the corpus cap.
		buf := make([]byte, 2*param.MaxCorpusLen)
		n, err := param.Encode(p, buf)
		if err != nil {
			t.Fatalf("accepted record failed to re-encode: %v", err)
		}
		q, err := param.Decode(buf[:n])
		if err != nil {
			t.Fatalf("re-encoded record failed to decode: %v", err)
		}
		if !paramEqual(p, q) {
			t.Fatalf("round trip changed record: %+v != %+v", p, q)
		}
	})
}

// FuzzMutate_TotalValidity checks the mutator's contract: for any
// input and seed it either produces nothing or produces a record the
// decoder accepts, deterministically.
func FuzzMutate_TotalValidity(f *testing.F) {
	f.Add([]byte{}, int64(0))
	f.Add([]byte{0xff, 0xff}, int64(1))
	f.Add(canonical(), int64(42))

	f.Fuzz(func(t *testing.T, data []byte, seed int64) {
		out := param.Mutate(data, param.MaxCorpusLen, seed)
		if out == nil {
			return
		}
		if _, err := param.Decode(out); err != nil {
			t.Fatalf("mutator produced undecodable record: %v", err)
		}

		again := param.Mutate(data, param.MaxCorpusLen, seed)
		if string(out) != string(again) {
			t.Fatalf("mutation not deterministic for seed %d", seed)
		}
	})
}

func paramEqual(a, b *param.Param) bool {
	return a.PIN == b.PIN && a.RPID == b.RPID &&
		a.Ext == b.Ext && a.Seed == b.Seed &&
		a.CredCount == b.CredCount && a.Type == b.Type &&
		a.U2F == b.U2F && a.UP == b.UP && a.UV == b.UV &&
		string(a.CDH) == string(b.CDH) &&
		string(a.Cred) == string(b.Cred) &&
		string(a.ES256) == string(b.ES256) &&
		string(a.RS256) == string(b.RS256) &&
		string(a.EdDSA) == string(b.EdDSA) &&
		string(a.WireData) == string(b.WireData)
}
