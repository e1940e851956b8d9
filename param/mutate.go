package param

import (
	"math/rand"
)

// Mutate implements the engine-facing custom mutator. It decodes
// data, perturbs each field with per-kind rules, and re-encodes. An
// undecodable input is discarded and replaced by the canonical
// example, so the mutator always works from a well-formed record. The
// returned buffer always decodes; nil means no mutation was produced
// and the engine should keep the original input.
//
// All randomness is drawn from a source seeded with the caller's
// seed: the same input and seed always produce the same output.
func Mutate(data []byte, maxLen int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))

	p, err := Decode(data)
	if err != nil {
		return packDummy(maxLen)
	}

	mutateByte(rng, &p.UV)
	mutateByte(rng, &p.UP)
	mutateByte(rng, &p.U2F)
	mutateByte(rng, &p.Type)
	mutateByte(rng, &p.CredCount)

	mutateInt(rng, &p.Ext)
	// The seed field is set, not randomised: downstream replay must be
	// deterministic given this record.
	p.Seed = int32(seed)

	// Keep the replayed transport bytes consistent with the transport
	// mode the mutation may just have flipped.
	if p.U2F&1 == 1 {
		p.WireData = DummyWireDataU2F()
	} else {
		p.WireData = DummyWireDataFIDO()
	}

	mutateBlob(rng, &p.WireData)
	mutateBlob(rng, &p.RS256)
	mutateBlob(rng, &p.ES256)
	mutateBlob(rng, &p.EdDSA)
	mutateBlob(rng, &p.Cred)
	mutateBlob(rng, &p.CDH)

	mutateString(rng, &p.RPID)
	mutateString(rng, &p.PIN)

	return packOrNothing(p, maxLen)
}

func mutateByte(rng *rand.Rand, b *byte) {
	*b = byte(rng.Intn(256))
}

func mutateInt(rng *rand.Rand, v *int32) {
	*v = int32(rng.Uint32())
}

func mutateBlob(rng *rand.Rand, b *[]byte) {
	n := 1 + rng.Intn(MaxBlobLen)
	body := make([]byte, n)
	for i := range body {
		body[i] = byte(rng.Intn(256))
	}
	*b = body
}

func mutateString(rng *rand.Rand, s *string) {
	n := 1 + rng.Intn(MaxStrLen-1)
	body := make([]byte, n)
	for i := range body {
		// never NUL: the terminator slot stays the terminator
		body[i] = byte(1 + rng.Intn(0x7e))
	}
	*s = string(body)
}

// packDummy encodes the canonical example record, the fallback for
// undecodable inputs. A maxLen too small for the whole record yields
// nil rather than a truncated, undecodable buffer.
func packDummy(maxLen int) []byte {
	return packOrNothing(Dummy(), maxLen)
}

func packOrNothing(p *Param, maxLen int) []byte {
	buf := make([]byte, MaxCorpusLen)
	n, err := Encode(p, buf)
	if err != nil || n > maxLen {
		return nil
	}
	return buf[:n]
}
