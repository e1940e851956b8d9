// Package param implements the corpus record format of the
// get-assertion fuzzing harness: a fixed sequence of tagged fields
// describing one FIDO2/U2F get-assertion scenario, the strict codec
// that turns such a record into an opaque corpus buffer and back, and
// the structure-preserving mutator that drives coverage-guided
// exploration.
//
// Decoding never trusts its input: the buffer comes out of a fuzzing
// engine's corpus and may be byte-for-byte adversarial. Every field
// tag is verified, every declared length is checked against both the
// remaining input and the field's fixed capacity, and any failure
// rejects the whole record.
package param

// Field tags, one per field role.
const (
	TagU2F       = 0x01
	TagType      = 0x02
	TagCDH       = 0x03
	TagRPID      = 0x04
	TagExt       = 0x05
	TagSeed      = 0x06
	TagUP        = 0x07
	TagUV        = 0x08
	TagWireData  = 0x09
	TagCredCount = 0x0a
	TagCred      = 0x0b
	TagES256     = 0x0c
	TagRS256     = 0x0d
	TagPIN       = 0x0e
	TagEdDSA     = 0x0f
)

// Fixed capacities. Decoded fields never grow past these, no matter
// what length the input declares.
const (
	MaxStrLen    = 1024  // strings, including the reserved terminator slot
	MaxBlobLen   = 3072  // opaque byte blobs
	MaxCorpusLen = 16384 // a whole encoded record
)

// Extension bits understood by the scenario dispatch.
const ExtHMACSecret = 0x01

// Param describes one get-assertion scenario.
type Param struct {
	PIN  string
	RPID string
	Ext  int32
	Seed int32
	CDH  []byte
	// Cred is the allow-list credential ID and doubles as the
	// hmac-secret salt, keeping the record small. Both consumers read
	// the same bytes.
	Cred      []byte
	ES256     []byte
	RS256     []byte
	EdDSA     []byte
	WireData  []byte
	CredCount byte
	Type      byte
	U2F       byte
	UP        byte
	UV        byte
}

// Decode parses a corpus buffer into a Param. All fields are read in
// the fixed wire order; the first failing field aborts the decode and
// no partial record is ever returned.
func Decode(buf []byte) (*Param, error) {
	r := fieldReader{buf: buf}
	p := &Param{}
	var err error

	if p.UV, err = r.scalar(TagUV); err != nil {
		return nil, err
	}
	if p.UP, err = r.scalar(TagUP); err != nil {
		return nil, err
	}
	if p.U2F, err = r.scalar(TagU2F); err != nil {
		return nil, err
	}
	if p.Type, err = r.scalar(TagType); err != nil {
		return nil, err
	}
	if p.CredCount, err = r.scalar(TagCredCount); err != nil {
		return nil, err
	}
	if p.Ext, err = r.varint(TagExt); err != nil {
		return nil, err
	}
	if p.Seed, err = r.varint(TagSeed); err != nil {
		return nil, err
	}
	if p.RPID, err = r.str(TagRPID, MaxStrLen); err != nil {
		return nil, err
	}
	if p.PIN, err = r.str(TagPIN, MaxStrLen); err != nil {
		return nil, err
	}
	if p.WireData, err = r.blob(TagWireData, MaxBlobLen); err != nil {
		return nil, err
	}
	if p.RS256, err = r.blob(TagRS256, MaxBlobLen); err != nil {
		return nil, err
	}
	if p.ES256, err = r.blob(TagES256, MaxBlobLen); err != nil {
		return nil, err
	}
	if p.EdDSA, err = r.blob(TagEdDSA, MaxBlobLen); err != nil {
		return nil, err
	}
	if p.Cred, err = r.blob(TagCred, MaxBlobLen); err != nil {
		return nil, err
	}
	if p.CDH, err = r.blob(TagCDH, MaxBlobLen); err != nil {
		return nil, err
	}

	return p, nil
}

// Encode writes p into buf in the same fixed field order Decode reads
// and returns the number of bytes written. A record that does not fit
// in buf, or that holds a field past its capacity, produces no output.
func Encode(p *Param, buf []byte) (int, error) {
	w := fieldWriter{buf: buf}

	if err := w.scalar(TagUV, p.UV); err != nil {
		return 0, err
	}
	if err := w.scalar(TagUP, p.UP); err != nil {
		return 0, err
	}
	if err := w.scalar(TagU2F, p.U2F); err != nil {
		return 0, err
	}
	if err := w.scalar(TagType, p.Type); err != nil {
		return 0, err
	}
	if err := w.scalar(TagCredCount, p.CredCount); err != nil {
		return 0, err
	}
	if err := w.varint(TagExt, p.Ext); err != nil {
		return 0, err
	}
	if err := w.varint(TagSeed, p.Seed); err != nil {
		return 0, err
	}
	if err := w.str(TagRPID, p.RPID, MaxStrLen); err != nil {
		return 0, err
	}
	if err := w.str(TagPIN, p.PIN, MaxStrLen); err != nil {
		return 0, err
	}
	if err := w.blob(TagWireData, p.WireData, MaxBlobLen); err != nil {
		return 0, err
	}
	if err := w.blob(TagRS256, p.RS256, MaxBlobLen); err != nil {
		return 0, err
	}
	if err := w.blob(TagES256, p.ES256, MaxBlobLen); err != nil {
		return 0, err
	}
	if err := w.blob(TagEdDSA, p.EdDSA, MaxBlobLen); err != nil {
		return 0, err
	}
	if err := w.blob(TagCred, p.Cred, MaxBlobLen); err != nil {
		return 0, err
	}
	if err := w.blob(TagCDH, p.CDH, MaxBlobLen); err != nil {
		return 0, err
	}

	return w.off, nil
}
