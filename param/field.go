package param

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

// Decode/encode failure kinds. Field-level context is attached with
// errors.Wrapf; callers match with errors.Is.
var (
	ErrTruncated         = errors.New("param: truncated input")
	ErrTagMismatch       = errors.New("param: field tag mismatch")
	ErrOverflow          = errors.New("param: length exceeds field capacity")
	ErrInsufficientSpace = errors.New("param: insufficient space")
)

// fieldReader consumes tagged fields from the front of a buffer. It
// never reads past the end of buf and never trusts a declared length.
type fieldReader struct {
	buf []byte
}

// tag verifies that at least need bytes remain and that the next byte
// is the expected field tag. The tag is checked even though field
// order is fixed: a flipped structural byte must surface as corruption,
// not be reinterpreted as a neighbouring field.
func (r *fieldReader) tag(want byte, need int) error {
	if len(r.buf) < need {
		return errors.Wrapf(ErrTruncated, "tag 0x%02x: %d bytes remain", want, len(r.buf))
	}
	if r.buf[0] != want {
		return errors.Wrapf(ErrTagMismatch, "want 0x%02x, got 0x%02x", want, r.buf[0])
	}
	return nil
}

func (r *fieldReader) scalar(want byte) (byte, error) {
	if err := r.tag(want, 2); err != nil {
		return 0, err
	}
	v := r.buf[1]
	r.buf = r.buf[2:]
	return v, nil
}

func (r *fieldReader) varint(want byte) (int32, error) {
	if err := r.tag(want, 1+4); err != nil {
		return 0, err
	}
	v := int32(binary.LittleEndian.Uint32(r.buf[1:5]))
	r.buf = r.buf[5:]
	return v, nil
}

// blob reads a length-prefixed payload. The capacity check runs before
// the payload-presence check so that an oversized declared length is
// reported as Overflow even when the buffer is short.
func (r *fieldReader) blob(want byte, capacity int) ([]byte, error) {
	if err := r.tag(want, 1+4); err != nil {
		return nil, err
	}
	declared := int64(binary.LittleEndian.Uint32(r.buf[1:5]))
	if declared > int64(capacity) {
		return nil, errors.Wrapf(ErrOverflow, "tag 0x%02x declares %d bytes, capacity %d", want, declared, capacity)
	}
	n := int(declared)
	if len(r.buf) < 5+n {
		return nil, errors.Wrapf(ErrTruncated, "tag 0x%02x declares %d bytes, %d remain", want, n, len(r.buf)-5)
	}
	var v []byte
	if n > 0 {
		v = make([]byte, n)
		copy(v, r.buf[5:5+n])
	}
	r.buf = r.buf[5+n:]
	return v, nil
}

// str reads a string field. One capacity slot is reserved for the
// terminator, and the decoded value stops at the first NUL; corpora
// recorded from C-string storage carry the terminator in the payload.
func (r *fieldReader) str(want byte, capacity int) (string, error) {
	b, err := r.blob(want, capacity-1)
	if err != nil {
		return "", err
	}
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	return string(b), nil
}

// fieldWriter appends tagged fields to a caller-provided buffer.
// Writes are atomic per field: either the whole tag+payload fits or
// nothing is written.
type fieldWriter struct {
	buf []byte
	off int
}

func (w *fieldWriter) need(n int) error {
	if len(w.buf)-w.off < n {
		return errors.Wrapf(ErrInsufficientSpace, "need %d bytes, %d remain", n, len(w.buf)-w.off)
	}
	return nil
}

func (w *fieldWriter) scalar(tag, v byte) error {
	if err := w.need(2); err != nil {
		return err
	}
	w.buf[w.off] = tag
	w.buf[w.off+1] = v
	w.off += 2
	return nil
}

func (w *fieldWriter) varint(tag byte, v int32) error {
	if err := w.need(1 + 4); err != nil {
		return err
	}
	w.buf[w.off] = tag
	binary.LittleEndian.PutUint32(w.buf[w.off+1:], uint32(v))
	w.off += 5
	return nil
}

func (w *fieldWriter) blob(tag byte, v []byte, capacity int) error {
	if len(v) > capacity {
		return errors.Wrapf(ErrOverflow, "tag 0x%02x holds %d bytes, capacity %d", tag, len(v), capacity)
	}
	if err := w.need(1 + 4 + len(v)); err != nil {
		return err
	}
	w.buf[w.off] = tag
	binary.LittleEndian.PutUint32(w.buf[w.off+1:], uint32(len(v)))
	copy(w.buf[w.off+5:], v)
	w.off += 5 + len(v)
	return nil
}

func (w *fieldWriter) str(tag byte, v string, capacity int) error {
	if i := strings.IndexByte(v, 0); i >= 0 {
		v = v[:i]
	}
	return w.blob(tag, []byte(v), capacity-1)
}
