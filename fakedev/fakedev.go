// Package fakedev provides the simulated authenticator transport: a
// device that replays a flat buffer of pre-recorded HID reports
// verbatim and discards everything written to it. One device is
// opened, exercised and torn down per decoded corpus record.
package fakedev

import (
	"io"

	"github.com/pkg/errors"
)

const reportLen = 64

// ErrClosed is returned by reads and writes on a closed device.
var ErrClosed = errors.New("fakedev: device closed")

// Device replays wire data one report at a time.
type Device struct {
	wire   []byte
	off    int
	closed bool
}

// Open creates a device that will replay wireData. The buffer is
// copied; the caller keeps ownership of its slice.
func Open(wireData []byte) *Device {
	return &Device{wire: append([]byte(nil), wireData...)}
}

// ReadReport returns the next recorded report. The final report may
// be shorter than a full HID report if the recorded data does not
// divide evenly; once the data is exhausted reads return io.EOF.
func (d *Device) ReadReport() ([]byte, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.off >= len(d.wire) {
		return nil, io.EOF
	}
	end := d.off + reportLen
	if end > len(d.wire) {
		end = len(d.wire)
	}
	report := d.wire[d.off:end]
	d.off = end
	return report, nil
}

// WriteReport accepts and discards a report. The replayed responses
// do not depend on what the client sends.
func (d *Device) WriteReport([]byte) error {
	if d.closed {
		return ErrClosed
	}
	return nil
}

// Close tears the device down. Further reads and writes fail.
func (d *Device) Close() {
	d.closed = true
}
