// Package ctaphid implements the CTAPHID report framing spoken
// between the assertion client and the simulated authenticator:
// messages are carried in 64-byte reports, one initialization packet
// followed by numbered continuation packets.
//
// The reassembly side validates everything it reads. The report
// stream it consumes is replayed from a fuzzed corpus record, so
// short reports, foreign channels and out-of-order sequence numbers
// are expected inputs, not programming errors.
package ctaphid

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ReportLen is the fixed HID report size.
const ReportLen = 64

// BroadcastCID is the channel used for INIT before a channel is
// allocated.
const BroadcastCID uint32 = 0xffffffff

// maxPayloadLen is the largest message the framing can carry: 57
// bytes in the initialization packet plus 128 continuations of 59.
const maxPayloadLen = 57 + 128*59

// Command identifies a CTAPHID command. On the wire the command byte
// carries bit 7 set to mark an initialization packet.
type Command byte

// Commands used by the assertion client.
const (
	CommandMsg       Command = 0x03
	CommandInit      Command = 0x06
	CommandCBOR      Command = 0x10
	CommandKeepalive Command = 0x3b
	CommandError     Command = 0x3f
)

// String returns the command mnemonic.
func (c Command) String() string {
	switch c {
	case CommandMsg:
		return "CTAPHID_MSG"
	case CommandInit:
		return "CTAPHID_INIT"
	case CommandCBOR:
		return "CTAPHID_CBOR"
	case CommandKeepalive:
		return "CTAPHID_KEEPALIVE"
	case CommandError:
		return "CTAPHID_ERROR"
	}
	return "CTAPHID_UNKNOWN"
}

// Framing errors.
var (
	ErrReportTooShort  = errors.New("ctaphid: report too short")
	ErrWrongChannel    = errors.New("ctaphid: report for unexpected channel")
	ErrNotInitPacket   = errors.New("ctaphid: expected initialization packet")
	ErrOutOfSequence   = errors.New("ctaphid: continuation out of sequence")
	ErrPayloadTooLarge = errors.New("ctaphid: message payload too large")
	ErrTooManyReports  = errors.New("ctaphid: report stream too long")
)

// Device is the transport surface the framing layer drives. Reports
// are read and written whole.
type Device interface {
	ReadReport() ([]byte, error)
	WriteReport(report []byte) error
}

// Packetize frames a message into 64-byte reports: an initialization
// packet carrying the channel, command (bit 7 set) and big-endian
// payload length, then continuation packets numbered from zero.
func Packetize(cid uint32, cmd Command, payload []byte) ([][]byte, error) {
	if len(payload) > maxPayloadLen {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "%d bytes", len(payload))
	}

	init := make([]byte, ReportLen)
	binary.BigEndian.PutUint32(init[0:4], cid)
	init[4] = byte(cmd) | 0x80
	binary.BigEndian.PutUint16(init[5:7], uint16(len(payload)))
	n := copy(init[7:], payload)
	payload = payload[n:]

	reports := [][]byte{init}
	for seq := byte(0); len(payload) > 0; seq++ {
		cont := make([]byte, ReportLen)
		binary.BigEndian.PutUint32(cont[0:4], cid)
		cont[4] = seq
		n := copy(cont[5:], payload)
		payload = payload[n:]
		reports = append(reports, cont)
	}

	return reports, nil
}

// WriteMsg packetizes a message and writes all its reports to the
// device.
func WriteMsg(dev Device, cid uint32, cmd Command, payload []byte) error {
	reports, err := Packetize(cid, cmd, payload)
	if err != nil {
		return err
	}
	for _, report := range reports {
		if err := dev.WriteReport(report); err != nil {
			return errors.Wrap(err, "writing report")
		}
	}
	return nil
}

// ReadMsg reads one complete message addressed to cid, skipping
// keepalives. It returns the command of the initialization packet and
// the reassembled payload.
func ReadMsg(dev Device, cid uint32) (Command, []byte, error) {
	var (
		cmd     Command
		payload []byte
	)

	for i := 0; ; i++ {
		if i >= 128 {
			return 0, nil, ErrTooManyReports
		}
		report, err := dev.ReadReport()
		if err != nil {
			return 0, nil, errors.Wrap(err, "reading report")
		}
		if len(report) != ReportLen {
			return 0, nil, errors.Wrapf(ErrReportTooShort, "%d bytes", len(report))
		}
		if got := binary.BigEndian.Uint32(report[0:4]); got != cid {
			return 0, nil, errors.Wrapf(ErrWrongChannel, "want 0x%08x, got 0x%08x", cid, got)
		}
		if report[4]&0x80 == 0 {
			return 0, nil, ErrNotInitPacket
		}
		cmd = Command(report[4] & 0x7f)
		if cmd == CommandKeepalive {
			continue
		}
		total := int(binary.BigEndian.Uint16(report[5:7]))
		if total > maxPayloadLen {
			return 0, nil, errors.Wrapf(ErrPayloadTooLarge, "%d bytes declared", total)
		}
		payload = make([]byte, 0, total)
		payload = appendCapped(payload, report[7:], total)
		if err := readContinuations(dev, cid, &payload, total, i); err != nil {
			return 0, nil, err
		}
		return cmd, payload, nil
	}
}

func readContinuations(dev Device, cid uint32, payload *[]byte, total, used int) error {
	for seq := byte(0); len(*payload) < total; seq++ {
		if used++; used >= 128 {
			return ErrTooManyReports
		}
		report, err := dev.ReadReport()
		if err != nil {
			return errors.Wrap(err, "reading continuation")
		}
		if len(report) != ReportLen {
			return errors.Wrapf(ErrReportTooShort, "%d bytes", len(report))
		}
		if got := binary.BigEndian.Uint32(report[0:4]); got != cid {
			return errors.Wrapf(ErrWrongChannel, "want 0x%08x, got 0x%08x", cid, got)
		}
		if report[4] != seq {
			return errors.Wrapf(ErrOutOfSequence, "want %d, got %d", seq, report[4])
		}
		*payload = appendCapped(*payload, report[5:], total)
	}
	return nil
}

func appendCapped(dst, src []byte, total int) []byte {
	if n := total - len(dst); n < len(src) {
		src = src[:n]
	}
	return append(dst, src...)
}
