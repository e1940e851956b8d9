package ctaphid_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-fido-fuzz/ctaphid"
	"github.com/splitsecure/go-fido-fuzz/fakedev"
)

// recordingDevice captures written reports and has nothing to read.
type recordingDevice struct {
	reports [][]byte
}

func (d *recordingDevice) ReadReport() ([]byte, error) {
	return nil, io.EOF
}

func (d *recordingDevice) WriteReport(report []byte) error {
	d.reports = append(d.reports, append([]byte(nil), report...))
	return nil
}

func replay(t *testing.T, cid uint32, cmd ctaphid.Command, payload []byte) *fakedev.Device {
	t.Helper()
	reports, err := ctaphid.Packetize(cid, cmd, payload)
	require.NoError(t, err)
	return fakedev.Open(bytes.Join(reports, nil))
}

func TestPacketizeSingleReport(t *testing.T) {
	payload := []byte("hello")
	reports, err := ctaphid.Packetize(0x11223344, ctaphid.CommandCBOR, payload)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	report := reports[0]
	require.Len(t, report, ctaphid.ReportLen)
	require.Equal(t, uint32(0x11223344), binary.BigEndian.Uint32(report[0:4]))
	require.Equal(t, byte(ctaphid.CommandCBOR)|0x80, report[4])
	require.Equal(t, uint16(len(payload)), binary.BigEndian.Uint16(report[5:7]))
	require.Equal(t, payload, report[7:7+len(payload)])
}

func TestPacketizeContinuations(t *testing.T) {
	// 57 bytes in the initialization packet, 59 in the first
	// continuation, one left over for a second.
	payload := make([]byte, 57+59+1)
	for i := range payload {
		payload[i] = byte(i)
	}

	reports, err := ctaphid.Packetize(1, ctaphid.CommandMsg, payload)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	require.Equal(t, byte(0), reports[1][4])
	require.Equal(t, byte(1), reports[2][4])
	require.Equal(t, payload[57:57+59], reports[1][5:])
	require.Equal(t, payload[57+59], reports[2][5])
}

func TestPacketizePayloadTooLarge(t *testing.T) {
	_, err := ctaphid.Packetize(1, ctaphid.CommandMsg, make([]byte, 57+128*59+1))
	require.ErrorIs(t, err, ctaphid.ErrPayloadTooLarge)
}

func TestWriteMsg(t *testing.T) {
	dev := &recordingDevice{}
	payload := make([]byte, 100)
	require.NoError(t, ctaphid.WriteMsg(dev, 7, ctaphid.CommandCBOR, payload))
	require.Len(t, dev.reports, 2)
	for _, report := range dev.reports {
		require.Len(t, report, ctaphid.ReportLen)
		require.Equal(t, uint32(7), binary.BigEndian.Uint32(report[0:4]))
	}
}

func TestReadMsgRoundTrip(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	dev := replay(t, 0xcafe, ctaphid.CommandCBOR, payload)
	cmd, got, err := ctaphid.ReadMsg(dev, 0xcafe)
	require.NoError(t, err)
	require.Equal(t, ctaphid.CommandCBOR, cmd)
	require.Equal(t, payload, got)
}

func TestReadMsgEmptyPayload(t *testing.T) {
	dev := replay(t, 5, ctaphid.CommandError, nil)
	cmd, got, err := ctaphid.ReadMsg(dev, 5)
	require.NoError(t, err)
	require.Equal(t, ctaphid.CommandError, cmd)
	require.Empty(t, got)
}

func TestReadMsgSkipsKeepalives(t *testing.T) {
	keepalive, err := ctaphid.Packetize(5, ctaphid.CommandKeepalive, []byte{0x02})
	require.NoError(t, err)
	msg, err := ctaphid.Packetize(5, ctaphid.CommandCBOR, []byte{0x00})
	require.NoError(t, err)

	wire := bytes.Join(append(append([][]byte{}, keepalive...), msg...), nil)
	dev := fakedev.Open(wire)

	cmd, got, err := ctaphid.ReadMsg(dev, 5)
	require.NoError(t, err)
	require.Equal(t, ctaphid.CommandCBOR, cmd)
	require.Equal(t, []byte{0x00}, got)
}

func TestReadMsgWrongChannel(t *testing.T) {
	dev := replay(t, 6, ctaphid.CommandCBOR, []byte{0x00})
	_, _, err := ctaphid.ReadMsg(dev, 7)
	require.ErrorIs(t, err, ctaphid.ErrWrongChannel)
}

func TestReadMsgRejectsContinuationFirst(t *testing.T) {
	report := make([]byte, ctaphid.ReportLen)
	binary.BigEndian.PutUint32(report[0:4], 9)
	report[4] = 0x00 // sequence byte, not an initialization command
	dev := fakedev.Open(report)

	_, _, err := ctaphid.ReadMsg(dev, 9)
	require.ErrorIs(t, err, ctaphid.ErrNotInitPacket)
}

func TestReadMsgOutOfSequence(t *testing.T) {
	reports, err := ctaphid.Packetize(9, ctaphid.CommandMsg, make([]byte, 200))
	require.NoError(t, err)
	require.Len(t, reports, 4)
	reports[2][4] = 5 // should be sequence 1

	dev := fakedev.Open(bytes.Join(reports, nil))
	_, _, err = ctaphid.ReadMsg(dev, 9)
	require.ErrorIs(t, err, ctaphid.ErrOutOfSequence)
}

func TestReadMsgShortReport(t *testing.T) {
	reports, err := ctaphid.Packetize(9, ctaphid.CommandCBOR, []byte{0x00})
	require.NoError(t, err)

	// Drop the tail of the only report; the replayed device hands the
	// remainder back as a short read.
	dev := fakedev.Open(reports[0][:10])
	_, _, err = ctaphid.ReadMsg(dev, 9)
	require.ErrorIs(t, err, ctaphid.ErrReportTooShort)
}

func TestReadMsgTruncatedStream(t *testing.T) {
	reports, err := ctaphid.Packetize(9, ctaphid.CommandCBOR, make([]byte, 200))
	require.NoError(t, err)

	// Replay only the initialization packet of a multi-report message.
	dev := fakedev.Open(reports[0])
	_, _, err = ctaphid.ReadMsg(dev, 9)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadMsgPayloadCappedAtDeclaredLength(t *testing.T) {
	// A report always carries 57 payload bytes of space; a message
	// shorter than that must come back trimmed to the declared length.
	dev := replay(t, 3, ctaphid.CommandCBOR, []byte{0xaa, 0xbb})
	_, got, err := ctaphid.ReadMsg(dev, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestCommandString(t *testing.T) {
	require.Equal(t, "CTAPHID_CBOR", ctaphid.CommandCBOR.String())
	require.Equal(t, "CTAPHID_UNKNOWN", ctaphid.Command(0x55).String())
}
