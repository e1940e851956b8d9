package fuzzassert

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-fido-fuzz/param"
)

func encodeRecord(t *testing.T, p *param.Param) []byte {
	t.Helper()
	buf := make([]byte, param.MaxCorpusLen)
	n, err := param.Encode(p, buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestVerifyLoopRunsWhenTransportFails(t *testing.T) {
	// Wire data that cannot even complete CTAPHID INIT must not skip
	// the verify loop: get-assertion yields no statements and the loop
	// still visits its one past-the-end index.
	p := param.Dummy()
	p.WireData = nil
	require.Equal(t, 1, exercise(encodeRecord(t, p)))

	p.WireData = []byte{0xde, 0xad, 0xbe, 0xef}
	require.Equal(t, 1, exercise(encodeRecord(t, p)))
}

func TestVerifyLoopCountsOnePastStatements(t *testing.T) {
	// Whatever get-assertion produces, the loop visits count+1
	// indices. An undecodable buffer visits none.
	require.Equal(t, 0, exercise([]byte{0xff, 0xff}))
	require.GreaterOrEqual(t, exercise(encodeRecord(t, param.Dummy())), 1)
}
