// Package fuzzassert is the engine-facing surface of the harness: a
// single-input exercise function that drives the authenticator client
// from one decoded corpus record, and a custom mutator that produces
// new well-formed records. Both are total: no corpus input, however
// mangled, is allowed to take the process down from inside this
// package. A crash must mean a defect in the components under test.
package fuzzassert

import (
	"crypto/ed25519"
	"crypto/rsa"
	"math/rand"

	cose_key "github.com/ldclabs/cose/key"

	"github.com/splitsecure/go-fido-fuzz/assertion"
	"github.com/splitsecure/go-fido-fuzz/fakedev"
	"github.com/splitsecure/go-fido-fuzz/param"
)

// sink keeps collaborator outputs observed so the compiler cannot
// elide the reads.
var sink byte

func consume(b []byte) {
	for _, c := range b {
		sink ^= c
	}
}

func consumeString(s string) {
	consume([]byte(s))
}

// Exercise consumes one corpus buffer. An undecodable buffer is
// skipped; a decodable one selects a signature family, replays the
// recorded wire data through the fake device, runs get-assertion and
// then verifies one statement past the reported count, a deliberate
// boundary case. All collaborator errors are swallowed: they are
// expected outcomes of mutated inputs, not failures of the harness. A
// failed get-assertion still reaches the verify loop with an empty
// statement list, so the past-the-end iteration runs on every
// decodable record.
func Exercise(data []byte) {
	exercise(data)
}

// exercise returns the number of statements the verify loop visited,
// including the one past the count. Zero means the record did not
// decode.
func exercise(data []byte) int {
	p, err := param.Decode(data)
	if err != nil {
		return 0
	}

	rng := rand.New(rand.NewSource(int64(p.Seed)))

	var (
		alg int
		k   cose_key.Key
	)
	switch p.Type & 3 {
	case 0:
		alg = assertion.AlgES256
		k, _ = assertion.ES256Key(p.ES256)
	case 1:
		alg = assertion.AlgRS256
		k, _ = assertion.RS256Key(p.RS256)
		convertRS256(k)
	default:
		alg = assertion.AlgEdDSA
		k, _ = assertion.EdDSAKey(p.EdDSA)
		convertEdDSA(k)
	}

	dev := fakedev.Open(p.WireData)
	defer dev.Close()

	req := &assertion.Request{
		RPID:           p.RPID,
		ClientDataHash: p.CDH,
		PIN:            p.PIN,
		HMACSalt:       p.Cred, // the credential ID doubles as the salt
		HMACSecret:     p.Ext&param.ExtHMACSecret != 0,
		UP:             p.UP&1 == 1,
		UV:             p.UV&1 == 1,
		U2F:            p.U2F&1 == 1,
	}
	for i := byte(0); i < p.CredCount; i++ {
		req.AllowList = append(req.AllowList, p.Cred)
	}

	// A transport or parse failure leaves an empty statement list; the
	// loop below still runs its past-the-end iteration.
	stmts, _ := assertion.GetAssertion(dev, rng, req)

	// One index past the statement count on purpose.
	visited := 0
	for i := 0; i <= len(stmts); i++ {
		stmt := statementAt(stmts, i)
		_ = assertion.Verify(alg, stmt, p.CDH, p.RPID, req.UP, req.UV, k)
		consume(stmt.CredentialID)
		consume(stmt.UserID)
		consume(stmt.HMACSecretEnc)
		consumeString(stmt.UserIcon)
		consumeString(stmt.UserName)
		consumeString(stmt.UserDisplayName)
		consume([]byte{stmt.Flags})
		visited++
	}
	return visited
}

// Mutate is the engine-facing custom mutator: it returns a new
// corpus buffer no longer than maxLen, or nil when no mutation was
// produced. Deterministic given data and seed.
func Mutate(data []byte, maxLen int, seed int64) []byte {
	return param.Mutate(data, maxLen, seed)
}

// statementAt reads one statement with the off-by-one tolerance the
// exercise loop depends on: an index at the count yields an empty
// statement, never a panic.
func statementAt(stmts []assertion.Statement, i int) *assertion.Statement {
	if i >= 0 && i < len(stmts) {
		return &stmts[i]
	}
	return &assertion.Statement{}
}

// convertRS256 round-trips a COSE RSA key through the stdlib type,
// exercising both conversion directions.
func convertRS256(k cose_key.Key) {
	pub, err := assertion.PublicKey(assertion.AlgRS256, k)
	if err != nil {
		return
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return
	}
	if k2, err := assertion.RS256KeyFromPublic(rsaPub); err == nil {
		_ = k2
	}
}

// convertEdDSA round-trips a COSE OKP key through the stdlib type.
func convertEdDSA(k cose_key.Key) {
	pub, err := assertion.PublicKey(assertion.AlgEdDSA, k)
	if err != nil {
		return
	}
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return
	}
	if k2, err := assertion.EdDSAKeyFromPublic(edPub); err == nil {
		_ = k2
	}
}
