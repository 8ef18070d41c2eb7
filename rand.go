package spio

import (
	cryrand "crypto/rand"
	"encoding/binary"

	cristalbase64 "github.com/cristalhq/base64"
)

// randPipeID draws a random non-zero 31-bit pipe id, per spec.md §3
// ("an id (random 31-bit)"). Grounded on the teacher's rand.go
// crypto/rand-backed draws; 31 bits keeps the id representable as a
// non-negative int32 for bindings that don't have unsigned integers.
func randPipeID() uint32 {
	var b [4]byte
	for {
		if _, err := cryrand.Read(b[:]); err != nil {
			panic(err)
		}
		id := binary.BigEndian.Uint32(b[:]) & 0x7fffffff
		if id != 0 {
			return id
		}
	}
}

// traceToken returns a short URL-safe base64 token used only to
// correlate a pipe's or dial attempt's vv() trace lines with each
// other; it never goes on the wire. Grounded on the teacher's
// cryRand17B/cryRand33B helpers in rand.go, same library, smaller fixed
// size since this token is for log correlation, not identity.
func traceToken() string {
	var by [9]byte
	if _, err := cryrand.Read(by[:]); err != nil {
		panic(err)
	}
	return cristalbase64.URLEncoding.EncodeToString(by[:])
}
