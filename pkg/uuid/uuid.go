// Package uuid provides UUID v7 generation.
// UUID v7 is sortable by timestamp, which keeps primary-key indexes append-only.
package uuid

import (
	"crypto/rand"
	"fmt"
	"time"
)

// UUID is a 128-bit UUID v7 identifier.
type UUID [16]byte

// NewV7 generates a new UUID v7 per RFC 9562:
//   - 48 bits: UNIX timestamp in milliseconds
//   - 4 bits: version (0111)
//   - 12 + 62 bits: random
//   - 2 bits: variant (10)
func NewV7() UUID {
	var u UUID

	now := time.Now().UnixMilli()
	u[0] = byte(now >> 40)
	u[1] = byte(now >> 32)
	u[2] = byte(now >> 24)
	u[3] = byte(now >> 16)
	u[4] = byte(now >> 8)
	u[5] = byte(now)

	// crypto/rand never fails on supported platforms; a short read would be
	// a broken runtime, so panic rather than hand out a zeroed identifier.
	if _, err := rand.Read(u[6:]); err != nil {
		panic("uuid: crypto/rand read failed: " + err.Error())
	}

	u[6] = 0x70 | (u[6] & 0x0f) // version 7
	u[8] = 0x80 | (u[8] & 0x3f) // variant 10

	return u
}

// String returns the UUID in standard form: xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
func (u UUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		u[0:4],
		u[4:6],
		u[6:8],
		u[8:10],
		u[10:16],
	)
}
