package rmap

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// bucket assigns a global index to a broker rank. It must be identical
// on every rank and must not depend on anything but the index and the
// group size — every rank computes the same broker for the same index
// without any communication. Hashing the index first (rather than a
// plain modulo) avoids skew when indices arrive in runs that are
// themselves multiples of size.
func bucket(index int64, size int) int {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(index))
	h := xxhash.Sum64(buf[:])
	return int(h % uint64(size))
}
