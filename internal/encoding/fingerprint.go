// Schema fingerprint — a deterministic 64-bit identity for a field list.
//
// What: Fingerprint hashes a canonical representation of a Schema (field
// count, then per-field name-length/name/type-code) so that two schemas
// with the same fields in the same order always hash identically, and
// differently otherwise.
// How: cespare/xxhash/v2 provides the 64-bit hash. It computes XXH64, not
// XXH3, so a fingerprint is not equal to an XXH3 hash of the same bytes.
// Fingerprint feeds it a canonical byte stream with big-endian lengths,
// the same convention key.go's putUint64/putString helpers use.
package encoding

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint computes the 64-bit schema fingerprint described in spec §3:
// a hash of field count, then per field (name-len, name, type-code).
// Offsets are never part of the input, so layout changes that don't touch
// the field list do not change the fingerprint.
func Fingerprint(s Schema) uint64 {
	h := xxhash.New()
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(s.Fields)))
	h.Write(buf[:])
	for _, f := range s.Fields {
		binary.BigEndian.PutUint32(buf[:], uint32(len(f.Name)))
		h.Write(buf[:])
		h.Write([]byte(f.Name))
		h.Write([]byte{byte(f.Type)})
	}
	return h.Sum64()
}
