// CDC record wire encoding: version -> {tid, ts, [(seq, pre, post)]}
// (spec §6 "Persisted layout"). Uses encoding/gob, the same serialization
// tinySQL reaches for whenever it needs to persist a Go struct verbatim
// (db.go's checkpoint format, driver.go's placeholder binding), rather
// than hand-rolling a binary layout for a record whose shape fans out
// per-transaction and is never range-scanned on sub-fields.
package commit

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/reifydb/reifydb/internal/mvcc"
)

func init() {
	gob.Register(mvcc.Record{})
}

func encodeRecord(r mvcc.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, fmt.Errorf("cdc codec: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRecord reverses encodeRecord; exported so CDC consumers (package
// router, and external collaborators per spec §6) can decode records read
// directly off the tier.
func DecodeRecord(raw []byte) (mvcc.Record, error) {
	var r mvcc.Record
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&r); err != nil {
		return mvcc.Record{}, fmt.Errorf("cdc codec: decode: %w", err)
	}
	return r, nil
}
