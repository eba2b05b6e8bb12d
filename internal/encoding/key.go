// Package encoding - EncodedKey / EncodedValues wire format.
//
// What: Deterministic, versioned byte encodings for every key kind the
// storage tier stores (row data, indexes, flow operator state, catalog
// metadata, CDC) and for row values (a fixed-layout record keyed by a
// schema fingerprint).
// How: Every key starts with a one-byte format version followed by a
// one-byte kind tag, then kind-specific fields in an order chosen so that
// lexicographic byte ordering matches the intended key ordering (numeric
// fields are big-endian). Kinds are assigned disjoint tag values so that
// all keys of one kind form one contiguous byte range.
// Why: A byte-lexicographic tier (memory map or SQLite BLOB PK) only needs
// to compare bytes; encoding discipline is what makes range scans over one
// kind correct and cheap.
package encoding

import (
	"encoding/binary"
	"fmt"
)

// KeyVersion is the leading format version byte. Bumped only when the
// layout of an existing kind changes incompatibly; old encoders/decoders
// are never mutated in place, a new version is added instead.
const KeyVersion byte = 1

// Kind tags the logical namespace a key belongs to. Values are chosen so
// a byte-range scan of [kind, kind+1) covers exactly that kind's keys.
type Kind byte

const (
	KindRow       Kind = 0x01 // table/view row data, keyed by (table id, row id)
	KindIndex     Kind = 0x02 // secondary index entries
	KindFlowState Kind = 0x03 // flow operator state, keyed by FlowNodeId
	KindMeta      Kind = 0x04 // catalog/schema metadata
	KindCdc       Kind = 0x05 // CDC records, keyed by commit version
	KindSchema    Kind = 0x06 // field rows, keyed by (fingerprint, index)
	KindSingle    Kind = 0x07 // non-versioned single-value entries
)

// EncodedKey is an immutable, comparable byte sequence. Ordering is
// lexicographic on the underlying bytes.
type EncodedKey []byte

// Kind returns the key's kind tag, or an error if the key is malformed.
func (k EncodedKey) Kind() (Kind, error) {
	if len(k) < 2 {
		return 0, fmt.Errorf("encoding: key too short: %d bytes", len(k))
	}
	if k[0] != KeyVersion {
		return 0, fmt.Errorf("encoding: unsupported key version %d", k[0])
	}
	return Kind(k[1]), nil
}

// Bytes returns the raw bytes, for handing to a storage tier.
func (k EncodedKey) Bytes() []byte { return []byte(k) }

func (k EncodedKey) String() string { return fmt.Sprintf("%x", []byte(k)) }

func newKey(kind Kind, capHint int) []byte {
	b := make([]byte, 0, 2+capHint)
	b = append(b, KeyVersion, byte(kind))
	return b
}

func putUint64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

func putString(b []byte, s string) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	b = append(b, lenBuf[:]...)
	return append(b, s...)
}

func readUint64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("encoding: truncated uint64")
	}
	return binary.BigEndian.Uint64(b), b[8:], nil
}

func readString(b []byte) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, fmt.Errorf("encoding: truncated string length")
	}
	n := binary.BigEndian.Uint32(b)
	b = b[4:]
	if uint32(len(b)) < n {
		return "", nil, fmt.Errorf("encoding: truncated string body")
	}
	return string(b[:n]), b[n:], nil
}

// RowKey encodes a row key: (tableID, rowID), big-endian so numeric order
// equals byte order.
func RowKey(tableID, rowID uint64) EncodedKey {
	b := newKey(KindRow, 16)
	b = putUint64(b, tableID)
	b = putUint64(b, rowID)
	return EncodedKey(b)
}

// DecodeRowKey reverses RowKey.
func DecodeRowKey(k EncodedKey) (tableID, rowID uint64, err error) {
	kind, err := k.Kind()
	if err != nil {
		return 0, 0, err
	}
	if kind != KindRow {
		return 0, 0, fmt.Errorf("encoding: expected row key, got kind %d", kind)
	}
	rest := []byte(k)[2:]
	tableID, rest, err = readUint64(rest)
	if err != nil {
		return 0, 0, err
	}
	rowID, _, err = readUint64(rest)
	return tableID, rowID, err
}

// IndexKey encodes a secondary index entry: (indexID, encoded index value,
// rowID) so a range scan over one indexID yields index-value order.
func IndexKey(indexID uint64, value []byte, rowID uint64) EncodedKey {
	b := newKey(KindIndex, 16+len(value))
	b = putUint64(b, indexID)
	b = append(b, value...)
	b = putUint64(b, rowID)
	return EncodedKey(b)
}

// FlowStateKey encodes operator state, keyed by the flow node owning it.
func FlowStateKey(flowNodeID uint64) EncodedKey {
	b := newKey(KindFlowState, 8)
	b = putUint64(b, flowNodeID)
	return EncodedKey(b)
}

// MetaKey encodes a catalog metadata entry for the given entity kind/id.
func MetaKey(entityKind byte, id uint64) EncodedKey {
	b := newKey(KindMeta, 9)
	b = append(b, entityKind)
	b = putUint64(b, id)
	return EncodedKey(b)
}

// MetaNameKey encodes the name->id index entry for a catalog entity,
// scoped by parent namespace id, so names are unique within a namespace.
func MetaNameKey(entityKind byte, namespaceID uint64, name string) EncodedKey {
	b := newKey(KindMeta, 32+len(name))
	b = append(b, entityKind, 0xFF) // 0xFF discriminates name-index rows from id rows
	b = putUint64(b, namespaceID)
	b = putString(b, name)
	return EncodedKey(b)
}

// CdcKey encodes a CDC record key, keyed by commit version so the natural
// byte order is commit order.
func CdcKey(version uint64) EncodedKey {
	b := newKey(KindCdc, 8)
	b = putUint64(b, version)
	return EncodedKey(b)
}

// DecodeCdcKey reverses CdcKey.
func DecodeCdcKey(k EncodedKey) (version uint64, err error) {
	kind, err := k.Kind()
	if err != nil {
		return 0, err
	}
	if kind != KindCdc {
		return 0, fmt.Errorf("encoding: expected cdc key, got kind %d", kind)
	}
	version, _, err = readUint64([]byte(k)[2:])
	return version, err
}

// SchemaFieldKey encodes a field row keyed by (fingerprint, index).
func SchemaFieldKey(fingerprint uint64, index uint32) EncodedKey {
	b := newKey(KindSchema, 12)
	b = putUint64(b, fingerprint)
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], index)
	b = append(b, idxBuf[:]...)
	return EncodedKey(b)
}

// SingleKey encodes a non-versioned key under an arbitrary name, e.g. for
// lifecycle bookkeeping (last_consumed_version, watermark checkpoints).
func SingleKey(name string) EncodedKey {
	b := newKey(KindSingle, len(name))
	b = putString(b, name)
	return EncodedKey(b)
}

// RangeBounds returns the [start, end) byte range that contains every key
// of the given kind, for backends that want to scope a scan to one kind.
func RangeBounds(kind Kind) (start, end []byte) {
	start = []byte{KeyVersion, byte(kind)}
	end = []byte{KeyVersion, byte(kind) + 1}
	return start, end
}
