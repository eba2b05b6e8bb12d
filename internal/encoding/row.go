// EncodedValues: the row value wire format.
//
// What: A fixed-layout record — a nullability bitmap, a 4-byte big-endian
// length of the fixed section, then fixed-width fields in schema order,
// then a variable-length heap for text/blob fields. The bytes do not carry
// the schema fingerprint; DecodeRow needs the Schema the row was encoded
// with.
// How: FieldType enumerates the fixed-width primitive types plus a
// variable-length Text/Blob type. EncodeRow/DecodeRow walk the Schema's
// Fields in order; variable fields store a (offset,length) pair inline and
// their bytes live in the trailing heap.
package encoding

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FieldType enumerates the primitive column types a row can carry.
type FieldType byte

const (
	FieldBool FieldType = iota
	FieldInt64
	FieldFloat64
	FieldText
	FieldBlob
)

func (t FieldType) fixedWidth() (int, bool) {
	switch t {
	case FieldBool:
		return 1, true
	case FieldInt64, FieldFloat64:
		return 8, true
	default:
		return 0, false // variable-length, stored in the heap
	}
}

// Field is one column of a Schema: its name and type. Offsets are
// deliberately excluded from the fingerprint — only name+type determine
// equality.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the canonical, ordered field list a fingerprint is computed
// over. Two schemas with the same fields in the same order always produce
// the same fingerprint (see Fingerprint).
type Schema struct {
	Fields []Field
}

// EncodedValues is the opaque row payload: a nullability bitmap, a 4-byte
// fixed-section length, fixed fields, then a variable-length heap.
type EncodedValues []byte

// Value is a single decoded column value, tagged by its dynamic Go type:
// nil (null), bool, int64, float64, or []byte (text/blob).
type Value = any

// bitvec is a packed bit set sized to one bit per field.
func bitvecSize(n int) int { return (n + 7) / 8 }

func bitSet(b []byte, i int)      { b[i/8] |= 1 << uint(i%8) }
func bitGet(b []byte, i int) bool { return b[i/8]&(1<<uint(i%8)) != 0 }

// EncodeRow packs values (len(values) == len(schema.Fields), nil meaning
// SQL NULL) into an EncodedValues record addressed by the schema's
// fingerprint. The caller is responsible for persisting the fingerprint
// alongside the row (the fingerprint is not embedded in the bytes; it is
// the external key that makes the layout addressable, per spec §3).
func EncodeRow(schema Schema, values []Value) (EncodedValues, error) {
	if len(values) != len(schema.Fields) {
		return nil, fmt.Errorf("encoding: row has %d values, schema has %d fields", len(values), len(schema.Fields))
	}
	nullBitmap := make([]byte, bitvecSize(len(schema.Fields)))
	var fixed []byte
	var heap []byte

	for i, f := range schema.Fields {
		v := values[i]
		if v == nil {
			bitSet(nullBitmap, i)
			if w, ok := f.Type.fixedWidth(); ok {
				fixed = append(fixed, make([]byte, w)...)
			} else {
				fixed = append(fixed, make([]byte, 8)...) // offset+length placeholder, zeroed
			}
			continue
		}
		switch f.Type {
		case FieldBool:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("encoding: field %q expects bool, got %T", f.Name, v)
			}
			if b {
				fixed = append(fixed, 1)
			} else {
				fixed = append(fixed, 0)
			}
		case FieldInt64:
			n, ok := asInt64(v)
			if !ok {
				return nil, fmt.Errorf("encoding: field %q expects int64, got %T", f.Name, v)
			}
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], uint64(n))
			fixed = append(fixed, buf[:]...)
		case FieldFloat64:
			fv, ok := asFloat64(v)
			if !ok {
				return nil, fmt.Errorf("encoding: field %q expects float64, got %T", f.Name, v)
			}
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(fv))
			fixed = append(fixed, buf[:]...)
		case FieldText, FieldBlob:
			bs, ok := asBytes(v)
			if !ok {
				return nil, fmt.Errorf("encoding: field %q expects text/blob, got %T", f.Name, v)
			}
			var off [4]byte
			var ln [4]byte
			binary.BigEndian.PutUint32(off[:], uint32(len(heap)))
			binary.BigEndian.PutUint32(ln[:], uint32(len(bs)))
			fixed = append(fixed, off[:]...)
			fixed = append(fixed, ln[:]...)
			heap = append(heap, bs...)
		default:
			return nil, fmt.Errorf("encoding: unknown field type %d", f.Type)
		}
	}

	out := make(EncodedValues, 0, len(nullBitmap)+len(fixed)+len(heap)+8)
	var fixedLen [4]byte
	binary.BigEndian.PutUint32(fixedLen[:], uint32(len(fixed)))
	out = append(out, nullBitmap...)
	out = append(out, fixedLen[:]...)
	out = append(out, fixed...)
	out = append(out, heap...)
	return out, nil
}

// DecodeRow reverses EncodeRow.
func DecodeRow(schema Schema, raw EncodedValues) ([]Value, error) {
	nullLen := bitvecSize(len(schema.Fields))
	if len(raw) < nullLen+4 {
		return nil, fmt.Errorf("encoding: row too short")
	}
	nullBitmap := raw[:nullLen]
	rest := raw[nullLen:]
	fixedLen := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint32(len(rest)) < fixedLen {
		return nil, fmt.Errorf("encoding: row fixed section truncated")
	}
	fixed := rest[:fixedLen]
	heap := rest[fixedLen:]

	values := make([]Value, len(schema.Fields))
	pos := 0
	for i, f := range schema.Fields {
		if bitGet(nullBitmap, i) {
			values[i] = nil
			if w, ok := f.Type.fixedWidth(); ok {
				pos += w
			} else {
				pos += 8
			}
			continue
		}
		switch f.Type {
		case FieldBool:
			if pos >= len(fixed) {
				return nil, fmt.Errorf("encoding: truncated bool field %q", f.Name)
			}
			values[i] = fixed[pos] != 0
			pos++
		case FieldInt64:
			if pos+8 > len(fixed) {
				return nil, fmt.Errorf("encoding: truncated int64 field %q", f.Name)
			}
			values[i] = int64(binary.BigEndian.Uint64(fixed[pos : pos+8]))
			pos += 8
		case FieldFloat64:
			if pos+8 > len(fixed) {
				return nil, fmt.Errorf("encoding: truncated float64 field %q", f.Name)
			}
			values[i] = math.Float64frombits(binary.BigEndian.Uint64(fixed[pos : pos+8]))
			pos += 8
		case FieldText, FieldBlob:
			if pos+8 > len(fixed) {
				return nil, fmt.Errorf("encoding: truncated varlen field %q", f.Name)
			}
			off := binary.BigEndian.Uint32(fixed[pos : pos+4])
			ln := binary.BigEndian.Uint32(fixed[pos+4 : pos+8])
			pos += 8
			if uint32(len(heap)) < off+ln {
				return nil, fmt.Errorf("encoding: heap overrun for field %q", f.Name)
			}
			bs := make([]byte, ln)
			copy(bs, heap[off:off+ln])
			if f.Type == FieldText {
				values[i] = string(bs)
			} else {
				values[i] = bs
			}
		default:
			return nil, fmt.Errorf("encoding: unknown field type %d", f.Type)
		}
	}
	return values, nil
}

func asInt64(v Value) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func asBytes(v Value) ([]byte, bool) {
	switch b := v.(type) {
	case string:
		return []byte(b), true
	case []byte:
		return b, true
	}
	return nil, false
}
