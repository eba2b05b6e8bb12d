package encoding

import "testing"

func personsSchema() Schema {
	return Schema{Fields: []Field{
		{Name: "id", Type: FieldInt64},
		{Name: "name", Type: FieldText},
		{Name: "score", Type: FieldFloat64},
		{Name: "active", Type: FieldBool},
	}}
}

func TestEncodeDecodeRowRoundTrips(t *testing.T) {
	schema := personsSchema()
	values := []Value{int64(42), "alice", 3.5, true}
	raw, err := EncodeRow(schema, values)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRow(schema, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0].(int64) != 42 || got[1].(string) != "alice" || got[2].(float64) != 3.5 || got[3].(bool) != true {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestEncodeDecodeRowHandlesNulls(t *testing.T) {
	schema := personsSchema()
	values := []Value{int64(1), nil, nil, nil}
	raw, err := EncodeRow(schema, values)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRow(schema, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[1] != nil || got[2] != nil || got[3] != nil {
		t.Fatalf("expected null fields to decode as nil, got %+v", got)
	}
	if got[0].(int64) != 1 {
		t.Fatalf("non-null field lost its value: %+v", got)
	}
}

func TestEncodeRowRejectsValueCountMismatch(t *testing.T) {
	schema := personsSchema()
	if _, err := EncodeRow(schema, []Value{int64(1)}); err == nil {
		t.Fatalf("expected an error when values count does not match the schema's field count")
	}
}

func TestEncodeRowRejectsWrongType(t *testing.T) {
	schema := personsSchema()
	values := []Value{"not an int", "alice", 1.0, true}
	if _, err := EncodeRow(schema, values); err == nil {
		t.Fatalf("expected an error when a value's dynamic type does not match its field's type")
	}
}

func TestEncodeRowVariableLengthFieldsDoNotCollideInTheHeap(t *testing.T) {
	schema := Schema{Fields: []Field{{Name: "a", Type: FieldText}, {Name: "b", Type: FieldText}}}
	raw, err := EncodeRow(schema, []Value{"hello", "world"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRow(schema, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0].(string) != "hello" || got[1].(string) != "world" {
		t.Fatalf("heap-backed fields collided: got %+v", got)
	}
}

func TestFingerprintIsStableForIdenticalSchemas(t *testing.T) {
	a := Fingerprint(personsSchema())
	b := Fingerprint(personsSchema())
	if a != b {
		t.Fatalf("expected identical fingerprints for identical schemas, got %d and %d", a, b)
	}
}

func TestFingerprintDiffersWhenFieldOrderChanges(t *testing.T) {
	s1 := Schema{Fields: []Field{{Name: "a", Type: FieldInt64}, {Name: "b", Type: FieldInt64}}}
	s2 := Schema{Fields: []Field{{Name: "b", Type: FieldInt64}, {Name: "a", Type: FieldInt64}}}
	if Fingerprint(s1) == Fingerprint(s2) {
		t.Fatalf("expected field order to affect the fingerprint")
	}
}

func TestFingerprintIgnoresOffsetsByConstruction(t *testing.T) {
	s1 := Schema{Fields: []Field{{Name: "a", Type: FieldText}, {Name: "b", Type: FieldInt64}}}
	s2 := Schema{Fields: []Field{{Name: "a", Type: FieldText}, {Name: "b", Type: FieldInt64}}}
	if Fingerprint(s1) != Fingerprint(s2) {
		t.Fatalf("schemas with the same name+type fields must fingerprint identically regardless of layout")
	}
}
