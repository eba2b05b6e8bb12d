package encoding

import (
	"bytes"
	"sort"
	"testing"
)

func TestRowKeyRoundTrips(t *testing.T) {
	k := RowKey(7, 42)
	tableID, rowID, err := DecodeRowKey(k)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tableID != 7 || rowID != 42 {
		t.Fatalf("got (%d,%d), want (7,42)", tableID, rowID)
	}
}

func TestRowKeyOrdersByTableThenRowBigEndian(t *testing.T) {
	a := RowKey(1, 5).Bytes()
	b := RowKey(1, 300).Bytes()
	c := RowKey(2, 0).Bytes()
	keys := [][]byte{c, a, b}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	if !bytes.Equal(keys[0], a) || !bytes.Equal(keys[1], b) || !bytes.Equal(keys[2], c) {
		t.Fatalf("expected byte order (1,5) < (1,300) < (2,0), got a different order")
	}
}

func TestDecodeRowKeyRejectsWrongKind(t *testing.T) {
	k := CdcKey(1)
	if _, _, err := DecodeRowKey(k); err == nil {
		t.Fatalf("expected an error decoding a non-row key as a row key")
	}
}

func TestCdcKeyRoundTrips(t *testing.T) {
	k := CdcKey(99)
	v, err := DecodeCdcKey(k)
	if err != nil || v != 99 {
		t.Fatalf("got v=%d err=%v, want 99", v, err)
	}
}

func TestCdcKeysOrderByCommitVersion(t *testing.T) {
	a := CdcKey(1).Bytes()
	b := CdcKey(2).Bytes()
	if bytes.Compare(a, b) >= 0 {
		t.Fatalf("expected CdcKey(1) < CdcKey(2) byte-wise")
	}
}

func TestRangeBoundsCoverExactlyOneKind(t *testing.T) {
	start, end := RangeBounds(KindRow)
	k := RowKey(1, 1).Bytes()
	if bytes.Compare(k, start) < 0 || bytes.Compare(k, end) >= 0 {
		t.Fatalf("row key %x must fall within [%x, %x)", k, start, end)
	}
	other := CdcKey(1).Bytes()
	if bytes.Compare(other, start) >= 0 && bytes.Compare(other, end) < 0 {
		t.Fatalf("a CDC key must not fall within the row key's range bounds")
	}
}

func TestMetaNameKeyDistinguishesFromMetaIDKey(t *testing.T) {
	idKey := MetaKey(1, 5)
	nameKey := MetaNameKey(1, 5, "orders")
	if bytes.Equal(idKey.Bytes(), nameKey.Bytes()) {
		t.Fatalf("id-keyed and name-keyed metadata entries must not collide")
	}
}

func TestKindRejectsUnsupportedVersion(t *testing.T) {
	k := EncodedKey([]byte{99, byte(KindRow)})
	if _, err := k.Kind(); err == nil {
		t.Fatalf("expected an error for an unsupported key version byte")
	}
}
