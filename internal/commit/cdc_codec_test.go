package commit

import (
	"testing"
	"time"

	"github.com/reifydb/reifydb/internal/mvcc"
)

func TestEncodeDecodeRecordRoundTrips(t *testing.T) {
	r := mvcc.Record{
		Version:   7,
		TxID:      3,
		Timestamp: time.Now().UTC(),
		Changes: []mvcc.ChangeDiff{
			{Sequence: 1, Key: []byte("k1"), Pre: nil, PreSet: false, Post: []byte("v1"), PostSet: true},
			{Sequence: 2, Key: []byte("k2"), Pre: []byte("old"), PreSet: true, Post: nil, PostSet: false},
		},
	}
	raw, err := encodeRecord(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRecord(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Version != r.Version || got.TxID != r.TxID || len(got.Changes) != len(r.Changes) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
	if string(got.Changes[0].Post) != "v1" || got.Changes[1].PreSet != true {
		t.Fatalf("change diffs did not survive the round trip: %+v", got.Changes)
	}
}
