package txn

import "testing"

func TestBlindWritesToSameKeyConflict(t *testing.T) {
	a := newConflictSet()
	a.recordWrite([]byte("k"))
	b := newConflictSet()
	b.recordWrite([]byte("k"))

	if !a.intersectsWrites(b) {
		t.Fatalf("two writes to the same key must conflict (a write is also a read of the prior value)")
	}
}

func TestDisjointWritesDoNotConflict(t *testing.T) {
	a := newConflictSet()
	a.recordWrite([]byte("a"))
	b := newConflictSet()
	b.recordWrite([]byte("b"))

	if a.intersectsWrites(b) {
		t.Fatalf("writes to disjoint keys must not conflict")
	}
}

func TestReadAllConflictsWithAnyWrite(t *testing.T) {
	a := newConflictSet()
	a.markReadAll()
	b := newConflictSet()
	b.recordWrite([]byte("anything"))

	if !a.intersectsWrites(b) {
		t.Fatalf("a conservative range read must conflict with any concurrent write")
	}
}

func TestRegistryConflictsOnlyAgainstCommitsAfterSnapshot(t *testing.T) {
	r := newRegistry()
	writeK := newConflictSet()
	writeK.recordWrite([]byte("k"))
	r.record(committedRecord{snapshotVersion: 1, commitVersion: 2, set: writeK})

	readK := newConflictSet()
	readK.recordRead([]byte("k"))

	if r.conflicts(2, readK) {
		t.Fatalf("a snapshot taken at or after the conflicting commit must not see a conflict")
	}
	if !r.conflicts(1, readK) {
		t.Fatalf("a snapshot taken before the conflicting commit must see the conflict")
	}
}

func TestRegistryPruneBelowDropsOldRecords(t *testing.T) {
	r := newRegistry()
	r.record(committedRecord{snapshotVersion: 1, commitVersion: 2, set: newConflictSet()})
	r.record(committedRecord{snapshotVersion: 5, commitVersion: 6, set: newConflictSet()})

	r.pruneBelow(6)
	if len(r.records) != 1 || r.records[0].commitVersion != 6 {
		t.Fatalf("expected only the record at or above the floor to survive, got %+v", r.records)
	}
}
