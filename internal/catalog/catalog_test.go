package catalog

import "testing"

func TestCreateThenCommitMakesEntityVisibleAtThatVersion(t *testing.T) {
	cat := New()
	o := NewOverlay(cat, 0)
	id := o.Create(KindTable, 0, "orders", nil)
	o.Commit(5)

	def, ok := cat.Get(id, 5)
	if !ok || def.Name != "orders" {
		t.Fatalf("expected orders visible at v5, got def=%+v ok=%v", def, ok)
	}
	if _, ok := cat.Get(id, 4); ok {
		t.Fatalf("entity must not be visible before its commit version")
	}
}

func TestLookupIDResolvesThroughMaterializedView(t *testing.T) {
	cat := New()
	o := NewOverlay(cat, 0)
	id := o.Create(KindTable, 0, "orders", nil)
	o.Commit(1)

	got, ok := cat.LookupID(0, KindTable, "orders", 1)
	if !ok || got != id {
		t.Fatalf("got id=%d ok=%v, want id=%d", got, ok, id)
	}
}

func TestOverlayCreateThenDropInSameTransactionIsInvisible(t *testing.T) {
	cat := New()
	o := NewOverlay(cat, 0)
	id := o.Create(KindTable, 0, "temp", nil)
	def := &Definition{ID: id, Kind: KindTable, NamespaceID: 0, Name: "temp"}
	o.Drop(id, def)

	if len(o.Entries()) != 0 {
		t.Fatalf("create+drop within one transaction must coalesce to nothing, got %+v", o.Entries())
	}
}

func TestOverlayUpdateThenUpdateKeepsOriginalPre(t *testing.T) {
	cat := New()
	o := NewOverlay(cat, 0)
	id := o.Create(KindTable, 0, "orders", nil)
	o.Commit(1)

	pre, _ := cat.Get(id, 1)
	o2 := NewOverlay(cat, 1)
	post1 := &Definition{ID: id, Kind: KindTable, NamespaceID: 0, Name: "orders_v2"}
	o2.Update(id, pre, post1)
	post2 := &Definition{ID: id, Kind: KindTable, NamespaceID: 0, Name: "orders_v3"}
	o2.Update(id, post1, post2)

	entry := o2.Entries()[id]
	if entry.post.Name != "orders_v3" {
		t.Fatalf("expected the latest post-image to win, got %q", entry.post.Name)
	}
	if entry.pre != pre {
		t.Fatalf("expected the original pre-image to be retained across repeated updates")
	}
}

func TestOverlayLookupReportsDeletedInOverlay(t *testing.T) {
	cat := New()
	o := NewOverlay(cat, 0)
	id := o.Create(KindTable, 0, "orders", nil)
	o.Commit(1)

	o2 := NewOverlay(cat, 1)
	def, _ := cat.Get(id, 1)
	o2.Drop(id, def)

	_, _, err := o2.Lookup(0, KindTable, "orders")
	if err != ErrDeletedInOverlay {
		t.Fatalf("expected ErrDeletedInOverlay, got %v", err)
	}
}

func TestOverlayLookupSeesOwnUncommittedCreate(t *testing.T) {
	cat := New()
	o := NewOverlay(cat, 0)
	o.Create(KindTable, 0, "orders", nil)

	id, def, err := o.Lookup(0, KindTable, "orders")
	if err != nil || id == 0 || def == nil {
		t.Fatalf("expected the in-flight create to be visible within its own overlay: id=%d def=%v err=%v", id, def, err)
	}
}

func TestDropAfterDropInOtherTransactionIsNotVisible(t *testing.T) {
	cat := New()
	o := NewOverlay(cat, 0)
	id := o.Create(KindTable, 0, "orders", nil)
	o.Commit(1)

	o2 := NewOverlay(cat, 1)
	def, _ := cat.Get(id, 1)
	o2.Drop(id, def)
	o2.Commit(2)

	if _, ok := cat.Get(id, 2); ok {
		t.Fatalf("entity must be invisible at or after its drop version")
	}
	if def, ok := cat.Get(id, 1); !ok || def == nil {
		t.Fatalf("entity must still be visible at a snapshot before the drop")
	}
}

func TestTableDefCodecRoundTrips(t *testing.T) {
	def := TableDef{
		Columns:    []ColumnDef{{Name: "id", Type: "int64"}, {Name: "name", Type: "text", Nullable: true}},
		PrimaryKey: []string{"id"},
	}
	raw, err := EncodeTableDef(def)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeTableDef(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Columns) != 2 || got.Columns[1].Nullable != true || got.PrimaryKey[0] != "id" {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestViewDefCodecRoundTrips(t *testing.T) {
	def := ViewDef{Columns: []ColumnDef{{Name: "total", Type: "int64"}}, Kind: ViewDeferred, FlowID: 7}
	raw, err := EncodeViewDef(def)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeViewDef(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Kind != ViewDeferred || got.FlowID != 7 {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}
