package flow

import (
	"fmt"
	"reflect"
)

// KeyFunc extracts a join key from a Row.
type KeyFunc func(Row) Value

// InnerJoin maintains per-key multisets of rows seen from each side and
// emits the cross product as rows arrive or depart. A key change on an
// Update is treated as a Remove under the old key followed by an Insert
// under the new key, so the cascade logic lives in one place (removeRow/
// insertRow) regardless of which diff kind triggered it (spec §4.G: "a
// key-changing update cascades as Remove+Insert").
type InnerJoin struct {
	id      NodeId
	leftKey KeyFunc
	rightKey KeyFunc

	buckets map[string]*joinBucket
}

type joinBucket struct {
	left  []Row
	right []Row
}

// NewInnerJoin creates an InnerJoin keyed by leftKey on upstream slot 0 and
// rightKey on upstream slot 1.
func NewInnerJoin(leftKey, rightKey KeyFunc) *InnerJoin {
	return &InnerJoin{leftKey: leftKey, rightKey: rightKey, buckets: make(map[string]*joinBucket)}
}

func (j *InnerJoin) ID() NodeId     { return j.id }
func (j *InnerJoin) bind(id NodeId) { j.id = id }

func (j *InnerJoin) bucket(key Value) *joinBucket {
	k := keySignature(key)
	b, ok := j.buckets[k]
	if !ok {
		b = &joinBucket{}
		j.buckets[k] = b
	}
	return b
}

func keySignature(v Value) string { return fmt.Sprintf("%v", v) }

func (j *InnerJoin) Apply(_ ApplyContext, fromSlot int, change Change) (Change, error) {
	out := Change{}
	for _, d := range change.Diffs {
		var err error
		var produced []Diff
		switch d.Kind {
		case DiffInsert:
			produced, err = j.insertRow(fromSlot, d.Post)
		case DiffRemove:
			produced, err = j.removeRow(fromSlot, d.Pre)
		case DiffUpdate:
			keyFn := j.keyFuncFor(fromSlot)
			if reflect.DeepEqual(keyFn(d.Pre), keyFn(d.Post)) {
				produced, err = j.updateRowSameKey(fromSlot, d.Pre, d.Post)
			} else {
				var removed, inserted []Diff
				removed, err = j.removeRow(fromSlot, d.Pre)
				if err == nil {
					inserted, err = j.insertRow(fromSlot, d.Post)
				}
				produced = append(removed, inserted...)
			}
		}
		if err != nil {
			return Change{}, err
		}
		out.Diffs = append(out.Diffs, produced...)
	}
	return out, nil
}

func (j *InnerJoin) keyFuncFor(slot int) KeyFunc {
	if slot == 0 {
		return j.leftKey
	}
	return j.rightKey
}

func (j *InnerJoin) insertRow(fromSlot int, row Row) ([]Diff, error) {
	var diffs []Diff
	if fromSlot == 0 {
		key := j.leftKey(row)
		b := j.bucket(key)
		b.left = append(b.left, row)
		for _, r := range b.right {
			diffs = append(diffs, Diff{Kind: DiffInsert, Post: merge(row, r)})
		}
	} else {
		key := j.rightKey(row)
		b := j.bucket(key)
		b.right = append(b.right, row)
		for _, l := range b.left {
			diffs = append(diffs, Diff{Kind: DiffInsert, Post: merge(l, row)})
		}
	}
	return diffs, nil
}

func (j *InnerJoin) removeRow(fromSlot int, row Row) ([]Diff, error) {
	var diffs []Diff
	if fromSlot == 0 {
		key := j.leftKey(row)
		b := j.bucket(key)
		b.left = removeMatching(b.left, row)
		for _, r := range b.right {
			diffs = append(diffs, Diff{Kind: DiffRemove, Pre: merge(row, r)})
		}
	} else {
		key := j.rightKey(row)
		b := j.bucket(key)
		b.right = removeMatching(b.right, row)
		for _, l := range b.left {
			diffs = append(diffs, Diff{Kind: DiffRemove, Pre: merge(l, row)})
		}
	}
	return diffs, nil
}

func (j *InnerJoin) updateRowSameKey(fromSlot int, pre, post Row) ([]Diff, error) {
	var diffs []Diff
	if fromSlot == 0 {
		key := j.leftKey(pre)
		b := j.bucket(key)
		b.left = replaceMatching(b.left, pre, post)
		for _, r := range b.right {
			diffs = append(diffs, Diff{Kind: DiffUpdate, Pre: merge(pre, r), Post: merge(post, r)})
		}
	} else {
		key := j.rightKey(pre)
		b := j.bucket(key)
		b.right = replaceMatching(b.right, pre, post)
		for _, l := range b.left {
			diffs = append(diffs, Diff{Kind: DiffUpdate, Pre: merge(l, pre), Post: merge(l, post)})
		}
	}
	return diffs, nil
}

func (j *InnerJoin) Pull(ApplyContext, []uint64) (Change, error) { return Change{}, nil }

func merge(left, right Row) Row {
	out := make(Row, len(left)+len(right))
	for k, v := range left {
		out[k] = v
	}
	for k, v := range right {
		out[k] = v
	}
	return out
}

func removeMatching(rows []Row, target Row) []Row {
	for i, r := range rows {
		if reflect.DeepEqual(r, target) {
			return append(rows[:i], rows[i+1:]...)
		}
	}
	return rows
}

func replaceMatching(rows []Row, pre, post Row) []Row {
	for i, r := range rows {
		if reflect.DeepEqual(r, pre) {
			rows[i] = post
			return rows
		}
	}
	return append(rows, post)
}
