package executor

import (
	"fmt"
	"sort"
)

// Filter keeps only rows for which Predicate evaluates truthy. Grounded on
// tinySQL's applyWhereClause (internal/engine/exec.go), reworked to run
// batch-at-a-time against a Node child instead of a materialized []Row.
type Filter struct {
	Child     Node
	Predicate Expr
}

func (f *Filter) Initialize(env *Env) error { return f.Child.Initialize(env) }

func (f *Filter) Next(env *Env) (Batch, bool, error) {
	batch, more, err := f.Child.Next(env)
	if err != nil {
		return Batch{}, false, err
	}
	if batch.RowCount == 0 {
		return batch, more, nil
	}
	keep := make([]int, 0, batch.RowCount)
	for i := 0; i < batch.RowCount; i++ {
		row := batch.Row(i)
		v, err := f.Predicate.eval(row)
		if err != nil {
			return Batch{}, false, err
		}
		if truthy(v) {
			keep = append(keep, i)
		}
	}
	return batch.Take(keep), more, nil
}

// Projection is one output column of a Map/Extend node.
type Projection struct {
	Name string
	Expr Expr
}

// Map replaces the input row shape entirely with the evaluated projections.
type Map struct {
	Child       Node
	Projections []Projection
}

func (m *Map) Initialize(env *Env) error { return m.Child.Initialize(env) }

func (m *Map) Next(env *Env) (Batch, bool, error) {
	batch, more, err := m.Child.Next(env)
	if err != nil {
		return Batch{}, false, err
	}
	out, err := project(batch, m.Projections)
	if err != nil {
		return Batch{}, false, err
	}
	return out, more, nil
}

// Extend appends the evaluated projections onto the input row shape,
// keeping existing columns (spec §4.F EXTEND semantics: add, don't
// replace).
type Extend struct {
	Child       Node
	Projections []Projection
}

func (e *Extend) Initialize(env *Env) error { return e.Child.Initialize(env) }

func (e *Extend) Next(env *Env) (Batch, bool, error) {
	batch, more, err := e.Child.Next(env)
	if err != nil {
		return Batch{}, false, err
	}
	added, err := project(batch, e.Projections)
	if err != nil {
		return Batch{}, false, err
	}
	out := Batch{RowCount: batch.RowCount, Columns: append(append([]Column{}, batch.Columns...), added.Columns...)}
	return out, more, nil
}

func project(batch Batch, projections []Projection) (Batch, error) {
	out := Batch{RowCount: batch.RowCount}
	for _, p := range projections {
		data := make([]Value, batch.RowCount)
		for i := 0; i < batch.RowCount; i++ {
			v, err := p.Expr.eval(batch.Row(i))
			if err != nil {
				return Batch{}, err
			}
			data[i] = v
		}
		out.Columns = append(out.Columns, Column{Name: p.Name, Type: inferType(data), Data: data})
	}
	return out, nil
}

func inferType(data []Value) ColumnType {
	for _, v := range data {
		switch v.(type) {
		case bool:
			return TypeBool
		case int64:
			return TypeInt64
		case float64:
			return TypeFloat64
		case []byte:
			return TypeBlob
		case string:
			return TypeText
		}
	}
	return TypeText
}

// Take returns at most N rows and stops pulling once satisfied (spec §4.F
// "short-circuits upstream once satisfied").
type Take struct {
	Child Node
	N     int

	remaining int
	done      bool
}

func (t *Take) Initialize(env *Env) error {
	t.remaining = t.N
	t.done = t.N <= 0
	return t.Child.Initialize(env)
}

func (t *Take) Next(env *Env) (Batch, bool, error) {
	if t.done || t.remaining <= 0 {
		return Batch{}, false, nil
	}
	batch, more, err := t.Child.Next(env)
	if err != nil {
		return Batch{}, false, err
	}
	if batch.RowCount > t.remaining {
		keep := make([]int, t.remaining)
		for i := range keep {
			keep[i] = i
		}
		batch = batch.Take(keep)
		more = false
	}
	t.remaining -= batch.RowCount
	if t.remaining <= 0 {
		more = false
	}
	if !more {
		t.done = true
	}
	return batch, more, nil
}

// Distinct drains its child fully and emits each unique row once, keyed by
// a string signature over every column (grounded on tinySQL's rowSignature
// helper used for UNION/EXCEPT/INTERSECT, internal/engine/exec.go).
type Distinct struct {
	Child Node

	emitted bool
}

func (d *Distinct) Initialize(env *Env) error { return d.Child.Initialize(env) }

func (d *Distinct) Next(env *Env) (Batch, bool, error) {
	if d.emitted {
		return Batch{}, false, nil
	}
	d.emitted = true

	var all Batch
	for {
		batch, more, err := d.Child.Next(env)
		if err != nil {
			return Batch{}, false, err
		}
		all = all.Concat(batch)
		if !more {
			break
		}
	}
	seen := make(map[string]struct{}, all.RowCount)
	keep := make([]int, 0, all.RowCount)
	for i := 0; i < all.RowCount; i++ {
		sig := rowSignature(all.Row(i), all.Columns)
		if _, ok := seen[sig]; ok {
			continue
		}
		seen[sig] = struct{}{}
		keep = append(keep, i)
	}
	return all.Take(keep), false, nil
}

func rowSignature(row map[string]Value, cols []Column) string {
	sig := make([]byte, 0, 64)
	for _, c := range cols {
		sig = append(sig, []byte(c.Name)...)
		sig = append(sig, '=')
		sig = append(sig, []byte(stringify(row[c.Name]))...)
		sig = append(sig, '\x1f')
	}
	return string(sig)
}

func stringify(v Value) string {
	if v == nil {
		return "<nil>"
	}
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// SortKey orders by Name ascending, or descending if Desc.
type SortKey struct {
	Name string
	Desc bool
}

// Sort drains its child fully and emits rows ordered by Keys. Grounded on
// tinySQL's compareForOrder (internal/engine/exec.go).
type Sort struct {
	Child Node
	Keys  []SortKey

	emitted bool
}

func (s *Sort) Initialize(env *Env) error { return s.Child.Initialize(env) }

func (s *Sort) Next(env *Env) (Batch, bool, error) {
	if s.emitted {
		return Batch{}, false, nil
	}
	s.emitted = true

	var all Batch
	for {
		batch, more, err := s.Child.Next(env)
		if err != nil {
			return Batch{}, false, err
		}
		all = all.Concat(batch)
		if !more {
			break
		}
	}
	order := make([]int, all.RowCount)
	for i := range order {
		order[i] = i
	}
	var sortErr error
	sort.SliceStable(order, func(i, j int) bool {
		ri, rj := all.Row(order[i]), all.Row(order[j])
		for _, k := range s.Keys {
			c, err := compareValues(ri[k.Name], rj[k.Name])
			if err != nil {
				sortErr = err
				return false
			}
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	if sortErr != nil {
		return Batch{}, false, sortErr
	}
	return all.Take(order), false, nil
}
