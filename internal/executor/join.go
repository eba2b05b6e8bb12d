package executor

// JoinKind selects the join semantics (spec §4.F JoinInner/JoinLeft/
// JoinNatural).
type JoinKind byte

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinNatural
)

// Join drains both children fully and nested-loop matches them on
// Predicate (or, for JoinNatural, on identically-named columns). Grounded
// on tinySQL's processInnerJoin/processLeftJoin (internal/engine/exec.go);
// generalized to the columnar Batch shape and to a shared Kind-switched
// implementation instead of three near-duplicate functions.
type Join struct {
	Left, Right Node
	Kind        JoinKind
	Predicate   Expr // unused for JoinNatural

	emitted bool
}

func (j *Join) Initialize(env *Env) error {
	if err := j.Left.Initialize(env); err != nil {
		return err
	}
	return j.Right.Initialize(env)
}

func drainAll(env *Env, n Node) (Batch, error) {
	var all Batch
	for {
		b, more, err := n.Next(env)
		if err != nil {
			return Batch{}, err
		}
		all = all.Concat(b)
		if !more {
			break
		}
	}
	return all, nil
}

func (j *Join) Next(env *Env) (Batch, bool, error) {
	if j.emitted {
		return Batch{}, false, nil
	}
	j.emitted = true

	left, err := drainAll(env, j.Left)
	if err != nil {
		return Batch{}, false, err
	}
	right, err := drainAll(env, j.Right)
	if err != nil {
		return Batch{}, false, err
	}

	natural := j.Kind == JoinNatural
	var sharedNames []string
	if natural {
		sharedNames = sharedColumns(left, right)
	}

	cols := mergedColumns(left, right, natural, sharedNames)
	out := Batch{}
	for _, c := range cols {
		out.Columns = append(out.Columns, Column{Name: c})
	}

	matchedRight := make([]bool, right.RowCount)
	for li := 0; li < left.RowCount; li++ {
		lrow := left.Row(li)
		matchedAny := false
		for ri := 0; ri < right.RowCount; ri++ {
			rrow := right.Row(ri)
			ok, err := j.matches(lrow, rrow, natural, sharedNames)
			if err != nil {
				return Batch{}, false, err
			}
			if !ok {
				continue
			}
			matchedAny = true
			matchedRight[ri] = true
			appendJoinedRow(&out, lrow, rrow, cols, left, natural, sharedNames)
		}
		if !matchedAny && j.Kind == JoinLeft {
			appendJoinedRow(&out, lrow, nil, cols, left, natural, sharedNames)
		}
	}
	out.RowCount = len(out.Columns[0].Data)
	return out, false, nil
}

func (j *Join) matches(lrow, rrow map[string]Value, natural bool, sharedNames []string) (bool, error) {
	if natural {
		for _, n := range sharedNames {
			c, err := compareValues(lrow[n], rrow[n])
			if err != nil {
				return false, err
			}
			if c != 0 {
				return false, nil
			}
		}
		return true, nil
	}
	merged := make(map[string]Value, len(lrow)+len(rrow))
	for k, v := range lrow {
		merged[k] = v
	}
	for k, v := range rrow {
		merged[k] = v
	}
	v, err := j.Predicate.eval(merged)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func sharedColumns(left, right Batch) []string {
	var shared []string
	for _, lc := range left.Columns {
		for _, rc := range right.Columns {
			if lc.Name == rc.Name {
				shared = append(shared, lc.Name)
				break
			}
		}
	}
	return shared
}

func mergedColumns(left, right Batch, natural bool, shared []string) []string {
	isShared := make(map[string]bool, len(shared))
	for _, n := range shared {
		isShared[n] = true
	}
	var cols []string
	for _, c := range left.Columns {
		cols = append(cols, c.Name)
	}
	for _, c := range right.Columns {
		if natural && isShared[c.Name] {
			continue
		}
		cols = append(cols, c.Name)
	}
	return cols
}

func appendJoinedRow(out *Batch, lrow, rrow map[string]Value, cols []string, left Batch, natural bool, shared []string) {
	for ci, col := range out.Columns {
		name := cols[ci]
		var v Value
		if lv, ok := lrow[name]; ok {
			v = lv
		} else if rrow != nil {
			v = rrow[name]
		}
		col.Data = append(col.Data, v)
		out.Columns[ci] = col
	}
}
