package executor

// AggFunc is one of the supported per-group accumulators.
type AggFunc byte

const (
	AggCount AggFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

// AggregateSpec names one output column and the function/input column
// producing it.
type AggregateSpec struct {
	Output AggFunc
	Name   string // output column name
	Input  string // input column name; ignored for AggCount
}

// Aggregate groups its fully-drained input by GroupBy columns and computes
// AggregateSpec outputs per group. Grounded on tinySQL's
// processAggregateQuery (internal/engine/exec.go), generalized from
// tinySQL's fixed sum/avg/min/max/count builtin set evaluated over []Row to
// the same functions evaluated over columnar Batches.
type Aggregate struct {
	Child   Node
	GroupBy []string
	Specs   []AggregateSpec

	emitted bool
}

func (a *Aggregate) Initialize(env *Env) error { return a.Child.Initialize(env) }

type aggAccum struct {
	count int
	sum   float64
	min   Value
	max   Value
	seen  bool
}

func (a *Aggregate) Next(env *Env) (Batch, bool, error) {
	if a.emitted {
		return Batch{}, false, nil
	}
	a.emitted = true

	groups := make(map[string][]Value) // group key -> group-by column values
	accums := make(map[string][]*aggAccum)

	for {
		batch, more, err := a.Child.Next(env)
		if err != nil {
			return Batch{}, false, err
		}
		for i := 0; i < batch.RowCount; i++ {
			row := batch.Row(i)
			key, keyVals := groupKey(row, a.GroupBy)
			if _, ok := groups[key]; !ok {
				groups[key] = keyVals
				accums[key] = make([]*aggAccum, len(a.Specs))
				for si := range a.Specs {
					accums[key][si] = &aggAccum{}
				}
			}
			for si, spec := range a.Specs {
				acc := accums[key][si]
				acc.count++
				if spec.Output == AggCount {
					continue
				}
				v := row[spec.Input]
				f, ok := asFloat(v)
				if !ok {
					continue
				}
				acc.sum += f
				if !acc.seen || compareLess(v, acc.min) {
					acc.min = v
				}
				if !acc.seen || compareLess(acc.max, v) {
					acc.max = v
				}
				acc.seen = true
			}
		}
		if !more {
			break
		}
	}

	// One ordered key slice drives every output column so a group-by
	// value and its aggregate results always land in the same row.
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}

	out := Batch{}
	cols := make([]Column, 0, len(a.GroupBy)+len(a.Specs))
	for gi, name := range a.GroupBy {
		data := make([]Value, 0, len(keys))
		for _, key := range keys {
			data = append(data, groups[key][gi])
		}
		cols = append(cols, Column{Name: name, Data: data})
	}
	for si, spec := range a.Specs {
		data := make([]Value, 0, len(keys))
		for _, key := range keys {
			data = append(data, aggResult(spec.Output, accums[key][si]))
		}
		cols = append(cols, Column{Name: spec.Name, Type: inferType(data), Data: data})
	}
	out.Columns = cols
	if len(cols) > 0 {
		out.RowCount = len(cols[0].Data)
	}
	return out, false, nil
}

func aggResult(fn AggFunc, acc *aggAccum) Value {
	switch fn {
	case AggCount:
		return int64(acc.count)
	case AggSum:
		return acc.sum
	case AggAvg:
		if acc.count == 0 {
			return nil
		}
		return acc.sum / float64(acc.count)
	case AggMin:
		return acc.min
	case AggMax:
		return acc.max
	default:
		return nil
	}
}

func compareLess(a, b Value) bool {
	c, err := compareValues(a, b)
	return err == nil && c < 0
}

func groupKey(row map[string]Value, groupBy []string) (string, []Value) {
	vals := make([]Value, len(groupBy))
	key := make([]byte, 0, 32)
	for i, name := range groupBy {
		vals[i] = row[name]
		key = append(key, []byte(stringify(vals[i]))...)
		key = append(key, '\x1f')
	}
	return string(key), vals
}
