package flow

// Predicate evaluates a Row and reports whether it passes a Filter
// operator.
type Predicate func(Row) (bool, error)

// Filter re-derives Insert/Update/Remove from an upstream Update by
// checking the predicate against both the pre- and post-images (spec
// §4.G): both pass -> Update; pre fails, post passes -> Insert; pre
// passes, post fails -> Remove; neither passes -> dropped.
type Filter struct {
	id        NodeId
	predicate Predicate
}

// NewFilter creates a Filter operator over predicate.
func NewFilter(predicate Predicate) *Filter { return &Filter{predicate: predicate} }

func (f *Filter) ID() NodeId   { return f.id }
func (f *Filter) bind(id NodeId) { f.id = id }

func (f *Filter) Apply(_ ApplyContext, _ int, change Change) (Change, error) {
	out := Change{Diffs: make([]Diff, 0, len(change.Diffs))}
	for _, d := range change.Diffs {
		switch d.Kind {
		case DiffInsert:
			ok, err := f.predicate(d.Post)
			if err != nil {
				return Change{}, err
			}
			if ok {
				out.Diffs = append(out.Diffs, d)
			}
		case DiffRemove:
			ok, err := f.predicate(d.Pre)
			if err != nil {
				return Change{}, err
			}
			if ok {
				out.Diffs = append(out.Diffs, d)
			}
		case DiffUpdate:
			preOK, err := f.predicate(d.Pre)
			if err != nil {
				return Change{}, err
			}
			postOK, err := f.predicate(d.Post)
			if err != nil {
				return Change{}, err
			}
			switch {
			case preOK && postOK:
				out.Diffs = append(out.Diffs, d)
			case !preOK && postOK:
				out.Diffs = append(out.Diffs, Diff{Kind: DiffInsert, Post: d.Post})
			case preOK && !postOK:
				out.Diffs = append(out.Diffs, Diff{Kind: DiffRemove, Pre: d.Pre})
			}
		}
	}
	return out, nil
}

func (f *Filter) Pull(ApplyContext, []uint64) (Change, error) { return Change{}, nil }
