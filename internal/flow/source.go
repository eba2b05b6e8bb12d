package flow

// Source is the identity operator a FlowGraph registers for each primitive
// it reads: it has no upstream logic of its own, it is simply the entry
// point Propagate starts from once the router resolves which flows a
// committed primitive id feeds.
type Source struct {
	id NodeId
}

// NewSource creates a Source operator. Its NodeId is assigned by
// Graph.AddSource once registered.
func NewSource() *Source { return &Source{} }

func (s *Source) ID() NodeId { return s.id }

func (s *Source) bind(id NodeId) { s.id = id }

func (s *Source) Apply(_ ApplyContext, _ int, change Change) (Change, error) { return change, nil }

func (s *Source) Pull(ApplyContext, []uint64) (Change, error) { return Change{}, nil }
