package catalog

// Source enumerates discoverable migration units. Enumeration order must
// correspond to lexical filename order.
type Source interface {
	Definitions() ([]Definition, error)
}

// SliceSource is a fixed list of units, mostly for tests.
type SliceSource []Definition

func (s SliceSource) Definitions() ([]Definition, error) {
	defs := make([]Definition, len(s))
	copy(defs, s)
	return defs, nil
}

var _ Source = (SliceSource)(nil)
