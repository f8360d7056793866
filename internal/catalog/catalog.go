package catalog

import (
	"fmt"
	"sort"
)

// Catalog is the loaded, validated, version-ordered set of migration units.
// Loading is all-or-nothing: one malformed unit fails the whole load.
type Catalog struct {
	defs       []Definition
	byVersion  map[string]Definition
	outOfOrder []string
}

// Load validates every unit from the source and returns the catalog sorted
// ascending by version. Filename order is expected to coincide with version
// order; when it does not, loading still succeeds but the divergent
// versions are kept and reported by the validation reporter.
func Load(src Source) (*Catalog, error) {
	defs, err := src.Definitions()
	if err != nil {
		return nil, fmt.Errorf("error enumerating migration source: %w", err)
	}

	byVersion := make(map[string]Definition, len(defs))
	outOfOrder := make([]string, 0)

	maxSeen := ""
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}

		if _, exist := byVersion[def.Version]; exist {
			return nil, fmt.Errorf("%w: %s (%s)", ErrDuplicateVersion, def.Version, def.Filename)
		}

		byVersion[def.Version] = def

		// defs arrive in filename order; a version lower than one already
		// seen means filename order and version order diverge.
		if def.Version < maxSeen {
			outOfOrder = append(outOfOrder, def.Version)
		} else {
			maxSeen = def.Version
		}
	}

	sorted := make([]Definition, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	return &Catalog{
		defs:       sorted,
		byVersion:  byVersion,
		outOfOrder: outOfOrder,
	}, nil
}

func (c *Catalog) Len() int {
	return len(c.defs)
}

// Definitions returns units ascending by version.
func (c *Catalog) Definitions() []Definition {
	defs := make([]Definition, len(c.defs))
	copy(defs, c.defs)
	return defs
}

func (c *Catalog) ByVersion(version string) (Definition, bool) {
	def, ok := c.byVersion[version]
	return def, ok
}

// Versions returns every known version ascending.
func (c *Catalog) Versions() []string {
	versions := make([]string, 0, len(c.defs))
	for _, def := range c.defs {
		versions = append(versions, def.Version)
	}

	return versions
}

// OutOfOrder returns versions whose filename position disagrees with their
// version position, in discovery order.
func (c *Catalog) OutOfOrder() []string {
	out := make([]string, len(c.outOfOrder))
	copy(out, c.outOfOrder)
	return out
}
