package catalog

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// Registry collects migration units registered from init() functions of the
// migrations package. It keeps registration order; ordering and structural
// validation are Load's job.
type Registry struct {
	lock sync.RWMutex
	defs []Definition
}

var defaultRegistry = &Registry{
	defs: make([]Definition, 0),
}

// DefaultRegistry is the process-wide registry that migration unit files
// register into.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func MustRegister(def Definition) {
	fillProvenance(&def, 2) // skip fillProvenance and MustRegister

	err := Register(def)
	if err != nil {
		panic(err)
	}
}

// Register add one migration unit into the default registry.
// When Filename or SourcePath is empty, they are taken from the caller's
// source file, so a unit registering itself from init() gets its own
// provenance for free.
func Register(def Definition) (err error) {
	def.Version = strings.TrimSpace(def.Version)
	if def.Version == "" {
		err = fmt.Errorf("cannot register migration with empty version")
		return
	}

	if !utf8.ValidString(def.Description) {
		err = fmt.Errorf("migration %s description must only use utf8 characters", def.Version)
		return
	}

	fillProvenance(&def, 2) // skip fillProvenance and Register

	return defaultRegistry.Add(def)
}

// fillProvenance records the registering source file as the unit's
// provenance when the caller did not set one explicitly.
func fillProvenance(def *Definition, skip int) {
	if def.Filename != "" && def.SourcePath != "" {
		return
	}

	_, callerPath, _, ok := runtime.Caller(skip)
	if !ok {
		return
	}

	if def.SourcePath == "" {
		def.SourcePath = callerPath
	}

	if def.Filename == "" {
		def.Filename = filepath.Base(callerPath)
	}
}

// Add appends one unit. Duplicate versions are kept here and rejected by
// Load, so the whole catalog fails as one unit instead of a single init
// panicking halfway.
func (r *Registry) Add(def Definition) error {
	if def.Forward == nil && def.Backward == nil {
		return fmt.Errorf("cannot register migration %s without operations", def.Version)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.defs = append(r.defs, def)
	return nil
}

// Definitions returns registered units ordered by filename, which is the
// discovery order contract of a migration source.
func (r *Registry) Definitions() ([]Definition, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	defs := make([]Definition, len(r.defs))
	copy(defs, r.defs)

	sort.SliceStable(defs, func(i, j int) bool {
		return defs[i].Filename < defs[j].Filename
	})

	return defs, nil
}

var _ Source = (*Registry)(nil)
