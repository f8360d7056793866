package staterepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// RepoInmem keeps applied records in memory. Useful for tests and for
// rehearsing a batch against a throwaway state.
type RepoInmem struct {
	lock    sync.RWMutex
	records map[string]AppliedRecord
}

var _ Repo = (*RepoInmem)(nil)

func Inmem() *RepoInmem {
	return &RepoInmem{
		records: make(map[string]AppliedRecord),
	}
}

func (p *RepoInmem) EnsureInitialized(_ context.Context) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.records == nil {
		p.records = make(map[string]AppliedRecord)
	}

	return nil
}

func (p *RepoInmem) ListApplied(_ context.Context) ([]AppliedRecord, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	records := make([]AppliedRecord, 0, len(p.records))
	for _, rec := range p.records {
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Version < records[j].Version
	})

	return records, nil
}

func (p *RepoInmem) Record(_ context.Context, rec AppliedRecord) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, exist := p.records[rec.Version]; exist {
		return fmt.Errorf("%w: %s", ErrDuplicateVersion, rec.Version)
	}

	p.records[rec.Version] = rec
	return nil
}

func (p *RepoInmem) Remove(_ context.Context, version string) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	delete(p.records, version)
	return nil
}
