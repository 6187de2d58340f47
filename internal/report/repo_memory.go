package report

import (
	"sort"
	"sync"
)

// MemoryRepo stores reports in memory (dev/test use).
type MemoryRepo struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{reports: map[string]*Report{}}
}

func (r *MemoryRepo) Save(rep *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rep
	cp.Items = append([]Item(nil), rep.Items...)
	r.reports[rep.RunID] = &cp
	return nil
}

func (r *MemoryRepo) Get(runID string) (*Report, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.reports[runID]
	if !ok {
		return nil, false, nil
	}
	cp := *rep
	cp.Items = append([]Item(nil), rep.Items...)
	return &cp, true, nil
}

func (r *MemoryRepo) List() ([]*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Report, 0, len(r.reports))
	for _, rep := range r.reports {
		cp := *rep
		cp.Items = append([]Item(nil), rep.Items...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}
