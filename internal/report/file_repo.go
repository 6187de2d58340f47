package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileRepo persists one JSON file per run under a data directory.
type FileRepo struct {
	mu  sync.RWMutex
	dir string
}

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &FileRepo{dir: dataDir}, nil
}

func (r *FileRepo) pathFor(runID string) (string, error) {
	if !runIDPattern.MatchString(runID) {
		return "", fmt.Errorf("invalid run id: %q", runID)
	}
	return filepath.Join(r.dir, runID+".json"), nil
}

func (r *FileRepo) Save(rep *Report) error {
	path, err := r.pathFor(rep.RunID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func (r *FileRepo) Get(runID string) (*Report, bool, error) {
	path, err := r.pathFor(runID)
	if err != nil {
		return nil, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var rep Report
	if err := json.Unmarshal(b, &rep); err != nil {
		return nil, false, err
	}
	return &rep, true, nil
}

// List returns all stored reports, newest first.
func (r *FileRepo) List() ([]*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}

	reports := make([]*Report, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var rep Report
		if err := json.Unmarshal(b, &rep); err != nil {
			// Skip corrupt files rather than failing the listing.
			continue
		}
		reports = append(reports, &rep)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
	return reports, nil
}
