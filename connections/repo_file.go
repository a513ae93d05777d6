package connections

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

var _ Repo = (*FileRepo)(nil)

type fileDocument struct {
	Connections []*Record `yaml:"connections"`
}

// FileRepo persists records to a YAML file. Every write rewrites the file
// through a temp file and rename.
type FileRepo struct {
	mu      sync.RWMutex
	path    string
	records map[string]*Record
}

// NewFileRepo loads the repository at path, creating an empty one if the file does not exist.
func NewFileRepo(path string) (*FileRepo, error) {
	r := &FileRepo{
		path:    path,
		records: make(map[string]*Record),
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[NewFileRepo] read %s: %w", path, err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("[NewFileRepo] parse %s: %w", path, err)
	}
	for _, rec := range doc.Connections {
		if rec == nil || rec.ID == "" {
			continue
		}
		r.records[rec.ID] = rec
	}
	return r, nil
}

func (r *FileRepo) Upsert(record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, existed := r.records[record.ID]
	r.records[record.ID] = record.Clone()
	if err := r.flush(); err != nil {
		if existed {
			r.records[record.ID] = prev
		} else {
			delete(r.records, record.ID)
		}
		return err
	}
	return nil
}

func (r *FileRepo) Get(id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	return rec.Clone(), nil
}

func (r *FileRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.records[id]
	if !ok {
		return nil
	}
	delete(r.records, id)
	if err := r.flush(); err != nil {
		r.records[id] = prev
		return err
	}
	return nil
}

func (r *FileRepo) List() ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(), nil
}

func (r *FileRepo) sorted() []*Record {
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// flush must be called with mu held.
func (r *FileRepo) flush() error {
	data, err := yaml.Marshal(fileDocument{Connections: r.sorted()})
	if err != nil {
		return fmt.Errorf("FileRepo.flush marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("FileRepo.flush mkdir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("FileRepo.flush write: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("FileRepo.flush rename: %w", err)
	}
	return nil
}
