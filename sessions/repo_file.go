package sessions

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var _ Repo = (*FileRepo)(nil)

type fileDocument struct {
	Selections []Selection `yaml:"selections"`
}

// FileRepo keeps selections in a YAML file so the active connection survives restarts.
type FileRepo struct {
	mu         sync.RWMutex
	path       string
	selections map[string]Selection
}

func NewFileRepo(path string) (*FileRepo, error) {
	r := &FileRepo{
		path:       path,
		selections: make(map[string]Selection),
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[sessions.NewFileRepo] read %s: %w", path, err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("[sessions.NewFileRepo] parse %s: %w", path, err)
	}
	for _, s := range doc.Selections {
		if s.Scope == "" || s.ConnectionID == "" {
			continue
		}
		r.selections[s.Scope] = s
	}
	return r, nil
}

func (r *FileRepo) Upsert(selection Selection) error {
	if selection.Scope == "" || selection.ConnectionID == "" {
		return fmt.Errorf("scope and connectionID are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, existed := r.selections[selection.Scope]
	r.selections[selection.Scope] = selection
	if err := r.flush(); err != nil {
		if existed {
			r.selections[selection.Scope] = prev
		} else {
			delete(r.selections, selection.Scope)
		}
		return err
	}
	return nil
}

func (r *FileRepo) Get(scope string) (Selection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	selection, ok := r.selections[scope]
	if !ok {
		return Selection{}, ErrSelectionNotFound
	}
	return selection, nil
}

func (r *FileRepo) Delete(scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.selections[scope]
	if !ok {
		return nil
	}
	delete(r.selections, scope)
	if err := r.flush(); err != nil {
		r.selections[scope] = prev
		return err
	}
	return nil
}

func (r *FileRepo) List() ([]Selection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedSelections(r.selections), nil
}

// flush must be called with mu held.
func (r *FileRepo) flush() error {
	data, err := yaml.Marshal(fileDocument{Selections: sortedSelections(r.selections)})
	if err != nil {
		return fmt.Errorf("sessions.FileRepo.flush marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("sessions.FileRepo.flush mkdir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("sessions.FileRepo.flush write: %w", err)
	}
	return os.Rename(tmp, r.path)
}
