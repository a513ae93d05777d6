package sessions

import (
	"fmt"
	"sort"
	"sync"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu         sync.RWMutex
	selections map[string]Selection // scope -> selection
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		selections: make(map[string]Selection),
	}
}

func (r *InMemoryRepo) Upsert(selection Selection) error {
	if selection.Scope == "" {
		return fmt.Errorf("scope is required")
	}
	if selection.ConnectionID == "" {
		return fmt.Errorf("connectionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.selections[selection.Scope] = selection
	return nil
}

func (r *InMemoryRepo) Get(scope string) (Selection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	selection, ok := r.selections[scope]
	if !ok {
		return Selection{}, ErrSelectionNotFound
	}
	return selection, nil
}

// Delete removes a selection. Deleting a missing scope is not an error.
func (r *InMemoryRepo) Delete(scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.selections, scope)
	return nil
}

func (r *InMemoryRepo) List() ([]Selection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedSelections(r.selections), nil
}

func sortedSelections(selections map[string]Selection) []Selection {
	out := make([]Selection, 0, len(selections))
	for _, s := range selections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Scope < out[j].Scope
	})
	return out
}
