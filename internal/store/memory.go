// Package store keeps ingested snapshots in process memory so two of them
// can be compared. Nothing here persists between runs; a restart starts with
// an empty store, the same way an interactive session starts clean.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fedemoisello/Visibility-Netsuite/internal/core"
)

// ErrNotFound is returned for unknown snapshot ids.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one ingested canonical table with its upload metadata.
type Snapshot struct {
	ID         string
	Name       string
	UploadedAt time.Time
	Records    int
	Clients    int
	Table      *core.Table
}

// Store is a mutex-guarded in-memory snapshot registry.
type Store struct {
	mu    sync.RWMutex
	items map[string]Snapshot
	now   func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		items: make(map[string]Snapshot),
		now:   time.Now,
	}
}

// Save registers a table under a fresh id and returns the stored snapshot.
func (s *Store) Save(_ context.Context, name string, t *core.Table) (Snapshot, error) {
	if t == nil {
		return Snapshot{}, errors.New("nil table")
	}
	snap := Snapshot{
		ID:         uuid.NewString(),
		Name:       name,
		UploadedAt: s.now(),
		Records:    t.Len(),
		Clients:    len(t.Clients()),
		Table:      t,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[snap.ID] = snap
	return snap, nil
}

// Get returns the snapshot for the given id.
func (s *Store) Get(_ context.Context, id string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.items[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// List returns every snapshot, newest first.
func (s *Store) List(_ context.Context) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.items))
	for _, snap := range s.items {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes a snapshot; deleting an unknown id is a no-op.
func (s *Store) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}
