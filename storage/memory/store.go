// Package memory provides an in-memory object-graph store used by in-memory
// coordinators and as a test double for the SQLite store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/louisbranch/graphstack/schema"
	"github.com/louisbranch/graphstack/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps the object graph in process memory.
type Store struct {
	mu       sync.RWMutex
	closed   bool
	entities map[string]map[string]storage.Object
}

// Open creates an empty in-memory store for the schema's entities.
func Open(s *schema.Schema) (*Store, error) {
	if s == nil {
		return nil, fmt.Errorf("schema is required")
	}
	entities := make(map[string]map[string]storage.Object, len(s.Entities))
	for _, e := range s.Entities {
		entities[e.Name] = make(map[string]storage.Object)
	}
	return &Store{entities: entities}, nil
}

// Apply lands the change set atomically.
func (s *Store) Apply(ctx context.Context, cs storage.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStoreClosed
	}
	for _, obj := range cs.Puts {
		if _, ok := s.entities[obj.Entity]; !ok {
			return fmt.Errorf("put %s/%s: %w", obj.Entity, obj.ID, storage.ErrUnknownEntity)
		}
	}
	for _, ref := range cs.Deletes {
		if _, ok := s.entities[ref.Entity]; !ok {
			return fmt.Errorf("delete %s/%s: %w", ref.Entity, ref.ID, storage.ErrUnknownEntity)
		}
	}
	for _, obj := range cs.Puts {
		s.entities[obj.Entity][obj.ID] = obj.Clone()
	}
	for _, ref := range cs.Deletes {
		delete(s.entities[ref.Entity], ref.ID)
	}
	return nil
}

// Get returns one object or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, entity, id string) (storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return storage.Object{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.Object{}, storage.ErrStoreClosed
	}
	objects, ok := s.entities[entity]
	if !ok {
		return storage.Object{}, fmt.Errorf("get %s/%s: %w", entity, id, storage.ErrUnknownEntity)
	}
	obj, ok := objects[id]
	if !ok {
		return storage.Object{}, storage.ErrNotFound
	}
	return obj.Clone(), nil
}

// List returns every object of one entity.
func (s *Store) List(ctx context.Context, entity string) ([]storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStoreClosed
	}
	objects, ok := s.entities[entity]
	if !ok {
		return nil, fmt.Errorf("list %s: %w", entity, storage.ErrUnknownEntity)
	}
	out := make([]storage.Object, 0, len(objects))
	for _, obj := range objects {
		out = append(out, obj.Clone())
	}
	return out, nil
}

// Count returns the number of objects of one entity.
func (s *Store) Count(ctx context.Context, entity string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrStoreClosed
	}
	objects, ok := s.entities[entity]
	if !ok {
		return 0, fmt.Errorf("count %s: %w", entity, storage.ErrUnknownEntity)
	}
	return len(objects), nil
}

// Close discards the store contents.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entities = nil
	return nil
}
