// Package storage defines persistence contracts for object-graph stores.
//
// A Store holds the durable (or in-memory) copy of the object graph. Stores
// are deliberately narrow: they apply change sets and serve point and list
// reads. Query execution, faulting, and caching belong to the engine above
// this layer.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates a requested object is missing.
	ErrNotFound = errors.New("object not found")
	// ErrStoreClosed indicates an operation against a closed store.
	ErrStoreClosed = errors.New("store is closed")
	// ErrUnknownEntity indicates an object references an entity the schema
	// does not declare.
	ErrUnknownEntity = errors.New("unknown entity")
)

// Ref identifies one object in the graph.
type Ref struct {
	Entity string
	ID     string
}

// Object is one object-graph record: an entity instance with its attributes.
type Object struct {
	Entity string
	ID     string
	Attrs  map[string]any
}

// Ref returns the object's identity.
func (o Object) Ref() Ref {
	return Ref{Entity: o.Entity, ID: o.ID}
}

// Clone returns a deep-enough copy: the attribute map is copied, values are
// shared. Callers that mutate attribute values must replace them instead.
func (o Object) Clone() Object {
	c := Object{Entity: o.Entity, ID: o.ID}
	if o.Attrs != nil {
		c.Attrs = make(map[string]any, len(o.Attrs))
		for k, v := range o.Attrs {
			c.Attrs[k] = v
		}
	}
	return c
}

// ChangeSet is one atomic batch of puts and deletes.
type ChangeSet struct {
	Puts    []Object
	Deletes []Ref
}

// Empty reports whether the change set carries no changes.
func (cs ChangeSet) Empty() bool {
	return len(cs.Puts) == 0 && len(cs.Deletes) == 0
}

// Store persists object-graph records.
//
// Apply is atomic: either every put and delete in the change set lands, or
// none do. Implementations are safe for concurrent use.
type Store interface {
	Apply(ctx context.Context, cs ChangeSet) error
	Get(ctx context.Context, entity, id string) (Object, error)
	List(ctx context.Context, entity string) ([]Object, error)
	Count(ctx context.Context, entity string) (int, error)
	Close() error
}
