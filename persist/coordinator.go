package persist

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/graphstack/schema"
	"github.com/louisbranch/graphstack/storage"
	"github.com/louisbranch/graphstack/storage/memory"
	"github.com/louisbranch/graphstack/storage/sqlite"
)

const tracerName = "github.com/louisbranch/graphstack/persist"

// StoreKind selects the backing store of a coordinator.
type StoreKind int

const (
	// StoreKindInMemory keeps the object graph in process memory.
	StoreKindInMemory StoreKind = iota
	// StoreKindSQLite persists the object graph in a SQLite database file.
	StoreKindSQLite
)

// String returns the kind's name.
func (k StoreKind) String() string {
	switch k {
	case StoreKindInMemory:
		return "in-memory"
	case StoreKindSQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("store-kind-%d", int(k))
	}
}

// StoreCoordinator owns the backing store and the loaded schema. It is the
// single object through which a session hierarchy's writes reach storage.
// The store may be detached during a reset; operations against a detached
// coordinator fail with CodeStoreDetached.
type StoreCoordinator struct {
	schema *schema.Schema
	kind   StoreKind
	url    string

	mu    sync.Mutex
	store storage.Store
}

// Schema returns the schema the coordinator was built with.
func (c *StoreCoordinator) Schema() *schema.Schema {
	return c.schema
}

// Kind returns the coordinator's store kind.
func (c *StoreCoordinator) Kind() StoreKind {
	return c.kind
}

// URL returns the backing file path, or "" for in-memory coordinators.
func (c *StoreCoordinator) URL() string {
	return c.url
}

func (c *StoreCoordinator) attachedStore() storage.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// apply lands a change set on the attached store.
func (c *StoreCoordinator) apply(ctx context.Context, cs storage.ChangeSet) error {
	store := c.attachedStore()
	if store == nil {
		return New(CodeStoreDetached, "coordinator has no attached store")
	}
	if err := store.Apply(ctx, cs); err != nil {
		return Wrap(CodeCoordinatorFailure, "apply change set", err)
	}
	return nil
}

// fetch reads one object from the attached store. storage.ErrNotFound
// passes through untouched so callers can keep using errors.Is.
func (c *StoreCoordinator) fetch(ctx context.Context, entity, id string) (storage.Object, error) {
	store := c.attachedStore()
	if store == nil {
		return storage.Object{}, New(CodeStoreDetached, "coordinator has no attached store")
	}
	return store.Get(ctx, entity, id)
}

// Count returns the number of stored objects of one entity.
func (c *StoreCoordinator) Count(ctx context.Context, entity string) (int, error) {
	store := c.attachedStore()
	if store == nil {
		return 0, New(CodeStoreDetached, "coordinator has no attached store")
	}
	return store.Count(ctx, entity)
}

// destroyStore detaches the store and destroys its persisted data. After
// destroyStore the coordinator is unusable until replaced.
func (c *StoreCoordinator) destroyStore() error {
	c.mu.Lock()
	store := c.store
	c.store = nil
	c.mu.Unlock()
	if store == nil {
		return New(CodeStoreDetached, "coordinator has no attached store")
	}
	if destroyer, ok := store.(interface{ Destroy() error }); ok {
		return destroyer.Destroy()
	}
	return store.Close()
}

// Close detaches and closes the store without destroying persisted data.
func (c *StoreCoordinator) Close() error {
	c.mu.Lock()
	store := c.store
	c.store = nil
	c.mu.Unlock()
	if store == nil {
		return nil
	}
	return store.Close()
}

// BuildCoordinator constructs a coordinator and delivers it through cb,
// invoked exactly once.
//
// In-memory builds are synchronous: cb runs inline before BuildCoordinator
// returns. SQLite builds perform file I/O, so they run on a background
// goroutine and never block the caller.
func BuildCoordinator(ctx context.Context, s *schema.Schema, kind StoreKind, url string, cb func(*StoreCoordinator, error)) {
	if cb == nil {
		panic("graphstack: coordinator callback is required")
	}
	switch kind {
	case StoreKindInMemory:
		cb(buildInMemory(ctx, s))
	case StoreKindSQLite:
		go func() {
			cb(buildSQLite(ctx, s, url))
		}()
	default:
		cb(nil, New(CodeCoordinatorFailure, fmt.Sprintf("unsupported store kind %d", int(kind))))
	}
}

func buildInMemory(ctx context.Context, s *schema.Schema) (*StoreCoordinator, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "coordinator.build",
		attributesOf(StoreKindInMemory, ""))
	defer span.End()

	store, err := memory.Open(s)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, Wrap(CodeCoordinatorFailure, "attach in-memory store", err)
	}
	return &StoreCoordinator{schema: s, kind: StoreKindInMemory, store: store}, nil
}

func buildSQLite(ctx context.Context, s *schema.Schema, url string) (*StoreCoordinator, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "coordinator.build",
		attributesOf(StoreKindSQLite, url))
	defer span.End()

	if url == "" {
		err := New(CodeInvalidStoreURL, "sqlite coordinator requires a store url")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	store, err := sqlite.Open(url, s)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, Wrap(CodeCoordinatorFailure, "attach sqlite store", err)
	}
	return &StoreCoordinator{schema: s, kind: StoreKindSQLite, url: url, store: store}, nil
}

func attributesOf(kind StoreKind, url string) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("store.kind", kind.String()),
		attribute.String("store.url", url),
	)
}
