package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/graphstack/schema"
	"github.com/louisbranch/graphstack/storage"
)

func testSchema() *schema.Schema {
	return &schema.Schema{
		Name: "Notes",
		Entities: []schema.Entity{
			{Name: "Note", Attributes: []schema.Attribute{
				{Name: "title", Type: schema.AttrString},
				{Name: "pinned", Type: schema.AttrBool},
			}},
			{Name: "Tag", Attributes: []schema.Attribute{
				{Name: "label", Type: schema.AttrString},
			}},
		},
	}
}

func TestOpenRequiresSchema(t *testing.T) {
	t.Parallel()

	if _, err := Open(nil); err == nil {
		t.Fatal("expected schema required error")
	}
}

func TestApplyGetRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := Open(testSchema())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	obj := storage.Object{Entity: "Note", ID: "n1", Attrs: map[string]any{"title": "first", "pinned": true}}
	cs := storage.ChangeSet{Puts: []storage.Object{obj}}
	if err := store.Apply(context.Background(), cs); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := store.Get(context.Background(), "Note", "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Attrs["title"] != "first" {
		t.Fatalf("title = %v, want %q", got.Attrs["title"], "first")
	}
	if got.Attrs["pinned"] != true {
		t.Fatalf("pinned = %v, want true", got.Attrs["pinned"])
	}
}

func TestGetReturnsNotFound(t *testing.T) {
	t.Parallel()

	store, err := Open(testSchema())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	_, err = store.Get(context.Background(), "Note", "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestApplyRejectsUnknownEntityAtomically(t *testing.T) {
	t.Parallel()

	store, err := Open(testSchema())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cs := storage.ChangeSet{Puts: []storage.Object{
		{Entity: "Note", ID: "n1", Attrs: map[string]any{"title": "kept out"}},
		{Entity: "Bogus", ID: "b1"},
	}}
	if err := store.Apply(context.Background(), cs); !errors.Is(err, storage.ErrUnknownEntity) {
		t.Fatalf("error = %v, want %v", err, storage.ErrUnknownEntity)
	}
	// The valid put in the same change set must not have landed.
	if _, err := store.Get(context.Background(), "Note", "n1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestApplyDeleteRemovesObject(t *testing.T) {
	t.Parallel()

	store, err := Open(testSchema())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	put := storage.ChangeSet{Puts: []storage.Object{{Entity: "Tag", ID: "t1", Attrs: map[string]any{"label": "work"}}}}
	if err := store.Apply(context.Background(), put); err != nil {
		t.Fatalf("apply put: %v", err)
	}
	del := storage.ChangeSet{Deletes: []storage.Ref{{Entity: "Tag", ID: "t1"}}}
	if err := store.Apply(context.Background(), del); err != nil {
		t.Fatalf("apply delete: %v", err)
	}
	if _, err := store.Get(context.Background(), "Tag", "t1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestListAndCount(t *testing.T) {
	t.Parallel()

	store, err := Open(testSchema())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cs := storage.ChangeSet{Puts: []storage.Object{
		{Entity: "Note", ID: "n1", Attrs: map[string]any{"title": "a"}},
		{Entity: "Note", ID: "n2", Attrs: map[string]any{"title": "b"}},
	}}
	if err := store.Apply(context.Background(), cs); err != nil {
		t.Fatalf("apply: %v", err)
	}
	list, err := store.List(context.Background(), "Note")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list length = %d, want 2", len(list))
	}
	n, err := store.Count(context.Background(), "Note")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	t.Parallel()

	store, err := Open(testSchema())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Apply(context.Background(), storage.ChangeSet{}); !errors.Is(err, storage.ErrStoreClosed) {
		t.Fatalf("apply error = %v, want %v", err, storage.ErrStoreClosed)
	}
	if _, err := store.Get(context.Background(), "Note", "n1"); !errors.Is(err, storage.ErrStoreClosed) {
		t.Fatalf("get error = %v, want %v", err, storage.ErrStoreClosed)
	}
}

func TestCloneIsolatesCallerMutations(t *testing.T) {
	t.Parallel()

	store, err := Open(testSchema())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	obj := storage.Object{Entity: "Note", ID: "n1", Attrs: map[string]any{"title": "original"}}
	if err := store.Apply(context.Background(), storage.ChangeSet{Puts: []storage.Object{obj}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	obj.Attrs["title"] = "mutated"

	got, err := store.Get(context.Background(), "Note", "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Attrs["title"] != "original" {
		t.Fatalf("title = %v, want %q", got.Attrs["title"], "original")
	}
}
