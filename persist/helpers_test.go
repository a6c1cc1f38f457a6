package persist

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/louisbranch/graphstack/schema"
	"github.com/louisbranch/graphstack/storage"
)

const testSchemaDoc = `
name: Notes
entities:
  - name: Note
    attributes:
      - name: title
        type: string
      - name: pinned
        type: bool
  - name: Tag
    attributes:
      - name: label
        type: string
`

func testBundle() fstest.MapFS {
	return fstest.MapFS{
		"Notes.yaml": &fstest.MapFile{Data: []byte(testSchemaDoc)},
	}
}

func loadTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	return schema.MustLoad("Notes", testBundle())
}

// constructStack builds a stack synchronously for tests, waiting out the
// async file-backed path.
func constructStack(t *testing.T, cfg StackConfig) *Stack {
	t.Helper()
	type result struct {
		stack *Stack
		err   error
	}
	built := make(chan result, 1)
	if err := ConstructStack(context.Background(), cfg, func(st *Stack, err error) {
		built <- result{stack: st, err: err}
	}); err != nil {
		t.Fatalf("construct stack: %v", err)
	}
	select {
	case r := <-built:
		if r.err != nil {
			t.Fatalf("build stack: %v", r.err)
		}
		t.Cleanup(func() { _ = r.stack.Close() })
		return r.stack
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stack construction")
		return nil
	}
}

func constructMemoryStack(t *testing.T) *Stack {
	t.Helper()
	return constructStack(t, StackConfig{
		SchemaName: "Notes",
		Bundle:     testBundle(),
		Kind:       StoreKindInMemory,
	})
}

func constructFileStack(t *testing.T, dir string) *Stack {
	t.Helper()
	return constructStack(t, StackConfig{
		SchemaName: "Notes",
		Bundle:     testBundle(),
		Kind:       StoreKindSQLite,
		Directory:  dir,
	})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func note(id, title string) storage.Object {
	return storage.Object{
		Entity: "Note",
		ID:     id,
		Attrs:  map[string]any{"title": title},
	}
}
