package persist

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync/atomic"

	"github.com/louisbranch/graphstack/schema"
)

// StackConfig describes one persistence stack.
type StackConfig struct {
	// SchemaName resolves the schema document inside Bundle.
	SchemaName string
	// Bundle is the resource bundle holding the schema document.
	Bundle fs.FS
	// Kind selects the backing store.
	Kind StoreKind
	// Filename overrides the store file name. Defaults to
	// "<SchemaName>.store". Ignored for in-memory stacks.
	Filename string
	// Directory overrides the store directory. Defaults to the configured
	// data directory (see Config). Ignored for in-memory stacks.
	Directory string
}

// Stack composes one store coordinator, a background persisting session
// bound to it, and a foreground main session that is a child of the
// persisting session. main.Parent() == PersistingSession() holds for the
// stack's lifetime.
type Stack struct {
	schema *schema.Schema
	kind   StoreKind
	url    string

	active    atomic.Pointer[StoreCoordinator]
	resetting atomic.Bool

	persisting *Session
	main       *Session
}

// ConstructStack loads the named schema, builds a coordinator, and wires a
// stack around it, delivering the result through cb exactly once.
//
// In-memory stacks are built synchronously: cb runs inline. File-backed
// stacks resolve their store path first; an unusable filename/directory
// combination fails synchronously with CodeInvalidStoreURL, before any
// async work and without invoking cb. The build then runs off the caller's
// goroutine.
//
// A schema that cannot be loaded from the bundle is a deployment defect
// and panics rather than reporting an error.
func ConstructStack(ctx context.Context, cfg StackConfig, cb func(*Stack, error)) error {
	if cb == nil {
		return fmt.Errorf("stack callback is required")
	}
	sch := schema.MustLoad(cfg.SchemaName, cfg.Bundle)

	switch cfg.Kind {
	case StoreKindInMemory:
		BuildCoordinator(ctx, sch, StoreKindInMemory, "", func(coord *StoreCoordinator, err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			cb(newStack(sch, StoreKindInMemory, "", coord), nil)
		})
		return nil
	case StoreKindSQLite:
		url, err := resolveStoreURL(cfg)
		if err != nil {
			return err
		}
		BuildCoordinator(ctx, sch, StoreKindSQLite, url, func(coord *StoreCoordinator, err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			cb(newStack(sch, StoreKindSQLite, url, coord), nil)
		})
		return nil
	default:
		return fmt.Errorf("unsupported store kind %d", int(cfg.Kind))
	}
}

// resolveStoreURL combines the effective filename and directory into a
// store path. Failures here are precondition violations, reported
// synchronously as CodeInvalidStoreURL.
func resolveStoreURL(cfg StackConfig) (string, error) {
	filename := cfg.Filename
	if filename == "" {
		filename = cfg.SchemaName + ".store"
	}
	if filename == "." || filename == ".." || filepath.Base(filename) != filename {
		return "", New(CodeInvalidStoreURL, fmt.Sprintf("store filename %q is not a plain file name", filename))
	}
	dir := cfg.Directory
	if dir == "" {
		defaults, err := DefaultConfig()
		if err != nil {
			return "", Wrap(CodeInvalidStoreURL, "resolve default store directory", err)
		}
		dir = defaults.DataDir
	}
	return filepath.Join(dir, filename), nil
}

func newStack(sch *schema.Schema, kind StoreKind, url string, coord *StoreCoordinator) *Stack {
	st := &Stack{
		schema: sch,
		kind:   kind,
		url:    url,
	}
	st.active.Store(coord)
	st.persisting = newSession(sch, RolePersisting, MergeStoreWins, nil, coord)
	st.main = newSession(sch, RoleMain, MergeStoreWins, st.persisting, nil)
	st.register(st.persisting)
	st.register(st.main)
	return st
}

// register subscribes a session's did-commit events to the stack's cascade
// dispatcher. The stack owns the subscription; Session.Close drops it.
func (st *Stack) register(s *Session) {
	s.setCommitHook(st.dispatchCommit)
}

// dispatchCommit routes a did-commit event: main commits cascade to the
// persisting session, worker commits cascade to main, and the persisting
// session's commits are terminal. The triggered commit always runs on the
// target session's own queue.
func (st *Stack) dispatchCommit(from *Session) {
	switch from.Role() {
	case RoleMain:
		st.persisting.commitAsync(context.Background())
	case RoleWorker:
		st.main.commitAsync(context.Background())
	case RolePersisting:
		// Terminal: the commit already reached the coordinator.
	}
}

// Schema returns the stack's loaded schema.
func (st *Stack) Schema() *schema.Schema {
	return st.schema
}

// Kind returns the stack's store kind.
func (st *Stack) Kind() StoreKind {
	return st.kind
}

// URL returns the backing file path, or "" for in-memory stacks.
func (st *Stack) URL() string {
	return st.url
}

// Coordinator returns the active store coordinator. It is nil after a
// failed reset.
func (st *Stack) Coordinator() *StoreCoordinator {
	return st.active.Load()
}

// MainSession returns the foreground session.
func (st *Stack) MainSession() *Session {
	return st.main
}

// PersistingSession returns the background root session. Exposed because
// some bulk operations need a session with a directly attached coordinator.
func (st *Stack) PersistingSession() *Session {
	return st.persisting
}

// NewWorkerSession creates a background session parented to the main
// session and subscribes it to commit cascading. The caller owns the
// session and must Close it.
func (st *Stack) NewWorkerSession() *Session {
	w := newSession(st.schema, RoleWorker, MergeStoreWins, st.main, nil)
	st.register(w)
	return w
}

// Close tears down the stack's sessions and closes the active coordinator.
// Worker and batch sessions are owned by their creators and are not closed
// here.
func (st *Stack) Close() error {
	st.main.Close()
	st.persisting.Close()
	if coord := st.active.Swap(nil); coord != nil {
		return coord.Close()
	}
	return nil
}
