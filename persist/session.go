package persist

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/louisbranch/graphstack/schema"
	"github.com/louisbranch/graphstack/storage"
)

// Role tags a session with its position in the stack, decided at creation
// time.
type Role string

const (
	// RolePersisting is the background root session bound directly to the
	// store coordinator.
	RolePersisting Role = "persisting"
	// RoleMain is the foreground session, child of the persisting session.
	RoleMain Role = "main"
	// RoleWorker is an on-demand background session, child of main.
	RoleWorker Role = "worker"
	// RoleBatch is a standalone bulk session with its own coordinator,
	// outside the persisting/main/worker hierarchy.
	RoleBatch Role = "batch"
)

// MergePolicy is the tie-break rule applied when incoming changes conflict
// with a session's unsaved changes.
type MergePolicy int

const (
	// MergeStoreWins lets the incoming change overwrite the session's
	// unsaved value for a conflicting attribute.
	MergeStoreWins MergePolicy = iota
	// MergeObjectWins keeps the session's unsaved value for a conflicting
	// attribute.
	MergeObjectWins
)

// change is one staged mutation: a pending put or a pending delete.
type change struct {
	obj    storage.Object
	delete bool
}

// Session is a unit of object-graph work bound to one serialized execution
// queue. All session state below the queue field is confined to that queue.
//
// A session reaches storage either through a directly attached coordinator
// (persisting and batch sessions) or transitively through its parent chain.
type Session struct {
	id     uuid.UUID
	role   Role
	policy MergePolicy
	parent *Session
	schema *schema.Schema

	coordinator atomic.Pointer[StoreCoordinator]

	queue *serialQueue

	// queue-confined state
	staged   map[storage.Ref]change
	base     map[storage.Ref]storage.Object
	onCommit func(*Session)
	closed   bool
}

func newSession(s *schema.Schema, role Role, policy MergePolicy, parent *Session, coord *StoreCoordinator) *Session {
	sess := &Session{
		id:     uuid.New(),
		role:   role,
		policy: policy,
		parent: parent,
		schema: s,
		queue:  newSerialQueue(),
		staged: make(map[storage.Ref]change),
		base:   make(map[storage.Ref]storage.Object),
	}
	sess.coordinator.Store(coord)
	return sess
}

// ID returns the session's unique identity.
func (s *Session) ID() string {
	return s.id.String()
}

// Role returns the session's role tag.
func (s *Session) Role() Role {
	return s.role
}

// Parent returns the parent session, or nil for root and batch sessions.
func (s *Session) Parent() *Session {
	return s.parent
}

// Coordinator returns the directly attached coordinator, or nil for
// sessions that reach storage through their parent chain.
func (s *Session) Coordinator() *StoreCoordinator {
	return s.coordinator.Load()
}

// Perform schedules work on the session's queue without waiting for it.
func (s *Session) Perform(job func()) {
	if job == nil {
		return
	}
	s.queue.perform(job)
}

// PerformWait schedules work on the session's queue and blocks until it has
// run. It must not be called from work already running on this session.
func (s *Session) PerformWait(job func()) {
	if job == nil {
		return
	}
	s.queue.performWait(job)
}

// Stage records a pending put for obj. The change stays local until Commit.
func (s *Session) Stage(obj storage.Object) error {
	if obj.Entity == "" || obj.ID == "" {
		return fmt.Errorf("staged object needs entity and id")
	}
	if _, ok := s.schema.Entity(obj.Entity); !ok {
		return fmt.Errorf("stage %s/%s: %w", obj.Entity, obj.ID, storage.ErrUnknownEntity)
	}
	var err error
	ok := s.queue.performWait(func() {
		if s.closed {
			err = New(CodeSessionClosed, "session is closed")
			return
		}
		s.staged[obj.Ref()] = change{obj: obj.Clone()}
	})
	if !ok {
		return New(CodeSessionClosed, "session is closed")
	}
	return err
}

// StageDelete records a pending delete for ref.
func (s *Session) StageDelete(ref storage.Ref) error {
	if ref.Entity == "" || ref.ID == "" {
		return fmt.Errorf("staged delete needs entity and id")
	}
	if _, ok := s.schema.Entity(ref.Entity); !ok {
		return fmt.Errorf("stage delete %s/%s: %w", ref.Entity, ref.ID, storage.ErrUnknownEntity)
	}
	var err error
	ok := s.queue.performWait(func() {
		if s.closed {
			err = New(CodeSessionClosed, "session is closed")
			return
		}
		s.staged[ref] = change{obj: storage.Object{Entity: ref.Entity, ID: ref.ID}, delete: true}
	})
	if !ok {
		return New(CodeSessionClosed, "session is closed")
	}
	return err
}

// PendingCount returns the number of staged, uncommitted changes.
func (s *Session) PendingCount() int {
	var n int
	s.queue.performWait(func() {
		n = len(s.staged)
	})
	return n
}

// Fetch resolves one object: staged changes first, then the session's view
// of committed state, then the parent chain, and finally the coordinator's
// store at the root. Returns storage.ErrNotFound when no layer has it.
func (s *Session) Fetch(ctx context.Context, entity, id string) (storage.Object, error) {
	var (
		obj storage.Object
		err error
	)
	ok := s.queue.performWait(func() {
		obj, err = s.fetchLocked(ctx, entity, id)
	})
	if !ok {
		return storage.Object{}, New(CodeSessionClosed, "session is closed")
	}
	return obj, err
}

func (s *Session) fetchLocked(ctx context.Context, entity, id string) (storage.Object, error) {
	if s.closed {
		return storage.Object{}, New(CodeSessionClosed, "session is closed")
	}
	ref := storage.Ref{Entity: entity, ID: id}
	if c, ok := s.staged[ref]; ok {
		if c.delete {
			return storage.Object{}, storage.ErrNotFound
		}
		return c.obj.Clone(), nil
	}
	if obj, ok := s.base[ref]; ok {
		return obj.Clone(), nil
	}
	if s.parent != nil {
		// Waits only flow child to parent, so this cannot deadlock.
		return s.parent.Fetch(ctx, entity, id)
	}
	coord := s.coordinator.Load()
	if coord == nil {
		return storage.Object{}, New(CodeStoreDetached, "session has no coordinator")
	}
	return coord.fetch(ctx, entity, id)
}

// Commit finalizes the session's staged changes: into the parent session,
// or into the coordinator's store at the root. A commit with nothing staged
// is a no-op success and does not announce itself.
func (s *Session) Commit(ctx context.Context) error {
	var err error
	ok := s.queue.performWait(func() {
		err = s.commitLocked(ctx)
	})
	if !ok {
		return New(CodeSessionClosed, "session is closed")
	}
	return err
}

// commitAsync schedules a commit on the session's own queue. Failures are
// logged, never retried, and never escalated into further cascades.
func (s *Session) commitAsync(ctx context.Context) {
	s.queue.perform(func() {
		if err := s.commitLocked(ctx); err != nil {
			log.Printf("graphstack: triggered %s commit: %v", s.role, err)
		}
	})
}

func (s *Session) commitLocked(ctx context.Context) error {
	if s.closed {
		return New(CodeSessionClosed, "session is closed")
	}
	if len(s.staged) == 0 {
		return nil
	}
	cs := s.changeSetLocked()
	if s.parent != nil {
		var absorbed bool
		ok := s.parent.queue.performWait(func() {
			absorbed = s.parent.absorbLocked(cs)
		})
		if !ok || !absorbed {
			return New(CodeSessionClosed, "parent session is closed")
		}
	} else {
		coord := s.coordinator.Load()
		if coord == nil {
			return New(CodeStoreDetached, "session has no coordinator")
		}
		if err := coord.apply(ctx, cs); err != nil {
			return err
		}
	}
	s.absorbIntoBaseLocked(cs)
	s.staged = make(map[storage.Ref]change)
	if s.onCommit != nil {
		s.onCommit(s)
	}
	return nil
}

// changeSetLocked snapshots staged changes in a deterministic order.
func (s *Session) changeSetLocked() storage.ChangeSet {
	var cs storage.ChangeSet
	for _, c := range s.staged {
		if c.delete {
			cs.Deletes = append(cs.Deletes, c.obj.Ref())
		} else {
			cs.Puts = append(cs.Puts, c.obj.Clone())
		}
	}
	sort.Slice(cs.Puts, func(i, j int) bool {
		if cs.Puts[i].Entity != cs.Puts[j].Entity {
			return cs.Puts[i].Entity < cs.Puts[j].Entity
		}
		return cs.Puts[i].ID < cs.Puts[j].ID
	})
	sort.Slice(cs.Deletes, func(i, j int) bool {
		if cs.Deletes[i].Entity != cs.Deletes[j].Entity {
			return cs.Deletes[i].Entity < cs.Deletes[j].Entity
		}
		return cs.Deletes[i].ID < cs.Deletes[j].ID
	})
	return cs
}

// absorbLocked merges an incoming change set into the session's staged
// changes, resolving conflicts with unsaved local changes per the session's
// merge policy. Runs on the session's queue. Reports false when the session
// is already closed and could not take the changes.
func (s *Session) absorbLocked(cs storage.ChangeSet) bool {
	if s.closed {
		return false
	}
	for _, incoming := range cs.Puts {
		ref := incoming.Ref()
		local, conflicted := s.staged[ref]
		if !conflicted {
			s.staged[ref] = change{obj: incoming.Clone()}
			continue
		}
		if local.delete {
			if s.policy == MergeStoreWins {
				s.staged[ref] = change{obj: incoming.Clone()}
			}
			continue
		}
		s.staged[ref] = change{obj: mergeAttrs(local.obj, incoming, s.policy)}
	}
	for _, ref := range cs.Deletes {
		if local, conflicted := s.staged[ref]; conflicted && s.policy == MergeObjectWins && !local.delete {
			// The session's unsaved put survives the incoming delete.
			continue
		}
		s.staged[ref] = change{obj: storage.Object{Entity: ref.Entity, ID: ref.ID}, delete: true}
	}
	return true
}

// mergeAttrs resolves attribute-level conflicts between a local unsaved
// object and an incoming one.
func mergeAttrs(local, incoming storage.Object, policy MergePolicy) storage.Object {
	merged := storage.Object{
		Entity: local.Entity,
		ID:     local.ID,
		Attrs:  make(map[string]any, len(local.Attrs)+len(incoming.Attrs)),
	}
	switch policy {
	case MergeStoreWins:
		for k, v := range local.Attrs {
			merged.Attrs[k] = v
		}
		for k, v := range incoming.Attrs {
			merged.Attrs[k] = v
		}
	case MergeObjectWins:
		for k, v := range incoming.Attrs {
			merged.Attrs[k] = v
		}
		for k, v := range local.Attrs {
			merged.Attrs[k] = v
		}
	}
	return merged
}

// absorbIntoBaseLocked folds a committed change set into the session's view
// of state below it.
func (s *Session) absorbIntoBaseLocked(cs storage.ChangeSet) {
	for _, obj := range cs.Puts {
		s.base[obj.Ref()] = obj.Clone()
	}
	for _, ref := range cs.Deletes {
		delete(s.base, ref)
	}
}

// clearState drops staged changes and the base cache. Used when the
// backing store is destroyed underneath the session hierarchy, so stale
// cached state cannot resurface after a reset.
func (s *Session) clearState() {
	s.queue.performWait(func() {
		if s.closed {
			return
		}
		s.staged = make(map[storage.Ref]change)
		s.base = make(map[storage.Ref]storage.Object)
	})
}

// setCommitHook registers or clears the did-commit subscription. The hook
// runs on the session's queue after each successful non-empty commit.
func (s *Session) setCommitHook(hook func(*Session)) {
	s.queue.performWait(func() {
		s.onCommit = hook
	})
}

// Close tears the session down: the commit subscription is deregistered,
// staged changes are discarded, and the queue is drained and stopped.
// Close is idempotent.
func (s *Session) Close() {
	s.queue.performWait(func() {
		if s.closed {
			return
		}
		s.closed = true
		s.onCommit = nil
		s.staged = nil
		s.base = nil
	})
	s.queue.close()
}
