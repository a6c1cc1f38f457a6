package persist

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
)

// Reset destroys the backing store and rebuilds a fresh coordinator at the
// same location, swapping it into the stack while sessions stay alive. The
// outcome is delivered through cb exactly once.
//
// An in-memory stack has nothing durable to reset: cb is invoked
// synchronously with nil and nothing changes.
//
// For file-backed stacks: the store is detached and its file destroyed on
// the persisting session's queue, so the removal and the coordinator swap
// serialize against in-flight commits: a commit lands on exactly one of
// the old or new coordinator, or fails with CodeStoreDetached in between.
// Removal failure is delivered as CodeFileRemoval and no rebuild is
// attempted. Rebuild failure leaves the stack with no usable coordinator;
// callers must construct a new stack.
func (st *Stack) Reset(ctx context.Context, cb func(error)) error {
	if cb == nil {
		return fmt.Errorf("reset callback is required")
	}
	if st.kind != StoreKindSQLite {
		cb(nil)
		return nil
	}
	if !st.resetting.CompareAndSwap(false, true) {
		cb(New(CodeResetInFlight, "another reset has not completed"))
		return nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "stack.reset",
		attributesOf(st.kind, st.url))

	var removeErr error
	ok := st.persisting.queue.performWait(func() {
		coord := st.active.Load()
		if coord == nil {
			removeErr = New(CodeStoreDetached, "stack has no active coordinator")
			return
		}
		if err := coord.destroyStore(); err != nil {
			removeErr = Wrap(CodeFileRemoval, "remove backing store", err)
		}
	})
	if !ok {
		removeErr = New(CodeSessionClosed, "persisting session is closed")
	}
	if removeErr != nil {
		st.resetting.Store(false)
		span.SetStatus(otelcodes.Error, removeErr.Error())
		span.End()
		cb(removeErr)
		return nil
	}

	BuildCoordinator(ctx, st.schema, StoreKindSQLite, st.url, func(coord *StoreCoordinator, err error) {
		defer func() {
			st.resetting.Store(false)
			span.End()
		}()
		if err != nil {
			// The old store is gone and no replacement exists; the stack is
			// unusable until a new one is constructed.
			st.persisting.PerformWait(func() {
				st.persisting.coordinator.Store(nil)
			})
			st.active.Store(nil)
			span.SetStatus(otelcodes.Error, err.Error())
			cb(err)
			return
		}
		st.persisting.PerformWait(func() {
			st.persisting.coordinator.Store(coord)
		})
		st.active.Store(coord)
		// The old store's contents are gone; cached session state must not
		// resurface through fetches against the fresh store.
		st.persisting.clearState()
		st.main.clearState()
		cb(nil)
	})
	return nil
}
