package persist

import (
	"context"
	"fmt"
)

// NewBatchSession builds a standalone session for high-volume work and
// delivers it through cb. The session gets its own coordinator against the
// stack's backing file, uses the object-wins merge policy, and sits outside
// the persisting/main/worker hierarchy: its commits go straight to the
// shared file and are never cascaded.
//
// Two coordinators writing the same file is an accepted consistency hazard;
// batch writes surface to the live hierarchy only through later reads that
// fall through to the store.
//
// A stack without a backing file cannot host a batch session; the call
// fails synchronously with CodeInvalidStoreURL and cb is never invoked.
func (st *Stack) NewBatchSession(ctx context.Context, cb func(*Session, error)) error {
	if cb == nil {
		return fmt.Errorf("batch session callback is required")
	}
	if st.url == "" {
		return New(CodeInvalidStoreURL, "stack has no backing file")
	}
	BuildCoordinator(ctx, st.schema, StoreKindSQLite, st.url, func(coord *StoreCoordinator, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(newSession(st.schema, RoleBatch, MergeObjectWins, nil, coord), nil)
	})
	return nil
}
