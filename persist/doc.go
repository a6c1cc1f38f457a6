// Package persist implements a layered persistence session manager above a
// single-writer object-graph store.
//
// A Stack composes one StoreCoordinator (the only object through which
// writes reach the backing store), a background persisting Session bound
// directly to the coordinator, a foreground main Session that is a child of
// the persisting session, and factories for worker sessions (children of
// main) and batch sessions (standalone, with their own coordinator on the
// same file). Commits cascade from workers to main to persisting, each step
// scheduled on the target session's own serialized queue.
package persist
