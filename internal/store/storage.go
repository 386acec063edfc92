package store

// Storage wraps a Store with the lifecycle the run orchestration expects:
// one-time schema initialization before dispatch, and a commit after the run.
type Storage struct {
	store Store
}

// NewStorage wraps a Store.
func NewStorage(st Store) *Storage {
	return &Storage{store: st}
}

// Store returns the underlying object store.
func (s *Storage) Store() Store { return s.store }

// Initialize creates the array schema. It must complete before any task
// writes; the dispatcher is gated on it.
func (s *Storage) Initialize(name string, meta ArrayMeta) (*Array, error) {
	return Create(s.store, name, meta)
}

// Open returns a writer handle on a previously initialized array.
func (s *Storage) Open(name string) (*Array, error) {
	return Open(s.store, name)
}

// Commit finalizes a run. Plain chunk stores are not transactional, so this
// is a no-op kept for transactional backends layered on the same interface.
func (s *Storage) Commit(message string) error {
	_ = message

	return nil
}
