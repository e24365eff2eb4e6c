package registry

import (
	"sort"
	"sync"
	"time"

	pkgerrors "nimbus/pkg/errors"
)

// Store is the authoritative in-memory service table. Concurrent writes to
// the same name are last-writer-wins; readers may observe the table either
// before or after a racing registration.
type Store struct {
	mu       sync.RWMutex
	services map[string]ServiceRecord
}

func NewStore() *Store {
	return &Store{
		services: make(map[string]ServiceRecord),
	}
}

// Register stores or overwrites the mapping unconditionally. The address is
// not probed for reachability. Returns the sorted set of registered names.
func (s *Store) Register(name, address string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.services[name] = ServiceRecord{
		Name:         name,
		Address:      address,
		RegisteredAt: time.Now().UTC(),
	}

	names := make([]string, 0, len(s.services))
	for n := range s.services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Store) Lookup(name string) (ServiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.services[name]
	if !ok {
		return ServiceRecord{}, pkgerrors.ErrNotFound.WithDetail("message", "Service not found")
	}
	return record, nil
}

// List returns a point-in-time snapshot; it is not transactionally
// consistent with concurrent registrations.
func (s *Store) List() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]string, len(s.services))
	for name, record := range s.services {
		snapshot[name] = record.Address
	}
	return snapshot
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.services)
}
