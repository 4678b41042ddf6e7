package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Store persists sessions. Implementations are safe for concurrent use and
// never hand out references to their internal state.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, s *Session) error

	// Get returns the session, or ErrNotFound when missing or expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Update replaces an existing session. Returns ErrNotFound when missing.
	Update(ctx context.Context, s *Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpired purges expired sessions and reports how many were removed.
	DeleteExpired(ctx context.Context) (int, error)
}

// Driver names a Store implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverValkey   Driver = "valkey"
	DriverPostgres Driver = "postgres"
)

// ParseDriver validates a driver name.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(s); d {
	case DriverMemory, DriverValkey, DriverPostgres:
		return d, nil
	case "":
		return DriverMemory, nil
	default:
		return "", fmt.Errorf("unknown session driver %q", s)
	}
}

// Mutator is implemented by stores that can apply a read-modify-write
// atomically against their backend.
type Mutator interface {
	// Mutate loads the session, applies fn and persists the result as one
	// atomic step. The session is left untouched when fn fails.
	Mutate(ctx context.Context, id string, fn func(s *Session) error) (*Session, error)
}

// mutateLocks serializes mutations of the same session within the process.
var mutateLocks [64]sync.Mutex

func lockFor(id string) *sync.Mutex {
	return &mutateLocks[xxhash.Sum64String(id)%uint64(len(mutateLocks))]
}

// Mutate loads a session, applies fn and writes it back. Mutations of the
// same session never interleave within the process; stores implementing
// Mutator also guard against other processes. fn must not retain s.
func Mutate(ctx context.Context, store Store, id string, fn func(s *Session) error) (*Session, error) {
	mu := lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if m, ok := store.(Mutator); ok {
		return m.Mutate(ctx, id, fn)
	}

	s, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := store.Update(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
