package runtime

import (
	"comms-lab/contract"
	"comms-lab/domain"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

type Set[T comparable] map[T]struct{}

// Registry is the process-wide index of live connections.
//
// It exclusively owns user -> connections. The user -> threads index is derived
// from the membership store when a user's first connection registers and is then
// patched by membership changes; it is bookkeeping only and never used for access
// control. Both indices are guarded by the same lock.
type Registry struct {
	mu          sync.RWMutex
	log         *slog.Logger
	memberships contract.MembershipLister
	connections map[domain.UserID]map[string]contract.Connection
	threads     map[domain.UserID]Set[domain.ThreadID]
}

type RegistryStats struct {
	Users              int
	Connections        int
	ThreadAssociations int
}

func NewRegistry(log *slog.Logger, memberships contract.MembershipLister) *Registry {
	return &Registry{
		log:         log,
		memberships: memberships,
		connections: make(map[domain.UserID]map[string]contract.Connection),
		threads:     make(map[domain.UserID]Set[domain.ThreadID]),
	}
}

// Register adds a connection under userID. The first connection of a user loads
// its threads while holding the lock, so a concurrent membership change can not be
// overwritten by a stale load. On error nothing is registered.
func (r *Registry) Register(userID domain.UserID, conn contract.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, live := r.connections[userID]
	if !live {
		threadIDs, err := r.memberships.ThreadsOf(userID)
		if err != nil {
			return fmt.Errorf("unable to load threads of user %d: %w", userID, err)
		}
		threads := make(Set[domain.ThreadID], len(threadIDs))
		for _, id := range threadIDs {
			threads[id] = struct{}{}
		}
		conns = make(map[string]contract.Connection)
		r.connections[userID] = conns
		r.threads[userID] = threads
	}
	conns[conn.ID()] = conn
	r.log.Debug("Connection registered", "user_id", userID, "connection_id", conn.ID(), "connections", len(conns))
	return nil
}

// Unregister removes the connection, the last one drops the thread associations.
// Unknown users or connections are a no-op.
func (r *Registry) Unregister(userID domain.UserID, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.connections[userID]
	if !ok {
		return
	}
	delete(conns, conn.ID())
	if len(conns) == 0 {
		delete(r.connections, userID)
		delete(r.threads, userID)
	}
	r.log.Debug("Connection unregistered", "user_id", userID, "connection_id", conn.ID(), "connections", len(conns))
}

// OnMembershipChanged patches the thread associations of a live user.
func (r *Registry) OnMembershipChanged(threadID domain.ThreadID, userID domain.UserID, action domain.MembershipAction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	threads, live := r.threads[userID]
	if !live {
		return
	}
	switch action {
	case domain.MembershipAdded:
		threads[threadID] = struct{}{}
	case domain.MembershipRemoved:
		delete(threads, threadID)
	}
}

// LiveConnectionsFor returns a snapshot of the user's connections, empty when offline.
func (r *Registry) LiveConnectionsFor(userID domain.UserID) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.connections[userID]
	res := make([]contract.Connection, 0, len(conns))
	for _, conn := range conns {
		res = append(res, conn)
	}
	return res
}

// ThreadsFor returns the derived thread associations of a live user, sorted.
func (r *Registry) ThreadsFor(userID domain.UserID) []domain.ThreadID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]domain.ThreadID, 0, len(r.threads[userID]))
	for id := range r.threads[userID] {
		res = append(res, id)
	}
	slices.Sort(res)
	return res
}

func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{Users: len(r.connections)}
	for _, conns := range r.connections {
		stats.Connections += len(conns)
	}
	for _, threads := range r.threads {
		stats.ThreadAssociations += len(threads)
	}
	return stats
}
