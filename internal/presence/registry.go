// Package presence tracks which users currently hold a live connection.
//
// The registry is process local and volatile: a restart forgets everyone and
// clients are expected to register again when they reconnect.
package presence

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry maps a user to the connection most recently registered for it.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]string // userID -> connID
	byConn map[string]string // connID -> userID
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
		log:    log.Named("presence"),
	}
}

// Register points userID at connID, replacing any previous connection.
func (r *Registry) Register(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUser[userID]; ok && prev != connID {
		delete(r.byConn, prev)
	}
	r.byUser[userID] = connID
	r.byConn[connID] = userID
	r.log.Debug("registered", zap.String("user", userID), zap.String("conn", connID))
}

// Unregister forgets connID. The user's entry is removed only while it still
// points at connID, so a late disconnect of a replaced connection leaves the
// newer one in place. It reports whether an entry was removed.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return false
	}
	delete(r.byConn, connID)
	if r.byUser[userID] != connID {
		return false
	}
	delete(r.byUser, userID)
	r.log.Debug("unregistered", zap.String("user", userID), zap.String("conn", connID))
	return true
}

func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok
}

// Online returns the IDs of every present user in ascending order.
func (r *Registry) Online() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
