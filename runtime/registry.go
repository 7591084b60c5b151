package runtime

import (
	"sync"

	"meowchat/contract"
)

// Registry tracks the single live connection of each online user.
//
// The policy is last writer wins: admitting a second connection for the
// same username replaces the previous entry instead of rejecting it, so
// the newest session is the one that receives deliveries.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.EventSink // map username -> Sink
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]contract.EventSink)}
}

// Register binds a username to its connection sink, replacing any
// previous session for that user.
func (r *Registry) Register(username string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[username] = sink
}

// Unregister removes the user's entry only if it still points at the
// given sink. Disconnect notifications are not exactly-once, and a
// replaced session may still report its own teardown, so a mismatch is
// a no-op rather than an error.
func (r *Registry) Unregister(username string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[username]; ok && current == sink {
		delete(r.sessions, username)
	}
}

// Find returns the live sink for a username. Absence is not an error,
// it only means the recipient is offline.
func (r *Registry) Find(username string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sessions[username]
	return sink, ok
}

// Online returns the number of live sessions. Used for logging.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
