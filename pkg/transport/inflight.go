package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// InFlightRegistry tracks running chat turns by dedup key. A second
// TryAcquire for a key that is still held fails, which lets the caller
// treat a duplicated request as a no-op. The cancel function stored with
// each key lets CancelAll stop every running turn on shutdown.
//
// The registry guards a single process only. All methods are safe for
// concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]context.CancelFunc
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]context.CancelFunc),
	}
}

// DedupKey identifies a chat turn by owner, thread and message text. The
// owner keeps one caller's turn from swallowing another's request for the
// same thread ID. The message is hashed so keys stay short for long prompts.
func DedupKey(owner, threadID, message string) string {
	sum := sha256.Sum256([]byte(message))
	return owner + "\x00" + threadID + "\x00" + hex.EncodeToString(sum[:])
}

// TryAcquire registers key with its cancel function. It returns false,
// leaving the existing entry untouched, when key is already in flight.
func (r *InFlightRegistry) TryAcquire(key string, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		return false
	}
	r.entries[key] = cancel
	return true
}

// Release removes key without cancelling it. Called when a turn finishes,
// successfully or not.
func (r *InFlightRegistry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// CancelAll cancels every in-flight turn and empties the registry. It
// returns how many turns were cancelled.
func (r *InFlightRegistry) CancelAll() int {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]context.CancelFunc)
	r.mu.Unlock()

	for _, cancel := range entries {
		if cancel != nil {
			cancel()
		}
	}
	return len(entries)
}

// Len returns the number of turns in flight.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
