// Package presence tracks which identities currently have a live session.
//
// The directory is the only shared mutable state on the hot path. Entries are
// never persisted; the whole map is wiped on restart. Exact-match lookups
// only, so a plain mutex-guarded map is sufficient.
package presence

import (
	"errors"
	"sync"

	"github.com/courierchat/internal/config"
)

// ErrAlreadyBound is returned by Bind under the reject policy when the
// identity already has a live session.
var ErrAlreadyBound = errors.New("identity already has an active session")

// Directory maps an identity key to its live session handle. H is the handle
// type; it must be comparable so a conditional unbind can check that the
// entry still points at the caller's handle.
//
// All operations on the entry for a single key are linearizable: one mutex
// guards the map, so bind, lookup and conditional unbind never interleave
// inconsistently.
type Directory[H comparable] struct {
	mu      sync.RWMutex
	entries map[string]H
	policy  string
}

// NewDirectory constructs an empty directory with the given duplicate-bind
// policy (config.DuplicateReplace or config.DuplicateReject).
func NewDirectory[H comparable](policy string) *Directory[H] {
	return &Directory[H]{
		entries: make(map[string]H),
		policy:  policy,
	}
}

// Bind inserts or replaces the entry for key. Under the replace policy the
// previous handle, if any, is returned so the caller can close it outside
// the lock. Under the reject policy a second bind fails with ErrAlreadyBound
// and the directory is untouched.
func (d *Directory[H]) Bind(key string, handle H) (previous H, replaced bool, err error) {
	var zero H

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.entries[key]; ok {
		if d.policy == config.DuplicateReject && existing != handle {
			return zero, false, ErrAlreadyBound
		}
		if existing != handle {
			previous = existing
			replaced = true
		}
	}

	d.entries[key] = handle
	return previous, replaced, nil
}

// Lookup returns the live handle for key, if any.
func (d *Directory[H]) Lookup(key string) (H, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.entries[key]
	return h, ok
}

// Unbind removes the entry for key only if it still equals expected. A stale
// unbind racing a newer bind for the same identity is a no-op. Reports
// whether the removal happened.
func (d *Directory[H]) Unbind(key string, expected H) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.entries[key]
	if !ok || current != expected {
		return false
	}

	delete(d.entries, key)
	return true
}

// Len returns the number of live entries.
func (d *Directory[H]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
