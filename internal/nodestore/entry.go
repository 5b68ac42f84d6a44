// Package nodestore implements the address-space node store: an
// open-addressed hash table keyed by ua.NodeId, with optimistic-CAS
// replace and copy-on-write read borrows.
package nodestore

import (
	"sync"
	"sync/atomic"

	"github.com/coriolis-automation/opcuacore/internal/ua"
)

// Entry wraps a node's attributes with the bookkeeping the store needs:
// an origin pointer for optimistic-CAS Replace, and the handful of
// hot-path counters callers read without taking the store's lock.
//
// Static fields (NodeId) never change after insertion. Attrs is replaced
// wholesale by Replace, never mutated in place, so a caller holding a
// GetCopy result never observes a partial update.
type Entry struct {
	NodeId ua.NodeId

	// orig points at the entry this one was copied from via GetCopy. A
	// Replace succeeds only if the store's current entry for NodeId is
	// still orig, matching ua_nodestore.c's UA_NodeStore_replace check.
	orig *Entry

	mu    sync.RWMutex
	attrs *ua.NodeAttributes

	// referenceCount counts active subscriptions/monitored items pinned
	// to this node; the store does not evict a node with a nonzero count
	// even under shrink pressure from unrelated removals.
	referenceCount atomic.Int32
}

// newEntry constructs an Entry owning its own copy of attrs.
func newEntry(id ua.NodeId, attrs *ua.NodeAttributes) *Entry {
	return &Entry{NodeId: id, attrs: attrs}
}

// Attrs returns a pointer to the entry's current attribute set. The
// returned pointer is stable for the lifetime of this Entry value — a
// concurrent Replace swaps in a new Entry, it never mutates this one's
// attrs field — so callers may read it without holding mu as long as they
// obtained the Entry from a single Get/GetCopy call.
func (e *Entry) Attrs() *ua.NodeAttributes {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.attrs
}

// clone returns a new Entry carrying a deep-enough copy of e's attributes
// for GetCopy's copy-on-write contract: the caller may mutate the copy and
// hand it back to Replace without disturbing readers holding the original.
func (e *Entry) clone() *Entry {
	e.mu.RLock()
	src := e.attrs
	e.mu.RUnlock()

	cp := *src
	cp.References = append([]ua.Reference(nil), src.References...)
	cp.ArrayDimensions = append([]uint32(nil), src.ArrayDimensions...)

	return &Entry{NodeId: e.NodeId, orig: e, attrs: &cp}
}

// Pin increments the reference count, preventing the store's shrink logic
// from treating this node as collectible. Unpin reverses it.
func (e *Entry) Pin()   { e.referenceCount.Add(1) }
func (e *Entry) Unpin() { e.referenceCount.Add(-1) }

// Pinned reports whether any caller currently holds a pin on this entry.
func (e *Entry) Pinned() bool { return e.referenceCount.Load() > 0 }
