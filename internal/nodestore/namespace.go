package nodestore

import (
	"sync"

	"github.com/coriolis-automation/opcuacore/internal/ua"
)

// NamespaceTable dispatches node operations to the Store owning a NodeId's
// namespace index, matching the ns->server->nodestores[namespaceIndex]
// indirection in ua_nodestore.c's UA_NodeStore_get. Insert registers a Store
// for a namespace index it has not seen yet; AddNamespace registers one
// ahead of time.
type NamespaceTable struct {
	mu     sync.RWMutex
	stores map[uint16]*Store
}

// NewNamespaceTable creates a table with namespace 0 pre-registered, as the
// server's own address space always lives there.
func NewNamespaceTable() *NamespaceTable {
	t := &NamespaceTable{stores: make(map[uint16]*Store)}
	t.stores[0] = New(0)
	return t
}

// AddNamespace registers a new namespace index and returns its Store. If
// the index is already registered, the existing Store is returned.
func (t *NamespaceTable) AddNamespace(index uint16) *Store {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.stores[index]; ok {
		return s
	}
	s := New(index)
	t.stores[index] = s
	return s
}

// Store returns the Store for the given namespace index, or nil if that
// namespace was never registered.
func (t *NamespaceTable) Store(index uint16) *Store {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stores[index]
}

// Get dispatches to the owning namespace's Store and returns the live
// Entry, or nil if the namespace is unregistered or the node is absent.
func (t *NamespaceTable) Get(id ua.NodeId) *Entry {
	s := t.Store(id.NamespaceIndex)
	if s == nil {
		return nil
	}
	return s.Get(id)
}

// GetCopy dispatches to the owning namespace's Store and returns a
// mutable copy, or nil if the namespace is unregistered or the node is
// absent.
func (t *NamespaceTable) GetCopy(id ua.NodeId) *Entry {
	s := t.Store(id.NamespaceIndex)
	if s == nil {
		return nil
	}
	return s.GetCopy(id)
}

// Insert dispatches to the Store for id.NamespaceIndex, registering that
// namespace first if it does not exist yet.
func (t *NamespaceTable) Insert(id ua.NodeId, attrs *ua.NodeAttributes) (ua.NodeId, error) {
	ns := id.NamespaceIndex
	s := t.Store(ns)
	if s == nil {
		s = t.AddNamespace(ns)
	}
	return s.Insert(id, attrs)
}

// Replace dispatches to the Store owning newEntry.NodeId.
func (t *NamespaceTable) Replace(newEntry *Entry) error {
	s := t.Store(newEntry.NodeId.NamespaceIndex)
	if s == nil {
		return ErrNodeIdUnknown
	}
	return s.Replace(newEntry)
}

// Remove dispatches to the Store owning id's namespace.
func (t *NamespaceTable) Remove(id ua.NodeId) error {
	s := t.Store(id.NamespaceIndex)
	if s == nil {
		return ErrNodeIdUnknown
	}
	return s.Remove(id)
}
