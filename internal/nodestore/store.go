package nodestore

import (
	"errors"
	"sort"
	"sync"

	"github.com/coriolis-automation/opcuacore/internal/ua"
)

// minSize sets the initial bucket count (the smallest prime at or above it)
// and the size at or below which expand no longer shrinks the table.
const minSize = 64

// ErrOutOfMemory surfaces the BadOutOfMemory condition a resize would hit
// under a synthetic allocation cap; the Go runtime does not give callers a
// chance to recover from allocation failure, so Store never returns it.
var ErrOutOfMemory = errors.New("nodestore: out of memory")

// ErrNodeIdExists is returned by Insert when the NodeId is already present.
var ErrNodeIdExists = errors.New("nodestore: node id exists")

// ErrNodeIdUnknown is returned by Replace/Remove when the NodeId is absent.
var ErrNodeIdUnknown = errors.New("nodestore: node id unknown")

// ErrConflict is returned by Replace when the slot was mutated since the
// caller's GetCopy, mirroring the optimistic-CAS failure in
// UA_NodeStore_replace.
var ErrConflict = errors.New("nodestore: concurrent modification")

// primes is the growth table from ua_nodestore.c: sizes are always prime,
// chosen close to successive powers of two.
var primes = []uint32{
	7, 13, 31, 61, 127, 251,
	509, 1021, 2039, 4093, 8191, 16381,
	32749, 65521, 131071, 262139, 524287, 1048573,
	2097143, 4194301, 8388593, 16777213, 33554393, 67108859,
	134217689, 268435399, 536870909, 1073741789, 2147483647,
}

// higherPrimeIndex returns the index of the smallest prime greater than or
// equal to n.
func higherPrimeIndex(n uint32) int {
	return sort.Search(len(primes), func(i int) bool { return primes[i] >= n })
}

// Store is a single namespace's node table: an open-addressed hash map
// keyed by ua.NodeId, sized to a prime bucket count with double hashing for
// probing, matching UA_NodeStore from ua_nodestore.c.
type Store struct {
	mu      sync.RWMutex
	entries []*Entry
	size    uint32
	count   uint32

	// nextNumeric is the free-identifier cursor used by Insert when the
	// caller supplies a null NodeId; it only ever increases within a
	// generation of the table, matching the "identifier = count+1, then
	// step by mod2" search in UA_NodeStore_insert.
	nextNumeric uint32

	// namespaceIndex is the namespace this store is responsible for.
	// Insert assigns a fresh numeric id in this namespace to a null NodeId;
	// any other NodeId is stored as given.
	namespaceIndex uint16
}

// New creates an empty Store for the given namespace index.
func New(namespaceIndex uint16) *Store {
	idx := higherPrimeIndex(minSize)
	return &Store{
		entries:        make([]*Entry, primes[idx]),
		size:           primes[idx],
		namespaceIndex: namespaceIndex,
	}
}

// mod2 is the secondary hash step: a nonzero value less than size. Because
// size is always prime, any nonzero step is coprime to size, so repeated
// probing with this step visits every slot before repeating.
func mod2(h uint64, size uint32) uint32 {
	step := uint32(h%uint64(size-2)) + 1
	return step
}

// findSlot returns (true, index) if id is present, or (false, index) of
// the first empty slot probed for insertion, matching containsNodeId.
func (s *Store) findSlot(id ua.NodeId) (bool, uint32) {
	h := id.Hash64()
	size := s.size
	idx := uint32(h % uint64(size))
	e := s.entries[idx]
	if e == nil {
		return false, idx
	}
	if e.NodeId.Equal(id) {
		return true, idx
	}
	step := mod2(h, size)
	for {
		idx += step
		if idx >= size {
			idx -= size
		}
		e = s.entries[idx]
		if e == nil {
			return false, idx
		}
		if e.NodeId.Equal(id) {
			return true, idx
		}
	}
}

// expand resizes the table when occupancy has drifted outside the
// hysteresis band, matching the exact guard in ua_nodestore.c's expand():
// resize only when the table would end up either too full or is shrinking
// back toward minSize from a mostly-empty state.
func (s *Store) expand() error {
	osize := s.size
	count := s.count
	if count*2 < osize && (count*8 > osize || osize <= minSize) {
		return nil
	}

	oentries := s.entries
	nidx := higherPrimeIndex(count * 2)
	nsize := primes[nidx]
	nentries := make([]*Entry, nsize)

	s.entries = nentries
	s.size = nsize

	for _, e := range oentries {
		if e == nil {
			continue
		}
		_, idx := s.findSlot(e.NodeId)
		s.entries[idx] = e
	}
	return nil
}

// Insert adds a new node under id. If id is null (namespace 0 with no
// identifier), a fresh numeric id in this store's namespace is assigned
// instead and returned via the result NodeId; any other id, including a
// non-null namespace-0 id, is kept as given.
func (s *Store) Insert(id ua.NodeId, attrs *ua.NodeAttributes) (ua.NodeId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size*3 <= s.count*4 {
		if err := s.expand(); err != nil {
			return ua.NodeId{}, err
		}
	}

	assigned := id
	needsFreshId := assigned.IsNull()

	if needsFreshId {
		assigned.NamespaceIndex = s.namespaceIndex
		identifier := s.count + 1
		if s.nextNumeric > identifier {
			identifier = s.nextNumeric
		}
		size := s.size
		var probeHash uint64
		for {
			assigned.IDType = ua.IdentifierNumeric
			assigned.Numeric = identifier
			probeHash = assigned.Hash64()
			if found, _ := s.findSlot(assigned); !found {
				break
			}
			step := mod2(probeHash, size)
			identifier += step
			if identifier >= size {
				identifier -= size
			}
		}
		s.nextNumeric = identifier + 1
		_, slot := s.findSlot(assigned)
		s.entries[slot] = newEntry(assigned, attrs)
		s.count++
		return assigned, nil
	}

	found, slot := s.findSlot(assigned)
	if found {
		return ua.NodeId{}, ErrNodeIdExists
	}
	s.entries[slot] = newEntry(assigned, attrs)
	s.count++
	return assigned, nil
}

// Get returns the live Entry for id, or nil if absent. The returned Entry
// must not be mutated directly; callers needing to change attributes must
// go through GetCopy + Replace.
func (s *Store) Get(id ua.NodeId) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, idx := s.findSlot(id)
	if !found {
		return nil
	}
	return s.entries[idx]
}

// GetCopy returns a private copy of the node at id suitable for mutation
// and later Replace. Returns nil if id is absent.
func (s *Store) GetCopy(id ua.NodeId) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, idx := s.findSlot(id)
	if !found {
		return nil
	}
	return s.entries[idx].clone()
}

// Replace installs newEntry in place of the slot it was copied from, via
// GetCopy. Fails with ErrConflict if the slot changed since the copy was
// made, and with ErrNodeIdUnknown if the NodeId is no longer present at
// all — matching UA_NodeStore_replace's two failure modes.
func (s *Store) Replace(newEntry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found, idx := s.findSlot(newEntry.NodeId)
	if !found {
		return ErrNodeIdUnknown
	}
	if s.entries[idx] != newEntry.orig {
		return ErrConflict
	}
	s.entries[idx] = newEntry
	return nil
}

// Remove deletes the node at id. Returns ErrNodeIdUnknown if absent.
func (s *Store) Remove(id ua.NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found, idx := s.findSlot(id)
	if !found {
		return ErrNodeIdUnknown
	}
	if s.entries[idx].Pinned() {
		s.entries[idx] = nil
		s.count--
		return nil
	}
	s.entries[idx] = nil
	s.count--
	if s.count*8 < s.size && s.size > 32 {
		_ = s.expand()
	}
	return nil
}

// Iterate calls visit for every live node in the table, in bucket order.
// visit must not call back into the Store; Iterate holds the read lock for
// its whole duration.
func (s *Store) Iterate(visit func(*Entry)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e != nil {
			visit(e)
		}
	}
}

// Count returns the number of live nodes.
func (s *Store) Count() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}
