package nodestore

import (
	"testing"

	"github.com/coriolis-automation/opcuacore/internal/ua"
)

func TestStore_InsertGetReplace(t *testing.T) {
	s := New(1)
	id := ua.NewStringNodeId(1, "temperature")
	attrs := &ua.NodeAttributes{NodeClass: ua.NodeClassVariable, AccessLevel: 1}

	got, err := s.Insert(id, attrs)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !got.Equal(id) {
		t.Fatalf("Insert returned %v, want %v", got, id)
	}

	entry := s.Get(id)
	if entry == nil {
		t.Fatalf("Get returned nil after Insert")
	}
	if entry.Attrs().AccessLevel != 1 {
		t.Fatalf("AccessLevel = %d, want 1", entry.Attrs().AccessLevel)
	}

	cp := s.GetCopy(id)
	if cp == nil {
		t.Fatalf("GetCopy returned nil")
	}
	cp.Attrs().AccessLevel = 3
	if err := s.Replace(cp); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if s.Get(id).Attrs().AccessLevel != 3 {
		t.Fatalf("AccessLevel after Replace = %d, want 3", s.Get(id).Attrs().AccessLevel)
	}
}

func TestStore_ReplaceConflict(t *testing.T) {
	s := New(1)
	id := ua.NewNumericNodeId(1, 42)
	if _, err := s.Insert(id, &ua.NodeAttributes{NodeClass: ua.NodeClassObject}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	cp1 := s.GetCopy(id)
	cp2 := s.GetCopy(id)

	if err := s.Replace(cp1); err != nil {
		t.Fatalf("first Replace: %v", err)
	}
	if err := s.Replace(cp2); err != ErrConflict {
		t.Fatalf("second Replace err = %v, want ErrConflict", err)
	}
}

func TestStore_InsertDuplicateFails(t *testing.T) {
	s := New(1)
	id := ua.NewNumericNodeId(1, 7)
	if _, err := s.Insert(id, &ua.NodeAttributes{}); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if _, err := s.Insert(id, &ua.NodeAttributes{}); err != ErrNodeIdExists {
		t.Fatalf("duplicate Insert err = %v, want ErrNodeIdExists", err)
	}
}

func TestStore_InsertNullAssignsFreshNumericId(t *testing.T) {
	s := New(2)
	null := ua.NodeId{}

	first, err := s.Insert(null, &ua.NodeAttributes{})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if first.NamespaceIndex != 2 || first.IDType != ua.IdentifierNumeric {
		t.Fatalf("assigned id = %v, want numeric in namespace 2", first)
	}

	second, err := s.Insert(null, &ua.NodeAttributes{})
	if err != nil {
		t.Fatalf("second Insert: %v", err)
	}
	if second.Equal(first) {
		t.Fatalf("second assigned id collided with first: %v", second)
	}
}

func TestStore_RemoveUnknownFails(t *testing.T) {
	s := New(1)
	if err := s.Remove(ua.NewNumericNodeId(1, 99)); err != ErrNodeIdUnknown {
		t.Fatalf("Remove err = %v, want ErrNodeIdUnknown", err)
	}
}

func TestStore_GrowsUnderLoad(t *testing.T) {
	s := New(1)
	const n = 500
	for i := uint32(1); i <= n; i++ {
		if _, err := s.Insert(ua.NewNumericNodeId(1, i), &ua.NodeAttributes{}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if s.Count() != n {
		t.Fatalf("Count = %d, want %d", s.Count(), n)
	}
	for i := uint32(1); i <= n; i++ {
		if s.Get(ua.NewNumericNodeId(1, i)) == nil {
			t.Fatalf("Get %d returned nil after growth", i)
		}
	}
}

func TestStore_IterateVisitsAllLiveNodes(t *testing.T) {
	s := New(1)
	ids := []ua.NodeId{
		ua.NewNumericNodeId(1, 1),
		ua.NewNumericNodeId(1, 2),
		ua.NewNumericNodeId(1, 3),
	}
	for _, id := range ids {
		if _, err := s.Insert(id, &ua.NodeAttributes{}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if err := s.Remove(ids[1]); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	seen := map[string]bool{}
	s.Iterate(func(e *Entry) { seen[e.NodeId.String()] = true })

	if len(seen) != 2 {
		t.Fatalf("Iterate visited %d nodes, want 2", len(seen))
	}
	if seen[ids[1].String()] {
		t.Fatalf("Iterate visited removed node %v", ids[1])
	}
}

func TestNamespaceTable_DispatchesByNamespace(t *testing.T) {
	nt := NewNamespaceTable()
	nt.AddNamespace(2)

	id := ua.NewNumericNodeId(2, 10)
	if _, err := nt.Insert(id, &ua.NodeAttributes{NodeClass: ua.NodeClassVariable}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if nt.Get(id) == nil {
		t.Fatalf("Get returned nil for inserted node")
	}
	if nt.Store(0) == nt.Store(2) {
		t.Fatalf("namespace 0 and namespace 2 share the same store")
	}

	unknownNs := ua.NewNumericNodeId(9, 1)
	if nt.Get(unknownNs) != nil {
		t.Fatalf("Get on unregistered namespace should return nil")
	}
}
