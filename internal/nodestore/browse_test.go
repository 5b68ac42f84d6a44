package nodestore

import (
	"testing"

	"github.com/coriolis-automation/opcuacore/internal/ua"
)

func insertTestNode(t *testing.T, nt *NamespaceTable, id ua.NodeId, class ua.NodeClass, browseName string) {
	t.Helper()
	attrs := &ua.NodeAttributes{
		NodeClass:  class,
		BrowseName: ua.QualifiedName{NamespaceIndex: id.NamespaceIndex, Name: browseName},
	}
	if _, err := nt.Insert(id, attrs); err != nil {
		t.Fatalf("Insert(%v): %v", id, err)
	}
}

func TestAddReference_InsertsInverseAtTarget(t *testing.T) {
	nt := NewNamespaceTable()
	parent := ua.NewNumericNodeId(0, 100)
	child := ua.NewNumericNodeId(0, 101)
	insertTestNode(t, nt, parent, ua.NodeClassObject, "Parent")
	insertTestNode(t, nt, child, ua.NodeClassVariable, "Child")

	if err := nt.AddReference(parent, ReferenceTypeHasComponent, ua.ExpandedNodeId{NodeId: child}, false); err != nil {
		t.Fatalf("AddReference: %v", err)
	}

	parentRefs := nt.Get(parent).Attrs().References
	if len(parentRefs) != 1 || parentRefs[0].IsInverse || !parentRefs[0].TargetId.NodeId.Equal(child) {
		t.Fatalf("parent references = %+v, want one forward ref to child", parentRefs)
	}

	childRefs := nt.Get(child).Attrs().References
	if len(childRefs) != 1 || !childRefs[0].IsInverse || !childRefs[0].TargetId.NodeId.Equal(parent) {
		t.Fatalf("child references = %+v, want one inverse ref to parent", childRefs)
	}
}

func TestResolveBrowsePath_WalksHierarchicalChain(t *testing.T) {
	nt := NewNamespaceTable()
	root := ua.NewNumericNodeId(0, 200)
	folder := ua.NewNumericNodeId(0, 201)
	leaf := ua.NewNumericNodeId(0, 202)
	insertTestNode(t, nt, root, ua.NodeClassObject, "Root")
	insertTestNode(t, nt, folder, ua.NodeClassObject, "Folder")
	insertTestNode(t, nt, leaf, ua.NodeClassVariable, "Leaf")

	if err := nt.AddReference(root, ReferenceTypeOrganizes, ua.ExpandedNodeId{NodeId: folder}, false); err != nil {
		t.Fatalf("AddReference root->folder: %v", err)
	}
	if err := nt.AddReference(folder, ReferenceTypeHasComponent, ua.ExpandedNodeId{NodeId: leaf}, false); err != nil {
		t.Fatalf("AddReference folder->leaf: %v", err)
	}

	path := []ua.QualifiedName{{Name: "Folder"}, {Name: "Leaf"}}
	got, ok := nt.ResolveBrowsePath(root, path)
	if !ok || !got.Equal(leaf) {
		t.Fatalf("ResolveBrowsePath = (%v, %v), want (%v, true)", got, ok, leaf)
	}

	if _, ok := nt.ResolveBrowsePath(root, []ua.QualifiedName{{Name: "Missing"}}); ok {
		t.Fatal("ResolveBrowsePath with unmatched path element, want ok=false")
	}
}

func TestIsSubtypeOrEqual_WalksSubtypeChain(t *testing.T) {
	nt := NewNamespaceTable()
	base := ua.NewNumericNodeId(0, 300)
	mid := ua.NewNumericNodeId(0, 301)
	leaf := ua.NewNumericNodeId(0, 302)
	insertTestNode(t, nt, base, ua.NodeClassObjectType, "BaseType")
	insertTestNode(t, nt, mid, ua.NodeClassObjectType, "MidType")
	insertTestNode(t, nt, leaf, ua.NodeClassObjectType, "LeafType")

	if err := nt.AddReference(base, ReferenceTypeHasSubtype, ua.ExpandedNodeId{NodeId: mid}, false); err != nil {
		t.Fatalf("AddReference base->mid: %v", err)
	}
	if err := nt.AddReference(mid, ReferenceTypeHasSubtype, ua.ExpandedNodeId{NodeId: leaf}, false); err != nil {
		t.Fatalf("AddReference mid->leaf: %v", err)
	}

	if !nt.IsSubtypeOrEqual(leaf, base) {
		t.Fatal("IsSubtypeOrEqual(leaf, base) = false, want true")
	}
	if !nt.IsSubtypeOrEqual(base, base) {
		t.Fatal("IsSubtypeOrEqual(base, base) = false, want true")
	}
	other := ua.NewNumericNodeId(0, 399)
	insertTestNode(t, nt, other, ua.NodeClassObjectType, "Unrelated")
	if nt.IsSubtypeOrEqual(other, base) {
		t.Fatal("IsSubtypeOrEqual(unrelated, base) = true, want false")
	}
}

func TestEmitters_ClosureIncludesOriginAndAncestors(t *testing.T) {
	nt := NewNamespaceTable()
	server := ua.NewNumericNodeId(0, 400)
	device := ua.NewNumericNodeId(0, 401)
	sensor := ua.NewNumericNodeId(0, 402)
	insertTestNode(t, nt, server, ua.NodeClassObject, "Server")
	insertTestNode(t, nt, device, ua.NodeClassObject, "Device")
	insertTestNode(t, nt, sensor, ua.NodeClassVariable, "Sensor")

	if err := nt.AddReference(server, ReferenceTypeHasNotifier, ua.ExpandedNodeId{NodeId: device}, false); err != nil {
		t.Fatalf("AddReference server->device: %v", err)
	}
	if err := nt.AddReference(device, ReferenceTypeHasComponent, ua.ExpandedNodeId{NodeId: sensor}, false); err != nil {
		t.Fatalf("AddReference device->sensor: %v", err)
	}

	emitters := nt.Emitters(sensor)
	want := map[ua.NodeId]bool{sensor: true, device: true, server: true}
	if len(emitters) != len(want) {
		t.Fatalf("Emitters(sensor) = %v, want 3 entries covering %v", emitters, want)
	}
	for _, id := range emitters {
		if !want[id] {
			t.Fatalf("Emitters(sensor) contained unexpected node %v", id)
		}
	}
}

func TestAddNodesAndBrowse(t *testing.T) {
	nt := NewNamespaceTable()
	parent := ua.NewNumericNodeId(0, 500)
	insertTestNode(t, nt, parent, ua.NodeClassObject, "Parent")

	results := nt.AddNodes([]AddNodesItem{{
		RequestedNewNodeId: ua.NewNumericNodeId(1, 0),
		BrowseName:         ua.QualifiedName{NamespaceIndex: 1, Name: "Child"},
		NodeClass:          ua.NodeClassVariable,
		ParentNodeId:       parent,
		ReferenceTypeId:    ReferenceTypeHasComponent,
	}})
	if len(results) != 1 || results[0].StatusCode != ua.Good {
		t.Fatalf("AddNodes = %+v, want one Good result", results)
	}
	child := results[0].AddedNodeId

	browsed := nt.Browse([]BrowseDescription{{NodeId: parent, BrowseDirection: BrowseForward}})
	if len(browsed) != 1 || browsed[0].StatusCode != ua.Good || len(browsed[0].References) != 1 {
		t.Fatalf("Browse(parent) = %+v, want one forward reference", browsed)
	}
	if !browsed[0].References[0].TargetId.NodeId.Equal(child) {
		t.Fatalf("Browse target = %v, want %v", browsed[0].References[0].TargetId.NodeId, child)
	}

	deleteResults := nt.DeleteNodes([]DeleteNodesItem{{NodeId: child, DeleteTargetReferences: true}})
	if deleteResults[0] != ua.Good {
		t.Fatalf("DeleteNodes = %v, want Good", deleteResults[0])
	}
	if nt.Get(parent).Attrs().References != nil {
		t.Fatalf("parent references after DeleteNodes = %v, want none left", nt.Get(parent).Attrs().References)
	}
}

func TestReadAndWrite(t *testing.T) {
	nt := NewNamespaceTable()
	id := ua.NewNumericNodeId(1, 0)
	attrs := &ua.NodeAttributes{NodeClass: ua.NodeClassVariable, BrowseName: ua.QualifiedName{Name: "Temp"}}
	assigned, err := nt.Insert(id, attrs)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	writeResults := nt.Write([]WriteValue{{
		NodeId:      assigned,
		AttributeId: ua.AttrValue,
		Value:       ua.DataValue{Value: ua.NewDoubleVariant(21.5), Status: ua.Good, HasValue: true},
	}})
	if writeResults[0] != ua.Good {
		t.Fatalf("Write = %v, want Good", writeResults[0])
	}

	readResults := nt.Read([]ReadValueId{{NodeId: assigned, AttributeId: ua.AttrValue}})
	if len(readResults) != 1 || !readResults[0].HasValue || readResults[0].Value.Float != 21.5 {
		t.Fatalf("Read after Write = %+v, want Float=21.5", readResults)
	}
}
