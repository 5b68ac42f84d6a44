// service.go implements the address-space-editing and read/write service
// operations spec.md §6 assigns to Component A: AddNodes, DeleteNodes,
// AddReferences, DeleteReferences, Browse, TranslateBrowsePathsToNodeIds,
// Read, Write. Each is a batch call over its per-item request/result pair,
// matching the one-call-many-items shape of the underlying OPC UA services;
// this core never encodes/decodes the wire messages themselves (spec.md
// §6), only the decoded item arrays.
package nodestore

import "github.com/coriolis-automation/opcuacore/internal/ua"

// AddNodesItem is one entry of an AddNodes call: the requested identity,
// node class, and attribute set for a new node, plus an optional
// parent/reference-type pair to attach it under in the same call.
type AddNodesItem struct {
	RequestedNewNodeId ua.NodeId
	BrowseName         ua.QualifiedName
	NodeClass          ua.NodeClass
	Attributes         ua.NodeAttributes
	ParentNodeId       ua.NodeId
	ReferenceTypeId    ua.NodeId
}

// AddNodesResult is one AddNodes outcome.
type AddNodesResult struct {
	StatusCode  ua.StatusCode
	AddedNodeId ua.NodeId
}

// AddNodes inserts each item's node and, when ParentNodeId is not null,
// wires the parent→node reference (with its inverse) in the same call.
func (t *NamespaceTable) AddNodes(items []AddNodesItem) []AddNodesResult {
	results := make([]AddNodesResult, len(items))
	for i, item := range items {
		attrs := item.Attributes
		attrs.NodeClass = item.NodeClass
		attrs.BrowseName = item.BrowseName

		assigned, err := t.Insert(item.RequestedNewNodeId, &attrs)
		if err != nil {
			results[i] = AddNodesResult{StatusCode: insertErrorStatus(err)}
			continue
		}
		if !item.ParentNodeId.IsNull() {
			refType := item.ReferenceTypeId
			if refType.IsNull() {
				refType = ReferenceTypeHasComponent
			}
			_ = t.AddReference(item.ParentNodeId, refType, ua.ExpandedNodeId{NodeId: assigned}, false)
		}
		results[i] = AddNodesResult{StatusCode: ua.Good, AddedNodeId: assigned}
	}
	return results
}

func insertErrorStatus(err error) ua.StatusCode {
	switch err {
	case ErrNodeIdExists:
		return ua.BadNodeIdExists
	case ErrOutOfMemory:
		return ua.BadOutOfMemory
	default:
		return ua.BadInternalError
	}
}

// DeleteNodesItem is one entry of a DeleteNodes call. DeleteTargetReferences
// additionally removes every reference elsewhere in the address space whose
// TargetId points at NodeId, matching the service's optional cleanup pass.
type DeleteNodesItem struct {
	NodeId                 ua.NodeId
	DeleteTargetReferences bool
}

// DeleteNodes removes each item's node. When DeleteTargetReferences is set,
// it also sweeps every live node's References for one pointing back at the
// deleted NodeId — an O(n) pass per such item, acceptable here since this
// core has no expectation of a large, churn-heavy address space.
func (t *NamespaceTable) DeleteNodes(items []DeleteNodesItem) []ua.StatusCode {
	results := make([]ua.StatusCode, len(items))
	for i, item := range items {
		if err := t.Remove(item.NodeId); err != nil {
			results[i] = ua.BadNodeIdUnknown
			continue
		}
		results[i] = ua.Good
		if item.DeleteTargetReferences {
			t.pruneReferencesTo(item.NodeId)
		}
	}
	return results
}

func (t *NamespaceTable) pruneReferencesTo(target ua.NodeId) {
	t.mu.RLock()
	stores := make([]*Store, 0, len(t.stores))
	for _, s := range t.stores {
		stores = append(stores, s)
	}
	t.mu.RUnlock()

	for _, s := range stores {
		var toFix []ua.NodeId
		s.Iterate(func(e *Entry) {
			for _, ref := range e.Attrs().References {
				if ref.TargetId.NodeId.Equal(target) {
					toFix = append(toFix, e.NodeId)
					return
				}
			}
		})
		for _, id := range toFix {
			cp := t.GetCopy(id)
			if cp == nil {
				continue
			}
			attrs := cp.Attrs()
			kept := attrs.References[:0]
			for _, ref := range attrs.References {
				if !ref.TargetId.NodeId.Equal(target) {
					kept = append(kept, ref)
				}
			}
			if len(kept) == 0 {
				kept = nil
			}
			attrs.References = kept
			_ = t.Replace(cp)
		}
	}
}

// AddReferencesItem is one entry of an AddReferences call.
type AddReferencesItem struct {
	SourceNodeId    ua.NodeId
	ReferenceTypeId ua.NodeId
	IsForward       bool
	TargetNodeId    ua.ExpandedNodeId
}

// AddReferences adds each item's reference (and its inverse, per AddReference).
func (t *NamespaceTable) AddReferences(items []AddReferencesItem) []ua.StatusCode {
	results := make([]ua.StatusCode, len(items))
	for i, item := range items {
		if err := t.AddReference(item.SourceNodeId, item.ReferenceTypeId, item.TargetNodeId, !item.IsForward); err != nil {
			results[i] = ua.BadNodeIdUnknown
			continue
		}
		results[i] = ua.Good
	}
	return results
}

// DeleteReferencesItem is one entry of a DeleteReferences call.
type DeleteReferencesItem struct {
	SourceNodeId           ua.NodeId
	ReferenceTypeId        ua.NodeId
	IsForward              bool
	TargetNodeId           ua.ExpandedNodeId
	DeleteBidirectional    bool
}

// DeleteReferences removes each item's reference via DeleteReference.
func (t *NamespaceTable) DeleteReferences(items []DeleteReferencesItem) []ua.StatusCode {
	results := make([]ua.StatusCode, len(items))
	for i, item := range items {
		if err := t.DeleteReference(item.SourceNodeId, item.ReferenceTypeId, !item.IsForward, item.TargetNodeId, item.DeleteBidirectional); err != nil {
			results[i] = ua.BadNodeIdUnknown
			continue
		}
		results[i] = ua.Good
	}
	return results
}

// BrowseDescription is one entry of a Browse call: the node to browse from,
// and the filters on which references to return.
type BrowseDescription struct {
	NodeId          ua.NodeId
	ReferenceTypeId ua.NodeId // null means "any"
	IncludeSubtypes bool
	BrowseDirection BrowseDirection
}

// BrowseDirection selects forward, inverse, or both reference directions.
type BrowseDirection uint8

const (
	BrowseForward BrowseDirection = iota
	BrowseInverse
	BrowseBoth
)

// ReferenceDescription is one reference surfaced by Browse.
type ReferenceDescription struct {
	ReferenceTypeId ua.NodeId
	IsForward       bool
	TargetId        ua.ExpandedNodeId
	BrowseName      ua.QualifiedName
	DisplayName     ua.LocalizedText
	NodeClass       ua.NodeClass
}

// BrowseResult is one Browse outcome.
type BrowseResult struct {
	StatusCode ua.StatusCode
	References []ReferenceDescription
}

// Browse lists the references leaving (or entering) each item's NodeId,
// filtered by ReferenceTypeId/IncludeSubtypes/BrowseDirection.
func (t *NamespaceTable) Browse(items []BrowseDescription) []BrowseResult {
	results := make([]BrowseResult, len(items))
	for i, item := range items {
		entry := t.Get(item.NodeId)
		if entry == nil {
			results[i] = BrowseResult{StatusCode: ua.BadNodeIdUnknown}
			continue
		}
		var refs []ReferenceDescription
		for _, ref := range entry.Attrs().References {
			if !item.matches(ref, t) {
				continue
			}
			desc := ReferenceDescription{ReferenceTypeId: ref.ReferenceTypeId, IsForward: !ref.IsInverse, TargetId: ref.TargetId}
			if target := t.Get(ref.TargetId.NodeId); target != nil {
				desc.BrowseName = target.Attrs().BrowseName
				desc.DisplayName = target.Attrs().DisplayName
				desc.NodeClass = target.Attrs().NodeClass
			}
			refs = append(refs, desc)
		}
		results[i] = BrowseResult{StatusCode: ua.Good, References: refs}
	}
	return results
}

func (item BrowseDescription) matches(ref ua.Reference, t *NamespaceTable) bool {
	switch item.BrowseDirection {
	case BrowseForward:
		if ref.IsInverse {
			return false
		}
	case BrowseInverse:
		if !ref.IsInverse {
			return false
		}
	}
	if item.ReferenceTypeId.IsNull() {
		return true
	}
	if item.IncludeSubtypes {
		return t.IsSubtypeOrEqual(ref.ReferenceTypeId, item.ReferenceTypeId)
	}
	return ref.ReferenceTypeId.Equal(item.ReferenceTypeId)
}

// BrowsePath is one entry of a TranslateBrowsePathsToNodeIds call.
type BrowsePath struct {
	StartingNode ua.NodeId
	RelativePath []ua.QualifiedName
}

// BrowsePathResult is one TranslateBrowsePathsToNodeIds outcome.
type BrowsePathResult struct {
	StatusCode ua.StatusCode
	TargetId   ua.NodeId
}

// TranslateBrowsePathsToNodeIds resolves each BrowsePath via ResolveBrowsePath.
func (t *NamespaceTable) TranslateBrowsePathsToNodeIds(paths []BrowsePath) []BrowsePathResult {
	results := make([]BrowsePathResult, len(paths))
	for i, p := range paths {
		target, ok := t.ResolveBrowsePath(p.StartingNode, p.RelativePath)
		if !ok {
			results[i] = BrowsePathResult{StatusCode: ua.BadNoMatch}
			continue
		}
		results[i] = BrowsePathResult{StatusCode: ua.Good, TargetId: target}
	}
	return results
}

// ReadValueId is one entry of a Read call.
type ReadValueId struct {
	NodeId      ua.NodeId
	AttributeId ua.AttributeId
	IndexRange  string
}

// Read resolves each ReadValueId via ReadAttribute, wrapping the result as
// a DataValue carrying the value and status; no source or server timestamp
// is set.
func (t *NamespaceTable) Read(items []ReadValueId) []ua.DataValue {
	results := make([]ua.DataValue, len(items))
	for i, item := range items {
		value, status := t.ReadAttribute(item.NodeId, item.AttributeId, item.IndexRange)
		results[i] = ua.DataValue{Value: value, Status: status, HasValue: status.IsGood()}
	}
	return results
}

// WriteValue is one entry of a Write call.
type WriteValue struct {
	NodeId      ua.NodeId
	AttributeId ua.AttributeId
	IndexRange  string
	Value       ua.DataValue
}

// Write applies each WriteValue to its node's attribute set via GetCopy +
// Replace, retrying once on ErrConflict to absorb a single concurrent
// writer before surfacing failure — this core does not expose an explicit
// compare-and-swap API to callers of the Write service.
func (t *NamespaceTable) Write(items []WriteValue) []ua.StatusCode {
	results := make([]ua.StatusCode, len(items))
	for i, item := range items {
		results[i] = t.writeOne(item)
	}
	return results
}

func (t *NamespaceTable) writeOne(item WriteValue) ua.StatusCode {
	if !ua.ValidAttributeId(item.AttributeId) {
		return ua.BadAttributeIdInvalid
	}
	for attempt := 0; attempt < 2; attempt++ {
		cp := t.GetCopy(item.NodeId)
		if cp == nil {
			return ua.BadNodeIdUnknown
		}
		attrs := cp.Attrs()
		switch item.AttributeId {
		case ua.AttrValue:
			if attrs.NodeClass != ua.NodeClassVariable {
				return ua.BadAttributeIdInvalid
			}
			attrs.Value = item.Value
		case ua.AttrDisplayName:
			attrs.DisplayName = item.Value.Value.Text
		case ua.AttrDescription:
			attrs.Description = item.Value.Value.Text
		default:
			return ua.BadAttributeIdInvalid
		}
		err := t.Replace(cp)
		if err == nil {
			return ua.Good
		}
		if err != ErrConflict {
			return ua.BadNodeIdUnknown
		}
	}
	return ua.BadInternalError
}
