package nodestore

import "github.com/coriolis-automation/opcuacore/internal/ua"

// Well-known ReferenceTypeIds from the standard (namespace 0) ReferenceType
// hierarchy that this package's reference-closure logic reasons about.
var (
	ReferenceTypeOrganizes      = ua.NewNumericNodeId(0, 35)
	ReferenceTypeHasEventSource = ua.NewNumericNodeId(0, 36)
	ReferenceTypeHasSubtype     = ua.NewNumericNodeId(0, 45)
	ReferenceTypeHasComponent   = ua.NewNumericNodeId(0, 47)
	ReferenceTypeHasNotifier    = ua.NewNumericNodeId(0, 78)
)

// hierarchicalReferenceTypes is the set {Organizes, HasComponent,
// HasEventSource, HasNotifier} spec.md §4.C.5 names for the event-emitter
// closure and that browse-path resolution walks forward over.
var hierarchicalReferenceTypes = [...]ua.NodeId{
	ReferenceTypeOrganizes,
	ReferenceTypeHasComponent,
	ReferenceTypeHasEventSource,
	ReferenceTypeHasNotifier,
}

func isHierarchical(id ua.NodeId) bool {
	for _, t := range hierarchicalReferenceTypes {
		if t.Equal(id) {
			return true
		}
	}
	return false
}

// AddReference appends a reference from "from" to target and, when target
// resolves to a node local to this table (no remote server index/namespace
// URI), the matching inverse reference at the target — "adding a reference
// also adds the inverse reference at the target" (spec.md §3).
func (t *NamespaceTable) AddReference(from ua.NodeId, referenceTypeId ua.NodeId, target ua.ExpandedNodeId, isInverse bool) error {
	src := t.GetCopy(from)
	if src == nil {
		return ErrNodeIdUnknown
	}
	srcAttrs := src.Attrs()
	srcAttrs.References = append(srcAttrs.References, ua.Reference{
		ReferenceTypeId: referenceTypeId,
		IsInverse:       isInverse,
		TargetId:        target,
	})
	if err := t.Replace(src); err != nil {
		return err
	}

	if target.ServerIndex != 0 || target.NamespaceURI != "" {
		return nil
	}
	dst := t.GetCopy(target.NodeId)
	if dst == nil {
		return nil
	}
	dstAttrs := dst.Attrs()
	dstAttrs.References = append(dstAttrs.References, ua.Reference{
		ReferenceTypeId: referenceTypeId,
		IsInverse:       !isInverse,
		TargetId:        ua.ExpandedNodeId{NodeId: from},
	})
	return t.Replace(dst)
}

// DeleteReference removes the first reference on "from" matching
// referenceTypeId/isInverse/target, and, when bidirectional is set, the
// matching inverse reference at the target as well.
func (t *NamespaceTable) DeleteReference(from ua.NodeId, referenceTypeId ua.NodeId, isInverse bool, target ua.ExpandedNodeId, bidirectional bool) error {
	src := t.GetCopy(from)
	if src == nil {
		return ErrNodeIdUnknown
	}
	srcAttrs := src.Attrs()
	if !removeReference(srcAttrs, referenceTypeId, isInverse, target) {
		return nil
	}
	if err := t.Replace(src); err != nil {
		return err
	}

	if !bidirectional || target.ServerIndex != 0 || target.NamespaceURI != "" {
		return nil
	}
	dst := t.GetCopy(target.NodeId)
	if dst == nil {
		return nil
	}
	dstAttrs := dst.Attrs()
	removeReference(dstAttrs, referenceTypeId, !isInverse, ua.ExpandedNodeId{NodeId: from})
	return t.Replace(dst)
}

func removeReference(attrs *ua.NodeAttributes, referenceTypeId ua.NodeId, isInverse bool, target ua.ExpandedNodeId) bool {
	for i, ref := range attrs.References {
		if ref.ReferenceTypeId.Equal(referenceTypeId) && ref.IsInverse == isInverse && ref.TargetId.NodeId.Equal(target.NodeId) {
			attrs.References = append(attrs.References[:i], attrs.References[i+1:]...)
			return true
		}
	}
	return false
}

// ResolveBrowsePath walks path forward from origin one element at a time,
// at each step matching a hierarchical-reference target's BrowseName
// against the next QualifiedName (spec.md §4.B SimpleAttributeOperand
// resolution). Satisfies eventfilter.NodeReader.
func (t *NamespaceTable) ResolveBrowsePath(origin ua.NodeId, path []ua.QualifiedName) (ua.NodeId, bool) {
	current := origin
	for _, qn := range path {
		entry := t.Get(current)
		if entry == nil {
			return ua.NodeId{}, false
		}
		next, ok := t.matchForward(entry, qn)
		if !ok {
			return ua.NodeId{}, false
		}
		current = next
	}
	return current, true
}

func (t *NamespaceTable) matchForward(entry *Entry, qn ua.QualifiedName) (ua.NodeId, bool) {
	for _, ref := range entry.Attrs().References {
		if ref.IsInverse || !isHierarchical(ref.ReferenceTypeId) {
			continue
		}
		target := t.Get(ref.TargetId.NodeId)
		if target == nil {
			continue
		}
		bn := target.Attrs().BrowseName
		if bn.NamespaceIndex == qn.NamespaceIndex && bn.Name == qn.Name {
			return ref.TargetId.NodeId, true
		}
	}
	return ua.NodeId{}, false
}

// ReadAttribute resolves nodeId to its live Entry and reads attributeId off
// it, treating AttrNodeId specially since node identity is held by the
// store entry rather than ua.NodeAttributes itself. indexRange is accepted
// for interface compatibility but not applied: this core reads whole
// attribute values only. Satisfies eventfilter.NodeReader.
func (t *NamespaceTable) ReadAttribute(nodeId ua.NodeId, attributeId ua.AttributeId, indexRange string) (ua.Variant, ua.StatusCode) {
	entry := t.Get(nodeId)
	if entry == nil {
		return ua.Variant{}, ua.BadNodeIdUnknown
	}
	if attributeId == ua.AttrNodeId {
		return ua.NewNodeIdVariant(nodeId), ua.Good
	}
	return entry.Attrs().ReadAttribute(attributeId)
}

// IsSubtypeOrEqual walks the HasSubtype chain upward from candidate,
// reporting whether baseType is reached (or candidate == baseType).
// Satisfies eventfilter.NodeReader, used by OfType filter evaluation.
func (t *NamespaceTable) IsSubtypeOrEqual(candidate, baseType ua.NodeId) bool {
	if candidate.Equal(baseType) {
		return true
	}
	visited := map[ua.NodeId]bool{candidate: true}
	current := candidate
	for {
		super, ok := t.supertypeOf(current)
		if !ok {
			return false
		}
		if super.Equal(baseType) {
			return true
		}
		if visited[super] {
			return false
		}
		visited[super] = true
		current = super
	}
}

func (t *NamespaceTable) supertypeOf(id ua.NodeId) (ua.NodeId, bool) {
	entry := t.Get(id)
	if entry == nil {
		return ua.NodeId{}, false
	}
	for _, ref := range entry.Attrs().References {
		if ref.IsInverse && ref.ReferenceTypeId.Equal(ReferenceTypeHasSubtype) {
			return ref.TargetId.NodeId, true
		}
	}
	return ua.NodeId{}, false
}

// Emitters walks the upward hierarchical closure over
// {Organizes, HasComponent, HasEventSource, HasNotifier} from origin,
// following each reference's inverse direction toward ancestor notifiers
// (spec.md §4.C.5 step 2). The origin itself is always included.
// Satisfies subscription.EventEmitterResolver.
func (t *NamespaceTable) Emitters(origin ua.NodeId) []ua.NodeId {
	visited := map[ua.NodeId]bool{origin: true}
	out := []ua.NodeId{origin}
	queue := []ua.NodeId{origin}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		entry := t.Get(current)
		if entry == nil {
			continue
		}
		for _, ref := range entry.Attrs().References {
			if !ref.IsInverse || !isHierarchical(ref.ReferenceTypeId) {
				continue
			}
			parent := ref.TargetId.NodeId
			if visited[parent] {
				continue
			}
			visited[parent] = true
			out = append(out, parent)
			queue = append(queue, parent)
		}
	}
	return out
}
