// Package eventfilter compiles and evaluates OPC UA ContentFilters
// (where-clauses) and resolves SimpleAttributeOperands (select-clauses)
// against a candidate event node.
package eventfilter

import "github.com/coriolis-automation/opcuacore/internal/ua"

// NodeReader is the minimal address-space read surface the filter
// evaluator needs: resolve a browse path from an origin node, and read one
// attribute off a resolved node. Implementations typically wrap
// nodestore.NamespaceTable plus a reference-following browse-path walker.
type NodeReader interface {
	// ResolveBrowsePath walks path (a sequence of QualifiedName hops) from
	// origin, following forward HierarchicalReferences, and returns the
	// resolved NodeId. ok is false if the path does not resolve.
	ResolveBrowsePath(origin ua.NodeId, path []ua.QualifiedName) (ua.NodeId, bool)
	// ReadAttribute reads attributeId off nodeId, honoring indexRange when
	// non-empty. Returns BadNodeIdUnknown / BadAttributeIdInvalid /
	// BadIndexRangeInvalid as appropriate.
	ReadAttribute(nodeId ua.NodeId, attributeId ua.AttributeId, indexRange string) (ua.Variant, ua.StatusCode)
	// IsSubtypeOrEqual reports whether candidate equals baseType or is
	// connected to it by a chain of HasSubtype references, used by OFTYPE.
	IsSubtypeOrEqual(candidate, baseType ua.NodeId) bool
}

// SimpleAttributeOperand selects one attribute of one node reachable from
// an event's origin, per Part 4 §7.4.4.5.
type SimpleAttributeOperand struct {
	TypeDefinitionId ua.NodeId
	BrowsePath       []ua.QualifiedName
	AttributeId      ua.AttributeId
	IndexRange       string
}

// conditionTypeId is the well-known ConditionType NodeId (ns=0;i=2782).
// Resolve does not consult it: an operand with an empty BrowsePath reads
// the origin directly whatever its TypeDefinitionId, so a filter naming
// ConditionType is treated as addressing the origin itself (conditions and
// alarms are not modeled in this core).
var conditionTypeId = ua.NewNumericNodeId(0, 2782)

// Resolve evaluates op against originNode using reader, returning the
// attribute value or a diagnostic StatusCode on failure (spec.md §4.B).
func (op SimpleAttributeOperand) Resolve(reader NodeReader, origin ua.NodeId) (ua.Variant, ua.StatusCode) {
	target := origin
	if len(op.BrowsePath) > 0 {
		resolved, ok := reader.ResolveBrowsePath(origin, op.BrowsePath)
		if !ok {
			return ua.Variant{}, ua.BadNoMatch
		}
		target = resolved
	}
	if !ua.ValidAttributeId(op.AttributeId) {
		return ua.Variant{}, ua.BadAttributeIdInvalid
	}
	return reader.ReadAttribute(target, op.AttributeId, op.IndexRange)
}
