package ua

// NodeClass identifies which address-space node kind a Node represents.
type NodeClass uint8

const (
	NodeClassUnspecified NodeClass = iota
	NodeClassObject
	NodeClassVariable
	NodeClassMethod
	NodeClassObjectType
	NodeClassVariableType
	NodeClassReferenceType
	NodeClassDataType
	NodeClassView
)

// AttributeId enumerates the readable/writable attributes of a node,
// numbered 1..27 as in the OPC UA attribute id space. Only the subset this
// core reads or writes is named; the range itself is still meaningful for
// bounds checks in ReadValueId handling.
type AttributeId uint32

const (
	AttrNodeId AttributeId = iota + 1
	AttrNodeClass
	AttrBrowseName
	AttrDisplayName
	AttrDescription
	AttrWriteMask
	AttrUserWriteMask
	AttrIsAbstract
	AttrSymmetric
	AttrInverseName
	AttrContainsNoLoops
	AttrEventNotifier
	AttrValue
	AttrDataType
	AttrValueRank
	AttrArrayDimensions
	AttrAccessLevel
	AttrUserAccessLevel
	AttrMinimumSamplingInterval
	AttrHistorizing
	AttrExecutable
	AttrUserExecutable
	AttrDataTypeDefinition
	AttrRolePermissions
	AttrUserRolePermissions
	AttrAccessRestrictions
	AttrAccessLevelEx
)

// attrMin and attrMax bound the valid AttributeId range (1..27).
const (
	attrMin = AttrNodeId
	attrMax = AttrAccessLevelEx
)

// ValidAttributeId reports whether id falls within the defined attribute
// range.
func ValidAttributeId(id AttributeId) bool {
	return id >= attrMin && id <= attrMax
}

// Reference is a directed edge from the owning node to TargetId, identified
// by reference type and direction. References are stored by NodeId value
// rather than by pointer so the node store never forms reference cycles
// through live object graphs (spec.md §3).
type Reference struct {
	ReferenceTypeId NodeId
	IsInverse       bool
	TargetId        ExpandedNodeId
}

// MonitoringMode controls whether a MonitoredItem samples and/or reports.
type MonitoringMode uint8

const (
	MonitoringModeDisabled MonitoringMode = iota
	MonitoringModeSampling
	MonitoringModeReporting
)

// MonitoredItemKind distinguishes data-change from event monitoring.
type MonitoredItemKind uint8

const (
	MonitoredItemDataChange MonitoredItemKind = iota
	MonitoredItemEvent
)

// TimestampsToReturn selects which timestamps a read or monitored notify
// should populate.
type TimestampsToReturn uint8

const (
	TimestampsSource TimestampsToReturn = iota
	TimestampsServer
	TimestampsBoth
	TimestampsNeither
)

// NodeAttributes holds the attribute values common to every NodeClass, plus
// the NodeClass-specific fields relevant to this core (Variable and Method).
// Node identity (NodeId) is held externally by the store entry, not here,
// so that copies made for optimistic-CAS replace never need to rewrite it.
type NodeAttributes struct {
	NodeClass    NodeClass
	BrowseName   QualifiedName
	DisplayName  LocalizedText
	Description  LocalizedText
	WriteMask    uint32
	References   []Reference

	// Variable / VariableType fields.
	Value                     DataValue
	DataType                  NodeId
	ValueRank                 int32
	ArrayDimensions           []uint32
	AccessLevel               byte
	MinimumSamplingIntervalMs float64
	Historizing               bool

	// Method fields.
	Executable     bool
	UserExecutable bool
	Async          bool
}

// ReadAttribute returns the value of the named attribute, or a Bad status
// if the attribute does not apply to this node's class (spec.md §4.A).
func (a *NodeAttributes) ReadAttribute(id AttributeId) (Variant, StatusCode) {
	switch id {
	case AttrNodeClass:
		return NewInt64Variant(int64(a.NodeClass)), Good
	case AttrBrowseName:
		return Variant{Type: VariantString, Str: a.BrowseName.Name}, Good
	case AttrDisplayName:
		return Variant{Type: VariantLocalizedText, Text: a.DisplayName}, Good
	case AttrDescription:
		return Variant{Type: VariantLocalizedText, Text: a.Description}, Good
	case AttrWriteMask, AttrUserWriteMask:
		return NewUInt64Variant(uint64(a.WriteMask)), Good
	case AttrValue:
		if a.NodeClass != NodeClassVariable {
			return Variant{}, BadAttributeIdInvalid
		}
		return a.Value.Value, a.Value.Status
	case AttrDataType:
		if a.NodeClass != NodeClassVariable && a.NodeClass != NodeClassVariableType {
			return Variant{}, BadAttributeIdInvalid
		}
		return NewNodeIdVariant(a.DataType), Good
	case AttrValueRank:
		return NewInt64Variant(int64(a.ValueRank)), Good
	case AttrAccessLevel, AttrUserAccessLevel:
		if a.NodeClass != NodeClassVariable {
			return Variant{}, BadAttributeIdInvalid
		}
		return NewUInt64Variant(uint64(a.AccessLevel)), Good
	case AttrMinimumSamplingInterval:
		if a.NodeClass != NodeClassVariable {
			return Variant{}, BadAttributeIdInvalid
		}
		return NewDoubleVariant(a.MinimumSamplingIntervalMs), Good
	case AttrHistorizing:
		return NewBooleanVariant(a.Historizing), Good
	case AttrExecutable:
		if a.NodeClass != NodeClassMethod {
			return Variant{}, BadAttributeIdInvalid
		}
		return NewBooleanVariant(a.Executable), Good
	case AttrUserExecutable:
		if a.NodeClass != NodeClassMethod {
			return Variant{}, BadAttributeIdInvalid
		}
		return NewBooleanVariant(a.UserExecutable), Good
	default:
		if !ValidAttributeId(id) {
			return Variant{}, BadAttributeIdInvalid
		}
		return Variant{}, BadAttributeIdInvalid
	}
}
