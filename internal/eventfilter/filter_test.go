package eventfilter

import (
	"testing"

	"github.com/coriolis-automation/opcuacore/internal/ua"
)

type fakeReader struct {
	attrs    map[ua.NodeId]map[ua.AttributeId]ua.Variant
	subtypes map[ua.NodeId]ua.NodeId // candidate -> its direct supertype, for OFTYPE walks
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		attrs:    make(map[ua.NodeId]map[ua.AttributeId]ua.Variant),
		subtypes: make(map[ua.NodeId]ua.NodeId),
	}
}

func (f *fakeReader) setAttr(id ua.NodeId, attr ua.AttributeId, v ua.Variant) {
	if f.attrs[id] == nil {
		f.attrs[id] = make(map[ua.AttributeId]ua.Variant)
	}
	f.attrs[id][attr] = v
}

func (f *fakeReader) ResolveBrowsePath(ua.NodeId, []ua.QualifiedName) (ua.NodeId, bool) {
	return ua.NodeId{}, false
}

func (f *fakeReader) ReadAttribute(nodeId ua.NodeId, attributeId ua.AttributeId, _ string) (ua.Variant, ua.StatusCode) {
	m, ok := f.attrs[nodeId]
	if !ok {
		return ua.Variant{}, ua.BadNodeIdUnknown
	}
	v, ok := m[attributeId]
	if !ok {
		return ua.Variant{}, ua.BadAttributeIdInvalid
	}
	return v, ua.Good
}

func (f *fakeReader) IsSubtypeOrEqual(candidate, baseType ua.NodeId) bool {
	for cur := candidate; ; {
		if cur.Equal(baseType) {
			return true
		}
		parent, ok := f.subtypes[cur]
		if !ok {
			return false
		}
		cur = parent
	}
}

func TestContentFilter_SimpleEquals(t *testing.T) {
	reader := newFakeReader()
	origin := ua.NewNumericNodeId(1, 100)
	reader.setAttr(origin, ua.AttrValue, ua.NewInt64Variant(42))

	f := ContentFilter{Elements: []ContentFilterElement{
		{Operator: OpEquals, Operands: []Operand{
			{Kind: OperandSimpleAttribute, SimpleAttr: SimpleAttributeOperand{AttributeId: ua.AttrValue}},
			{Kind: OperandLiteral, Literal: ua.NewInt64Variant(42)},
		}},
	}}

	if status := f.Evaluate(reader, origin); status != ua.Good {
		t.Fatalf("Evaluate = %v, want Good", status)
	}

	f.Elements[0].Operands[1].Literal = ua.NewInt64Variant(7)
	if status := f.Evaluate(reader, origin); status != ua.BadNoMatch {
		t.Fatalf("Evaluate = %v, want BadNoMatch", status)
	}
}

func TestContentFilter_AndOrNotKleene(t *testing.T) {
	reader := newFakeReader()
	origin := ua.NewNumericNodeId(1, 1)

	// element 0: NOT(element 1); element 1: AND(true-literal, false-literal)
	f := ContentFilter{Elements: []ContentFilterElement{
		{Operator: OpNot, Operands: []Operand{{Kind: OperandElement, ElementIndex: 1}}},
		{Operator: OpAnd, Operands: []Operand{
			{Kind: OperandLiteral, Literal: ua.NewBooleanVariant(true)},
			{Kind: OperandLiteral, Literal: ua.NewBooleanVariant(false)},
		}},
	}}

	if status := f.Evaluate(reader, origin); status != ua.Good {
		t.Fatalf("Evaluate = %v, want Good (NOT False = True)", status)
	}
}

func TestContentFilter_OfType(t *testing.T) {
	reader := newFakeReader()
	origin := ua.NewNumericNodeId(1, 5)
	derivedType := ua.NewNumericNodeId(0, 5001)
	baseType := ua.NewNumericNodeId(0, 2041) // BaseEventType-ish
	reader.subtypes[derivedType] = baseType
	reader.setAttr(origin, eventTypeAttr, ua.NewNodeIdVariant(derivedType))

	f := ContentFilter{Elements: []ContentFilterElement{
		{Operator: OpOfType, Operands: []Operand{
			{Kind: OperandLiteral, Literal: ua.NewNodeIdVariant(baseType)},
		}},
	}}

	if status := f.Evaluate(reader, origin); status != ua.Good {
		t.Fatalf("Evaluate = %v, want Good", status)
	}

	notRelated := ua.NewNumericNodeId(0, 9999)
	f.Elements[0].Operands[0].Literal = ua.NewNodeIdVariant(notRelated)
	if status := f.Evaluate(reader, origin); status != ua.BadNoMatch {
		t.Fatalf("Evaluate = %v, want BadNoMatch", status)
	}
}

func TestContentFilter_Between(t *testing.T) {
	reader := newFakeReader()
	origin := ua.NewNumericNodeId(1, 1)
	reader.setAttr(origin, ua.AttrValue, ua.NewDoubleVariant(5.5))

	f := ContentFilter{Elements: []ContentFilterElement{
		{Operator: OpBetween, Operands: []Operand{
			{Kind: OperandSimpleAttribute, SimpleAttr: SimpleAttributeOperand{AttributeId: ua.AttrValue}},
			{Kind: OperandLiteral, Literal: ua.NewDoubleVariant(0)},
			{Kind: OperandLiteral, Literal: ua.NewDoubleVariant(10)},
		}},
	}}
	if status := f.Evaluate(reader, origin); status != ua.Good {
		t.Fatalf("Evaluate = %v, want Good", status)
	}
}

func TestValidateContentFilter_RejectsBackwardReference(t *testing.T) {
	f := ContentFilter{Elements: []ContentFilterElement{
		{Operator: OpNot, Operands: []Operand{{Kind: OperandElement, ElementIndex: 0}}},
	}}
	result := ValidateContentFilter(f)
	if result.Status.IsGood() {
		t.Fatalf("expected validation failure for self-referencing element")
	}
}

func TestValidateContentFilter_RejectsUnsupportedOperator(t *testing.T) {
	f := ContentFilter{Elements: []ContentFilterElement{
		{Operator: OpLike, Operands: []Operand{
			{Kind: OperandLiteral, Literal: ua.NewStringVariant("a")},
			{Kind: OperandLiteral, Literal: ua.NewStringVariant("b")},
		}},
	}}
	result := ValidateContentFilter(f)
	if result.Elements[0].Status != ua.BadFilterOperatorUnsupported {
		t.Fatalf("status = %v, want BadFilterOperatorUnsupported", result.Elements[0].Status)
	}
}

func TestValidateSelectClause_IndexRangeOnlyForValue(t *testing.T) {
	op := SimpleAttributeOperand{AttributeId: ua.AttrDisplayName, IndexRange: "0:1"}
	if res := ValidateSelectClause(op); res.Status != ua.BadIndexRangeInvalid {
		t.Fatalf("status = %v, want BadIndexRangeInvalid", res.Status)
	}
}
