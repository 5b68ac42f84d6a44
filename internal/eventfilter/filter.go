package eventfilter

import (
	"github.com/coriolis-automation/opcuacore/internal/ua"
)

// FilterOperator enumerates the supported ContentFilter operators. LIKE,
// CAST, INVIEW and RELATEDTO are recognized but rejected during validation
// with BadFilterOperatorUnsupported; if evaluated anyway they yield Null, so
// the filter does not match.
type FilterOperator uint8

const (
	OpEquals FilterOperator = iota
	OpIsNull
	OpGreaterThan
	OpLessThan
	OpGreaterThanOrEqual
	OpLessThanOrEqual
	OpLike
	OpNot
	OpBetween
	OpInList
	OpAnd
	OpOr
	OpCast
	OpInView
	OpOfType
	OpRelatedTo
	OpBitwiseAnd
	OpBitwiseOr
)

var unsupportedOperators = map[FilterOperator]bool{
	OpLike:      true,
	OpCast:      true,
	OpInView:    true,
	OpRelatedTo: true,
}

// OperandKind tags which union member of Operand is populated.
type OperandKind uint8

const (
	OperandLiteral OperandKind = iota
	OperandSimpleAttribute
	OperandElement
	OperandAttribute // AttributeOperand: always BadNotSupported per spec.md §4.B
)

// Operand is one operand of a ContentFilterElement.
type Operand struct {
	Kind         OperandKind
	Literal      ua.Variant
	SimpleAttr   SimpleAttributeOperand
	ElementIndex uint32
}

// ContentFilterElement is one node of the filter tree: an operator plus its
// operands.
type ContentFilterElement struct {
	Operator FilterOperator
	Operands []Operand
}

// ContentFilter is the full where-clause: a flat array of elements,
// evaluated starting from index 0 and referencing later elements via
// ElementOperand (spec.md §4.B: "ElementOperand references MUST point
// forward").
type ContentFilter struct {
	Elements []ContentFilterElement
}

// kleene is a three-valued truth value: true, false, or null (unknown),
// implementing Kleene's strong three-valued logic for AND/OR/NOT.
type kleene uint8

const (
	kFalse kleene = iota
	kTrue
	kNull
)

func boolToKleene(b bool) kleene {
	if b {
		return kTrue
	}
	return kFalse
}

func variantToKleene(v ua.Variant) kleene {
	if v.Type != ua.VariantBoolean {
		return kNull
	}
	return boolToKleene(v.Bool)
}

// evaluator runs one Evaluate call against a ContentFilter: element results
// are memoized per index since the same element may be referenced by
// multiple ElementOperands (spec.md §4.B).
type evaluator struct {
	filter ContentFilter
	reader NodeReader
	origin ua.NodeId
	memo   map[uint32]kleene
}

// Evaluate runs the ContentFilter against originNode and returns Good if
// the filter matches (element 0 evaluates True), BadNoMatch if it
// evaluates False or Null, or a diagnostic status if the filter itself is
// malformed.
func (f ContentFilter) Evaluate(reader NodeReader, originNode ua.NodeId) ua.StatusCode {
	if len(f.Elements) == 0 {
		return ua.BadEventFilterInvalid
	}
	ev := &evaluator{filter: f, reader: reader, origin: originNode, memo: make(map[uint32]kleene)}
	if ev.evalElement(0) == kTrue {
		return ua.Good
	}
	return ua.BadNoMatch
}

func (ev *evaluator) evalElement(idx uint32) kleene {
	if v, ok := ev.memo[idx]; ok {
		return v
	}
	if int(idx) >= len(ev.filter.Elements) {
		ev.memo[idx] = kNull
		return kNull
	}
	result := ev.compute(ev.filter.Elements[idx])
	ev.memo[idx] = result
	return result
}

// resolveOperand evaluates op to a Variant. An ElementOperand resolves to a
// boolean Variant mirroring its Kleene result (Null collapses to "not
// resolvable", matching the original's treatment of unresolved operands).
func (ev *evaluator) resolveOperand(op Operand) (ua.Variant, bool) {
	switch op.Kind {
	case OperandLiteral:
		return op.Literal, true
	case OperandSimpleAttribute:
		v, status := op.SimpleAttr.Resolve(ev.reader, ev.origin)
		if !status.IsGood() {
			return ua.Variant{}, false
		}
		return v, true
	case OperandElement:
		switch ev.evalElement(op.ElementIndex) {
		case kTrue:
			return ua.NewBooleanVariant(true), true
		case kFalse:
			return ua.NewBooleanVariant(false), true
		default:
			return ua.Variant{}, false
		}
	default:
		return ua.Variant{}, false
	}
}

func (ev *evaluator) compute(el ContentFilterElement) kleene {
	if unsupportedOperators[el.Operator] {
		return kNull
	}
	switch el.Operator {
	case OpAnd:
		return ev.evalAnd(el.Operands)
	case OpOr:
		return ev.evalOr(el.Operands)
	case OpNot:
		return ev.evalNot(el.Operands)
	case OpEquals:
		return ev.evalCompare(el.Operands, func(c int) bool { return c == 0 })
	case OpGreaterThan:
		return ev.evalCompare(el.Operands, func(c int) bool { return c > 0 })
	case OpLessThan:
		return ev.evalCompare(el.Operands, func(c int) bool { return c < 0 })
	case OpGreaterThanOrEqual:
		return ev.evalCompare(el.Operands, func(c int) bool { return c >= 0 })
	case OpLessThanOrEqual:
		return ev.evalCompare(el.Operands, func(c int) bool { return c <= 0 })
	case OpIsNull:
		return ev.evalIsNull(el.Operands)
	case OpBetween:
		return ev.evalBetween(el.Operands)
	case OpInList:
		return ev.evalInList(el.Operands)
	case OpOfType:
		return ev.evalOfType(el.Operands)
	case OpBitwiseAnd:
		return ev.evalBitwise(el.Operands, func(a, b uint64) uint64 { return a & b })
	case OpBitwiseOr:
		return ev.evalBitwise(el.Operands, func(a, b uint64) uint64 { return a | b })
	default:
		return kNull
	}
}

func (ev *evaluator) evalAnd(operands []Operand) kleene {
	if len(operands) != 2 {
		return kNull
	}
	a := ev.operandKleene(operands[0])
	b := ev.operandKleene(operands[1])
	if a == kFalse || b == kFalse {
		return kFalse
	}
	if a == kNull || b == kNull {
		return kNull
	}
	return kTrue
}

func (ev *evaluator) evalOr(operands []Operand) kleene {
	if len(operands) != 2 {
		return kNull
	}
	a := ev.operandKleene(operands[0])
	b := ev.operandKleene(operands[1])
	if a == kTrue || b == kTrue {
		return kTrue
	}
	if a == kNull || b == kNull {
		return kNull
	}
	return kFalse
}

func (ev *evaluator) evalNot(operands []Operand) kleene {
	if len(operands) != 1 {
		return kNull
	}
	switch ev.operandKleene(operands[0]) {
	case kTrue:
		return kFalse
	case kFalse:
		return kTrue
	default:
		return kNull
	}
}

// operandKleene resolves an operand directly to a Kleene value, treating a
// boolean Variant as its truth value and anything else (including a failed
// resolution) as Null.
func (ev *evaluator) operandKleene(op Operand) kleene {
	if op.Kind == OperandElement {
		return ev.evalElement(op.ElementIndex)
	}
	v, ok := ev.resolveOperand(op)
	if !ok {
		return kNull
	}
	return variantToKleene(v)
}

func (ev *evaluator) evalCompare(operands []Operand, ok func(int) bool) kleene {
	if len(operands) != 2 {
		return kNull
	}
	a, okA := ev.resolveOperand(operands[0])
	b, okB := ev.resolveOperand(operands[1])
	if !okA || !okB {
		return kNull
	}
	ca, cb, castOk := commonCast(a, b)
	if !castOk {
		return kFalse
	}
	if isNumeric(ca) {
		return boolToKleene(ok(compareNumeric(ca, cb)))
	}
	return boolToKleene(ok(boolCompareEqual(ca, cb)))
}

// boolCompareEqual returns 0 for equal non-numeric values and a nonzero
// sentinel otherwise, since non-numeric comparisons only support equality.
func boolCompareEqual(a, b ua.Variant) int {
	if a.Equal(b) {
		return 0
	}
	return 1
}

func (ev *evaluator) evalIsNull(operands []Operand) kleene {
	if len(operands) != 1 {
		return kNull
	}
	v, ok := ev.resolveOperand(operands[0])
	if !ok {
		return kTrue
	}
	return boolToKleene(v.IsNull())
}

func (ev *evaluator) evalBetween(operands []Operand) kleene {
	if len(operands) != 3 {
		return kNull
	}
	x, okX := ev.resolveOperand(operands[0])
	lo, okL := ev.resolveOperand(operands[1])
	hi, okH := ev.resolveOperand(operands[2])
	if !okX || !okL || !okH {
		return kNull
	}
	xf, okX := castTo(x, ua.VariantDouble)
	lof, okL := castTo(lo, ua.VariantDouble)
	hif, okH := castTo(hi, ua.VariantDouble)
	if !okX || !okL || !okH {
		return kFalse
	}
	return boolToKleene(lof.Float <= xf.Float && xf.Float <= hif.Float)
}

func (ev *evaluator) evalInList(operands []Operand) kleene {
	if len(operands) < 2 {
		return kNull
	}
	x, ok := ev.resolveOperand(operands[0])
	if !ok {
		return kNull
	}
	for _, candOp := range operands[1:] {
		cand, ok := ev.resolveOperand(candOp)
		if !ok {
			continue
		}
		ca, cb, castOk := commonCast(x, cand)
		if !castOk {
			continue
		}
		if ca.Equal(cb) {
			return kTrue
		}
	}
	return kFalse
}

func (ev *evaluator) evalOfType(operands []Operand) kleene {
	if len(operands) != 1 || operands[0].Kind != OperandLiteral {
		return kNull
	}
	target := operands[0].Literal
	if target.Type != ua.VariantNodeId {
		return kNull
	}
	candidate, status := ev.reader.ReadAttribute(ev.origin, eventTypeAttr, "")
	if !status.IsGood() || candidate.Type != ua.VariantNodeId {
		return kNull
	}
	return boolToKleene(ev.reader.IsSubtypeOrEqual(candidate.Node, target.Node))
}

// eventTypeAttr is a synthetic AttributeId this core uses to let NodeReader
// implementations answer "what EventType is this event instance" without
// requiring a full browse-path walk for the common case; OFTYPE reads it
// directly off the candidate event node.
const eventTypeAttr ua.AttributeId = 1000

func (ev *evaluator) evalBitwise(operands []Operand, op func(a, b uint64) uint64) kleene {
	if len(operands) != 2 {
		return kNull
	}
	a, okA := ev.resolveOperand(operands[0])
	b, okB := ev.resolveOperand(operands[1])
	if !okA || !okB {
		return kNull
	}
	ai, okA := castTo(a, ua.VariantUInt64)
	bi, okB := castTo(b, ua.VariantUInt64)
	if !okA || !okB {
		return kNull
	}
	result := op(ai.UInt, bi.UInt)
	return boolToKleene(result != 0)
}
