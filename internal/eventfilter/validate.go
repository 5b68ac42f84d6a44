package eventfilter

import "github.com/coriolis-automation/opcuacore/internal/ua"

// SimpleAttributeOperandValidationResult reports whether a single select
// clause is well-formed, independent of whether any event will actually
// resolve it.
type SimpleAttributeOperandValidationResult struct {
	Status ua.StatusCode
}

// ValidateSelectClause statically checks a SimpleAttributeOperand: the
// AttributeId must be in range, and an IndexRange is only meaningful when
// reading AttrValue.
func ValidateSelectClause(op SimpleAttributeOperand) SimpleAttributeOperandValidationResult {
	if !ua.ValidAttributeId(op.AttributeId) {
		return SimpleAttributeOperandValidationResult{Status: ua.BadAttributeIdInvalid}
	}
	if op.IndexRange != "" && op.AttributeId != ua.AttrValue {
		return SimpleAttributeOperandValidationResult{Status: ua.BadIndexRangeInvalid}
	}
	return SimpleAttributeOperandValidationResult{Status: ua.Good}
}

// ContentFilterElementResult carries per-operand diagnostic codes for one
// ContentFilterElement, matching the ContentFilterElementResult structure
// used to report where-clause validation failures back to the client.
type ContentFilterElementResult struct {
	Status        ua.StatusCode
	OperandStatus []ua.StatusCode
}

// ContentFilterResult is the full where-clause validation outcome: an
// overall status plus one ContentFilterElementResult per element.
type ContentFilterResult struct {
	Status   ua.StatusCode
	Elements []ContentFilterElementResult
}

// ValidateContentFilter statically checks the filter's structure: operator
// support, operand-count-per-operator, and that every ElementOperand
// points strictly forward (spec.md §4.B). It does not evaluate the filter
// against any event; a filter can still be reported Good here even if a
// particular element later fails to resolve against a given event (spec.md
// §7: "the overall filter can still evaluate if a failing clause is an
// unreachable operand").
func ValidateContentFilter(f ContentFilter) ContentFilterResult {
	result := ContentFilterResult{
		Status:   ua.Good,
		Elements: make([]ContentFilterElementResult, len(f.Elements)),
	}
	for i, el := range f.Elements {
		er := validateElement(uint32(i), el, len(f.Elements))
		result.Elements[i] = er
		if !er.Status.IsGood() {
			result.Status = ua.BadFilterOperatorInvalid
		}
	}
	return result
}

func validateElement(idx uint32, el ContentFilterElement, total int) ContentFilterElementResult {
	res := ContentFilterElementResult{
		Status:        ua.Good,
		OperandStatus: make([]ua.StatusCode, len(el.Operands)),
	}

	if unsupportedOperators[el.Operator] {
		res.Status = ua.BadFilterOperatorUnsupported
		return res
	}

	wantCount, ok := operandCount(el.Operator)
	if ok && len(el.Operands) != wantCount {
		res.Status = ua.BadFilterOperandCountMismatch
		return res
	}

	for i, op := range el.Operands {
		res.OperandStatus[i] = validateOperand(idx, op, total)
		if !res.OperandStatus[i].IsGood() {
			res.Status = ua.BadFilterOperandInvalid
		}
	}
	return res
}

// operandCount returns the fixed operand arity for operators that require
// one, and ok=false for variadic operators like INLIST.
func operandCount(op FilterOperator) (int, bool) {
	switch op {
	case OpIsNull, OpNot, OpOfType:
		return 1, true
	case OpEquals, OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual,
		OpAnd, OpOr, OpBitwiseAnd, OpBitwiseOr:
		return 2, true
	case OpBetween:
		return 3, true
	default:
		return 0, false
	}
}

func validateOperand(elementIdx uint32, op Operand, total int) ua.StatusCode {
	switch op.Kind {
	case OperandAttribute:
		return ua.BadNotSupported
	case OperandElement:
		if op.ElementIndex <= elementIdx || int(op.ElementIndex) >= total {
			return ua.BadFilterOperandInvalid
		}
		return ua.Good
	case OperandSimpleAttribute:
		return ValidateSelectClause(op.SimpleAttr).Status
	case OperandLiteral:
		return ua.Good
	default:
		return ua.BadFilterOperandInvalid
	}
}
