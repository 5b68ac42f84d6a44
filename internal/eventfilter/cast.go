package eventfilter

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/coriolis-automation/opcuacore/internal/ua"
)

// precedence ranks every VariantType kind this evaluator casts between,
// following OPC UA Part 4's operand-precedence table: rank 1 is the
// strongest type (wins when paired against anything weaker), rank 22 the
// weakest. commonCast always converts the weaker operand toward the
// stronger one, matching spec.md §4.B's casting-table rule.
var precedence = map[ua.VariantType]int{
	ua.VariantBoolean:         1,
	ua.VariantSByte:           2,
	ua.VariantByte:            3,
	ua.VariantInt16:           4,
	ua.VariantUInt16:          5,
	ua.VariantInt32:           6,
	ua.VariantUInt32:          7,
	ua.VariantInt64:           8,
	ua.VariantUInt64:          9,
	ua.VariantFloat:           10,
	ua.VariantDouble:          11,
	ua.VariantString:          12,
	ua.VariantDateTime:        13,
	ua.VariantGuid:            14,
	ua.VariantByteString:      15,
	ua.VariantXmlElement:      16,
	ua.VariantNodeId:          17,
	ua.VariantExpandedNodeId:  18,
	ua.VariantStatusCode:      19,
	ua.VariantQualifiedName:   20,
	ua.VariantLocalizedText:   21,
	ua.VariantExtensionObject: 22,
}

// lowerPrecedence reports whether a has strictly lower (weaker) precedence
// than b, i.e. a value of type a's kind should be cast up toward b's kind.
func lowerPrecedence(a, b ua.VariantType) bool {
	return precedence[a] > precedence[b]
}

func isSignedIntKind(t ua.VariantType) bool {
	switch t {
	case ua.VariantSByte, ua.VariantInt16, ua.VariantInt32, ua.VariantInt64:
		return true
	default:
		return false
	}
}

func isUnsignedIntKind(t ua.VariantType) bool {
	switch t {
	case ua.VariantByte, ua.VariantUInt16, ua.VariantUInt32, ua.VariantUInt64, ua.VariantStatusCode:
		return true
	default:
		return false
	}
}

func isFloatKind(t ua.VariantType) bool {
	return t == ua.VariantFloat || t == ua.VariantDouble
}

// castTo attempts to convert v into the target VariantType, returning
// ok=false if no implicit or explicit cast rule applies or the value is
// out of range, per spec.md §4.B.
func castTo(v ua.Variant, target ua.VariantType) (ua.Variant, bool) {
	if v.IsNull() {
		return ua.Variant{}, true
	}
	if v.Type == target {
		return v, true
	}
	switch target {
	case ua.VariantBoolean:
		return castToBoolean(v)
	case ua.VariantInt64:
		return castToInt64(v)
	case ua.VariantUInt64:
		return castToUInt64(v)
	case ua.VariantDouble:
		return castToDouble(v)
	case ua.VariantString:
		return castToString(v)
	case ua.VariantDateTime:
		return castToDateTime(v)
	case ua.VariantGuid:
		return castToGuid(v)
	case ua.VariantStatusCode:
		return castToStatusCode(v)
	case ua.VariantNodeId:
		return castToNodeId(v)
	default:
		return ua.Variant{}, false
	}
}

func castToBoolean(v ua.Variant) (ua.Variant, bool) {
	switch {
	case v.Type == ua.VariantBoolean:
		return v, true
	case v.Type == ua.VariantString:
		s := strings.ToLower(strings.TrimSpace(v.Str))
		switch s {
		case "true", "1":
			return ua.NewBooleanVariant(true), true
		case "false", "0":
			return ua.NewBooleanVariant(false), true
		}
		return ua.Variant{}, false
	case isSignedIntKind(v.Type):
		return ua.NewBooleanVariant(v.Int != 0), true
	case isUnsignedIntKind(v.Type):
		return ua.NewBooleanVariant(v.UInt != 0), true
	default:
		return ua.Variant{}, false
	}
}

func castToInt64(v ua.Variant) (ua.Variant, bool) {
	switch {
	case isSignedIntKind(v.Type):
		return ua.NewInt64Variant(v.Int), true
	case isUnsignedIntKind(v.Type):
		if v.UInt > math.MaxInt64 {
			return ua.Variant{}, false
		}
		return ua.NewInt64Variant(int64(v.UInt)), true
	case isFloatKind(v.Type):
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return ua.Variant{}, false
		}
		rounded := math.Round(v.Float)
		if rounded > math.MaxInt64 || rounded < math.MinInt64 {
			return ua.Variant{}, false
		}
		return ua.NewInt64Variant(int64(rounded)), true
	case v.Type == ua.VariantBoolean:
		if v.Bool {
			return ua.NewInt64Variant(1), true
		}
		return ua.NewInt64Variant(0), true
	case v.Type == ua.VariantString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return ua.Variant{}, false
		}
		return ua.NewInt64Variant(n), true
	default:
		return ua.Variant{}, false
	}
}

func castToUInt64(v ua.Variant) (ua.Variant, bool) {
	switch {
	case isUnsignedIntKind(v.Type):
		return ua.NewUInt64Variant(v.UInt), true
	case isSignedIntKind(v.Type):
		if v.Int < 0 {
			return ua.Variant{}, false
		}
		return ua.NewUInt64Variant(uint64(v.Int)), true
	case isFloatKind(v.Type):
		if math.IsNaN(v.Float) || v.Float < 0 || math.IsInf(v.Float, 0) {
			return ua.Variant{}, false
		}
		rounded := math.Round(v.Float)
		if rounded > math.MaxUint64 {
			return ua.Variant{}, false
		}
		return ua.NewUInt64Variant(uint64(rounded)), true
	case v.Type == ua.VariantBoolean:
		if v.Bool {
			return ua.NewUInt64Variant(1), true
		}
		return ua.NewUInt64Variant(0), true
	case v.Type == ua.VariantString:
		n, err := strconv.ParseUint(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return ua.Variant{}, false
		}
		return ua.NewUInt64Variant(n), true
	default:
		return ua.Variant{}, false
	}
}

func castToDouble(v ua.Variant) (ua.Variant, bool) {
	switch {
	case isFloatKind(v.Type):
		return ua.NewDoubleVariant(v.Float), true
	case isSignedIntKind(v.Type):
		return ua.NewDoubleVariant(float64(v.Int)), true
	case isUnsignedIntKind(v.Type):
		return ua.NewDoubleVariant(float64(v.UInt)), true
	case v.Type == ua.VariantString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return ua.Variant{}, false
		}
		return ua.NewDoubleVariant(f), true
	default:
		return ua.Variant{}, false
	}
}

func castToString(v ua.Variant) (ua.Variant, bool) {
	switch {
	case v.Type == ua.VariantString || v.Type == ua.VariantXmlElement:
		return ua.NewStringVariant(v.Str), true
	case v.Type == ua.VariantBoolean:
		if v.Bool {
			return ua.NewStringVariant("true"), true
		}
		return ua.NewStringVariant("false"), true
	case isSignedIntKind(v.Type):
		return ua.NewStringVariant(strconv.FormatInt(v.Int, 10)), true
	case isUnsignedIntKind(v.Type):
		return ua.NewStringVariant(strconv.FormatUint(v.UInt, 10)), true
	case isFloatKind(v.Type):
		return ua.NewStringVariant(strconv.FormatFloat(v.Float, 'g', -1, 64)), true
	case v.Type == ua.VariantDateTime:
		return ua.NewStringVariant(v.Time.UTC().Format(time.RFC3339Nano)), true
	case v.Type == ua.VariantGuid:
		return ua.NewStringVariant(hex.EncodeToString(v.Guid[:])), true
	case v.Type == ua.VariantNodeId:
		return ua.NewStringVariant(v.Node.String()), true
	case v.Type == ua.VariantExpandedNodeId:
		return ua.NewStringVariant(v.ExpandedNode.NodeId.String()), true
	case v.Type == ua.VariantQualifiedName:
		return ua.NewStringVariant(v.QName.Name), true
	case v.Type == ua.VariantLocalizedText:
		return ua.NewStringVariant(v.Text.Text), true
	default:
		return ua.Variant{}, false
	}
}

func castToDateTime(v ua.Variant) (ua.Variant, bool) {
	if v.Type != ua.VariantString {
		return ua.Variant{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v.Str))
	if err != nil {
		return ua.Variant{}, false
	}
	return ua.NewDateTimeVariant(t), true
}

func castToGuid(v ua.Variant) (ua.Variant, bool) {
	if v.Type != ua.VariantString {
		return ua.Variant{}, false
	}
	raw, err := hex.DecodeString(strings.TrimSpace(v.Str))
	if err != nil || len(raw) != 16 {
		return ua.Variant{}, false
	}
	var g ua.GUID
	copy(g[:], raw)
	return ua.NewGuidVariant(g), true
}

func castToStatusCode(v ua.Variant) (ua.Variant, bool) {
	switch {
	case isUnsignedIntKind(v.Type):
		if v.UInt > math.MaxUint32 {
			return ua.Variant{}, false
		}
		return ua.NewStatusCodeVariant(ua.StatusCode(v.UInt)), true
	case v.Type == ua.VariantString:
		n, err := strconv.ParseUint(strings.TrimSpace(v.Str), 0, 32)
		if err != nil {
			return ua.Variant{}, false
		}
		return ua.NewStatusCodeVariant(ua.StatusCode(n)), true
	default:
		return ua.Variant{}, false
	}
}

func castToNodeId(v ua.Variant) (ua.Variant, bool) {
	if v.Type != ua.VariantExpandedNodeId {
		return ua.Variant{}, false
	}
	return ua.NewNodeIdVariant(v.ExpandedNode.NodeId), true
}

// commonCast casts a and b to whichever of their two types has the higher
// precedence, returning ok=false if either value can't be cast there or the
// two types have no defined relation (e.g. ByteString vs NodeId).
func commonCast(a, b ua.Variant) (ua.Variant, ua.Variant, bool) {
	if a.Type == b.Type {
		return a, b, true
	}
	target := a.Type
	if lowerPrecedence(a.Type, b.Type) {
		target = b.Type
	}
	ca, ok := castTo(a, target)
	if !ok {
		return ua.Variant{}, ua.Variant{}, false
	}
	cb, ok := castTo(b, target)
	if !ok {
		return ua.Variant{}, ua.Variant{}, false
	}
	return ca, cb, true
}

// isNumeric reports whether v's type participates in ordered numeric
// comparisons (BETWEEN, <, >, <=, >=).
func isNumeric(v ua.Variant) bool {
	return isSignedIntKind(v.Type) || isUnsignedIntKind(v.Type) || isFloatKind(v.Type)
}

// compareNumeric returns -1/0/1 comparing two already-commonCast numeric
// variants of the same type.
func compareNumeric(a, b ua.Variant) int {
	switch {
	case isSignedIntKind(a.Type):
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	case isUnsignedIntKind(a.Type):
		switch {
		case a.UInt < b.UInt:
			return -1
		case a.UInt > b.UInt:
			return 1
		default:
			return 0
		}
	case isFloatKind(a.Type):
		switch {
		case a.Float < b.Float:
			return -1
		case a.Float > b.Float:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}
