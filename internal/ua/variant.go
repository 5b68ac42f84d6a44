package ua

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

// VariantType tags the scalar payload kind a Variant carries, numbered after
// the OPC UA built-in type identifiers 1-22 (Part 6's "Built-in Types"
// table). Array values are represented by IsArray plus a []Variant whose
// elements share this type; this core never inspects array element
// contents beyond encoding them for change-detection.
type VariantType uint8

const (
	VariantNull VariantType = iota
	VariantBoolean
	VariantSByte
	VariantByte
	VariantInt16
	VariantUInt16
	VariantInt32
	VariantUInt32
	VariantInt64
	VariantUInt64
	VariantFloat
	VariantDouble
	VariantString
	VariantDateTime
	VariantGuid
	VariantByteString
	VariantXmlElement
	VariantNodeId
	VariantExpandedNodeId
	VariantStatusCode
	VariantQualifiedName
	VariantLocalizedText
	VariantExtensionObject
)

// Variant is a dynamically typed value, mirroring the OPC UA Variant used
// for node Values, read results and filter operand evaluation. Storage is
// collapsed by width/family rather than one field per VariantType: every
// signed integer kind (SByte..Int64) lives in Int, every unsigned integer
// kind (Byte..UInt64, StatusCode) in UInt, and both float kinds in Float.
// Only the Type tag distinguishes, say, a Byte from a UInt32.
type Variant struct {
	Type    VariantType
	IsArray bool

	Bool         bool
	Int          int64
	UInt         uint64
	Float        float64
	Str          string
	Time         time.Time
	Guid         GUID
	Node         NodeId
	ExpandedNode ExpandedNodeId
	QName        QualifiedName
	Bytes        []byte
	Text         LocalizedText

	Array []Variant
}

// NewBooleanVariant wraps a bool.
func NewBooleanVariant(v bool) Variant { return Variant{Type: VariantBoolean, Bool: v} }

// NewSByteVariant wraps a signed 8-bit integer.
func NewSByteVariant(v int8) Variant { return Variant{Type: VariantSByte, Int: int64(v)} }

// NewByteVariant wraps an unsigned 8-bit integer.
func NewByteVariant(v uint8) Variant { return Variant{Type: VariantByte, UInt: uint64(v)} }

// NewInt16Variant wraps a signed 16-bit integer.
func NewInt16Variant(v int16) Variant { return Variant{Type: VariantInt16, Int: int64(v)} }

// NewUInt16Variant wraps an unsigned 16-bit integer.
func NewUInt16Variant(v uint16) Variant { return Variant{Type: VariantUInt16, UInt: uint64(v)} }

// NewInt32Variant wraps a signed 32-bit integer.
func NewInt32Variant(v int32) Variant { return Variant{Type: VariantInt32, Int: int64(v)} }

// NewUInt32Variant wraps an unsigned 32-bit integer.
func NewUInt32Variant(v uint32) Variant { return Variant{Type: VariantUInt32, UInt: uint64(v)} }

// NewInt64Variant wraps a signed integer.
func NewInt64Variant(v int64) Variant { return Variant{Type: VariantInt64, Int: v} }

// NewUInt64Variant wraps an unsigned integer.
func NewUInt64Variant(v uint64) Variant { return Variant{Type: VariantUInt64, UInt: v} }

// NewFloatVariant wraps a float32, widened into the shared Float field.
func NewFloatVariant(v float32) Variant { return Variant{Type: VariantFloat, Float: float64(v)} }

// NewDoubleVariant wraps a float64.
func NewDoubleVariant(v float64) Variant { return Variant{Type: VariantDouble, Float: v} }

// NewStringVariant wraps a string.
func NewStringVariant(v string) Variant { return Variant{Type: VariantString, Str: v} }

// NewDateTimeVariant wraps a time.Time.
func NewDateTimeVariant(v time.Time) Variant { return Variant{Type: VariantDateTime, Time: v} }

// NewGuidVariant wraps a GUID.
func NewGuidVariant(v GUID) Variant { return Variant{Type: VariantGuid, Guid: v} }

// NewByteStringVariant wraps a raw byte string.
func NewByteStringVariant(v []byte) Variant { return Variant{Type: VariantByteString, Bytes: v} }

// NewXmlElementVariant wraps serialized XML content.
func NewXmlElementVariant(v string) Variant { return Variant{Type: VariantXmlElement, Str: v} }

// NewNodeIdVariant wraps a NodeId.
func NewNodeIdVariant(v NodeId) Variant { return Variant{Type: VariantNodeId, Node: v} }

// NewExpandedNodeIdVariant wraps an ExpandedNodeId.
func NewExpandedNodeIdVariant(v ExpandedNodeId) Variant {
	return Variant{Type: VariantExpandedNodeId, ExpandedNode: v}
}

// NewStatusCodeVariant wraps a StatusCode.
func NewStatusCodeVariant(v StatusCode) Variant {
	return Variant{Type: VariantStatusCode, UInt: uint64(v)}
}

// NewQualifiedNameVariant wraps a QualifiedName.
func NewQualifiedNameVariant(v QualifiedName) Variant {
	return Variant{Type: VariantQualifiedName, QName: v}
}

// NewLocalizedTextVariant wraps a LocalizedText.
func NewLocalizedTextVariant(v LocalizedText) Variant {
	return Variant{Type: VariantLocalizedText, Text: v}
}

// IsNull reports whether the Variant carries no value.
func (v Variant) IsNull() bool { return v.Type == VariantNull && !v.IsArray }

// encode appends the canonical byte form of v to buf, used for change
// detection (detectValueChange) and for equality comparisons. This is not a
// wire encoding; it only needs to be stable and collision-free for values of
// the same VariantType.
func (v Variant) encode(buf []byte) []byte {
	buf = append(buf, byte(v.Type))
	if v.IsArray {
		buf = append(buf, 1)
		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], uint32(len(v.Array)))
		buf = append(buf, n[:]...)
		for _, e := range v.Array {
			buf = e.encode(buf)
		}
		return buf
	}
	buf = append(buf, 0)
	switch v.Type {
	case VariantBoolean:
		if v.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case VariantSByte, VariantInt16, VariantInt32, VariantInt64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.Int))
		buf = append(buf, b[:]...)
	case VariantByte, VariantUInt16, VariantUInt32, VariantUInt64, VariantStatusCode:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v.UInt)
		buf = append(buf, b[:]...)
	case VariantFloat, VariantDouble:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.Float))
		buf = append(buf, b[:]...)
	case VariantString, VariantXmlElement:
		buf = append(buf, []byte(v.Str)...)
	case VariantDateTime:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.Time.UnixNano()))
		buf = append(buf, b[:]...)
	case VariantGuid:
		buf = append(buf, v.Guid[:]...)
	case VariantNodeId:
		buf = append(buf, v.Node.hashBytes()...)
	case VariantExpandedNodeId:
		buf = append(buf, v.ExpandedNode.NodeId.hashBytes()...)
		buf = append(buf, []byte(v.ExpandedNode.NamespaceURI)...)
		buf = append(buf, 0)
		var s [4]byte
		binary.LittleEndian.PutUint32(s[:], v.ExpandedNode.ServerIndex)
		buf = append(buf, s[:]...)
	case VariantQualifiedName:
		var ns [2]byte
		binary.LittleEndian.PutUint16(ns[:], v.QName.NamespaceIndex)
		buf = append(buf, ns[:]...)
		buf = append(buf, []byte(v.QName.Name)...)
	case VariantByteString:
		buf = append(buf, v.Bytes...)
	case VariantLocalizedText:
		buf = append(buf, []byte(v.Text.Locale)...)
		buf = append(buf, 0)
		buf = append(buf, []byte(v.Text.Text)...)
	}
	return buf
}

// Equal reports whether v and o encode identically.
func (v Variant) Equal(o Variant) bool {
	return bytes.Equal(v.encode(nil), o.encode(nil))
}

// DataValue pairs a Variant with its StatusCode and timestamps, the unit of
// exchange for node reads and MonitoredItem samples.
type DataValue struct {
	Value              Variant
	Status             StatusCode
	HasValue           bool
	SourceTimestamp    time.Time
	HasSourceTimestamp bool
	SourcePicoseconds  uint16
	ServerTimestamp    time.Time
	HasServerTimestamp bool
	ServerPicoseconds  uint16
}

// maskedCopy returns a copy of dv with fields outside the DataChangeTrigger's
// visibility zeroed out, per the three-level masking rule in spec.md §4.C.3:
// STATUS masks everything but the status; STATUSVALUE masks timestamps;
// STATUSVALUETIMESTAMP keeps source timestamps but server timestamps are
// always excluded from comparison.
func (dv DataValue) maskedCopy(trigger DataChangeTrigger) DataValue {
	out := dv
	out.ServerTimestamp = time.Time{}
	out.HasServerTimestamp = false
	out.ServerPicoseconds = 0
	if trigger == TriggerStatus {
		out.Value = Variant{}
		out.HasValue = false
		out.SourceTimestamp = time.Time{}
		out.HasSourceTimestamp = false
		out.SourcePicoseconds = 0
		return out
	}
	if trigger == TriggerStatusValue {
		out.SourceTimestamp = time.Time{}
		out.HasSourceTimestamp = false
		out.SourcePicoseconds = 0
	}
	return out
}

// encode returns the canonical comparison encoding of the masked view of dv
// under trigger, used by detectValueChange.
func (dv DataValue) encode(trigger DataChangeTrigger) []byte {
	m := dv.maskedCopy(trigger)
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(boolByte(m.HasValue)))
	if m.HasValue {
		buf = m.Value.encode(buf)
	}
	var status [4]byte
	binary.LittleEndian.PutUint32(status[:], uint32(m.Status))
	buf = append(buf, status[:]...)
	buf = append(buf, boolByte(m.HasSourceTimestamp))
	if m.HasSourceTimestamp {
		var t [8]byte
		binary.LittleEndian.PutUint64(t[:], uint64(m.SourceTimestamp.UnixNano()))
		buf = append(buf, t[:]...)
		var p [2]byte
		binary.LittleEndian.PutUint16(p[:], m.SourcePicoseconds)
		buf = append(buf, p[:]...)
	}
	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// DataChangeTrigger selects which parts of a DataValue participate in
// change detection for a MonitoredItem (spec.md §4.C.3).
type DataChangeTrigger uint8

const (
	TriggerStatus DataChangeTrigger = iota
	TriggerStatusValue
	TriggerStatusValueTimestamp
)

// DetectValueChange reports whether newVal differs from oldVal under the
// given trigger's masking rules. A nil oldVal (no prior sample) always
// reports a change, matching the "first sample always changes" rule.
func DetectValueChange(oldVal, newVal *DataValue, trigger DataChangeTrigger) bool {
	if oldVal == nil {
		return true
	}
	return !bytesEqual(oldVal.encode(trigger), newVal.encode(trigger))
}

func bytesEqual(a, b []byte) bool {
	return bytes.Equal(a, b)
}
