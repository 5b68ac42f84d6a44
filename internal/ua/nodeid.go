// Package ua provides the core OPC UA data model: NodeId, Node, References,
// Variant/DataValue, and StatusCode. These types have no dependency on the
// transport, the subscription engine, or the node store — they are the
// vocabulary every other package in this module shares.
package ua

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

// IdentifierType tags which union member of NodeId.Identifier is populated.
type IdentifierType uint8

const (
	IdentifierNumeric IdentifierType = iota
	IdentifierString
	IdentifierGUID
	IdentifierByteString
)

// GUID is a 16-byte OPC UA globally unique identifier.
type GUID [16]byte

// NodeId is the canonical identity of an address-space node, qualified by a
// namespace index. Exactly one of the Numeric/String/GUID/ByteString fields
// is meaningful, selected by IDType.
//
// ByteString is stored as a Go string (an immutable byte sequence) rather
// than []byte so that NodeId stays comparable and can be used directly as a
// map key — by nodestore's internal lookups and by callers matching event
// emitters against MonitoredItem node ids.
type NodeId struct {
	NamespaceIndex uint16
	IDType         IdentifierType
	Numeric        uint32
	Str            string
	GUID           GUID
	ByteString     string
}

// NewNumericNodeId builds a numeric NodeId.
func NewNumericNodeId(ns uint16, id uint32) NodeId {
	return NodeId{NamespaceIndex: ns, IDType: IdentifierNumeric, Numeric: id}
}

// NewStringNodeId builds a string NodeId.
func NewStringNodeId(ns uint16, id string) NodeId {
	return NodeId{NamespaceIndex: ns, IDType: IdentifierString, Str: id}
}

// NewGUIDNodeId builds a GUID NodeId.
func NewGUIDNodeId(ns uint16, id GUID) NodeId {
	return NodeId{NamespaceIndex: ns, IDType: IdentifierGUID, GUID: id}
}

// NewByteStringNodeId builds a ByteString NodeId.
func NewByteStringNodeId(ns uint16, id []byte) NodeId {
	return NodeId{NamespaceIndex: ns, IDType: IdentifierByteString, ByteString: string(id)}
}

// IsNull reports whether n is the "null" NodeId: identifier empty/zero AND
// namespaceIndex==0 (spec.md §3).
func (n NodeId) IsNull() bool {
	if n.NamespaceIndex != 0 {
		return false
	}
	switch n.IDType {
	case IdentifierNumeric:
		return n.Numeric == 0
	case IdentifierString:
		return n.Str == ""
	case IdentifierGUID:
		return n.GUID == GUID{}
	case IdentifierByteString:
		return len(n.ByteString) == 0
	default:
		return true
	}
}

// Equal implements value equality across all identifier kinds.
func (n NodeId) Equal(o NodeId) bool {
	if n.NamespaceIndex != o.NamespaceIndex || n.IDType != o.IDType {
		return false
	}
	switch n.IDType {
	case IdentifierNumeric:
		return n.Numeric == o.Numeric
	case IdentifierString:
		return n.Str == o.Str
	case IdentifierGUID:
		return n.GUID == o.GUID
	case IdentifierByteString:
		return n.ByteString == o.ByteString
	default:
		return false
	}
}

// Compare defines the total order from spec.md §3: first by IDType, then by
// NamespaceIndex, then by the identifier value.
func (n NodeId) Compare(o NodeId) int {
	if n.IDType != o.IDType {
		if n.IDType < o.IDType {
			return -1
		}
		return 1
	}
	if n.NamespaceIndex != o.NamespaceIndex {
		if n.NamespaceIndex < o.NamespaceIndex {
			return -1
		}
		return 1
	}
	switch n.IDType {
	case IdentifierNumeric:
		switch {
		case n.Numeric < o.Numeric:
			return -1
		case n.Numeric > o.Numeric:
			return 1
		default:
			return 0
		}
	case IdentifierString:
		return bytes.Compare([]byte(n.Str), []byte(o.Str))
	case IdentifierGUID:
		return bytes.Compare(n.GUID[:], o.GUID[:])
	case IdentifierByteString:
		return bytes.Compare([]byte(n.ByteString), []byte(o.ByteString))
	default:
		return 0
	}
}

// String renders the canonical "ns=N;i=N" / "ns=N;s=str" / "ns=N;g=guid" /
// "ns=N;b=hex" textual form; GUID and ByteString identifiers are printed
// in hex.
func (n NodeId) String() string {
	switch n.IDType {
	case IdentifierNumeric:
		return fmt.Sprintf("ns=%d;i=%d", n.NamespaceIndex, n.Numeric)
	case IdentifierString:
		return fmt.Sprintf("ns=%d;s=%s", n.NamespaceIndex, n.Str)
	case IdentifierGUID:
		return fmt.Sprintf("ns=%d;g=%x", n.NamespaceIndex, n.GUID)
	case IdentifierByteString:
		return fmt.Sprintf("ns=%d;b=%x", n.NamespaceIndex, n.ByteString)
	default:
		return fmt.Sprintf("ns=%d;?", n.NamespaceIndex)
	}
}

// hashBytes returns the canonical byte encoding used both for bucket
// placement in nodestore's open-addressed table and for encoding
// NodeId-valued Variants. Layout: idtype(1) | ns(2) | identifier bytes.
func (n NodeId) hashBytes() []byte {
	buf := make([]byte, 0, 24+len(n.Str)+len(n.ByteString))
	buf = append(buf, byte(n.IDType))
	var ns [2]byte
	binary.LittleEndian.PutUint16(ns[:], n.NamespaceIndex)
	buf = append(buf, ns[:]...)
	switch n.IDType {
	case IdentifierNumeric:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], n.Numeric)
		buf = append(buf, b[:]...)
	case IdentifierString:
		buf = append(buf, []byte(n.Str)...)
	case IdentifierGUID:
		buf = append(buf, n.GUID[:]...)
	case IdentifierByteString:
		buf = append(buf, n.ByteString...)
	}
	return buf
}

// Hash64 is the primary bucket hash used by nodestore's open-addressed table.
func (n NodeId) Hash64() uint64 {
	return xxh3.Hash(n.hashBytes())
}

// ExpandedNodeId extends NodeId with an optional namespace URI / server
// index, used for Reference targets that may live outside the local
// namespace table.
type ExpandedNodeId struct {
	NodeId       NodeId
	NamespaceURI string
	ServerIndex  uint32
}

// QualifiedName is a name qualified by a namespace index (e.g. BrowseName).
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

// LocalizedText is a string annotated with an IETF locale.
type LocalizedText struct {
	Locale string
	Text   string
}
