// Package subscription implements the publish/keepalive state machine for
// OPC UA Subscriptions and MonitoredItems: sampling, queue overflow,
// notification delivery, and event ingestion.
package subscription

import (
	"github.com/coriolis-automation/opcuacore/internal/ua"
)

// NotificationKind tags which payload a Notification carries.
type NotificationKind uint8

const (
	NotificationDataChange NotificationKind = iota
	NotificationEvent
	NotificationStatusChange
)

// EventFields is the select-clause result for one triggered event: one
// Variant per SimpleAttributeOperand in the MonitoredItem's EventFilter,
// in declaration order.
type EventFields struct {
	EventId []byte
	Fields  []ua.Variant
}

// Notification is one queued sample or event awaiting delivery in a
// MonitoredItem's per-item queue.
type Notification struct {
	MonitoredItemId uint32
	Kind            NotificationKind
	DataChange      ua.DataValue
	Event           EventFields
	// overflowEvent marks a synthetic EventQueueOverflowEvent inserted by
	// the overflow policy rather than a real sample; such entries are
	// never themselves evicted by further overflow (spec.md §4.C.4).
	overflowEvent bool
}

// NotificationMessageEntry is one published NotificationMessage retained in
// a subscription's retransmission queue for Republish / Acknowledge.
type NotificationMessageEntry struct {
	SequenceNumber uint32
	Notifications  []Notification
	// AvailableSequenceNumbers lists every sequence number still retained in
	// the subscription's retransmission queue at delivery time, including
	// this entry's own, so a client always knows what it may Republish
	// (spec.md §4.C.2).
	AvailableSequenceNumbers []uint32
}
