// Package subscription implements the publish/keepalive state machine for
// OPC UA Subscriptions and MonitoredItems.
package subscription

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coriolis-automation/opcuacore/internal/uasession"
	"github.com/coriolis-automation/opcuacore/internal/uatimer"
	"github.com/puzpuzpuz/xsync/v4"
)

// PublishState is the subscription's keepalive/lifetime state (spec.md
// §4.C.2).
type PublishState uint8

const (
	StateNormal PublishState = iota
	StateLate
	StateKeepAlive
)

// Limits bounds the revisable subscription parameters to server-configured
// limits (spec.md §4.C.1).
type Limits struct {
	PublishingIntervalMinMs float64
	MaxKeepAliveCount       uint32
	MaxLifetimeCount        uint32
	MaxNotificationsPerPub  uint32
}

// Revise clamps requested parameters to the limits, enforcing
// revisedLifetimeCount >= 3*revisedMaxKeepAliveCount.
func (l Limits) Revise(publishingIntervalMs float64, maxKeepAlive, lifetimeCount, maxNotifications uint32) (float64, uint32, uint32, uint32) {
	if publishingIntervalMs < l.PublishingIntervalMinMs {
		publishingIntervalMs = l.PublishingIntervalMinMs
	}
	if maxKeepAlive == 0 {
		maxKeepAlive = 1
	}
	if l.MaxKeepAliveCount != 0 && maxKeepAlive > l.MaxKeepAliveCount {
		maxKeepAlive = l.MaxKeepAliveCount
	}
	if lifetimeCount < 3*maxKeepAlive {
		lifetimeCount = 3 * maxKeepAlive
	}
	if l.MaxLifetimeCount != 0 && lifetimeCount > l.MaxLifetimeCount {
		lifetimeCount = l.MaxLifetimeCount
		if lifetimeCount < 3*maxKeepAlive {
			lifetimeCount = 3 * maxKeepAlive
		}
	}
	if maxNotifications == 0 || (l.MaxNotificationsPerPub != 0 && maxNotifications > l.MaxNotificationsPerPub) {
		maxNotifications = l.MaxNotificationsPerPub
	}
	return publishingIntervalMs, maxKeepAlive, lifetimeCount, maxNotifications
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Subscription is one client subscription's runtime state. Two lock layers
// are used:
//   - opMu serializes high-level operations (publish tick, modify, delete)
//     on the same subscription instance.
//   - mu protects the mutable config/runtime fields read by other flows.
//
// Lock-order rule: if both are needed, always acquire opMu before mu.
type Subscription struct {
	ID        uint32
	SessionId uasession.SessionID

	opMu sync.Mutex

	mu                      sync.RWMutex
	publishingIntervalMs    float64
	maxKeepAliveCount       uint32
	lifetimeCount           uint32
	maxNotificationsPerPub  uint32
	publishingEnabled       bool
	state                   PublishState
	currentKeepAliveCount   uint32
	currentLifetimeCount    uint32
	lastSendMonitoredItemId uint32

	nextSequenceNumber atomic.Uint32
	publishedOnce      atomic.Bool

	monitoredItems *xsync.Map[uint32, *MonitoredItem]

	retransMu           sync.Mutex
	retransmissionQueue []NotificationMessageEntry

	timer    uatimer.Timer
	timerID  uatimer.CallbackID
	hasTimer bool

	// OnExpire is invoked by the publish tick when the subscription's
	// lifetime has expired; wired by the manager so Subscription itself
	// never needs a back-reference to it.
	OnExpire func()
}

// New creates a Subscription whose parameters are assumed already revised
// against Limits, with currentKeepAliveCount forced to maxKeepAliveCount so
// the very first publish tick sends an immediate keepalive (spec.md
// §4.C.1).
func New(id uint32, sessionId uasession.SessionID, publishingIntervalMs float64, maxKeepAlive, lifetimeCount, maxNotifications uint32, timer uatimer.Timer) *Subscription {
	s := &Subscription{
		ID:                     id,
		SessionId:              sessionId,
		publishingIntervalMs:   publishingIntervalMs,
		maxKeepAliveCount:      maxKeepAlive,
		lifetimeCount:          lifetimeCount,
		maxNotificationsPerPub: maxNotifications,
		publishingEnabled:      true,
		state:                  StateNormal,
		currentKeepAliveCount:  maxKeepAlive,
		monitoredItems:         xsync.NewMap[uint32, *MonitoredItem](),
		timer:                  timer,
	}
	s.nextSequenceNumber.Store(1)
	return s
}

// WithOpLock runs fn under the subscription's operation lock.
func (s *Subscription) WithOpLock(fn func()) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	fn()
}

// Start schedules the repeating publish callback at the subscription's
// publishing interval.
func (s *Subscription) Start(onTick func()) {
	s.mu.RLock()
	interval := s.publishingIntervalMs
	s.mu.RUnlock()
	s.timerID = s.timer.AddRepeated(msToDuration(interval), onTick)
	s.hasTimer = true
}

// Stop cancels the subscription's publish callback.
func (s *Subscription) Stop() {
	if s.hasTimer {
		s.timer.Remove(s.timerID)
		s.hasTimer = false
	}
}

// AddMonitoredItem registers mi under this subscription.
func (s *Subscription) AddMonitoredItem(mi *MonitoredItem) {
	s.monitoredItems.Store(mi.ID, mi)
}

// RemoveMonitoredItem deletes a MonitoredItem and returns it, if present.
func (s *Subscription) RemoveMonitoredItem(id uint32) (*MonitoredItem, bool) {
	return s.monitoredItems.LoadAndDelete(id)
}

// MonitoredItem returns the MI by id, if present.
func (s *Subscription) MonitoredItem(id uint32) (*MonitoredItem, bool) {
	return s.monitoredItems.Load(id)
}

// MonitoredItemIds returns the ids of every MonitoredItem registered on this
// subscription, used by Delete to tear down queues.
func (s *Subscription) MonitoredItemIds() []uint32 {
	var ids []uint32
	s.monitoredItems.Range(func(id uint32, _ *MonitoredItem) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// SetPublishingMode toggles whether queued notifications are moved out on
// publish; sampling continues regardless (spec.md §4.C.6).
func (s *Subscription) SetPublishingMode(enabled bool) {
	s.mu.Lock()
	s.publishingEnabled = enabled
	s.mu.Unlock()
}

// PublishingEnabled reports the current publishing-mode flag.
func (s *Subscription) PublishingEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publishingEnabled
}

// State returns the current keepalive/lifetime state.
func (s *Subscription) State() PublishState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// queuedNotificationCount counts notifications currently buffered across
// every MonitoredItem; the publish tick uses it to decide whether there is
// anything to send (spec.md §4.C.2, count_queued_notifications).
func (s *Subscription) queuedNotificationCount() int {
	total := 0
	s.monitoredItems.Range(func(_ uint32, mi *MonitoredItem) bool {
		total += mi.QueueLen()
		return true
	})
	return total
}

// pushRetransmission appends a published NotificationMessage to the
// retransmission queue for later Republish/Acknowledge.
func (s *Subscription) pushRetransmission(entry NotificationMessageEntry) {
	s.retransMu.Lock()
	defer s.retransMu.Unlock()
	s.retransmissionQueue = append(s.retransmissionQueue, entry)
}

// availableSequenceNumbers returns the sequence number of every
// NotificationMessage currently retained in the retransmission queue, for
// stamping onto the entry about to be delivered (spec.md §4.C.2).
func (s *Subscription) availableSequenceNumbers() []uint32 {
	s.retransMu.Lock()
	defer s.retransMu.Unlock()
	out := make([]uint32, len(s.retransmissionQueue))
	for i, e := range s.retransmissionQueue {
		out[i] = e.SequenceNumber
	}
	return out
}

// Acknowledge removes the retained NotificationMessage with the given
// sequence number from the retransmission queue. Returns
// errBadSequenceNumberUnknown if no such entry is retained.
func (s *Subscription) Acknowledge(sequenceNumber uint32) error {
	s.retransMu.Lock()
	defer s.retransMu.Unlock()
	for i, e := range s.retransmissionQueue {
		if e.SequenceNumber == sequenceNumber {
			s.retransmissionQueue = append(s.retransmissionQueue[:i], s.retransmissionQueue[i+1:]...)
			return nil
		}
	}
	return errBadSequenceNumberUnknown
}

// Republish returns the retained NotificationMessage for sequenceNumber.
// RepublishStrict additionally refuses to serve anything before the
// subscription has completed its first publish.
func (s *Subscription) Republish(sequenceNumber uint32) (NotificationMessageEntry, error) {
	s.retransMu.Lock()
	defer s.retransMu.Unlock()
	for _, e := range s.retransmissionQueue {
		if e.SequenceNumber == sequenceNumber {
			return e, nil
		}
	}
	return NotificationMessageEntry{}, errBadMessageNotAvailable
}

// RepublishStrict behaves like Republish but returns
// errBadMessageNotAvailable unconditionally until the subscription has sent
// at least one NotificationMessage.
func (s *Subscription) RepublishStrict(sequenceNumber uint32) (NotificationMessageEntry, error) {
	if !s.publishedOnce.Load() {
		return NotificationMessageEntry{}, errBadMessageNotAvailable
	}
	return s.Republish(sequenceNumber)
}

// monitoredItemIdsSorted returns every registered MonitoredItem id in
// ascending order, rotated so iteration begins just after the id that
// finished last tick's drain (spec.md §4.C.2: round-robin across MIs
// starting from sub.lastSendMonitoredItemId).
func (s *Subscription) monitoredItemIdsSorted() []uint32 {
	var ids []uint32
	s.monitoredItems.Range(func(id uint32, _ *MonitoredItem) bool {
		ids = append(ids, id)
		return true
	})
	if len(ids) == 0 {
		return ids
	}
	insertionSortUint32(ids)

	s.mu.RLock()
	start := s.lastSendMonitoredItemId
	s.mu.RUnlock()

	startIdx := 0
	for i, id := range ids {
		if id > start {
			startIdx = i
			break
		}
	}
	return append(append([]uint32{}, ids[startIdx:]...), ids[:startIdx]...)
}

func insertionSortUint32(ids []uint32) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
