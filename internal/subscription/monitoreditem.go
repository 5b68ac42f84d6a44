package subscription

import (
	"sync"
	"time"

	"github.com/coriolis-automation/opcuacore/internal/eventfilter"
	"github.com/coriolis-automation/opcuacore/internal/ua"
	"github.com/coriolis-automation/opcuacore/internal/uatimer"
)

// AttributeReader is the address-space read surface MonitoredItems sample
// against. A real embedding wires this over nodestore.NamespaceTable; tests
// wire a fake.
type AttributeReader interface {
	ReadDataValue(id ua.NodeId, attr ua.AttributeId, indexRange string) (ua.DataValue, ua.StatusCode)
}

// DeadbandFilter configures absolute-deadband suppression for numeric
// DataChange MonitoredItems (spec.md §4.C.3 step 3).
type DeadbandFilter struct {
	Enabled  bool
	Absolute float64
}

// MonitoredItem samples or listens for events on one node attribute and
// buffers Notifications for its owning Subscription to drain on publish.
type MonitoredItem struct {
	ID             uint32
	SubscriptionId uint32
	NodeId         ua.NodeId
	AttributeId    ua.AttributeId
	IndexRange     string
	Kind           ua.MonitoredItemKind
	Trigger        ua.DataChangeTrigger
	Deadband       DeadbandFilter

	CompiledFilter *eventfilter.CompiledFilter // set when Kind == MonitoredItemEvent

	mu                 sync.Mutex
	mode               ua.MonitoringMode
	samplingIntervalMs float64
	maxQueueSize       uint32
	discardOldest      bool

	queue       []Notification
	lastSampled *ua.DataValue

	timerID  uatimer.CallbackID
	hasTimer bool
}

// NewMonitoredItem constructs a MonitoredItem in Reporting mode with an
// empty queue.
func NewMonitoredItem(id, subID uint32, nodeId ua.NodeId, attr ua.AttributeId, kind ua.MonitoredItemKind) *MonitoredItem {
	return &MonitoredItem{
		ID:             id,
		SubscriptionId: subID,
		NodeId:         nodeId,
		AttributeId:    attr,
		Kind:           kind,
		mode:           ua.MonitoringModeReporting,
		maxQueueSize:   1,
		discardOldest:  true,
	}
}

// StartSampling schedules a repeating timer callback that samples the
// monitored attribute at the MI's configured sampling interval. DataChange
// MIs have no meaningful sampling interval of 0: per spec.md, a sampling
// interval of 0 means "sample as fast as the underlying source changes",
// which this core approximates as the subscription's own publishing
// interval via minIntervalMs.
func (mi *MonitoredItem) StartSampling(timer uatimer.Timer, reader AttributeReader, minIntervalMs float64) {
	mi.mu.Lock()
	interval := mi.samplingIntervalMs
	if interval <= 0 {
		interval = minIntervalMs
	}
	mi.mu.Unlock()

	mi.timerID = timer.AddRepeated(msToDuration(interval), func() { mi.Sample(reader) })
	mi.hasTimer = true
}

// StopSampling cancels the MI's sampling timer, if any.
func (mi *MonitoredItem) StopSampling(timer uatimer.Timer) {
	mi.mu.Lock()
	hasTimer := mi.hasTimer
	id := mi.timerID
	mi.hasTimer = false
	mi.mu.Unlock()
	if hasTimer {
		timer.Remove(id)
	}
}

// Configure sets the revised sampling interval, queue bounds and overflow
// policy, as decided by CreateMonitoredItems/ModifyMonitoredItems after
// clamping the client's request to server limits.
func (mi *MonitoredItem) Configure(samplingIntervalMs float64, maxQueueSize uint32, discardOldest bool) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.samplingIntervalMs = samplingIntervalMs
	if maxQueueSize == 0 {
		maxQueueSize = 1
	}
	mi.maxQueueSize = maxQueueSize
	mi.discardOldest = discardOldest
}

// SetMode transitions the MonitoredItem's MonitoringMode. Disabled drops the
// queue; Sampling still samples but queue writes are suppressed at the
// subscription-level drain stage is not needed since Sample() itself
// respects mode (spec.md §4.C.6).
func (mi *MonitoredItem) SetMode(mode ua.MonitoringMode) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.mode = mode
	if mode == ua.MonitoringModeDisabled {
		mi.queue = nil
		mi.lastSampled = nil
	}
}

// Mode returns the current MonitoringMode.
func (mi *MonitoredItem) Mode() ua.MonitoringMode {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.mode
}

// QueueLen returns the number of buffered notifications.
func (mi *MonitoredItem) QueueLen() int {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return len(mi.queue)
}

// Sample reads the monitored attribute, applies change detection, and
// enqueues a Notification on change (spec.md §4.C.3). Returns true if a
// notification was enqueued.
func (mi *MonitoredItem) Sample(reader AttributeReader) bool {
	mi.mu.Lock()
	mode := mi.mode
	mi.mu.Unlock()
	if mode == ua.MonitoringModeDisabled {
		return false
	}

	dv, status := reader.ReadDataValue(mi.NodeId, mi.AttributeId, mi.IndexRange)
	dv.Status = status
	dv.HasValue = status.IsGood()
	dv.ServerTimestamp = time.Now()
	dv.HasServerTimestamp = true

	changed := mi.detectChange(dv)
	if !changed {
		return false
	}

	mi.mu.Lock()
	sampled := dv
	mi.lastSampled = &sampled
	reportOnly := mi.mode == ua.MonitoringModeReporting
	mi.mu.Unlock()

	if !reportOnly {
		return false
	}
	mi.enqueue(Notification{MonitoredItemId: mi.ID, Kind: NotificationDataChange, DataChange: dv})
	return true
}

// detectChange applies the MI's deadband filter first when it applies to a
// numeric value, falling back to the trigger-masked encoded comparison
// otherwise (spec.md §4.C.3 step 3).
func (mi *MonitoredItem) detectChange(dv ua.DataValue) bool {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	if mi.Deadband.Enabled && dv.HasValue && isNumericVariant(dv.Value) && mi.lastSampled != nil && mi.lastSampled.HasValue {
		delta := numericDelta(mi.lastSampled.Value, dv.Value)
		return delta > mi.Deadband.Absolute
	}
	return ua.DetectValueChange(mi.lastSampled, &dv, mi.Trigger)
}

func isNumericVariant(v ua.Variant) bool {
	switch v.Type {
	case ua.VariantSByte, ua.VariantInt16, ua.VariantInt32, ua.VariantInt64,
		ua.VariantByte, ua.VariantUInt16, ua.VariantUInt32, ua.VariantUInt64, ua.VariantStatusCode,
		ua.VariantFloat, ua.VariantDouble:
		return true
	default:
		return false
	}
}

// numericDelta returns |a-b| for two numeric Variants of possibly
// different kinds, widening both to float64.
func numericDelta(a, b ua.Variant) float64 {
	af := toFloat64(a)
	bf := toFloat64(b)
	d := af - bf
	if d < 0 {
		d = -d
	}
	return d
}

func toFloat64(v ua.Variant) float64 {
	switch v.Type {
	case ua.VariantSByte, ua.VariantInt16, ua.VariantInt32, ua.VariantInt64:
		return float64(v.Int)
	case ua.VariantByte, ua.VariantUInt16, ua.VariantUInt32, ua.VariantUInt64, ua.VariantStatusCode:
		return float64(v.UInt)
	case ua.VariantFloat, ua.VariantDouble:
		return v.Float
	default:
		return 0
	}
}

// enqueue appends n to the MI's queue, applying the overflow policy from
// spec.md §4.C.4 if the queue would exceed maxQueueSize.
func (mi *MonitoredItem) enqueue(n Notification) {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	mi.queue = append(mi.queue, n)
	if uint32(len(mi.queue)) <= mi.maxQueueSize {
		return
	}

	if mi.discardOldest {
		victim := firstNonOverflowIndex(mi.queue, true)
		mi.queue = append(mi.queue[:victim], mi.queue[victim+1:]...)
		mi.applyOverflowMark(0)
	} else {
		// Drop the second-newest, preserving the newest (last element).
		victim := firstNonOverflowIndex(mi.queue[:len(mi.queue)-1], false)
		mi.queue = append(mi.queue[:victim], mi.queue[victim+1:]...)
		mi.applyOverflowMark(len(mi.queue) - 1)
	}
}

// firstNonOverflowIndex returns the index of the first (fromHead=true) or
// last (fromHead=false) entry that is not itself a synthetic overflow
// marker, since those are never eviction victims.
func firstNonOverflowIndex(q []Notification, fromHead bool) int {
	if fromHead {
		for i, n := range q {
			if !n.overflowEvent {
				return i
			}
		}
		return 0
	}
	for i := len(q) - 1; i >= 0; i-- {
		if !q[i].overflowEvent {
			return i
		}
	}
	return len(q) - 1
}

// applyOverflowMark sets the overflow indication on the notification at
// idx, per spec.md §4.C.4: DataChange items with queueSize>1 get the
// InfoBits overflow flag; Event items instead get a synthetic overflow
// event inserted at idx, ahead of the entry there, never duplicated back
// to back.
func (mi *MonitoredItem) applyOverflowMark(idx int) {
	if idx < 0 || idx >= len(mi.queue) {
		return
	}
	if mi.Kind == ua.MonitoredItemEvent {
		if idx > 0 && mi.queue[idx-1].overflowEvent {
			return
		}
		if mi.queue[idx].overflowEvent {
			return
		}
		marker := Notification{MonitoredItemId: mi.ID, Kind: NotificationEvent, overflowEvent: true}
		mi.queue = append(mi.queue[:idx], append([]Notification{marker}, mi.queue[idx:]...)...)
		return
	}
	if mi.maxQueueSize <= 1 {
		return
	}
	n := mi.queue[idx]
	n.DataChange.Status = n.DataChange.Status.WithOverflow()
	mi.queue[idx] = n
}

// drain removes and returns up to max Notifications from the head of the
// queue, in FIFO order.
func (mi *MonitoredItem) drain(max int) []Notification {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if max > len(mi.queue) {
		max = len(mi.queue)
	}
	out := mi.queue[:max]
	mi.queue = mi.queue[max:]
	return out
}

func (mi *MonitoredItem) hasQueued() bool {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return len(mi.queue) > 0
}
