package subscription

import (
	"testing"

	"github.com/coriolis-automation/opcuacore/internal/ua"
	"github.com/coriolis-automation/opcuacore/internal/uasession"
	"github.com/coriolis-automation/opcuacore/internal/uatestutil"
)

type fakeRequestQueue struct {
	handles []uint32
}

func (q *fakeRequestQueue) PopRequest() (uint32, bool) {
	if len(q.handles) == 0 {
		return 0, false
	}
	h := q.handles[0]
	q.handles = q.handles[1:]
	return h, true
}

func (q *fakeRequestQueue) push(handle uint32) { q.handles = append(q.handles, handle) }

type fakeAttributeReader struct {
	values map[ua.NodeId]ua.Variant
}

func (r *fakeAttributeReader) ReadDataValue(id ua.NodeId, _ ua.AttributeId, _ string) (ua.DataValue, ua.StatusCode) {
	v, ok := r.values[id]
	if !ok {
		return ua.DataValue{}, ua.BadNodeIdUnknown
	}
	return ua.DataValue{Value: v, HasValue: true}, ua.Good
}

func newTestSubscription(t *testing.T, timer *uatestutil.FakeTimer, maxKeepAlive, lifetime uint32) *Subscription {
	t.Helper()
	limits := Limits{PublishingIntervalMinMs: 100, MaxKeepAliveCount: 100, MaxLifetimeCount: 1000, MaxNotificationsPerPub: 1000}
	intervalMs, revisedKeepAlive, revisedLifetime, maxNotif := limits.Revise(100, maxKeepAlive, lifetime, 10)
	return New(1, uasession.SessionID(ua.NewNumericNodeId(0, 1)), intervalMs, revisedKeepAlive, revisedLifetime, maxNotif, timer)
}

func TestLimits_Revise_EnforcesLifetimeFloor(t *testing.T) {
	l := Limits{PublishingIntervalMinMs: 50, MaxKeepAliveCount: 10, MaxLifetimeCount: 0, MaxNotificationsPerPub: 0}
	_, keepAlive, lifetime, _ := l.Revise(10, 5, 2, 0)
	if keepAlive != 5 {
		t.Fatalf("keepAlive = %d, want 5", keepAlive)
	}
	if lifetime != 15 {
		t.Fatalf("lifetime = %d, want 15 (3x keepAlive floor)", lifetime)
	}
}

func TestSubscription_KeepAliveWhenNoNotifications(t *testing.T) {
	timer := uatestutil.NewFakeTimer()
	sub := newTestSubscription(t, timer, 2, 10)
	reqs := &fakeRequestQueue{}

	var delivered []NotificationMessageEntry
	deliver := func(entry NotificationMessageEntry, _ uint32, _ bool) { delivered = append(delivered, entry) }

	// No notifications queued, and currentKeepAliveCount starts == maxKeepAliveCount
	// so the very first tick should be a keepalive once a request is available.
	reqs.push(42)
	sent, more, expired := sub.Tick(reqs, deliver)
	if !sent || more || expired {
		t.Fatalf("Tick = (%v,%v,%v), want (true,false,false)", sent, more, expired)
	}
	if len(delivered) != 1 || len(delivered[0].Notifications) != 0 {
		t.Fatalf("expected one empty keepalive NotificationMessage, got %+v", delivered)
	}
	if sub.State() != StateKeepAlive {
		t.Fatalf("state = %v, want StateKeepAlive", sub.State())
	}
}

func TestSubscription_LateWhenNoPublishRequest(t *testing.T) {
	timer := uatestutil.NewFakeTimer()
	sub := newTestSubscription(t, timer, 5, 30)
	nodeId := ua.NewNumericNodeId(1, 100)
	mi := NewMonitoredItem(1, sub.ID, nodeId, ua.AttrValue, ua.MonitoredItemDataChange)
	mi.Configure(0, 10, true)
	sub.AddMonitoredItem(mi)
	mi.enqueue(Notification{MonitoredItemId: mi.ID, Kind: NotificationDataChange, DataChange: ua.DataValue{Value: ua.NewInt64Variant(1), HasValue: true}})

	reqs := &fakeRequestQueue{} // no PublishRequest queued
	deliver := func(NotificationMessageEntry, uint32, bool) { t.Fatal("deliver should not be called without a publish request") }

	sent, more, expired := sub.Tick(reqs, deliver)
	if sent || more || expired {
		t.Fatalf("Tick = (%v,%v,%v), want (false,false,false)", sent, more, expired)
	}
	if sub.State() != StateLate {
		t.Fatalf("state = %v, want StateLate", sub.State())
	}
}

func TestSubscription_LifetimeExpiryFiresOnExpire(t *testing.T) {
	timer := uatestutil.NewFakeTimer()
	sub := newTestSubscription(t, timer, 2, 6)
	reqs := &fakeRequestQueue{} // never any PublishRequest
	deliver := func(NotificationMessageEntry, uint32, bool) {}

	expiredCalled := false
	sub.OnExpire = func() { expiredCalled = true }

	var expired bool
	for i := 0; i < 10 && !expired; i++ {
		_, _, expired = sub.Tick(reqs, deliver)
	}
	if !expired || !expiredCalled {
		t.Fatalf("expected subscription to expire within 10 ticks")
	}
}

func TestSubscription_DeliversNotificationAndRetransmits(t *testing.T) {
	timer := uatestutil.NewFakeTimer()
	sub := newTestSubscription(t, timer, 5, 30)
	nodeId := ua.NewNumericNodeId(1, 100)
	mi := NewMonitoredItem(1, sub.ID, nodeId, ua.AttrValue, ua.MonitoredItemDataChange)
	mi.Configure(0, 10, true)
	sub.AddMonitoredItem(mi)
	mi.enqueue(Notification{MonitoredItemId: mi.ID, Kind: NotificationDataChange, DataChange: ua.DataValue{Value: ua.NewInt64Variant(7), HasValue: true}})

	reqs := &fakeRequestQueue{}
	reqs.push(1)
	var delivered NotificationMessageEntry
	deliver := func(entry NotificationMessageEntry, _ uint32, _ bool) { delivered = entry }

	sent, _, _ := sub.Tick(reqs, deliver)
	if !sent {
		t.Fatalf("expected Tick to deliver a notification")
	}
	if len(delivered.Notifications) != 1 {
		t.Fatalf("delivered %d notifications, want 1", len(delivered.Notifications))
	}
	seq := delivered.SequenceNumber

	if _, err := sub.Republish(seq); err != nil {
		t.Fatalf("Republish(%d) = %v, want nil", seq, err)
	}
	if err := sub.Acknowledge(seq); err != nil {
		t.Fatalf("Acknowledge(%d) = %v, want nil", seq, err)
	}
	if _, err := sub.Republish(seq); err == nil {
		t.Fatalf("Republish(%d) after Acknowledge should fail", seq)
	}
}

func TestSubscription_RepublishStrictRejectsBeforeFirstPublish(t *testing.T) {
	timer := uatestutil.NewFakeTimer()
	sub := newTestSubscription(t, timer, 5, 30)
	if _, err := sub.RepublishStrict(1); err == nil {
		t.Fatalf("RepublishStrict before any publish should fail")
	}
}

func TestMonitoredItem_DiscardOldestOverflow(t *testing.T) {
	reader := &fakeAttributeReader{values: map[ua.NodeId]ua.Variant{}}
	_ = reader
	nodeId := ua.NewNumericNodeId(1, 1)
	mi := NewMonitoredItem(1, 1, nodeId, ua.AttrValue, ua.MonitoredItemDataChange)
	mi.Configure(0, 2, true)

	for i := 0; i < 5; i++ {
		mi.enqueue(Notification{MonitoredItemId: mi.ID, Kind: NotificationDataChange, DataChange: ua.DataValue{Value: ua.NewInt64Variant(int64(i)), HasValue: true}})
	}
	if mi.QueueLen() != 2 {
		t.Fatalf("QueueLen = %d, want 2", mi.QueueLen())
	}
	drained := mi.drain(2)
	if drained[0].DataChange.Value.Int != 3 {
		t.Fatalf("oldest surviving entry = %d, want 3 (entries 0,1,2 discarded)", drained[0].DataChange.Value.Int)
	}
}

func TestMonitoredItem_NotDiscardOldestOverflowKeepsNewest(t *testing.T) {
	nodeId := ua.NewNumericNodeId(1, 1)
	mi := NewMonitoredItem(1, 1, nodeId, ua.AttrValue, ua.MonitoredItemDataChange)
	mi.Configure(0, 2, false)

	for i := 0; i < 5; i++ {
		mi.enqueue(Notification{MonitoredItemId: mi.ID, Kind: NotificationDataChange, DataChange: ua.DataValue{Value: ua.NewInt64Variant(int64(i)), HasValue: true}})
	}
	drained := mi.drain(2)
	if drained[len(drained)-1].DataChange.Value.Int != 4 {
		t.Fatalf("newest entry = %d, want 4 (newest always preserved)", drained[len(drained)-1].DataChange.Value.Int)
	}
}

func TestManager_CreateAndUnregister(t *testing.T) {
	timer := uatestutil.NewFakeTimer()
	m := NewManager(timer)
	limits := Limits{PublishingIntervalMinMs: 50, MaxKeepAliveCount: 10, MaxLifetimeCount: 100, MaxNotificationsPerPub: 10}
	reqs := &fakeRequestQueue{}
	sessionId := uasession.SessionID(ua.NewNumericNodeId(0, 1))

	sub := m.Create(sessionId, limits, 100, 3, 0, 5, reqs, func(NotificationMessageEntry, uint32, bool) {})
	if _, ok := m.Get(sub.ID); !ok {
		t.Fatalf("subscription %d not registered", sub.ID)
	}
	if got := m.ForSession(sessionId); len(got) != 1 {
		t.Fatalf("ForSession returned %d subscriptions, want 1", len(got))
	}
	m.Unregister(sub.ID)
	if _, ok := m.Get(sub.ID); ok {
		t.Fatalf("subscription %d still registered after Unregister", sub.ID)
	}
}
