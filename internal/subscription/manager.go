package subscription

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/coriolis-automation/opcuacore/internal/uasession"
	"github.com/coriolis-automation/opcuacore/internal/uatimer"
)

// Manager holds every live Subscription and provides lifecycle-safe
// lookup/register/unregister, mirroring the teacher's subscription registry.
type Manager struct {
	subs   *xsync.Map[uint32, *Subscription]
	nextID atomic.Uint32
	timer  uatimer.Timer

	// Historian, when set, receives every event TriggerEvent processes,
	// regardless of whether any MonitoredItem matched it (spec.md §4.C.5
	// step 4). Nil by default: historization is always optional.
	Historian EventHistorian
}

// NewManager creates an empty Manager driving subscription publish timers
// off timer.
func NewManager(timer uatimer.Timer) *Manager {
	return &Manager{
		subs:  xsync.NewMap[uint32, *Subscription](),
		timer: timer,
	}
}

// Create allocates a fresh subscription id, revises the requested
// parameters against limits, registers and starts the subscription, and
// returns it (spec.md §4.C.1).
func (m *Manager) Create(sessionId uasession.SessionID, limits Limits, requestedIntervalMs float64, requestedMaxKeepAlive, requestedLifetime, requestedMaxNotifications uint32, requests PublishRequestSource, deliver DeliverFunc) *Subscription {
	id := m.nextID.Add(1)
	intervalMs, maxKeepAlive, lifetime, maxNotifications := limits.Revise(requestedIntervalMs, requestedMaxKeepAlive, requestedLifetime, requestedMaxNotifications)

	sub := New(id, sessionId, intervalMs, maxKeepAlive, lifetime, maxNotifications, m.timer)
	sub.OnExpire = func() {
		sub.Stop()
		m.Unregister(id)
	}
	m.subs.Store(id, sub)
	sub.Start(func() { sub.Run(requests, deliver) })
	return sub
}

// Get retrieves a subscription by id.
func (m *Manager) Get(id uint32) (*Subscription, bool) {
	return m.subs.Load(id)
}

// Unregister stops and removes a subscription.
func (m *Manager) Unregister(id uint32) {
	sub, ok := m.subs.LoadAndDelete(id)
	if !ok {
		return
	}
	sub.Stop()
}

// Range iterates all registered subscriptions.
func (m *Manager) Range(fn func(id uint32, sub *Subscription) bool) {
	m.subs.Range(fn)
}

// Size returns the number of registered subscriptions.
func (m *Manager) Size() int {
	return m.subs.Size()
}

// ForSession collects every subscription owned by the given session, used
// by session-close cleanup and DeleteSubscriptions.
func (m *Manager) ForSession(sessionId uasession.SessionID) []*Subscription {
	var out []*Subscription
	m.subs.Range(func(_ uint32, sub *Subscription) bool {
		if sub.SessionId == sessionId {
			out = append(out, sub)
		}
		return true
	})
	return out
}
