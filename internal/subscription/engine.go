package subscription

// PublishRequestSource abstracts a session's outstanding PublishRequest
// queue so the publish tick never needs to know about wire-level requests.
// Implementations pop the oldest queued request, returning its request
// handle.
type PublishRequestSource interface {
	PopRequest() (requestHandle uint32, ok bool)
}

// DeliverFunc hands a NotificationMessage (or an empty keepalive message
// when len(entry.Notifications) == 0) to the transport layer for the given
// request handle.
type DeliverFunc func(entry NotificationMessageEntry, requestHandle uint32, moreNotifications bool)

const monitoredItemDrainBatch = 1

// Tick runs one publish-interval evaluation of the keepalive/lifetime state
// machine (spec.md §4.C.2). It must be called with the subscription's
// opMu held — callers use WithOpLock, or Run, which does this for them.
//
// Returns sent (a NotificationMessage or keepalive was delivered),
// moreNotifications (the per-MI queues were not fully drained and Tick
// should be invoked again immediately), and expired (the subscription's
// lifetime counter was exceeded and OnExpire has been invoked; the caller
// should stop the publish timer and remove the subscription).
func (s *Subscription) Tick(requests PublishRequestSource, deliver DeliverFunc) (sent, moreNotifications, expired bool) {
	s.mu.Lock()
	publishingEnabled := s.publishingEnabled
	keepAliveDue := s.currentKeepAliveCount >= s.maxKeepAliveCount
	s.mu.Unlock()

	notificationsAvailable := publishingEnabled && s.queuedNotificationCount() > 0

	if !notificationsAvailable && !keepAliveDue {
		s.mu.Lock()
		s.currentKeepAliveCount++
		s.mu.Unlock()
		return false, false, false
	}

	requestHandle, ok := requests.PopRequest()
	if !ok {
		s.mu.Lock()
		s.currentLifetimeCount++
		lifetimeExceeded := s.currentLifetimeCount > s.lifetimeCount
		if !lifetimeExceeded && s.state != StateKeepAlive {
			s.state = StateLate
		}
		s.mu.Unlock()
		if lifetimeExceeded {
			if s.OnExpire != nil {
				s.OnExpire()
			}
			return false, false, true
		}
		return false, false, false
	}

	s.mu.Lock()
	s.currentLifetimeCount = 0
	s.mu.Unlock()

	if !notificationsAvailable {
		s.mu.Lock()
		s.state = StateKeepAlive
		s.currentKeepAliveCount = 0
		seq := s.nextSequenceNumber.Load()
		s.mu.Unlock()
		deliver(NotificationMessageEntry{SequenceNumber: seq, AvailableSequenceNumbers: s.availableSequenceNumbers()}, requestHandle, false)
		return true, false, false
	}

	notifications, more := s.drainRoundRobin(int(s.maxNotificationsPerPub))
	seq := s.nextSequenceNumber.Add(1) - 1
	entry := NotificationMessageEntry{SequenceNumber: seq, Notifications: notifications}
	s.pushRetransmission(entry)
	entry.AvailableSequenceNumbers = s.availableSequenceNumbers()
	s.publishedOnce.Store(true)

	s.mu.Lock()
	s.state = StateNormal
	s.currentKeepAliveCount = 0
	s.mu.Unlock()

	deliver(entry, requestHandle, more)
	return true, more, false
}

// drainRoundRobin pulls notifications from per-MI queues, starting from the
// MI just after lastSendMonitoredItemId, up to max total notifications
// across all items (spec.md §4.C.2: "round robin across MIs"). It advances
// lastSendMonitoredItemId to the id that last yielded a notification so the
// next tick resumes fairly, and reports whether any MI still has queued
// notifications left undrained.
func (s *Subscription) drainRoundRobin(max int) (out []Notification, more bool) {
	if max <= 0 {
		max = 1
	}
	ids := s.monitoredItemIdsSorted()
	lastYielded := uint32(0)
	haveLastYielded := false

	for len(out) < max {
		progressed := false
		for _, id := range ids {
			if len(out) >= max {
				break
			}
			mi, ok := s.monitoredItems.Load(id)
			if !ok || !mi.hasQueued() {
				continue
			}
			drained := mi.drain(monitoredItemDrainBatch)
			if len(drained) == 0 {
				continue
			}
			out = append(out, drained...)
			lastYielded = id
			haveLastYielded = true
			progressed = true
		}
		if !progressed {
			break
		}
	}

	for _, id := range ids {
		if mi, ok := s.monitoredItems.Load(id); ok && mi.hasQueued() {
			more = true
			break
		}
	}

	if haveLastYielded {
		s.mu.Lock()
		s.lastSendMonitoredItemId = lastYielded
		s.mu.Unlock()
	}
	return out, more
}

// Run drives Tick to completion for one publish-timer firing, looping while
// Tick reports moreNotifications so a full backlog drains without waiting
// for additional publishing-interval timer firings (spec.md §4.C.2: "if
// more_remaining: reschedule another publish-callback immediately").
func (s *Subscription) Run(requests PublishRequestSource, deliver DeliverFunc) {
	s.WithOpLock(func() {
		for {
			_, more, expired := s.Tick(requests, deliver)
			if expired || !more {
				return
			}
		}
	})
}
