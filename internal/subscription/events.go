package subscription

import (
	"github.com/google/uuid"

	"github.com/coriolis-automation/opcuacore/internal/eventfilter"
	"github.com/coriolis-automation/opcuacore/internal/ua"
)

// EventEmitterResolver walks the hierarchical Organizes/HasComponent/
// HasEventSource/HasNotifier closure from an event's origin node outward,
// returning every node that events here propagate through (spec.md §4.C.5
// step 2). The origin itself is always included.
type EventEmitterResolver interface {
	Emitters(origin ua.NodeId) []ua.NodeId
}

// EventHistorian receives one record per triggered event, independent of
// how many MonitoredItems matched it, for an embedding application to
// persist (spec.md §4.C.5 step 4: "Historizes if configured"). This core
// stays hook-only — internal/historian/sqlitehistorian is a reference
// implementation, not a dependency of this package.
type EventHistorian interface {
	RecordEvent(eventId []byte, originNode ua.NodeId)
}

// TriggerEvent ingests one event fired at originNode: it walks the emitter
// closure, and for every Event MonitoredItem registered against an emitter
// node across every subscription this Manager holds, evaluates that MI's
// compiled EventFilter and enqueues a Notification on match (spec.md
// §4.C.5).
//
// TriggerEvent takes no event-type argument: OfType clauses read the event's
// type from originNode through reader (see eventfilter package), so it must
// already be present there. BadNoMatch from Evaluate is expected and silently dropped;
// any other non-Good status is also dropped, since a malformed filter must
// not block delivery to other MIs.
func (m *Manager) TriggerEvent(resolver EventEmitterResolver, reader eventfilter.NodeReader, originNode ua.NodeId) []byte {
	eventId := uuid.New()
	eventIdBytes := eventId[:]

	emitters := resolver.Emitters(originNode)
	emitterSet := make(map[ua.NodeId]bool, len(emitters))
	for _, e := range emitters {
		emitterSet[e] = true
	}

	m.subs.Range(func(_ uint32, sub *Subscription) bool {
		sub.monitoredItems.Range(func(_ uint32, mi *MonitoredItem) bool {
			if mi.Kind != ua.MonitoredItemEvent || mi.CompiledFilter == nil {
				return true
			}
			if !emitterSet[mi.NodeId] {
				return true
			}
			if mi.Mode() != ua.MonitoringModeReporting && mi.Mode() != ua.MonitoringModeSampling {
				return true
			}

			status := mi.CompiledFilter.Where.Evaluate(reader, originNode)
			if !status.IsGood() {
				return true
			}

			fields := make([]ua.Variant, len(mi.CompiledFilter.SelectClauses))
			for i, clause := range mi.CompiledFilter.SelectClauses {
				v, _ := clause.Resolve(reader, originNode)
				fields[i] = v
			}

			if mi.Mode() == ua.MonitoringModeReporting {
				mi.enqueue(Notification{
					MonitoredItemId: mi.ID,
					Kind:            NotificationEvent,
					Event:           EventFields{EventId: eventIdBytes, Fields: fields},
				})
			}
			return true
		})
		return true
	})

	if m.Historian != nil {
		m.Historian.RecordEvent(eventIdBytes, originNode)
	}

	return eventIdBytes
}
