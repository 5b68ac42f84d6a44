package subscription

import "github.com/coriolis-automation/opcuacore/internal/ua"

// SetMonitoringMode transitions every named MonitoredItem to mode, returning
// the ids that were not found on this subscription (spec.md §4.C.6).
func (s *Subscription) SetMonitoringMode(mode ua.MonitoringMode, ids []uint32) (notFound []uint32) {
	for _, id := range ids {
		mi, ok := s.monitoredItems.Load(id)
		if !ok {
			notFound = append(notFound, id)
			continue
		}
		mi.SetMode(mode)
	}
	return notFound
}
