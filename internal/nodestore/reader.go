package nodestore

import (
	"github.com/coriolis-automation/opcuacore/internal/eventfilter"
	"github.com/coriolis-automation/opcuacore/internal/subscription"
)

// NamespaceTable is the concrete, store-backed implementation of both
// eventfilter.NodeReader (ResolveBrowsePath/ReadAttribute/IsSubtypeOrEqual
// in browse.go) and subscription.EventEmitterResolver (Emitters in
// browse.go) — the address-space read surface the filter evaluator and
// event dispatcher need, grounded directly on this package's reference
// graph rather than a test fake (spec.md §4.B, §4.C.5).
var (
	_ eventfilter.NodeReader          = (*NamespaceTable)(nil)
	_ subscription.EventEmitterResolver = (*NamespaceTable)(nil)
)
