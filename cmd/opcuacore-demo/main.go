// Command opcuacore-demo wires NodeStore, FilterEvaluator, SubscriptionEngine
// and AsyncMethodManager into a single in-process run: it builds a tiny
// address space, opens a subscription with a data-change MonitoredItem
// against it (the item is never sampled, so no data change is queued),
// triggers an event, drains one publish tick, dispatches an async method call, and
// historizes along the way. It proves the four components compose the way
// SPEC_FULL.md describes without requiring a wire-level OPC UA stack.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coriolis-automation/opcuacore/internal/asyncmethod"
	"github.com/coriolis-automation/opcuacore/internal/config"
	"github.com/coriolis-automation/opcuacore/internal/eventfilter"
	"github.com/coriolis-automation/opcuacore/internal/historian/sqlitehistorian"
	"github.com/coriolis-automation/opcuacore/internal/nodestore"
	"github.com/coriolis-automation/opcuacore/internal/subscription"
	"github.com/coriolis-automation/opcuacore/internal/ua"
	"github.com/coriolis-automation/opcuacore/internal/uasession"
	"github.com/coriolis-automation/opcuacore/internal/uatestutil"
	"github.com/coriolis-automation/opcuacore/internal/uatimer"
)

func main() {
	cfg := config.NewDefaultServerConfig()

	historianPath := os.Getenv("OPCUACORE_DEMO_HISTORIAN_DB")
	if historianPath == "" {
		historianPath = fmt.Sprintf("%s/opcuacore-demo-historian.db", os.TempDir())
	}
	store, err := sqlitehistorian.Open(historianPath)
	if err != nil {
		fatalf("open historian: %v", err)
	}
	log.Printf("Phase 1: historian opened at %s", historianPath)

	namespace := nodestore.NewNamespaceTable()
	namespace.AddNamespace(1)
	log.Println("Phase 2: address space created")

	tempNodeId, mi := seedAddressSpace(namespace)

	timer := uatimer.NewWallTimer()
	subMgr := subscription.NewManager(timer)
	subMgr.Historian = store
	log.Println("Phase 3: subscription manager started")

	asyncMgr := asyncmethod.NewManager(asyncmethod.Config{
		AsyncOperationTimeout: cfg.AsyncOperationTimeout.Std(),
		MaxQueueSize:          int(cfg.MaxQueuedAsyncOperations),
		Timer:                 timer,
		OnComplete: func(entry *asyncmethod.Entry) {
			log.Printf("async call request %d completed: %d result(s)", entry.RequestId, len(entry.Results))
		},
	})
	pool := asyncmethod.NewWorkerPool(2)
	asyncMgr.StartWorkerPool(pool, executeDemoMethod)
	log.Println("Phase 4: async method manager started")

	session := uatestutil.NewFakeSession(uasession.SessionID(ua.NewNumericNodeId(1, 1)))
	requests := newFixedRequestSource(1)
	delivered := make(chan subscription.NotificationMessageEntry, 4)
	deliver := func(entry subscription.NotificationMessageEntry, requestHandle uint32, moreNotifications bool) {
		_ = session.SendResponse(uasession.Response{RequestHandle: requestHandle, Body: entry})
		delivered <- entry
	}

	limits := subscription.Limits{
		PublishingIntervalMinMs: float64(cfg.PublishingIntervalLimits.Min.Std().Milliseconds()),
		MaxKeepAliveCount:       cfg.MaxKeepAliveCount,
		MaxLifetimeCount:        cfg.MaxLifetimeCount,
		MaxNotificationsPerPub:  cfg.MaxNotificationsPerPublish,
	}
	createdSub := subMgr.Create(session.ID(), limits, 100, 10, 30, 10, requests, deliver)
	createdSub.SetPublishingMode(true)
	createdSub.AddMonitoredItem(mi)
	log.Printf("Phase 5: subscription %d created with 1 monitored item on %s", createdSub.ID, tempNodeId)

	if dv, status := readTemperature(namespace, tempNodeId); status == ua.Good {
		log.Printf("Seeded %s = %.1f", tempNodeId, dv.Value.Float)
	}

	eventId := subMgr.TriggerEvent(namespace, eventfilter.NodeReader(namespace), tempNodeId)
	log.Printf("Phase 6: event triggered, eventId=%x", eventId)

	call := asyncmethod.MethodCall{
		ObjectId:       tempNodeId,
		MethodId:       ua.NewNumericNodeId(1, 9000),
		InputArguments: []ua.Variant{ua.NewDoubleVariant(1.0)},
	}
	asyncMgr.Dispatch(session.ID(), "demo-channel", 1, 1, []asyncmethod.MethodCall{call})
	log.Println("Phase 7: async method call dispatched")

	select {
	case entry := <-delivered:
		log.Printf("publish tick delivered sequence=%d notifications=%d", entry.SequenceNumber, len(entry.Notifications))
	case <-time.After(2 * time.Second):
		log.Println("no notification delivered within timeout")
	}

	events, err := store.EventsForNode(tempNodeId)
	if err != nil {
		log.Printf("historian query error: %v", err)
	} else {
		log.Printf("historian now holds %d event record(s) for %s", len(events), tempNodeId)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	log.Println("Demo running, press Ctrl+C to stop")
	<-quit
	log.Println("Received signal, shutting down...")

	_, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	createdSub.Stop()
	log.Println("Subscription stopped")

	asyncMgr.Stop()
	log.Println("Async method manager stopped")

	if err := store.Close(); err != nil {
		log.Printf("historian close error: %v", err)
	}
	log.Println("Historian closed")
}

// seedAddressSpace inserts one temperature Variable node plus an event
// notifier Object above it, and returns the Variable's NodeId alongside a
// ready-to-register data-change MonitoredItem.
func seedAddressSpace(namespace *nodestore.NamespaceTable) (ua.NodeId, *subscription.MonitoredItem) {
	objectId := ua.NewNumericNodeId(1, 100)
	if _, err := namespace.Insert(objectId, &ua.NodeAttributes{
		NodeClass:   ua.NodeClassObject,
		BrowseName:  ua.QualifiedName{NamespaceIndex: 1, Name: "Boiler"},
		DisplayName: ua.LocalizedText{Text: "Boiler"},
	}); err != nil {
		fatalf("insert object node: %v", err)
	}

	tempNodeId := ua.NewNumericNodeId(1, 101)
	if _, err := namespace.Insert(tempNodeId, &ua.NodeAttributes{
		NodeClass:   ua.NodeClassVariable,
		BrowseName:  ua.QualifiedName{NamespaceIndex: 1, Name: "Temperature"},
		DisplayName: ua.LocalizedText{Text: "Temperature"},
		Value: ua.DataValue{
			Value:    ua.NewDoubleVariant(68.5),
			Status:   ua.Good,
			HasValue: true,
		},
		DataType:    ua.NewNumericNodeId(0, 11), // Double
		AccessLevel: 1,                          // CurrentRead
	}); err != nil {
		fatalf("insert variable node: %v", err)
	}

	if err := namespace.AddReference(objectId, nodestore.ReferenceTypeOrganizes, ua.ExpandedNodeId{NodeId: tempNodeId}, false); err != nil {
		fatalf("add organizes reference: %v", err)
	}
	if err := namespace.AddReference(objectId, nodestore.ReferenceTypeHasEventSource, ua.ExpandedNodeId{NodeId: tempNodeId}, false); err != nil {
		fatalf("add event-source reference: %v", err)
	}

	mi := subscription.NewMonitoredItem(1, 1, tempNodeId, ua.AttrValue, ua.MonitoredItemDataChange)
	return tempNodeId, mi
}

func readTemperature(namespace *nodestore.NamespaceTable, id ua.NodeId) (ua.DataValue, ua.StatusCode) {
	results := namespace.Read([]nodestore.ReadValueId{{NodeId: id, AttributeId: ua.AttrValue}})
	if len(results) == 0 {
		return ua.DataValue{}, ua.BadNodeIdUnknown
	}
	return results[0], results[0].Status
}

// executeDemoMethod is the worker-pool callback: it echoes the first input
// argument back as the single output argument.
func executeDemoMethod(call asyncmethod.MethodCall) asyncmethod.CallMethodResult {
	return asyncmethod.CallMethodResult{
		StatusCode:      ua.Good,
		OutputArguments: call.InputArguments,
	}
}

// fixedRequestSource hands out a fixed number of request handles before
// reporting empty, matching the "one outstanding PublishRequest" case a
// real session queue would model.
type fixedRequestSource struct {
	remaining int
	handle    uint32
}

func newFixedRequestSource(n int) *fixedRequestSource {
	return &fixedRequestSource{remaining: n}
}

func (f *fixedRequestSource) PopRequest() (uint32, bool) {
	if f.remaining <= 0 {
		return 0, false
	}
	f.remaining--
	f.handle++
	return f.handle, true
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
