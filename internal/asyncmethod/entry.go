// Package asyncmethod implements AsyncMethodManager: queuing, dispatch, and
// result aggregation for OPC UA Call service requests whose methods are
// long-running (spec.md §4.D).
package asyncmethod

import (
	"sync/atomic"
	"time"

	"github.com/coriolis-automation/opcuacore/internal/ua"
	"github.com/coriolis-automation/opcuacore/internal/uasession"
)

// MethodCall is one sub-call within a Call service request: invoke methodId
// on objectId with inputArguments.
type MethodCall struct {
	ObjectId       ua.NodeId
	MethodId       ua.NodeId
	InputArguments []ua.Variant
}

// CallMethodResult is one sub-call's outcome, matching the OPC UA
// CallMethodResult structure.
type CallMethodResult struct {
	StatusCode      ua.StatusCode
	OutputArguments []ua.Variant
}

// Entry is the aggregate state for one Call service request containing one
// or more async sub-calls: {sessionId, channelId, requestId, requestHandle,
// dispatchTime, countdown, aggregated results} (spec.md §3).
type Entry struct {
	SessionId     uasession.SessionID
	ChannelId     string
	RequestId     uint32
	RequestHandle uint32
	DispatchTime  time.Time

	countdown atomic.Int32
	Results   []CallMethodResult
}

// newEntry builds an Entry with every result slot prefilled to BadTimeout,
// so a sub-call that is swept for timing out before it ever runs still
// reports a sensible status (spec.md §3).
func newEntry(sessionId uasession.SessionID, channelId string, requestId, requestHandle uint32, calls int) *Entry {
	results := make([]CallMethodResult, calls)
	for i := range results {
		results[i] = CallMethodResult{StatusCode: ua.BadTimeout}
	}
	e := &Entry{
		SessionId:     sessionId,
		ChannelId:     channelId,
		RequestId:     requestId,
		RequestHandle: requestHandle,
		DispatchTime:  time.Now(),
		Results:       results,
	}
	e.countdown.Store(int32(calls))
	return e
}

// subCallRequest is one outstanding sub-call, tracked across
// requestQueue → pending → responseQueue. pendingId is assigned when the
// request moves into the pending index and is otherwise zero.
type subCallRequest struct {
	entry      *Entry
	slot       int
	call       MethodCall
	enqueuedAt time.Time
	pendingId  uint64
}

type subCallResult struct {
	req    *subCallRequest
	result CallMethodResult
}
