package asyncmethod

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/coriolis-automation/opcuacore/internal/ua"
	"github.com/coriolis-automation/opcuacore/internal/uasession"
	"github.com/coriolis-automation/opcuacore/internal/uatimer"
)

const (
	integrityDrainInterval = 50 * time.Millisecond
	timeoutSweepInterval   = 10 * time.Second
	minSweepBatch          = 3
)

// Manager queues long-running Call service sub-calls, dispatches them to
// worker contexts, collects results, and emits the aggregated CallResponse
// or a timeout (spec.md §4.D).
//
// Three structures carry a sub-call through its lifecycle: requestQueue
// (submitted, not yet picked up, a plain mutex-guarded FIFO slice),
// pending (a worker is executing it, indexed by a synthetic identity so a
// worker can hand its result back without re-scanning), responseQueue
// (finished, awaiting aggregation). Workers touch only these three
// structures and an Entry's atomic countdown — never the NodeStore or
// SubscriptionEngine.
type Manager struct {
	asyncOperationTimeout time.Duration
	maxQueueSize          int

	reqMu        sync.Mutex
	requestQueue []*subCallRequest

	pendingSeq atomic.Uint64
	pending    *xsync.Map[uint64, *subCallRequest]

	respMu        sync.Mutex
	responseQueue []subCallResult

	timer        uatimer.Timer
	drainTimerID uatimer.CallbackID
	sweepTimerID uatimer.CallbackID
	pool         *WorkerPool
	onComplete   func(entry *Entry)
}

// Config configures a Manager.
type Config struct {
	AsyncOperationTimeout time.Duration
	MaxQueueSize          int
	Timer                 uatimer.Timer
	// OnComplete is invoked exactly once per Entry, once every sub-call slot
	// has a result (whether from a worker or from timeout), to deliver the
	// aggregated CallResponse on the entry's channel.
	OnComplete func(entry *Entry)
}

// NewManager creates a Manager and starts its 50ms integrity-drain and 10s
// timeout-sweep timers.
func NewManager(cfg Config) *Manager {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1000
	}
	m := &Manager{
		asyncOperationTimeout: cfg.AsyncOperationTimeout,
		maxQueueSize:          cfg.MaxQueueSize,
		pending:               xsync.NewMap[uint64, *subCallRequest](),
		timer:                 cfg.Timer,
		onComplete:            cfg.OnComplete,
	}
	m.drainTimerID = m.timer.AddRepeated(integrityDrainInterval, m.drainResponses)
	m.sweepTimerID = m.timer.AddRepeated(timeoutSweepInterval, m.sweepTimeouts)
	return m
}

// StartWorkerPool attaches a WorkerPool that executes dispatched sub-calls
// via execute, feeding results back through setAsyncOperationResult.
func (m *Manager) StartWorkerPool(pool *WorkerPool, execute func(call MethodCall) CallMethodResult) {
	m.pool = pool
	pool.SetDrain(func() {
		for {
			req, ok := m.getAsyncOperation()
			if !ok {
				return
			}
			result := execute(req.call)
			m.setAsyncOperationResult(req, result)
		}
	})
	pool.Start()
}

// Stop cancels the Manager's background timers and, if attached, stops the
// worker pool.
func (m *Manager) Stop() {
	m.timer.Remove(m.drainTimerID)
	m.timer.Remove(m.sweepTimerID)
	if m.pool != nil {
		m.pool.Stop()
	}
}

// Dispatch enqueues every sub-call of a Call service request and returns the
// aggregate Entry that will eventually carry the CallResponse. If a worker
// pool is attached, it is notified once so its workers drain requestQueue;
// otherwise sub-calls sit in requestQueue until a caller drives
// getAsyncOperation/setAsyncOperationResult directly (single-threaded mode).
func (m *Manager) Dispatch(sessionId uasession.SessionID, channelId string, requestId, requestHandle uint32, calls []MethodCall) *Entry {
	entry := newEntry(sessionId, channelId, requestId, requestHandle, len(calls))

	m.reqMu.Lock()
	for i, call := range calls {
		m.requestQueue = append(m.requestQueue, &subCallRequest{entry: entry, slot: i, call: call, enqueuedAt: time.Now()})
	}
	m.reqMu.Unlock()

	if m.pool != nil {
		m.pool.Notify()
	}
	return entry
}

// getAsyncOperation pops the oldest sub-call off requestQueue and indexes
// it in pending under a freshly assigned identity, returning it to the
// caller (a worker) for execution.
func (m *Manager) getAsyncOperation() (*subCallRequest, bool) {
	m.reqMu.Lock()
	if len(m.requestQueue) == 0 {
		m.reqMu.Unlock()
		return nil, false
	}
	req := m.requestQueue[0]
	m.requestQueue = m.requestQueue[1:]
	m.reqMu.Unlock()

	req.pendingId = m.pendingSeq.Add(1)
	m.pending.Store(req.pendingId, req)

	return req, true
}

// setAsyncOperationResult removes req from the pending index by its
// assigned identity and pushes its result to responseQueue for the next
// integrity-drain pass. If sweepTimeouts has already removed req from
// pending, its slot carries BadRequestTimeout and this result is dropped.
func (m *Manager) setAsyncOperationResult(req *subCallRequest, result CallMethodResult) {
	if _, ok := m.pending.LoadAndDelete(req.pendingId); !ok {
		return
	}

	m.respMu.Lock()
	m.responseQueue = append(m.responseQueue, subCallResult{req: req, result: result})
	m.respMu.Unlock()
}

// drainResponses copies every queued result into its Entry's result slot,
// firing onComplete once an Entry's countdown reaches zero (spec.md §4.D,
// 50ms integrity timer).
func (m *Manager) drainResponses() {
	m.respMu.Lock()
	drained := m.responseQueue
	m.responseQueue = nil
	m.respMu.Unlock()

	for _, r := range drained {
		r.req.entry.Results[r.req.slot] = r.result
		if r.req.entry.countdown.Add(-1) == 0 && m.onComplete != nil {
			m.onComplete(r.req.entry)
		}
	}
}

// sweepTimeoutBatch bounds sweepTimeouts removal to max(3, maxQueueSize/10)
// entries per pass (spec.md §4.D).
func (m *Manager) sweepTimeoutBatch() int {
	n := m.maxQueueSize / 10
	if n < minSweepBatch {
		n = minSweepBatch
	}
	return n
}

// sweepTimeouts scans requestQueue and the pending index for sub-calls
// older than asyncOperationTimeout, installs BadRequestTimeout in their
// slot, and forwards them through the aggregation path (spec.md §4.D, 10s
// timer).
func (m *Manager) sweepTimeouts() {
	if m.asyncOperationTimeout == 0 {
		return
	}
	cutoff := time.Now().Add(-m.asyncOperationTimeout)
	budget := m.sweepTimeoutBatch()

	var timedOut []*subCallRequest

	m.reqMu.Lock()
	kept := m.requestQueue[:0]
	for _, req := range m.requestQueue {
		if budget > 0 && req.enqueuedAt.Before(cutoff) {
			timedOut = append(timedOut, req)
			budget--
			continue
		}
		kept = append(kept, req)
	}
	m.requestQueue = kept
	m.reqMu.Unlock()

	if budget > 0 {
		m.pending.Range(func(id uint64, req *subCallRequest) bool {
			if budget <= 0 {
				return false
			}
			if req.enqueuedAt.Before(cutoff) {
				timedOut = append(timedOut, req)
				budget--
			}
			return true
		})
		for _, req := range timedOut {
			m.pending.Delete(req.pendingId)
		}
	}

	if len(timedOut) == 0 {
		return
	}
	m.respMu.Lock()
	for _, req := range timedOut {
		m.responseQueue = append(m.responseQueue, subCallResult{req: req, result: CallMethodResult{StatusCode: ua.BadRequestTimeout}})
	}
	m.respMu.Unlock()
}
