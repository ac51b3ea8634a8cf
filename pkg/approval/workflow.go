// Package approval tracks human-in-the-loop authorization tickets. A request
// is Pending from creation until exactly one of three things happens:
// an approver responds, the timeout fires, or an emergency stop cancels it.
// The terminal transition is a mutex-guarded compare-and-swap: whichever of
// timer and response acts first wins, and the loser observes a terminal
// status and becomes an error/no-op.
package approval

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relayline/governor/pkg/contracts"
)

// Workflow errors: operating on a missing or already-resolved request is a
// caller error, not a policy outcome.
var (
	ErrNotFound   = errors.New("approval: request not found")
	ErrNotPending = errors.New("approval: request not pending")
)

// TimeoutHandler is invoked (outside the workflow lock) when a request times
// out, from either the per-request timer or a sweep.
type TimeoutHandler func(req *contracts.ApprovalRequest)

// Workflow owns the lifecycle of approval requests.
type Workflow struct {
	mu        sync.Mutex
	requests  map[string]*contracts.ApprovalRequest
	timers    map[string]*time.Timer
	clock     func() time.Time
	onTimeout TimeoutHandler
}

// NewWorkflow creates an empty workflow.
func NewWorkflow() *Workflow {
	return &Workflow{
		requests: make(map[string]*contracts.ApprovalRequest),
		timers:   make(map[string]*time.Timer),
		clock:    time.Now,
	}
}

// WithClock overrides the clock for deterministic testing. Per-request timers
// still run on wall time; tests that exercise them use short real timeouts.
func (w *Workflow) WithClock(clock func() time.Time) *Workflow {
	w.clock = clock
	return w
}

// SetTimeoutHandler registers the timeout notification callback.
func (w *Workflow) SetTimeoutHandler(fn TimeoutHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onTimeout = fn
}

// Request opens a Pending ticket for the decision and arms its timeout timer.
// It returns immediately; nothing blocks waiting for the approver.
func (w *Workflow) Request(d *contracts.Decision, timeout time.Duration) *contracts.ApprovalRequest {
	now := w.clock()
	req := &contracts.ApprovalRequest{
		ID:          uuid.New().String(),
		Decision:    d,
		RequestedAt: now,
		TimeoutAt:   now.Add(timeout),
		Status:      contracts.ApprovalPending,
	}

	w.mu.Lock()
	w.requests[req.ID] = req
	if timeout > 0 {
		id := req.ID
		w.timers[id] = time.AfterFunc(timeout, func() { w.expire(id) })
	}
	w.mu.Unlock()

	return req
}

// Respond resolves a Pending request with the approver's verdict. It fails
// with ErrNotFound/ErrNotPending when the request is missing or already
// terminal (including a timeout that beat the response).
func (w *Workflow) Respond(requestID string, approved bool, approver, notes string) (*contracts.ApprovalRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	req, ok := w.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}
	if req.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, requestID, req.Status)
	}

	if approved {
		req.Status = contracts.ApprovalApproved
	} else {
		req.Status = contracts.ApprovalDenied
	}
	req.Approver = approver
	req.Notes = notes
	req.ResponseTime = w.clock().Sub(req.RequestedAt)

	w.stopTimer(requestID)
	return req, nil
}

// expire is the timer path of the race. If the response already landed, the
// status is terminal and this is a no-op.
func (w *Workflow) expire(requestID string) {
	w.mu.Lock()
	req, ok := w.requests[requestID]
	if !ok || req.Status.Terminal() {
		w.mu.Unlock()
		return
	}
	req.Status = contracts.ApprovalTimeout
	req.ResponseTime = w.clock().Sub(req.RequestedAt)
	delete(w.timers, requestID)
	handler := w.onTimeout
	w.mu.Unlock()

	if handler != nil {
		handler(req)
	}
}

// SweepTimeouts transitions every Pending request past its deadline to
// Timeout and returns them. Exists alongside the per-request timers for
// callers that drive expiry on a schedule.
func (w *Workflow) SweepTimeouts(now time.Time) []*contracts.ApprovalRequest {
	w.mu.Lock()
	var expired []*contracts.ApprovalRequest
	for id, req := range w.requests {
		if req.Status != contracts.ApprovalPending {
			continue
		}
		if now.After(req.TimeoutAt) {
			req.Status = contracts.ApprovalTimeout
			req.ResponseTime = now.Sub(req.RequestedAt)
			w.stopTimer(id)
			expired = append(expired, req)
		}
	}
	handler := w.onTimeout
	w.mu.Unlock()

	if handler != nil {
		for _, req := range expired {
			handler(req)
		}
	}
	return expired
}

// CancelAll denies every Pending request with the given note. Used by the
// emergency stop.
func (w *Workflow) CancelAll(notes string) []*contracts.ApprovalRequest {
	w.mu.Lock()
	defer w.mu.Unlock()

	var cancelled []*contracts.ApprovalRequest
	now := w.clock()
	for id, req := range w.requests {
		if req.Status != contracts.ApprovalPending {
			continue
		}
		req.Status = contracts.ApprovalDenied
		req.Notes = notes
		req.ResponseTime = now.Sub(req.RequestedAt)
		w.stopTimer(id)
		cancelled = append(cancelled, req)
	}
	return cancelled
}

// Get returns a request by ID.
func (w *Workflow) Get(requestID string) (*contracts.ApprovalRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	req, ok := w.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}
	return req, nil
}

// Pending returns all requests still awaiting resolution.
func (w *Workflow) Pending() []*contracts.ApprovalRequest {
	w.mu.Lock()
	defer w.mu.Unlock()

	var pending []*contracts.ApprovalRequest
	for _, req := range w.requests {
		if req.Status == contracts.ApprovalPending {
			pending = append(pending, req)
		}
	}
	return pending
}

// PendingCount returns the number of unresolved requests.
func (w *Workflow) PendingCount() int {
	return len(w.Pending())
}

// stopTimer must be called with the lock held.
func (w *Workflow) stopTimer(requestID string) {
	if timer, ok := w.timers[requestID]; ok {
		timer.Stop()
		delete(w.timers, requestID)
	}
}
