package browse

import (
	"context"
	"sync"
	"time"
)

// DefaultApprovalTimeout bounds how long a session waits at the approval
// gate before the orchestrator treats it as declined.
const DefaultApprovalTimeout = 5 * time.Minute

// approvalGate blocks a session's run loop until the user approves or
// declines the proposed browsing plan.
type approvalGate struct {
	timeout time.Duration
	mu      sync.Mutex
	pending map[string]*pendingApproval
}

// pendingApproval tracks one session waiting at the gate.
type pendingApproval struct {
	sessionID string
	response  chan bool
	closeOnce sync.Once
}

func newApprovalGate(timeout time.Duration) *approvalGate {
	if timeout <= 0 {
		timeout = DefaultApprovalTimeout
	}
	return &approvalGate{
		timeout: timeout,
		pending: make(map[string]*pendingApproval),
	}
}

// register parks a session at the gate and returns the channel its
// decision will arrive on. Callers must follow up with await.
func (g *approvalGate) register(sessionID string) <-chan bool {
	responseChannel := make(chan bool, 1)

	g.mu.Lock()
	g.pending[sessionID] = &pendingApproval{
		sessionID: sessionID,
		response:  responseChannel,
	}
	g.mu.Unlock()

	return responseChannel
}

// await blocks until the session is approved, declined, timed out, or the
// context ends. It returns true only on an explicit approval.
func (g *approvalGate) await(ctx context.Context, sessionID string, responseChannel <-chan bool) bool {
	defer g.cleanup(sessionID)

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return false
	case approved, ok := <-responseChannel:
		if !ok {
			// Channel closed under us, treat as declined.
			return false
		}
		return approved
	}
}

// wait is register plus await in one step.
func (g *approvalGate) wait(ctx context.Context, sessionID string) bool {
	return g.await(ctx, sessionID, g.register(sessionID))
}

// resolve delivers the user's decision to a waiting session. Returns
// false if no session is waiting under that id.
func (g *approvalGate) resolve(sessionID string, approved bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	pa, ok := g.pending[sessionID]
	if !ok {
		return false
	}

	// Non-blocking send so a racing cleanup can never deadlock us.
	select {
	case pa.response <- approved:
		return true
	default:
		return false
	}
}

// waiting reports whether a session is currently blocked at the gate.
func (g *approvalGate) waiting(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[sessionID]
	return ok
}

// cleanup removes the pending entry and closes its channel exactly once.
// Safe to call from both the waiter and the janitor.
func (g *approvalGate) cleanup(sessionID string) {
	g.mu.Lock()
	pa, ok := g.pending[sessionID]
	if ok {
		delete(g.pending, sessionID)
	}
	g.mu.Unlock()

	if ok && pa != nil {
		pa.closeOnce.Do(func() {
			close(pa.response)
		})
	}
}
