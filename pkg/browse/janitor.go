package browse

import (
	"time"
)

const (
	// sweepInterval is how often the janitor scans for stale sessions.
	sweepInterval = 5 * time.Minute

	// maxSessionAge is the hard lifetime cap. Sessions older than this are
	// force-evicted regardless of what state they sit in.
	maxSessionAge = 30 * time.Minute
)

// StartJanitor launches the background sweep that evicts finished and
// stuck sessions. It stops when the orchestrator shuts down.
func (o *Orchestrator) StartJanitor() {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-o.rootCtx.Done():
				return
			case <-ticker.C:
				o.sweep()
			}
		}
	}()
}

// sweep removes terminal sessions and force-evicts anything past the age
// cap. Eviction is idempotent: re-sweeping an already-evicted session is
// a no-op.
func (o *Orchestrator) sweep() {
	for _, session := range o.registry.all() {
		switch {
		case session.State().Terminal():
			o.evict(session)
		case session.Age() > maxSessionAge:
			o.logger.Warnf("session %s exceeded max age in state %s, force-evicting",
				session.ID(), session.State())
			if session.RequestCancel() {
				o.gate.resolve(session.ID(), false)
			}
			o.evict(session)
		}
	}
}

// evict tears down a session's resources and drops it from the registry.
func (o *Orchestrator) evict(session *Session) {
	o.gate.cleanup(session.ID())
	o.runtime.CloseContext(session.ID())
	o.registry.remove(session.ID())
	o.logger.Infof("evicted session %s (state %s, age %s)",
		session.ID(), session.State(), session.Age().Round(time.Second))
}
