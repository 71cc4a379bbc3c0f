package optimizer

import "time"

// DelayDepsOptimizerUntil records id as an in-flight request blocking the
// first-run gate, per spec §4.3's first-run gate path (b). The returned
// done func must be called exactly once, when the request completes; once
// the waitlist drains, runOptimizerWhenIdle waits out one more debounce
// window of true idleness before opening the gate.
func (o *Optimizer) DelayDepsOptimizerUntil(id string) (done func()) {
	o.mu.Lock()
	o.waitlist[id] = struct{}{}
	o.mu.Unlock()

	o.EnsureFirstRun()

	return func() {
		o.mu.Lock()
		delete(o.waitlist, id)
		drained := len(o.waitlist) == 0
		o.mu.Unlock()
		if drained {
			o.runOptimizerWhenIdle()
		}
	}
}

// runOptimizerWhenIdle waits one more debounce window; if the waitlist is
// still empty afterward — no new request arrived in the meantime — the
// first-run gate opens. Rate-limited: a request storm that drains and
// refills the waitlist repeatedly would otherwise arm one AfterFunc per
// drain, so only one retry per debounce window is allowed through.
func (o *Optimizer) runOptimizerWhenIdle() {
	if !o.idleRetryLimiter.Allow() {
		return
	}
	time.AfterFunc(debounceDelay, func() {
		o.mu.Lock()
		stillIdle := len(o.waitlist) == 0
		o.mu.Unlock()
		if stillIdle {
			o.mu.Lock()
			o.openGateLocked()
			o.mu.Unlock()
		}
	})
}

// EnsureFirstRun arms a watchdog that force-opens the first-run gate after
// one debounce window even if no request ever arrives to drain the
// waitlist — e.g. a dev server opened for static assets only. Idempotent:
// only the first call schedules the watchdog.
func (o *Optimizer) EnsureFirstRun() {
	o.watchdogOnce.Do(func() {
		time.AfterFunc(debounceDelay, func() {
			o.mu.Lock()
			already := o.canArmDebounce
			o.mu.Unlock()
			if !already {
				o.mu.Lock()
				o.openGateLocked()
				o.mu.Unlock()
			}
		})
	})
}
