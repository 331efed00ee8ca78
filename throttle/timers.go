// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttle

import (
	"log"
)

// ExecContext is the run loop the timer callbacks of a device are
// delivered on
type ExecContext interface {
	// Post queues fn for execution on the context
	Post(fn func()) error
}

// Scheduler is the deferred resume capability provided by the event
// loop. It owns at most one one-shot timer per direction.
type Scheduler interface {
	// Arm (re)arms the timer of the direction to invoke cb on the bound
	// context once the clock reaches deadline, replacing any timer
	// armed earlier for the direction
	Arm(dir Direction, deadline int64, cb func())

	// Cancel disarms the timer of the direction without invoking it
	Cancel(dir Direction)

	// Rebind moves the timers to ctx, nil leaves them unbound. Timers
	// armed before the rebind never fire.
	Rebind(ctx ExecContext)
}

type bindingState int

const (
	uninitialized bindingState = iota
	attached
	detached
)

func (s bindingState) String() string {
	switch s {
	case attached:
		return "attached"
	case detached:
		return "detached"
	}
	return "uninitialized"
}

// Timers binds the read and write deferred resume timers of a device
// to one execution context at a time.
type Timers struct {
	sched     Scheduler
	ctx       ExecContext
	callbacks [2]func()
	state     bindingState
}

// Init sets up the timers on sched and attaches them to ctx, readCb and
// writeCb are invoked when the respective direction may resume
func (t *Timers) Init(sched Scheduler, ctx ExecContext, readCb, writeCb func()) {
	if t.state != uninitialized {
		log.Panicf("throttle timers initialized twice, currently %s", t.state)
	}
	if sched == nil || readCb == nil || writeCb == nil {
		log.Panicf("throttle timers require a scheduler and both callbacks")
	}
	t.sched = sched
	t.callbacks = [2]func(){Read: readCb, Write: writeCb}
	t.state = detached
	t.Attach(ctx)
}

// Destroy cancels any armed timer and releases the scheduler
func (t *Timers) Destroy() {
	if t.state == uninitialized {
		return
	}
	t.Detach()
	t.sched = nil
	t.callbacks = [2]func(){}
	t.state = uninitialized
}

// Detach cancels both timers without running their callbacks and
// unbinds them from the current context. Detaching twice is a no-op.
func (t *Timers) Detach() {
	if t.state != attached {
		return
	}
	t.sched.Cancel(Read)
	t.sched.Cancel(Write)
	t.sched.Rebind(nil)
	t.ctx = nil
	t.state = detached
}

// Attach binds the timers to ctx, detaching them first if they are
// bound to another context
func (t *Timers) Attach(ctx ExecContext) {
	if t.state == uninitialized {
		log.Panicf("throttle timers attached before initialization")
	}
	if ctx == nil {
		log.Panicf("throttle timers attached to nil context")
	}
	if t.state == attached {
		if t.ctx == ctx {
			return
		}
		t.Detach()
	}
	t.sched.Rebind(ctx)
	t.ctx = ctx
	t.state = attached
}

// AreInitialized returns true once Init was done and until Destroy,
// whether or not the timers are currently attached
func (t *Timers) AreInitialized() bool {
	return t.state != uninitialized
}

// Attached returns true if the timers are bound to a context
func (t *Timers) Attached() bool {
	return t.state == attached
}

// Context returns the context the timers are bound to, nil when detached
func (t *Timers) Context() ExecContext {
	return t.ctx
}

// ScheduleTimer arms the timer of the direction if the operation that
// was just accounted has to wait, and returns true in that case. The
// deadline is always recomputed from the current bucket levels, an
// already armed timer is left alone if no wait is needed.
func (t *Timers) ScheduleTimer(s *State, isWrite bool) bool {
	if t.state != attached {
		log.Panicf("throttle timer scheduled while %s", t.state)
	}
	wait, deadline := s.ComputeTimer(isWrite, s.clock.Now())
	if !wait {
		return false
	}
	dir := DirectionOf(isWrite)
	t.sched.Arm(dir, deadline, t.callbacks[dir])
	return true
}

// restart cancels the armed timers and queues both callbacks on the
// bound context so that held operations are re-evaluated right away
func (t *Timers) restart() {
	if post := t.prepareRestart(); post != nil {
		post()
	}
}

// prepareRestart cancels the armed timers and returns the function
// queueing both callbacks on the context bound at this point, nil when
// the timers are not attached. The returned function may block on a
// saturated context.
func (t *Timers) prepareRestart() func() {
	if t.state != attached {
		return nil
	}
	t.sched.Cancel(Read)
	t.sched.Cancel(Write)
	ctx, callbacks := t.ctx, t.callbacks
	return func() {
		for _, dir := range []Direction{Read, Write} {
			if err := ctx.Post(callbacks[dir]); err != nil {
				log.Printf("[ERROR][Throttle] failed to restart %s queue: %s", dir, err)
			}
		}
	}
}
