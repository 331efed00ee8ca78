// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttle

// Throttler bundles the State and Timers of a single device
type Throttler struct {
	state  State
	timers Timers
}

// NewThrottler returns a throttler without limits, with its timers
// attached to ctx
func NewThrottler(clock Clock, sched Scheduler, ctx ExecContext, readCb, writeCb func()) *Throttler {
	t := &Throttler{}
	t.state.Init(clock)
	t.timers.Init(sched, ctx, readCb, writeCb)
	return t
}

// Configure applies cfg. Armed timers are cancelled and both callbacks
// are queued, so operations held under the previous limits get
// re-evaluated against the new ones.
func (t *Throttler) Configure(cfg *Config) error {
	if err := t.state.Configure(cfg); err != nil {
		return err
	}
	t.timers.restart()
	return nil
}

// Reconfigure applies cfg like Configure, but leaves queueing of the
// callbacks to the returned restart function. Owners serializing
// access with a lock the callbacks also take must call restart after
// releasing it. restart is nil when cfg is rejected or the timers are
// detached.
func (t *Throttler) Reconfigure(cfg *Config) (func(), error) {
	if err := t.state.Configure(cfg); err != nil {
		return nil, err
	}
	return t.timers.prepareRestart(), nil
}

// Config returns the current configuration snapshot
func (t *Throttler) Config() Config {
	return t.state.Config()
}

// Enabled returns true if any limit is configured
func (t *Throttler) Enabled() bool {
	return t.state.cfg.Enabled()
}

// Admit accounts an operation and returns true if it must be held
// until the callback of its direction fires
func (t *Throttler) Admit(isWrite bool, size uint64) bool {
	t.state.Account(isWrite, size)
	return t.timers.ScheduleTimer(&t.state, isWrite)
}

// ComputeTimer probes whether an operation would have to wait now
func (t *Throttler) ComputeTimer(isWrite bool) (bool, int64) {
	return t.state.ComputeTimer(isWrite, t.state.clock.Now())
}

func (t *Throttler) Attach(ctx ExecContext) {
	t.timers.Attach(ctx)
}

func (t *Throttler) Detach() {
	t.timers.Detach()
}

func (t *Throttler) Attached() bool {
	return t.timers.Attached()
}

// Destroy cancels the timers, the throttler cannot be used afterwards
func (t *Throttler) Destroy() {
	t.timers.Destroy()
}
