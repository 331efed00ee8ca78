// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package loop

import (
	"log"
	"sync"
	"time"

	"github.com/go-core-stack/iothrottle/throttle"
)

// TimerScheduler provides the read and write deferred resume timers of
// one device on top of runtime timers. Expired timers post their
// callback on the execution context they are bound to.
type TimerScheduler struct {
	mu     sync.Mutex
	clock  throttle.Clock
	ctx    throttle.ExecContext
	timers [2]*time.Timer

	// bumped on every arm, cancel and rebind, an expired timer only
	// runs its callback if the generation it was armed with is
	// still current
	gen [2]uint64
}

// NewTimerScheduler returns an unbound scheduler reading deadlines
// against clock
func NewTimerScheduler(clock throttle.Clock) *TimerScheduler {
	return &TimerScheduler{clock: clock}
}

func (s *TimerScheduler) Arm(dir throttle.Direction, deadline int64, cb func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		log.Panicf("%s timer armed without an execution context", dir)
	}
	s.stop(dir)
	gen := s.gen[dir]
	ctx := s.ctx
	delay := time.Duration(deadline - s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.timers[dir] = time.AfterFunc(delay, func() {
		s.expire(dir, gen, ctx, cb)
	})
}

func (s *TimerScheduler) Cancel(dir throttle.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop(dir)
}

func (s *TimerScheduler) Rebind(ctx throttle.ExecContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop(throttle.Read)
	s.stop(throttle.Write)
	s.ctx = ctx
}

// Pending returns true if a timer is armed for the direction
func (s *TimerScheduler) Pending(dir throttle.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[dir] != nil
}

// stop disarms the timer of dir, must be called with s.mu held
func (s *TimerScheduler) stop(dir throttle.Direction) {
	if s.timers[dir] != nil {
		s.timers[dir].Stop()
		s.timers[dir] = nil
	}
	s.gen[dir]++
}

// expire runs on the runtime timer goroutine and hands the callback
// over to the execution context, the generation is checked again on
// the context since a cancel may race with the post
func (s *TimerScheduler) expire(dir throttle.Direction, gen uint64, ctx throttle.ExecContext, cb func()) {
	if !s.current(dir, gen, false) {
		return
	}
	err := ctx.Post(func() {
		if s.current(dir, gen, true) {
			cb()
		}
	})
	if err != nil {
		log.Printf("[ERROR][Throttle] dropping expired %s timer: %s", dir, err)
	}
}

func (s *TimerScheduler) current(dir throttle.Direction, gen uint64, consume bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[dir] != gen {
		return false
	}
	if consume {
		s.timers[dir] = nil
	}
	return true
}
