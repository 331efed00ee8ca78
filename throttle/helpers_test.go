// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttle

import (
	"math"
	"time"
)

type manualClock struct {
	now int64
}

func (c *manualClock) Now() int64 {
	return c.now
}

func (c *manualClock) advance(d time.Duration) {
	c.now += int64(d)
}

// fakeContext collects posted callbacks until run is called
type fakeContext struct {
	name   string
	posted []func()
}

func (c *fakeContext) Post(fn func()) error {
	c.posted = append(c.posted, fn)
	return nil
}

func (c *fakeContext) run() {
	fns := c.posted
	c.posted = nil
	for _, fn := range fns {
		fn()
	}
}

// recordingScheduler keeps one slot per direction and records how it
// was driven
type recordingScheduler struct {
	ctx        ExecContext
	armed      [2]bool
	deadlines  [2]int64
	callbacks  [2]func()
	arms       [2]int
	superseded [2]int
	cancels    [2]int
	rebinds    []ExecContext
}

func (s *recordingScheduler) Arm(dir Direction, deadline int64, cb func()) {
	if s.ctx == nil {
		panic("armed without context")
	}
	if s.armed[dir] {
		s.superseded[dir]++
	}
	s.armed[dir] = true
	s.deadlines[dir] = deadline
	s.callbacks[dir] = cb
	s.arms[dir]++
}

func (s *recordingScheduler) Cancel(dir Direction) {
	s.armed[dir] = false
	s.cancels[dir]++
}

func (s *recordingScheduler) Rebind(ctx ExecContext) {
	s.armed = [2]bool{}
	s.ctx = ctx
	s.rebinds = append(s.rebinds, ctx)
}

// fire delivers the armed timer of dir through the bound context
func (s *recordingScheduler) fire(dir Direction) bool {
	if !s.armed[dir] {
		return false
	}
	s.armed[dir] = false
	cb := s.callbacks[dir]
	_ = s.ctx.Post(cb)
	return true
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}
