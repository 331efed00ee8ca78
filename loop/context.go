// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package loop

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// Timer callbacks are posted from timer goroutines while the loop may
// be busy running earlier callbacks, use a buffer length of 1024 so
// that posting does not hold up under regular scenarios. Post blocks
// once the buffer is full, callers must not post while holding a lock
// that queued callbacks acquire.
const bufferLength = 1024

// Context is a serial execution context, every posted callback runs
// on the single goroutine owned by the context in posting order
type Context struct {
	id uuid.UUID

	// context under which the loop is running, where the context
	// closure means the loop is stopped
	ctx    context.Context
	cancel context.CancelFunc

	// callbacks waiting to be executed
	queue chan func()

	// closed once the loop goroutine returned
	done chan struct{}
}

// NewContext starts a new execution context, which runs until Stop is
// called or parent is cancelled
func NewContext(parent context.Context) *Context {
	ctx, cancel := context.WithCancel(parent)
	c := &Context{
		id:     uuid.New(),
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan func(), bufferLength),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// ID uniquely identifies the context, mostly useful for logging
func (c *Context) ID() uuid.UUID {
	return c.id
}

// Post queues fn for execution on the context. It fails once the
// context is stopped.
func (c *Context) Post(fn func()) error {
	// do not allow if the context is already closed
	if c.ctx.Err() != nil {
		return c.ctx.Err()
	}
	select {
	case c.queue <- fn:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// Stop terminates the loop and waits for the running callback, if any,
// to return. Callbacks still queued are dropped.
func (c *Context) Stop() {
	c.cancel()
	<-c.done
}

// Saturated returns true while the queue is full, Post blocks until
// the loop catches up
func (c *Context) Saturated() bool {
	return len(c.queue) == cap(c.queue)
}

// Done is closed once the loop has terminated
func (c *Context) Done() <-chan struct{} {
	return c.done
}

func (c *Context) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case fn := <-c.queue:
			c.execute(fn)
		}
	}
}

func (c *Context) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PANIC] recovered in loop context %s callback: %v", c.id, r)
		}
	}()
	fn()
}
