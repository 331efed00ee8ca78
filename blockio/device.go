// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package blockio

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/go-core-stack/iothrottle/errors"
	"github.com/go-core-stack/iothrottle/loop"
	"github.com/go-core-stack/iothrottle/throttle"
)

// Backend is the storage a Device issues its operations against
type Backend interface {
	io.ReaderAt
	io.WriterAt
}

// Device gates the operations issued against a Backend through a
// throttler, holding operations that have to wait until the timer of
// their direction releases them.
type Device struct {
	id      uuid.UUID
	name    string
	backend Backend

	mu      sync.Mutex // protects everything below
	thr     *throttle.Throttler
	ctx     *loop.Context
	held    [2][]chan struct{} // operations waiting for release, per direction
	removed bool

	// throttling notices are sampled, a saturated device would
	// otherwise log every operation
	notice rate.Sometimes
}

func newDevice(name string, backend Backend, clock throttle.Clock, ctx *loop.Context) *Device {
	d := &Device{
		id:      uuid.New(),
		name:    name,
		backend: backend,
		ctx:     ctx,
		notice:  rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	d.thr = throttle.NewThrottler(clock, loop.NewTimerScheduler(clock), ctx,
		func() { d.release(throttle.Read) },
		func() { d.release(throttle.Write) },
	)
	return d
}

// ID returns the unique id allocated to the device
func (d *Device) ID() uuid.UUID {
	return d.id
}

func (d *Device) Name() string {
	return d.name
}

// Size returns the capacity of the backend, 0 if the backend does not
// report one
func (d *Device) Size() int64 {
	if s, ok := d.backend.(interface{ Size() int64 }); ok {
		return s.Size()
	}
	return 0
}

// Throttle returns the current throttling config, including the
// bucket levels
func (d *Device) Throttle() throttle.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.thr.Config()
}

// Context returns the execution context the device timers run on
func (d *Device) Context() *loop.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

// Held returns the number of operations currently waiting in the
// direction
func (d *Device) Held(dir throttle.Direction) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.held[dir])
}

// ReadAt reads len(p) bytes at off once the read is admitted
func (d *Device) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := d.admit(ctx, false, len(p)); err != nil {
		return 0, err
	}
	return d.backend.ReadAt(p, off)
}

// WriteAt writes p at off once the write is admitted
func (d *Device) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := d.admit(ctx, true, len(p)); err != nil {
		return 0, err
	}
	return d.backend.WriteAt(p, off)
}

// admit accounts the operation and blocks the caller while it is held.
// Operations queue behind already held ones of the same direction to
// keep them in issue order.
func (d *Device) admit(ctx context.Context, isWrite bool, size int) error {
	dir := throttle.DirectionOf(isWrite)

	d.mu.Lock()
	if d.removed {
		d.mu.Unlock()
		return errors.Wrapf(errors.NotFound, "device %q has been removed", d.name)
	}
	if !d.thr.Enabled() {
		d.mu.Unlock()
		return nil
	}
	wait := d.thr.Admit(isWrite, uint64(size))
	if !wait && len(d.held[dir]) == 0 {
		d.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	d.held[dir] = append(d.held[dir], ch)
	queued := len(d.held[dir])
	d.mu.Unlock()

	d.notice.Do(func() {
		log.Printf("[INFO][Throttle] device %s: holding %s of %d bytes, %d queued", d.name, dir, size, queued)
	})

	select {
	case <-ch:
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.removed {
			return errors.Wrapf(errors.NotFound, "device %q removed while operation was held", d.name)
		}
		return nil
	case <-ctx.Done():
		d.abandon(dir, ch)
		return ctx.Err()
	}
}

// release wakes up all operations held in the direction, invoked on the
// execution context when the direction timer expires
func (d *Device) release(dir throttle.Direction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseLocked(dir)
}

func (d *Device) releaseLocked(dir throttle.Direction) {
	for _, ch := range d.held[dir] {
		close(ch)
	}
	d.held[dir] = nil
}

// abandon drops a held operation whose caller gave up waiting, unless
// it got released in the meantime
func (d *Device) abandon(dir throttle.Direction, ch chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, c := range d.held[dir] {
		if c == ch {
			d.held[dir] = append(d.held[dir][:i], d.held[dir][i+1:]...)
			return
		}
	}
}

// configure applies cfg and restarts both queues. The restart is
// posted after d.mu is released, the loop may be waiting for d.mu in
// release while the post waits for room in its queue.
func (d *Device) configure(cfg *throttle.Config) error {
	d.mu.Lock()
	if d.removed {
		d.mu.Unlock()
		return errors.Wrapf(errors.NotFound, "device %q has been removed", d.name)
	}
	restart, err := d.thr.Reconfigure(cfg)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if restart != nil {
		restart()
	}
	return nil
}

// migrate moves the device timers to ctx. Held operations are released,
// their timers do not survive the detach.
func (d *Device) migrate(ctx *loop.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == ctx {
		return
	}
	d.thr.Detach()
	d.thr.Attach(ctx)
	d.ctx = ctx
	d.releaseLocked(throttle.Read)
	d.releaseLocked(throttle.Write)
}

func (d *Device) destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed = true
	d.thr.Destroy()
	d.releaseLocked(throttle.Read)
	d.releaseLocked(throttle.Write)
}
