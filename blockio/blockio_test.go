// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package blockio

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/go-core-stack/iothrottle/errors"
	"github.com/go-core-stack/iothrottle/loop"
	"github.com/go-core-stack/iothrottle/throttle"
)

func newTestManager(t *testing.T) (*Manager, *loop.Context) {
	t.Helper()
	ctx := loop.NewContext(context.Background())
	t.Cleanup(ctx.Stop)
	return NewManager(throttle.NewMonotonicClock(), ctx), ctx
}

// settle waits for the callbacks already posted on ctx, such as the
// queue restart following a configure, to run
func settle(t *testing.T, ctx *loop.Context) {
	t.Helper()
	done := make(chan struct{})
	if err := ctx.Post(func() { close(done) }); err != nil {
		t.Fatalf("failed to post: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop context stuck")
	}
}

func writeLimit(rate, burst float64) *throttle.Config {
	cfg := &throttle.Config{}
	cfg.SetLimit(throttle.BPSWrite, rate, burst)
	return cfg
}

func Test_ManagerRegistry(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.NewDevice("vdb", NewMemBackend(1024), nil); err != nil {
		t.Fatalf("failed to create device: %v", err)
	}
	if _, err := m.NewDevice("vda", NewMemBackend(1024), writeLimit(1000, 100)); err != nil {
		t.Fatalf("failed to create device: %v", err)
	}
	_, err := m.NewDevice("vda", NewMemBackend(1024), nil)
	if !errors.IsAlreadyExists(err) {
		t.Fatalf("expected already exists error, got %v", err)
	}

	names := m.Names()
	if len(names) != 2 || names[0] != "vda" || names[1] != "vdb" {
		t.Fatalf("unexpected device names %v", names)
	}

	if _, err := m.Device("vdc"); !errors.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if err := m.Remove("vdb"); err != nil {
		t.Fatalf("failed to remove device: %v", err)
	}
	if err := m.Remove("vdb"); !errors.IsNotFound(err) {
		t.Fatalf("expected not found error on second remove, got %v", err)
	}
	if err := m.SetThrottle("vdb", writeLimit(1, 1)); !errors.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func Test_ManagerRejectsInvalidConfig(t *testing.T) {
	m, _ := newTestManager(t)

	missing := &throttle.Config{}
	missing.SetLimit(throttle.OPSRead, 100, 0)
	_, err := m.NewDevice("vda", NewMemBackend(16), missing)
	if !errors.IsMissingLimit(err) {
		t.Fatalf("expected missing limit error, got %v", err)
	}
	if len(m.Names()) != 0 {
		t.Fatalf("invalid device got registered")
	}

	for _, name := range []string{"", "Disk/1"} {
		if _, err := m.NewDevice(name, NewMemBackend(16), nil); !errors.IsInvalidArgument(err) {
			t.Fatalf("expected invalid argument for name %q, got %v", name, err)
		}
	}

	dev, err := m.NewDevice("vda", NewMemBackend(16), writeLimit(1000, 100))
	if err != nil {
		t.Fatalf("failed to create device: %v", err)
	}
	conflict := writeLimit(1000, 100)
	conflict.SetLimit(throttle.BPSTotal, 2000, 200)
	if err := m.SetThrottle("vda", conflict); !errors.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	cfg := dev.Throttle()
	if cfg.Buckets[throttle.BPSWrite].Rate != 1000 || cfg.Buckets[throttle.BPSTotal].Rate != 0 {
		t.Fatalf("rejected config got applied: %+v", cfg.Buckets)
	}
}

func Test_DeviceUnthrottled(t *testing.T) {
	m, _ := newTestManager(t)
	dev, _ := m.NewDevice("vda", NewMemBackend(64), nil)

	data := []byte("hello world")
	n, err := dev.WriteAt(context.Background(), data, 8)
	if err != nil || n != len(data) {
		t.Fatalf("write failed, n=%d err=%v", n, err)
	}
	buf := make([]byte, len(data))
	if _, err := dev.ReadAt(context.Background(), buf, 8); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(buf, data) {
		t.Fatalf("read back mismatch, got %q want %q", buf, data)
	}
}

func Test_DeviceHoldsWrites(t *testing.T) {
	m, lc := newTestManager(t)
	// 10000 B/s with 100 bytes of burst, a 600 byte write waits ~50ms
	dev, err := m.NewDevice("vda", NewMemBackend(4096), writeLimit(10000, 100))
	if err != nil {
		t.Fatalf("failed to create device: %v", err)
	}
	settle(t, lc)

	start := time.Now()
	if _, err := dev.WriteAt(context.Background(), make([]byte, 600), 0); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("write completed after %v, expected it to be held ~50ms", elapsed)
	}

	// reads are not limited
	start = time.Now()
	if _, err := dev.ReadAt(context.Background(), make([]byte, 600), 0); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 30*time.Millisecond {
		t.Fatalf("unlimited read held for %v", elapsed)
	}
}

func Test_DeviceHeldOperationCancelled(t *testing.T) {
	m, lc := newTestManager(t)
	// one byte per second, anything above the burst waits for long
	dev, _ := m.NewDevice("vda", NewMemBackend(4096), writeLimit(1, 1))
	settle(t, lc)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := dev.WriteAt(ctx, make([]byte, 100), 0)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if dev.Held(throttle.Write) != 0 {
		t.Fatalf("abandoned operation still held")
	}
}

func Test_DeviceRemovedWhileHeld(t *testing.T) {
	m, lc := newTestManager(t)
	dev, _ := m.NewDevice("vda", NewMemBackend(4096), writeLimit(1, 1))
	settle(t, lc)

	res := make(chan error, 1)
	go func() {
		_, err := dev.WriteAt(context.Background(), make([]byte, 100), 0)
		res <- err
	}()
	for i := 0; dev.Held(throttle.Write) == 0; i++ {
		if i > 200 {
			t.Fatalf("write never got held")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := m.Remove("vda"); err != nil {
		t.Fatalf("failed to remove device: %v", err)
	}
	select {
	case err := <-res:
		if !errors.IsNotFound(err) {
			t.Fatalf("expected not found for held write, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("held write not released on remove")
	}
	if _, err := dev.ReadAt(context.Background(), make([]byte, 1), 0); !errors.IsNotFound(err) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
}

func Test_SetThrottleReleasesHeld(t *testing.T) {
	m, lc := newTestManager(t)
	dev, _ := m.NewDevice("vda", NewMemBackend(4096), writeLimit(1, 1))
	settle(t, lc)

	res := make(chan error, 1)
	go func() {
		_, err := dev.WriteAt(context.Background(), make([]byte, 100), 0)
		res <- err
	}()
	for i := 0; dev.Held(throttle.Write) == 0; i++ {
		if i > 200 {
			t.Fatalf("write never got held")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// lifting the limits lets the queue run again
	if err := m.SetThrottle("vda", &throttle.Config{}); err != nil {
		t.Fatalf("failed to set throttle: %v", err)
	}
	select {
	case err := <-res:
		if err != nil {
			t.Fatalf("held write failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("held write not released on reconfigure")
	}
}

// Test_SetThrottleOnSaturatedLoop reconfigures a device while its loop
// is stuck behind a full queue, the device must stay usable meanwhile.
func Test_SetThrottleOnSaturatedLoop(t *testing.T) {
	m, lc := newTestManager(t)
	dev, _ := m.NewDevice("vda", NewMemBackend(4096), writeLimit(1, 1))
	settle(t, lc)

	res := make(chan error, 1)
	go func() {
		_, err := dev.WriteAt(context.Background(), make([]byte, 100), 0)
		res <- err
	}()
	for i := 0; dev.Held(throttle.Write) == 0; i++ {
		if i > 200 {
			t.Fatalf("write never got held")
		}
		time.Sleep(5 * time.Millisecond)
	}

	gate := make(chan struct{})
	started := make(chan struct{})
	_ = lc.Post(func() { close(started); <-gate })
	<-started
	go func() {
		for i := 0; i < 2048; i++ {
			if lc.Post(func() {}) != nil {
				return
			}
		}
	}()
	for i := 0; !lc.Saturated(); i++ {
		if i > 200 {
			t.Fatalf("loop queue never filled up")
		}
		time.Sleep(5 * time.Millisecond)
	}

	configured := make(chan error, 1)
	go func() {
		configured <- m.SetThrottle("vda", &throttle.Config{})
	}()
	time.Sleep(50 * time.Millisecond)

	held := make(chan int, 1)
	go func() { held <- dev.Held(throttle.Write) }()
	select {
	case <-held:
	case <-time.After(time.Second):
		close(gate)
		t.Fatalf("device locked while its restart waits on the loop")
	}

	close(gate)
	select {
	case err := <-configured:
		if err != nil {
			t.Fatalf("failed to set throttle: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("set throttle never completed")
	}
	select {
	case err := <-res:
		if err != nil {
			t.Fatalf("held write failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("held write not released on reconfigure")
	}
}

func Test_MigrateDevice(t *testing.T) {
	m, first := newTestManager(t)
	dev, _ := m.NewDevice("vda", NewMemBackend(4096), writeLimit(10000, 100))
	if dev.Context() != first {
		t.Fatalf("device not attached to the manager context")
	}

	settle(t, first)

	second := loop.NewContext(context.Background())
	defer second.Stop()
	if err := m.Migrate("vda", second); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if dev.Context() != second {
		t.Fatalf("device context not updated on migrate")
	}
	if err := m.Migrate("vdx", second); !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	// timers keep working on the new context
	if _, err := dev.WriteAt(context.Background(), make([]byte, 600), 0); err != nil {
		t.Fatalf("write after migrate failed: %v", err)
	}

	// the old context going away must not matter anymore
	first.Stop()
	if _, err := dev.WriteAt(context.Background(), make([]byte, 600), 0); err != nil {
		t.Fatalf("write after old context stopped failed: %v", err)
	}
}

func Test_StreamAdapters(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.NewDevice("vda", NewMemBackend(32), writeLimit(100000, 1000)); err != nil {
		t.Fatalf("failed to create device: %v", err)
	}

	w, err := m.WrapWriter(context.Background(), "vda", 0)
	if err != nil {
		t.Fatalf("failed to wrap writer: %v", err)
	}
	if _, err := io.WriteString(w, "0123456789"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := io.WriteString(w, "abcdef"); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	r, err := m.WrapReader(context.Background(), "vda", 4)
	if err != nil {
		t.Fatalf("failed to wrap reader: %v", err)
	}
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf) != "456789ab" {
		t.Fatalf("got %q want %q", buf, "456789ab")
	}

	if _, err := m.WrapReader(context.Background(), "vdz", 0); !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func Test_MemBackendBounds(t *testing.T) {
	b := NewMemBackend(4)
	if n, err := b.WriteAt([]byte("abcdef"), 2); n != 2 || err != io.ErrShortWrite {
		t.Fatalf("got n=%d err=%v, want 2 and short write", n, err)
	}
	buf := make([]byte, 4)
	if n, err := b.ReadAt(buf, 2); n != 2 || err != io.EOF {
		t.Fatalf("got n=%d err=%v, want 2 and EOF", n, err)
	}
	if _, err := b.ReadAt(buf, -1); !errors.IsInvalidArgument(err) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
