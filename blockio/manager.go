// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package blockio

import (
	"context"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/go-core-stack/iothrottle/errors"
	"github.com/go-core-stack/iothrottle/loop"
	"github.com/go-core-stack/iothrottle/throttle"
	"github.com/go-core-stack/iothrottle/utils"
)

// Manager tracks the throttled devices and the execution contexts
// their timers are bound to.
type Manager struct {
	clock   throttle.Clock     // time source shared by all devices
	ctx     *loop.Context      // context new devices are attached to
	mu      sync.Mutex         // protects concurrent access to the registry
	devices map[string]*Device // registry of all configured devices
}

// NewManager constructs a Manager attaching new devices to ctx
func NewManager(clock throttle.Clock, ctx *loop.Context) *Manager {
	if clock == nil || ctx == nil {
		log.Panicf("device manager requires a clock and an execution context")
	}
	return &Manager{
		clock:   clock,
		ctx:     ctx,
		devices: make(map[string]*Device),
	}
}

// NewDevice registers a device backed by backend. cfg may be nil for a
// device without limits, an invalid cfg is rejected before the device
// is registered.
func (m *Manager) NewDevice(name string, backend Backend, cfg *throttle.Config) (*Device, error) {
	if !utils.IsValidDeviceName(name) {
		return nil, errors.Wrapf(errors.InvalidArgument, "invalid device name %q", name)
	}
	if backend == nil {
		return nil, errors.Wrapf(errors.InvalidArgument, "device %q requires a backend", name)
	}
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.devices[name]
	if ok {
		return nil, errors.Wrapf(errors.AlreadyExists, "device %q, already exists", name)
	}
	dev := newDevice(name, backend, m.clock, m.ctx)
	if cfg != nil {
		if err := dev.configure(cfg); err != nil {
			dev.destroy()
			return nil, err
		}
	}
	m.devices[name] = dev
	log.Printf("[INFO][Throttle] registered device %s (%s)", name, dev.id)
	return dev, nil
}

// Device returns the device registered with the name
func (m *Manager) Device(name string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dev, ok := m.devices[name]
	if !ok {
		return nil, errors.Wrapf(errors.NotFound, "device %q not found", name)
	}
	return dev, nil
}

// Names returns the sorted names of all registered devices
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.devices))
	for name := range m.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remove unregisters the device, cancelling its timers. Operations
// still held on it fail with NotFound.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	dev, ok := m.devices[name]
	delete(m.devices, name)
	m.mu.Unlock()
	if !ok {
		return errors.Wrapf(errors.NotFound, "device %q not found", name)
	}
	dev.destroy()
	log.Printf("[INFO][Throttle] removed device %s", name)
	return nil
}

// SetThrottle reconfigures the limits of the device, bucket levels
// start over from zero
func (m *Manager) SetThrottle(name string, cfg *throttle.Config) error {
	if cfg == nil {
		return errors.Wrapf(errors.InvalidArgument, "device %q: throttle config must not be nil", name)
	}
	dev, err := m.Device(name)
	if err != nil {
		return err
	}
	if err := dev.configure(cfg); err != nil {
		return err
	}
	log.Printf("[INFO][Throttle] device %s reconfigured, enabled=%v", name, cfg.Enabled())
	return nil
}

// Migrate moves the timers of the device to another execution context
func (m *Manager) Migrate(name string, ctx *loop.Context) error {
	if ctx == nil {
		return errors.Wrapf(errors.InvalidArgument, "device %q: nil execution context", name)
	}
	dev, err := m.Device(name)
	if err != nil {
		return err
	}
	dev.migrate(ctx)
	log.Printf("[INFO][Throttle] device %s migrated to context %s", name, ctx.ID())
	return nil
}

// WrapReader returns a reader streaming the device from offset off
func (m *Manager) WrapReader(ctx context.Context, name string, off int64) (io.Reader, error) {
	dev, err := m.Device(name)
	if err != nil {
		return nil, err
	}
	return &deviceReader{ctx: ctx, dev: dev, off: off}, nil
}

// WrapWriter returns a writer streaming onto the device from offset off
func (m *Manager) WrapWriter(ctx context.Context, name string, off int64) (io.Writer, error) {
	dev, err := m.Device(name)
	if err != nil {
		return nil, err
	}
	return &deviceWriter{ctx: ctx, dev: dev, off: off}, nil
}
