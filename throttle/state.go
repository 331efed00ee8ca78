// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttle

import (
	"log"
	"math"
)

// buckets relevant for the admission of an operation, per direction
var relevantKinds = [2][4]BucketKind{
	Read:  {BPSTotal, BPSRead, OPSTotal, OPSRead},
	Write: {BPSTotal, BPSWrite, OPSTotal, OPSWrite},
}

// State is the live throttling context of one device. It is not safe
// for concurrent use, the owner of the device serializes access.
type State struct {
	cfg      Config
	lastLeak int64 // clock reading of the last leak applied to the buckets
	clock    Clock
}

// NewState allocates a State with an empty configuration
func NewState(clock Clock) *State {
	s := &State{}
	s.Init(clock)
	return s
}

// Init zeroes all bucket levels and starts leaking from now
func (s *State) Init(clock Clock) {
	if clock == nil {
		log.Panicf("throttle state initialized without a clock")
	}
	s.clock = clock
	s.cfg.resetLevels()
	s.lastLeak = clock.Now()
}

// Clock returns the time source the state accounts against
func (s *State) Clock() Clock {
	return s.clock
}

// Configure validates and adopts cfg. Bucket levels are reset so that
// usage measured against the previous limits does not turn into debt
// against the new ones. An invalid config leaves the state untouched.
func (s *State) Configure(cfg *Config) error {
	if cfg == nil {
		log.Panicf("throttle state configured with nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = *cfg
	s.cfg.resetLevels()
	s.lastLeak = s.clock.Now()
	return nil
}

// Config returns a snapshot of the current configuration, including
// bucket levels
func (s *State) Config() Config {
	return s.cfg
}

// leak drains all buckets up to now
func (s *State) leak(now int64) {
	elapsed := now - s.lastLeak
	if elapsed <= 0 {
		return
	}
	for i := range s.cfg.Buckets {
		s.cfg.Buckets[i].Leak(elapsed)
	}
	s.lastLeak = now
}

// Account records the cost of an operation of size bytes. It never
// blocks, admission is decided by the timer arbiter.
func (s *State) Account(isWrite bool, size uint64) {
	s.leak(s.clock.Now())

	dir := DirectionOf(isWrite)
	bytes := float64(size)
	units := s.cfg.units(size)

	s.cfg.Buckets[BPSTotal].add(bytes)
	s.cfg.Buckets[DirectionalKind(Bytes, dir)].add(bytes)
	s.cfg.Buckets[OPSTotal].add(units)
	s.cfg.Buckets[DirectionalKind(Ops, dir)].add(units)
}

// ComputeTimer reports whether an operation in the given direction has
// to wait at now, and the deadline until which it has to wait. The
// buckets are leaked on copies, so the state is left unmodified.
func (s *State) ComputeTimer(isWrite bool, now int64) (bool, int64) {
	elapsed := now - s.lastLeak
	var wait int64
	for _, kind := range relevantKinds[DirectionOf(isWrite)] {
		bkt := s.cfg.Buckets[kind]
		bkt.Leak(elapsed)
		if w := bkt.ComputeWait(); w > wait {
			wait = w
		}
	}
	if now > 0 && wait > math.MaxInt64-now {
		return true, math.MaxInt64
	}
	return wait > 0, now + wait
}
