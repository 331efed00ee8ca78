// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttle

import "math"

const nanosecondsPerSecond = 1e9

// Direction of an I/O operation, used as index for the per
// direction timers and buckets
type Direction int

const (
	Read Direction = iota
	Write
)

// DirectionOf maps the is-write flag of an operation to its Direction
func DirectionOf(isWrite bool) Direction {
	if isWrite {
		return Write
	}
	return Read
}

func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// Metric measured by a bucket
type Metric int

const (
	Bytes Metric = iota
	Ops
)

// BucketKind identifies one of the six buckets of a Config,
// one per metric and {total, read, write} scope
type BucketKind int

const (
	BPSTotal BucketKind = iota
	BPSRead
	BPSWrite
	OPSTotal
	OPSRead
	OPSWrite
	BucketsCount
)

var kindNames = [BucketsCount]string{
	BPSTotal: "bps",
	BPSRead:  "bps_rd",
	BPSWrite: "bps_wr",
	OPSTotal: "iops",
	OPSRead:  "iops_rd",
	OPSWrite: "iops_wr",
}

func (k BucketKind) String() string {
	if k < 0 || k >= BucketsCount {
		return "unknown"
	}
	return kindNames[k]
}

// Metric returns the metric the bucket kind limits
func (k BucketKind) Metric() Metric {
	if k >= OPSTotal {
		return Ops
	}
	return Bytes
}

// IsTotal returns true for buckets limiting both directions together
func (k BucketKind) IsTotal() bool {
	return k == BPSTotal || k == OPSTotal
}

// TotalKind returns the aggregate bucket kind for the metric
func TotalKind(m Metric) BucketKind {
	return BucketKind(int(m) * 3)
}

// DirectionalKind returns the per direction bucket kind for the metric
func DirectionalKind(m Metric, dir Direction) BucketKind {
	return BucketKind(int(m)*3 + 1 + int(dir))
}

// Bucket is a single leaky bucket counter. Level rises with the cost
// of accounted operations and drains continuously at Rate units per
// second; once Level is above Burst, operations have to wait for the
// bucket to drain back to Burst.
type Bucket struct {
	Rate  float64 `json:"rate"`  // sustained goal in units per second, 0 disables the bucket
	Burst float64 `json:"burst"` // level up to which no wait is imposed
	Level float64 `json:"level"` // current fill in units
}

// Enabled returns true if any limit is configured on the bucket
func (b *Bucket) Enabled() bool {
	return b.Rate > 0 || b.Burst > 0
}

// Leak drains the bucket for the elapsed nanoseconds, the level never
// goes below zero
func (b *Bucket) Leak(elapsed int64) {
	if b.Rate == 0 || elapsed <= 0 {
		return
	}
	leak := b.Rate * float64(elapsed) / nanosecondsPerSecond
	b.Level = math.Max(b.Level-leak, 0)
}

// ComputeWait returns the nanoseconds needed for the bucket to drain
// back to its burst level, 0 if an operation is admissible right away.
// Waits beyond the int64 range saturate at math.MaxInt64.
func (b *Bucket) ComputeWait() int64 {
	if b.Rate == 0 {
		return 0
	}
	extra := b.Level - b.Burst
	if extra <= 0 {
		return 0
	}
	wait := math.Ceil(extra / b.Rate * nanosecondsPerSecond)
	if wait >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(wait)
}

// add accounts units to the bucket, levels of buckets without a rate
// are not tracked as nothing would ever drain them
func (b *Bucket) add(units float64) {
	if b.Rate == 0 {
		return
	}
	b.Level += units
}
