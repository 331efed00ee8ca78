// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package throttle

import (
	"math"

	"github.com/go-core-stack/iothrottle/errors"
)

// MaxValue is the largest rate or burst accepted for a bucket
const MaxValue = 1e15

// Config is the complete rate limit specification of a device: one
// bucket per BucketKind plus the size of a canonical operation.
type Config struct {
	Buckets [BucketsCount]Bucket `json:"buckets"`

	// bytes counted as one operation by the iops buckets,
	// 0 counts every accounted call as exactly one operation
	OpSize uint64 `json:"op_size"`
}

// SetLimit configures rate and burst of the bucket
func (c *Config) SetLimit(kind BucketKind, rate, burst float64) {
	c.Buckets[kind].Rate = rate
	c.Buckets[kind].Burst = burst
}

// Enabled returns true if any of the buckets carries a limit
func (c *Config) Enabled() bool {
	for i := range c.Buckets {
		if c.Buckets[i].Enabled() {
			return true
		}
	}
	return false
}

// Conflicting returns true if a total limit and a read or write limit
// of the same metric are enabled together, as both would charge the
// same operation against independent quotas
func (c *Config) Conflicting() bool {
	_, ok := c.conflict()
	return ok
}

func (c *Config) conflict() (Metric, bool) {
	for _, m := range []Metric{Bytes, Ops} {
		if !c.Buckets[TotalKind(m)].Enabled() {
			continue
		}
		if c.Buckets[DirectionalKind(m, Read)].Enabled() ||
			c.Buckets[DirectionalKind(m, Write)].Enabled() {
			return m, true
		}
	}
	return Bytes, false
}

// MissingLimit returns true if a bucket has a sustained rate but no
// burst allowance
func (c *Config) MissingLimit() bool {
	_, ok := c.missingLimit()
	return ok
}

func (c *Config) missingLimit() (BucketKind, bool) {
	for i := range c.Buckets {
		if c.Buckets[i].Rate > 0 && c.Buckets[i].Burst == 0 {
			return BucketKind(i), true
		}
	}
	return 0, false
}

func (c *Config) badValue() (BucketKind, bool) {
	for i := range c.Buckets {
		b := &c.Buckets[i]
		for _, v := range []float64{b.Rate, b.Burst, b.Level} {
			if v < 0 || math.IsNaN(v) || v > MaxValue {
				return BucketKind(i), true
			}
		}
	}
	return 0, false
}

// IsValid returns true if the config can be applied to a State
func (c *Config) IsValid() bool {
	return c.Validate() == nil
}

// Validate returns a coded error describing why the config cannot be
// applied, nil if it is valid
func (c *Config) Validate() error {
	if kind, ok := c.badValue(); ok {
		return errors.Wrapf(errors.InvalidArgument,
			"%s: rate, burst and level must be within [0, %g]", kind, float64(MaxValue))
	}
	if m, ok := c.conflict(); ok {
		total := TotalKind(m)
		return errors.Wrapf(errors.Conflict,
			"%s cannot be combined with %s or %s", total,
			DirectionalKind(m, Read), DirectionalKind(m, Write))
	}
	if kind, ok := c.missingLimit(); ok {
		return errors.Wrapf(errors.MissingLimit, "%s: rate set without a burst (%s_max)", kind, kind)
	}
	return nil
}

// units returns the number of operations size bytes are accounted as
func (c *Config) units(size uint64) float64 {
	if c.OpSize == 0 {
		return 1
	}
	return math.Max(1, math.Round(float64(size)/float64(c.OpSize)))
}

func (c *Config) resetLevels() {
	for i := range c.Buckets {
		c.Buckets[i].Level = 0
	}
}
