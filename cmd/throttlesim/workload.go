// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package main

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/go-core-stack/iothrottle/blockio"
	"github.com/go-core-stack/iothrottle/errors"
	"github.com/go-core-stack/iothrottle/throttle"
)

// workload issues random reads and writes against every device
type workload struct {
	workers    int
	blockSize  int
	writeRatio float64
}

func (w workload) validate() error {
	if w.workers <= 0 {
		return errors.Wrapf(errors.InvalidArgument, "workers must be positive, got %d", w.workers)
	}
	if w.blockSize <= 0 {
		return errors.Wrapf(errors.InvalidArgument, "block size must be positive, got %d", w.blockSize)
	}
	if w.writeRatio < 0 || w.writeRatio > 1 {
		return errors.Wrapf(errors.InvalidArgument, "write ratio must be within [0, 1], got %g", w.writeRatio)
	}
	return nil
}

type deviceStats struct {
	device  string
	ops     [2]int64
	bytes   [2]int64
	elapsed time.Duration
}

// rate returns the achieved bytes per second in the direction
func (s *deviceStats) rate(dir throttle.Direction) float64 {
	if s.elapsed <= 0 {
		return 0
	}
	return float64(s.bytes[dir]) / s.elapsed.Seconds()
}

func (w workload) run(ctx context.Context, logger *slog.Logger, mgr *blockio.Manager) []*deviceStats {
	var (
		wg    sync.WaitGroup
		stats []*deviceStats
	)
	for _, name := range mgr.Names() {
		dev, err := mgr.Device(name)
		if err != nil {
			continue
		}
		size := dev.Size()
		s := &deviceStats{device: name}
		stats = append(stats, s)

		var mu sync.Mutex
		start := time.Now()
		for i := 0; i < w.workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ops, bytes := w.worker(ctx, dev, size)
				mu.Lock()
				defer mu.Unlock()
				for dir := range ops {
					s.ops[dir] += ops[dir]
					s.bytes[dir] += bytes[dir]
				}
				s.elapsed = time.Since(start)
			}()
		}
	}
	logger.Info("workload started", "devices", len(stats), "workers", w.workers, "block_size", w.blockSize)
	wg.Wait()
	return stats
}

func (w workload) worker(ctx context.Context, dev *blockio.Device, size int64) (ops, bytes [2]int64) {
	buf := make([]byte, w.blockSize)
	blocks := size / int64(w.blockSize)
	if blocks <= 0 {
		blocks = 1
	}
	for ctx.Err() == nil {
		off := rand.Int63n(blocks) * int64(w.blockSize)
		dir := throttle.Read
		var (
			n   int
			err error
		)
		if rand.Float64() < w.writeRatio {
			dir = throttle.Write
			n, err = dev.WriteAt(ctx, buf, off)
		} else {
			n, err = dev.ReadAt(ctx, buf, off)
		}
		if err != nil && n == 0 {
			if ctx.Err() != nil || errors.IsNotFound(err) {
				return
			}
			continue
		}
		ops[dir]++
		bytes[dir] += int64(n)
	}
	return
}
