// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package blockio

import (
	"io"
	"sync"

	"github.com/go-core-stack/iothrottle/errors"
)

// MemBackend is a fixed size in memory Backend
type MemBackend struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemBackend(size int) *MemBackend {
	return &MemBackend{data: make([]byte, size)}
}

func (b *MemBackend) Size() int64 {
	return int64(len(b.data))
}

func (b *MemBackend) ReadAt(p []byte, off int64) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if off < 0 {
		return 0, errors.Wrapf(errors.InvalidArgument, "negative offset %d", off)
	}
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *MemBackend) WriteAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if off < 0 {
		return 0, errors.Wrapf(errors.InvalidArgument, "negative offset %d", off)
	}
	if off >= int64(len(b.data)) {
		return 0, io.ErrShortWrite
	}
	n := copy(b.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}
