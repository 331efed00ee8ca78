// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package blockio

import (
	"context"
)

type deviceReader struct {
	ctx context.Context
	dev *Device
	off int64
}

// Read implements io.Reader over the device.
//
// Every call is admitted as one read operation of len(p) bytes before
// the backend is touched. A short read still pays for the full request,
// which keeps callers from slipping past the iops limit with reads that
// end up short.
func (r *deviceReader) Read(p []byte) (int, error) {
	n, err := r.dev.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	return n, err
}

type deviceWriter struct {
	ctx context.Context
	dev *Device
	off int64
}

// Write implements io.Writer over the device, see Read for how the
// operation is accounted.
func (w *deviceWriter) Write(p []byte) (int, error) {
	n, err := w.dev.WriteAt(w.ctx, p, w.off)
	w.off += int64(n)
	return n, err
}
