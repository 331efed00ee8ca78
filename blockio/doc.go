// Package blockio applies I/O throttling to block devices.
//
// A Manager keeps a registry of named devices, each gating the reads
// and writes issued against its Backend through a throttle.Throttler.
// Operations that exceed the configured limits block the caller until
// the deferred resume timer of their direction fires on the
// loop.Context the device is attached to.
//
// Device timers can be moved between execution contexts with
// Manager.Migrate, operations held at that point are released right
// away.
package blockio
