// Package throttle implements leaky bucket admission control for the
// operations issued against a block device.
//
// # Overview
//
// A device is limited by up to six leaky buckets: bytes per second and
// operations per second, each either for both directions together
// ("total") or separately for reads and writes. Every bucket has a
// sustained Rate and a Burst level. Accounting an operation raises the
// level of the buckets it is charged to, time drains them at their
// rate, and an operation has to wait while any relevant bucket sits
// above its burst.
//
// The package never blocks and never queues. The caller accounts an
// operation and asks the timer arbiter whether it may be issued:
//
//	thr.Admit(isWrite, size) // State.Account + Timers.ScheduleTimer
//
// When Admit returns true a one-shot timer for the direction is armed
// through the Scheduler and the caller holds the operation until the
// direction callback runs on the execution context the timers are
// attached to.
//
// # Configuration rules
//
//   - A total limit cannot be combined with a read or write limit of the
//     same metric (errors.Conflict).
//   - A rate requires a burst (errors.MissingLimit).
//   - Values must be non negative and not above MaxValue
//     (errors.InvalidArgument).
//   - OpSize normalizes variable sized operations for the iops buckets,
//     0 counts every call as one operation.
//
// Reconfiguring resets all bucket levels to zero.
//
// # Execution contexts
//
// Timers are bound to one ExecContext at a time. Detach cancels both
// timers without running their callbacks, Attach binds them to a new
// context. Both have to be called while no ScheduleTimer is in flight
// for the device.
//
// # Concurrency
//
// State, Timers and Throttler are not safe for concurrent use, the
// device layer serializes access to them.
package throttle
