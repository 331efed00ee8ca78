// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package errors

// ErrCode classifies the errors surfaced by the throttling packages.
type ErrCode int

// error codes
const (
	// if error is unknown
	Unknown ErrCode = 0

	// if the device or limit is not found
	NotFound ErrCode = 1

	// if the device is already registered
	AlreadyExists ErrCode = 2

	// if the argument is not valid, eg. negative rate or burst
	InvalidArgument ErrCode = 3

	// if a total limit and a read/write limit of the same metric
	// are configured together
	Conflict ErrCode = 4

	// if a sustained rate is configured without a burst allowance
	MissingLimit ErrCode = 5
)

var codeNames = map[ErrCode]string{
	Unknown:         "Unknown",
	NotFound:        "NotFound",
	AlreadyExists:   "AlreadyExists",
	InvalidArgument: "InvalidArgument",
	Conflict:        "Conflict",
	MissingLimit:    "MissingLimit",
}

func (c ErrCode) String() string {
	name, ok := codeNames[c]
	if !ok {
		return "Unknown"
	}
	return name
}
