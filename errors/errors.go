// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package errors

import (
	stderrors "errors"
	"fmt"
)

// GetErrCode returns the code of the first coded error found
// in the chain of err, Unknown otherwise
func GetErrCode(err error) ErrCode {
	var val *Error
	if stderrors.As(err, &val) {
		return val.code
	}
	return Unknown
}

// base error structure
type Error struct {
	code ErrCode
	msg  string
}

// Error() prints out the error message string
func (e *Error) Error() string {
	return e.msg
}

// Code returns the error code associated with the error
func (e *Error) Code() ErrCode {
	return e.code
}

// Creates a new error msg without error code
func New(msg string) error {
	return &Error{
		msg: msg,
	}
}

// Wraps the error msg with recognized error codes
func Wrap(code ErrCode, msg string) error {
	return &Error{
		code: code,
		msg:  msg,
	}
}

// Wrapf formats the message and wraps it with the error code
func Wrapf(code ErrCode, format string, args ...any) error {
	return &Error{
		code: code,
		msg:  fmt.Sprintf(format, args...),
	}
}

// IsNotFound returns true if err
// item isn't found in the space
func IsNotFound(err error) bool {
	return GetErrCode(err) == NotFound
}

// IsAlreadyExists returns true if err
// item already exists in the space
func IsAlreadyExists(err error) bool {
	return GetErrCode(err) == AlreadyExists
}

// IsInvalidArgument returns true if err
// item is invalid argument
func IsInvalidArgument(err error) bool {
	return GetErrCode(err) == InvalidArgument
}

// IsConflict returns true if err reports mixing of
// total and per direction limits
func IsConflict(err error) bool {
	return GetErrCode(err) == Conflict
}

// IsMissingLimit returns true if err reports a rate
// configured without burst
func IsMissingLimit(err error) bool {
	return GetErrCode(err) == MissingLimit
}

// IsInvalidConfig returns true for any of the configuration
// rejection codes
func IsInvalidConfig(err error) bool {
	switch GetErrCode(err) {
	case InvalidArgument, Conflict, MissingLimit:
		return true
	}
	return false
}
