// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package errors

import (
	"fmt"
	"testing"
)

func Test_ErrorValidations(t *testing.T) {
	err := fmt.Errorf("%s", "test error from fmt")
	if GetErrCode(err) != Unknown {
		t.Errorf("expected error type unknown, got %v", GetErrCode(err))
	}

	err = New("test error from errors pkg")
	if GetErrCode(err) != Unknown {
		t.Errorf("expected error type unknown, got %v", GetErrCode(err))
	}

	err = Wrap(AlreadyExists, "device already registered")
	if !IsAlreadyExists(err) {
		t.Errorf("expected error type Already exists")
	}

	err = Wrapf(NotFound, "device %q not found", "vda")
	if !IsNotFound(err) {
		t.Errorf("expected error type Not Found")
	}
	if err.Error() != `device "vda" not found` {
		t.Errorf("unexpected message, got %q", err.Error())
	}
}

func Test_ConfigErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
		missing  bool
		invalid  bool
	}{
		{"conflict", Wrap(Conflict, "bps and bps_rd both set"), true, false, true},
		{"missing limit", Wrap(MissingLimit, "bps_max not set"), false, true, true},
		{"invalid argument", Wrap(InvalidArgument, "negative rate"), false, false, true},
		{"not found", Wrap(NotFound, "no such device"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConflict(tt.err); got != tt.conflict {
				t.Fatalf("IsConflict mismatch: got %v want %v", got, tt.conflict)
			}
			if got := IsMissingLimit(tt.err); got != tt.missing {
				t.Fatalf("IsMissingLimit mismatch: got %v want %v", got, tt.missing)
			}
			if got := IsInvalidConfig(tt.err); got != tt.invalid {
				t.Fatalf("IsInvalidConfig mismatch: got %v want %v", got, tt.invalid)
			}
		})
	}
}

func Test_WrappedChain(t *testing.T) {
	err := fmt.Errorf("reload rejected: %w", Wrap(Conflict, "iops and iops_wr both set"))
	if !IsConflict(err) {
		t.Fatalf("expected code to survive fmt wrapping, got %v", GetErrCode(err))
	}
	if GetErrCode(err).String() != "Conflict" {
		t.Fatalf("unexpected code name, got %s", GetErrCode(err))
	}
}
