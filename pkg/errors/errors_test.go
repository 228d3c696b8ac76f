package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := New(ErrCodeInvalidInput, "page %d has zero size", 3)
	if got, want := err.Error(), "INVALID_INPUT: page 3 has zero size"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	cause := fmt.Errorf("boom")
	wrapped := Wrap(ErrCodeInternal, cause, "warp failed")
	if got, want := wrapped.Error(), "INTERNAL_ERROR: warp failed: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error should unwrap to its cause")
	}
}

func TestIsThroughWrapping(t *testing.T) {
	base := New(ErrCodeMatchingFailure, "3 correspondences")
	outer := fmt.Errorf("pair A-101: %w", base)

	if !Is(outer, ErrCodeMatchingFailure) {
		t.Error("Is should find code through fmt.Errorf wrapping")
	}
	if Is(outer, ErrCodeTimeout) {
		t.Error("Is should not match a different code")
	}
	if GetCode(outer) != ErrCodeMatchingFailure {
		t.Errorf("GetCode = %q", GetCode(outer))
	}
	if GetCode(fmt.Errorf("plain")) != "" {
		t.Error("GetCode of a plain error should be empty")
	}
}

func TestIsAlignmentFailure(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{ErrCodeExtractionFailure, true},
		{ErrCodeMatchingFailure, true},
		{ErrCodeConstraintViolation, true},
		{ErrCodeTimeout, false},
		{ErrCodeInvalidInput, false},
		{ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := IsAlignmentFailure(New(tt.code, "x")); got != tt.want {
				t.Errorf("IsAlignmentFailure(%s) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}
