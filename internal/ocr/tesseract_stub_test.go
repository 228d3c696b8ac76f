//go:build !ocr

package ocr

import (
	"context"
	"errors"
	"testing"

	"sheetdiff/internal/synth"
)

func TestStubEngine(t *testing.T) {
	if _, err := NewEngine("eng"); !errors.Is(err, ErrNotEnabled) {
		t.Errorf("NewEngine: got %v, want ErrNotEnabled", err)
	}
	var e Engine
	if _, err := e.Recognize(context.Background(), synth.Blank(2, 2)); !errors.Is(err, ErrNotEnabled) {
		t.Errorf("Recognize: got %v, want ErrNotEnabled", err)
	}
}
