//go:build !ocr

package ocr

import (
	"context"
	"image"
)

// Engine is the stub used when the "ocr" build tag is not set.
type Engine struct{}

// NewEngine returns ErrNotEnabled.
func NewEngine(string) (*Engine, error) {
	return nil, ErrNotEnabled
}

// Close is a no-op.
func (e *Engine) Close() error { return nil }

// Recognize returns ErrNotEnabled.
func (e *Engine) Recognize(context.Context, image.Image) (string, error) {
	return "", ErrNotEnabled
}
