package compare

import (
	"context"
	"time"
)

// Hooks receives per-pair pipeline events. Pairs run concurrently, so
// implementations must be safe for concurrent use.
//
// For each pair, OnStageComplete calls happen between OnPairStart and
// OnPairComplete. Stages still running when a pair times out report nothing.
type Hooks interface {
	OnPairStart(ctx context.Context, key string)
	OnStageComplete(ctx context.Context, key string, stage Stage, duration time.Duration, err error)
	OnPairComplete(ctx context.Context, key string, status Status, duration time.Duration)
}

// NoopHooks is a no-op implementation of Hooks.
type NoopHooks struct{}

func (NoopHooks) OnPairStart(context.Context, string)                                {}
func (NoopHooks) OnStageComplete(context.Context, string, Stage, time.Duration, error) {}
func (NoopHooks) OnPairComplete(context.Context, string, Status, time.Duration)        {}
