// Package compare runs the per-pair comparison pipeline over a batch of
// drawing pairs.
//
// Each pair moves through extraction, matching, estimation, warping and
// compositing on its own worker with its own wall-clock budget. A failure,
// timeout or panic in one pair is folded into that pair's Outcome and never
// aborts the rest of the batch.
package compare

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"sheetdiff/internal/alignment"
	"sheetdiff/internal/config"
	"sheetdiff/internal/drawing"
	"sheetdiff/internal/features"
	"sheetdiff/internal/overlay"
	"sheetdiff/internal/raster"
	apperrors "sheetdiff/pkg/errors"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Compositor builds the diff overlay of a warped old raster and a new raster.
type Compositor interface {
	Composite(ctx context.Context, oldImg, newImg *image.RGBA) (*overlay.Image, error)
}

// Orchestrator drives the comparison pipeline. It holds no per-run state and
// may be shared by concurrent Run calls.
type Orchestrator struct {
	cfg        config.Config
	extractor  features.Extractor
	matcher    features.Matcher
	estimator  alignment.Estimator
	warper     alignment.Warper
	compositor Compositor
	logger     *log.Logger
	hooks      Hooks
}

// Option overrides a default collaborator.
type Option func(*Orchestrator)

// WithExtractor replaces the ORB feature extractor.
func WithExtractor(e features.Extractor) Option { return func(o *Orchestrator) { o.extractor = e } }

// WithMatcher replaces the brute-force matcher.
func WithMatcher(m features.Matcher) Option { return func(o *Orchestrator) { o.matcher = m } }

// WithEstimator replaces the RANSAC estimator.
func WithEstimator(e alignment.Estimator) Option { return func(o *Orchestrator) { o.estimator = e } }

// WithWarper replaces the bilinear warper.
func WithWarper(w alignment.Warper) Option { return func(o *Orchestrator) { o.warper = w } }

// WithCompositor replaces the overlay compositor.
func WithCompositor(c Compositor) Option { return func(o *Orchestrator) { o.compositor = c } }

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *log.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// WithHooks registers pipeline event hooks.
func WithHooks(h Hooks) Option { return func(o *Orchestrator) { o.hooks = h } }

// New validates cfg and builds an orchestrator with the default pipeline
// stages, then applies opts.
func New(cfg config.Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	extractor, err := features.NewORB(cfg.Features)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	matcher, err := features.NewBruteForceMatcher(cfg.Matching)
	if err != nil {
		return nil, fmt.Errorf("matcher: %w", err)
	}
	estimator, err := alignment.NewRANSACEstimator(cfg.Estimation)
	if err != nil {
		return nil, fmt.Errorf("estimator: %w", err)
	}
	compositor, err := overlay.NewCompositor(cfg.Overlay)
	if err != nil {
		return nil, fmt.Errorf("compositor: %w", err)
	}

	o := &Orchestrator{
		cfg:        cfg,
		extractor:  extractor,
		matcher:    matcher,
		estimator:  estimator,
		warper:     alignment.NewBilinearWarper(),
		compositor: compositor,
		logger:     log.New(io.Discard),
		hooks:      NoopHooks{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Compare pairs the two page sets by identifier and runs every pair.
func (o *Orchestrator) Compare(ctx context.Context, oldPages, newPages []*raster.Page) *BatchResult {
	return o.Run(ctx, drawing.Match(oldPages, newPages))
}

// Run compares every pair of batch on a bounded worker pool and returns once
// all pairs have an outcome.
func (o *Orchestrator) Run(ctx context.Context, batch drawing.Batch) *BatchResult {
	res := &BatchResult{
		ID:              uuid.New(),
		Started:         time.Now(),
		Outcomes:        make([]Outcome, len(batch.Pairs)),
		UnmatchedOld:    batch.UnmatchedOld,
		UnmatchedNew:    batch.UnmatchedNew,
		UnidentifiedOld: batch.UnidentifiedOld,
		UnidentifiedNew: batch.UnidentifiedNew,
		DuplicateOld:    batch.DuplicateOld,
		DuplicateNew:    batch.DuplicateNew,
	}
	logger := o.logger.With("batch", res.ID.String())
	logger.Debug("starting batch", "pairs", len(batch.Pairs), "workers", o.cfg.Run.Workers)

	var g errgroup.Group
	g.SetLimit(o.cfg.Run.Workers)
	for i := range batch.Pairs {
		i := i
		g.Go(func() error {
			res.Outcomes[i] = o.runPair(ctx, logger, batch.Pairs[i])
			return nil
		})
	}
	_ = g.Wait()

	res.Finished = time.Now()
	res.summarize()
	logger.Info("batch complete",
		"pairs", res.Summary.Pairs,
		"succeeded", res.Summary.Succeeded,
		"changed", res.Summary.Changed,
		"alignment_failed", res.Summary.AlignmentFailed,
		"errors", res.Summary.Errors,
		"timeouts", res.Summary.Timeouts,
		"unmatched_old", res.Summary.UnmatchedOld,
		"unmatched_new", res.Summary.UnmatchedNew,
		"duration", res.Finished.Sub(res.Started))
	return res
}

// runPair runs the pipeline on its own goroutine so a stage that ignores its
// context still cannot hold the pair past its budget.
func (o *Orchestrator) runPair(ctx context.Context, logger *log.Logger, pair drawing.Pair) Outcome {
	start := time.Now()
	o.hooks.OnPairStart(ctx, pair.Key)

	pctx, cancel := context.WithTimeout(ctx, o.cfg.Run.PairTimeout.Std())
	defer cancel()

	var stage atomic.Value
	stage.Store(StagePending)
	gate := &stageGate{}

	done := make(chan Outcome, 1)
	go func() {
		out := Outcome{Pair: pair, Stage: StagePending}
		defer func() {
			if r := recover(); r != nil {
				out.fail(stage.Load().(Stage), StatusError, apperrors.ErrCodeInternal, fmt.Sprintf("panic: %v", r))
			}
			done <- out
		}()
		o.pipeline(pctx, &out, &stage, gate)
	}()

	var out Outcome
	select {
	case out = <-done:
	case <-pctx.Done():
		out = Outcome{Pair: pair}
		status, code := classify(pctx.Err())
		out.fail(stage.Load().(Stage), status, code, pctx.Err().Error())
	}
	out.Duration = time.Since(start)
	gate.close()

	if out.Status == StatusSuccess {
		logger.Debug("pair compared", "pair", pair.Key, "score", out.Score(),
			"changed", out.Overlay.Changed(), "duration", out.Duration)
	} else {
		logger.Warn("pair failed", "pair", pair.Key, "state", out.State(), "code", out.Code, "detail", out.Detail)
	}
	o.hooks.OnPairComplete(ctx, pair.Key, out.Status, out.Duration)
	return out
}

// pipeline advances out through the stages, stopping at the first failure.
func (o *Orchestrator) pipeline(ctx context.Context, out *Outcome, current *atomic.Value, gate *stageGate) {
	pair := out.Pair
	if pair.Old == nil || pair.New == nil {
		out.fail(StagePending, StatusError, apperrors.ErrCodeInvalidInput, "pair is missing a page")
		return
	}

	// enter moves to stage after checking the budget at the stage boundary.
	enter := func(stage Stage) bool {
		out.Stage = stage
		current.Store(stage)
		if err := ctx.Err(); err != nil {
			o.failWith(out, err)
			return false
		}
		return true
	}
	// finish reports a stage and folds err into out.
	finish := func(stage Stage, began time.Time, err error) bool {
		elapsed := time.Since(began)
		gate.do(func() { o.hooks.OnStageComplete(ctx, pair.Key, stage, elapsed, err) })
		if err != nil {
			o.failWith(out, err)
			return false
		}
		return true
	}

	if !enter(StageExtracting) {
		return
	}
	began := time.Now()
	oldSet, err := o.extractor.Extract(ctx, pair.Old)
	var newSet *features.FeatureSet
	if err == nil {
		newSet, err = o.extractor.Extract(ctx, pair.New)
	}
	if !finish(StageExtracting, began, err) {
		return
	}
	if oldSet.Empty() || newSet.Empty() {
		out.Alignment = alignment.Failed(alignment.ReasonInsufficientFeatures, 0)
		out.fail(StageExtracting, StatusAlignmentFailed, apperrors.ErrCodeExtractionFailure,
			fmt.Sprintf("no keypoints (old %d, new %d)", oldSet.Len(), newSet.Len()))
		return
	}

	if !enter(StageMatching) {
		return
	}
	began = time.Now()
	ms, err := o.matcher.Match(ctx, oldSet, newSet)
	if !finish(StageMatching, began, err) {
		return
	}
	if ms.Len() < o.cfg.Estimation.MinMatches {
		out.Alignment = alignment.Failed(alignment.ReasonInsufficientMatches, ms.Len())
		out.fail(StageMatching, StatusAlignmentFailed, apperrors.ErrCodeMatchingFailure,
			fmt.Sprintf("%d correspondences, need %d", ms.Len(), o.cfg.Estimation.MinMatches))
		return
	}

	if !enter(StageEstimating) {
		return
	}
	began = time.Now()
	result, err := o.estimator.Estimate(ctx, ms)
	if !finish(StageEstimating, began, err) {
		return
	}
	out.Alignment = result
	if failure := result.Err(); failure != nil {
		out.fail(StageEstimating, StatusAlignmentFailed, apperrors.GetCode(failure), failure.Error())
		return
	}

	if !enter(StageWarping) {
		return
	}
	began = time.Now()
	warped, err := o.warper.Warp(ctx, pair.Old, result.Transform, pair.New.Width(), pair.New.Height())
	if !finish(StageWarping, began, err) {
		return
	}

	if !enter(StageCompositing) {
		return
	}
	began = time.Now()
	im, err := o.compositor.Composite(ctx, warped, pair.New.RGBA())
	if !finish(StageCompositing, began, err) {
		return
	}

	out.Overlay = im
	out.Stage = StageDone
	out.Status = StatusSuccess
	current.Store(StageDone)
}

// stageGate drops stage events once the pair has been reported complete, so
// a pipeline abandoned on timeout cannot emit them after OnPairComplete.
type stageGate struct {
	mu     sync.Mutex
	closed bool
}

func (g *stageGate) do(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		fn()
	}
}

func (g *stageGate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// failWith records err as the failure of the current stage.
func (o *Orchestrator) failWith(out *Outcome, err error) {
	status, code := classify(err)
	out.fail(out.Stage, status, code, err.Error())
}

// classify maps a stage error onto an outcome status and error code.
func classify(err error) (Status, apperrors.Code) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout, apperrors.ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		return StatusError, apperrors.ErrCodeCanceled
	case apperrors.IsAlignmentFailure(err):
		return StatusAlignmentFailed, apperrors.GetCode(err)
	}
	if code := apperrors.GetCode(err); code != "" {
		return StatusError, code
	}
	return StatusError, apperrors.ErrCodeInternal
}
