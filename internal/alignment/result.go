// Package alignment estimates the old-to-new affine transform of a drawing
// pair and resamples the old page into the new page's frame.
package alignment

import (
	"context"

	"sheetdiff/internal/features"
	apperrors "sheetdiff/pkg/errors"
	"sheetdiff/pkg/geometry"
)

// FailureReason explains why an alignment did not succeed.
type FailureReason string

const (
	ReasonNone                 FailureReason = ""
	ReasonInsufficientFeatures FailureReason = "insufficient_features"
	ReasonInsufficientMatches  FailureReason = "insufficient_matches"
	ReasonDegenerate           FailureReason = "degenerate_correspondences"
	ReasonConstraintViolation  FailureReason = "constraint_violation"
)

// Result holds the estimated transform and its quality.
// Score is inliers/total in [0, 1] and is 0 whenever Success is false.
type Result struct {
	Transform   geometry.AffineTransform
	Inliers     int
	Total       int     // Correspondences offered to the estimator
	Score       float64 // Alignment confidence
	Scale       float64 // Decomposed scale
	RotationDeg float64 // Decomposed rotation in degrees
	MeanError   float64 // Mean inlier reprojection error in pixels
	Success     bool
	Reason      FailureReason
}

// Failed returns an unsuccessful result with zero score.
func Failed(reason FailureReason, total int) *Result {
	return &Result{Total: total, Reason: reason}
}

// Err converts an unsuccessful result into a coded error; nil on success.
func (r *Result) Err() error {
	if r == nil || r.Success {
		return nil
	}
	switch r.Reason {
	case ReasonInsufficientFeatures:
		return apperrors.New(apperrors.ErrCodeExtractionFailure, "not enough keypoints to align")
	case ReasonConstraintViolation:
		return apperrors.New(apperrors.ErrCodeConstraintViolation,
			"transform out of bounds: scale %.3f, rotation %.2f°", r.Scale, r.RotationDeg)
	case ReasonDegenerate:
		return apperrors.New(apperrors.ErrCodeMatchingFailure, "no non-degenerate transform among %d correspondences", r.Total)
	default:
		return apperrors.New(apperrors.ErrCodeMatchingFailure, "only %d correspondences", r.Total)
	}
}

// Estimator fits an old-to-new transform from correspondences. Unsuccessful
// alignments are reported through Result; the error is reserved for
// cancellation and invalid input.
type Estimator interface {
	Estimate(ctx context.Context, ms *features.MatchSet) (*Result, error)
}
