package alignment

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"sheetdiff/internal/config"
	"sheetdiff/internal/features"
	"sheetdiff/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

const (
	sampleSize          = 3  // Point pairs that determine an affine transform
	cancelCheckInterval = 64 // RANSAC iterations between context polls
	minSampleArea       = 1e-3
)

// RANSACEstimator fits an affine transform with RANSAC and rejects results
// whose decomposed scale or rotation fall outside the configured bounds.
type RANSACEstimator struct {
	cfg config.EstimationConfig
}

// NewRANSACEstimator creates an estimator from a validated configuration.
func NewRANSACEstimator(cfg config.EstimationConfig) (*RANSACEstimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RANSACEstimator{cfg: cfg}, nil
}

// Estimate runs RANSAC over the correspondences of ms.
func (e *RANSACEstimator) Estimate(ctx context.Context, ms *features.MatchSet) (*Result, error) {
	total := ms.Len()
	if total < e.cfg.MinMatches {
		return Failed(ReasonInsufficientMatches, total), nil
	}

	src, dst := ms.Points()
	transform, inliers, err := e.ransac(ctx, src, dst)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return Failed(ReasonDegenerate, total), nil
	}

	return e.evaluate(transform, inliers, src, dst), nil
}

// evaluate scores a fitted transform and applies the scale/rotation bounds.
func (e *RANSACEstimator) evaluate(t geometry.AffineTransform, inliers []int, src, dst []geometry.Point2D) *Result {
	total := len(src)
	scale, rot := t.Decompose()
	r := &Result{
		Transform:   t,
		Inliers:     len(inliers),
		Total:       total,
		Scale:       scale,
		RotationDeg: rot,
		MeanError:   meanReprojectionError(t, inliers, src, dst),
	}

	if !t.IsFinite() {
		r.Reason = ReasonDegenerate
		return r
	}
	if scale < e.cfg.ScaleMin || scale > e.cfg.ScaleMax ||
		rot < e.cfg.RotationDegMin || rot > e.cfg.RotationDegMax {
		r.Reason = ReasonConstraintViolation
		return r
	}

	r.Score = math.Max(0, math.Min(1, float64(len(inliers))/float64(total)))
	r.Success = true
	return r
}

// ransac returns the best transform refined over its inliers, and the inlier indices.
func (e *RANSACEstimator) ransac(ctx context.Context, src, dst []geometry.Point2D) (geometry.AffineTransform, []int, error) {
	n := len(src)
	rng := rand.New(rand.NewSource(e.cfg.Seed))
	threshold := e.cfg.ReprojThreshold

	var bestTransform geometry.AffineTransform
	var bestInliers []int
	maxIters := e.cfg.MaxIters

	sample := make([]geometry.Point2D, sampleSize)
	target := make([]geometry.Point2D, sampleSize)

	for iter := 0; iter < maxIters; iter++ {
		if iter%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return geometry.AffineTransform{}, nil, err
			}
		}

		i0, i1, i2 := sampleIndices(rng, n)
		for k, idx := range [sampleSize]int{i0, i1, i2} {
			sample[k] = src[idx]
			target[k] = dst[idx]
		}
		if math.Abs(geometry.Cross(sample[0], sample[1], sample[2])) < minSampleArea ||
			math.Abs(geometry.Cross(target[0], target[1], target[2])) < minSampleArea {
			continue
		}

		transform, err := computeAffineFromPoints(sample, target)
		if err != nil {
			continue
		}

		inliers := collectInliers(transform, src, dst, threshold, nil)
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
			bestTransform = transform
			maxIters = min(maxIters, updateNumIters(e.cfg.Confidence, float64(len(inliers))/float64(n), e.cfg.MaxIters))
		}
	}

	if len(bestInliers) < sampleSize {
		return geometry.AffineTransform{}, nil, fmt.Errorf("RANSAC failed to find enough inliers")
	}

	// Recompute transform using all inliers
	inlierSrc := make([]geometry.Point2D, len(bestInliers))
	inlierDst := make([]geometry.Point2D, len(bestInliers))
	for i, idx := range bestInliers {
		inlierSrc[i] = src[idx]
		inlierDst[i] = dst[idx]
	}

	refined, err := computeAffineLeastSquares(inlierSrc, inlierDst)
	if err != nil {
		return bestTransform, bestInliers, nil
	}
	refinedInliers := collectInliers(refined, src, dst, threshold, make([]int, 0, len(bestInliers)))
	if len(refinedInliers) < len(bestInliers) {
		return bestTransform, bestInliers, nil
	}
	return refined, refinedInliers, nil
}

// sampleIndices draws three distinct indices from [0, n).
func sampleIndices(rng *rand.Rand, n int) (int, int, int) {
	i0 := rng.Intn(n)
	i1 := rng.Intn(n - 1)
	if i1 >= i0 {
		i1++
	}
	i2 := rng.Intn(n - 2)
	lo, hi := min(i0, i1), max(i0, i1)
	if i2 >= lo {
		i2++
	}
	if i2 >= hi {
		i2++
	}
	return i0, i1, i2
}

func collectInliers(t geometry.AffineTransform, src, dst []geometry.Point2D, threshold float64, buf []int) []int {
	inliers := buf[:0]
	for i := range src {
		if t.Apply(src[i]).Distance(dst[i]) <= threshold {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

// updateNumIters returns the iterations needed to draw one all-inlier sample
// with the given confidence, capped at maxIters.
func updateNumIters(confidence, inlierRatio float64, maxIters int) int {
	num := math.Log(1 - confidence)
	denom := math.Log(1 - math.Pow(inlierRatio, sampleSize))
	if math.IsInf(denom, -1) {
		return 1
	}
	if denom >= 0 || -num >= float64(maxIters)*(-denom) {
		return maxIters
	}
	return max(1, int(math.Ceil(num/denom)))
}

// meanReprojectionError returns the mean distance between transformed inlier
// sources and their targets.
func meanReprojectionError(t geometry.AffineTransform, inliers []int, src, dst []geometry.Point2D) float64 {
	if len(inliers) == 0 {
		return 0
	}
	var total float64
	for _, i := range inliers {
		total += t.Apply(src[i]).Distance(dst[i])
	}
	return total / float64(len(inliers))
}

// computeAffineFromPoints computes an affine transform from exactly 3 point pairs.
func computeAffineFromPoints(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	if len(src) != 3 || len(dst) != 3 {
		return geometry.AffineTransform{}, fmt.Errorf("need exactly 3 points")
	}

	// Build matrix equation: [x', y'] = [a, b, tx; c, d, ty] * [x, y, 1]
	A := mat.NewDense(6, 6, nil)
	B := mat.NewVecDense(6, nil)

	for i := 0; i < 3; i++ {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		// x' = a*x + b*y + tx
		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, xp)

		// y' = c*x + d*y + ty
		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, yp)
	}

	var params mat.VecDense
	if err := params.SolveVec(A, B); err != nil {
		return geometry.AffineTransform{}, err
	}

	return paramsToTransform(&params), nil
}

// computeAffineLeastSquares computes an affine transform using least squares.
func computeAffineLeastSquares(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	n := len(src)
	if n < 3 {
		return geometry.AffineTransform{}, fmt.Errorf("need at least 3 points")
	}

	A := mat.NewDense(n*2, 6, nil)
	B := mat.NewVecDense(n*2, nil)

	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, xp)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, yp)
	}

	// Solve using QR decomposition
	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return geometry.AffineTransform{}, err
	}

	return paramsToTransform(&params), nil
}

func paramsToTransform(p *mat.VecDense) geometry.AffineTransform {
	return geometry.AffineTransform{
		A:  p.AtVec(0),
		B:  p.AtVec(1),
		TX: p.AtVec(2),
		C:  p.AtVec(3),
		D:  p.AtVec(4),
		TY: p.AtVec(5),
	}
}
