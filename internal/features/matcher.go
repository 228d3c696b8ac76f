package features

import (
	"context"
	"math"
	"sort"

	"sheetdiff/internal/config"
)

// duplicateRadius is the level-0 distance under which two keypoints are taken
// to be the same feature detected on different pyramid levels.
const duplicateRadius = 8.0

// BruteForceMatcher compares every old descriptor against every new one by
// Hamming distance and applies Lowe's ratio test to the two nearest neighbours.
type BruteForceMatcher struct {
	ratio      float64
	crossCheck bool
	maxAngle   float64 // Radians; 0 disables the orientation gate
}

// NewBruteForceMatcher creates a matcher from a validated matching configuration.
func NewBruteForceMatcher(cfg config.MatchingConfig) (*BruteForceMatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BruteForceMatcher{
		ratio:      cfg.RatioThreshold,
		crossCheck: cfg.CrossCheck,
		maxAngle:   cfg.MaxAngleDelta * math.Pi / 180,
	}, nil
}

// Match keeps a correspondence only when best < ratio * secondBest.
// With fewer than two new descriptors no ratio test is possible and the
// result is empty.
//
// Candidates whose orientation differs from the query's by more than the
// configured angle are skipped. The second-best neighbour must lie more than
// duplicateRadius from the best one, so the same corner found on several
// pyramid levels does not compete with itself. A query whose candidates all
// sit at one location has no rival and is kept.
func (m *BruteForceMatcher) Match(ctx context.Context, oldSet, newSet *FeatureSet) (*MatchSet, error) {
	ms := &MatchSet{OldCount: oldSet.Len(), NewCount: newSet.Len()}
	if oldSet.Len() == 0 || newSet.Len() < 2 {
		return ms, nil
	}

	var reverse []int
	if m.crossCheck {
		var err error
		reverse, err = m.nearest(ctx, newSet, oldSet)
		if err != nil {
			return nil, err
		}
	}

	for qi, qd := range oldSet.Descriptors {
		if qi%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		qk := oldSet.Keypoints[qi]
		best, bestIdx := math.MaxInt, -1
		for ti, td := range newSet.Descriptors {
			if !m.compatible(qk, newSet.Keypoints[ti]) {
				continue
			}
			if d := qd.Hamming(td); d < best {
				best, bestIdx = d, ti
			}
		}
		if bestIdx < 0 {
			continue
		}

		bk := newSet.Keypoints[bestIdx]
		second := math.MaxInt
		for ti, td := range newSet.Descriptors {
			tk := newSet.Keypoints[ti]
			if ti == bestIdx || !m.compatible(qk, tk) || math.Hypot(tk.X-bk.X, tk.Y-bk.Y) <= duplicateRadius {
				continue
			}
			if d := qd.Hamming(td); d < second {
				second = d
			}
		}

		if second != math.MaxInt && !(float64(best) < m.ratio*float64(second)) {
			continue
		}
		if reverse != nil && reverse[bestIdx] != qi {
			continue
		}

		ms.Matches = append(ms.Matches, Match{
			QueryIdx: qi,
			TrainIdx: bestIdx,
			Distance: best,
			Old:      oldSet.Keypoints[qi].Point(),
			New:      newSet.Keypoints[bestIdx].Point(),
		})
	}

	sort.Slice(ms.Matches, func(i, j int) bool {
		if ms.Matches[i].Distance != ms.Matches[j].Distance {
			return ms.Matches[i].Distance < ms.Matches[j].Distance
		}
		return ms.Matches[i].QueryIdx < ms.Matches[j].QueryIdx
	})
	return ms, nil
}

// nearest returns, for each query descriptor, the index of its closest
// orientation-compatible train descriptor, or -1.
func (m *BruteForceMatcher) nearest(ctx context.Context, query, train *FeatureSet) ([]int, error) {
	out := make([]int, query.Len())
	for qi, qd := range query.Descriptors {
		if qi%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		best, bestIdx := math.MaxInt, -1
		for ti, td := range train.Descriptors {
			if !m.compatible(query.Keypoints[qi], train.Keypoints[ti]) {
				continue
			}
			if d := qd.Hamming(td); d < best {
				best, bestIdx = d, ti
			}
		}
		out[qi] = bestIdx
	}
	return out, nil
}

// compatible reports whether two keypoint orientations are within the
// configured angle of each other.
func (m *BruteForceMatcher) compatible(a, b Keypoint) bool {
	if m.maxAngle == 0 {
		return true
	}
	d := math.Abs(math.Remainder(a.Angle-b.Angle, 2*math.Pi))
	return d <= m.maxAngle
}
