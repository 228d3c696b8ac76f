// Package features detects keypoints on drawing pages and matches them across revisions.
package features

import (
	"context"
	"math"
	"math/bits"

	"sheetdiff/internal/raster"
	"sheetdiff/pkg/geometry"
)

// DescriptorBits is the length of a binary descriptor.
const DescriptorBits = 256

// Descriptor is a 256-bit binary feature signature.
type Descriptor [DescriptorBits / 64]uint64

// Hamming returns the number of differing bits between two descriptors.
func (d Descriptor) Hamming(other Descriptor) int {
	n := 0
	for i := range d {
		n += bits.OnesCount64(d[i] ^ other[i])
	}
	return n
}

// SetBit sets bit i.
func (d *Descriptor) SetBit(i int) {
	d[i>>6] |= 1 << uint(i&63)
}

// Keypoint is a detected local feature in level-0 pixel coordinates.
type Keypoint struct {
	X, Y     float64
	Size     float64 // Patch diameter in level-0 pixels
	Angle    float64 // Orientation in radians
	Response float64 // Corner strength used for ranking
	Octave   int     // Pyramid level the keypoint was found on
}

// Point returns the keypoint position.
func (k Keypoint) Point() geometry.Point2D {
	return geometry.Point2D{X: k.X, Y: k.Y}
}

// FeatureSet holds the keypoints and descriptors of one page.
// Keypoints[i] is described by Descriptors[i].
type FeatureSet struct {
	Keypoints   []Keypoint
	Descriptors []Descriptor
	Width       int
	Height      int
	Margin      int // Excluded border width in pixels
}

// Len returns the number of keypoints.
func (fs *FeatureSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.Keypoints)
}

// Empty reports whether no keypoints were found.
func (fs *FeatureSet) Empty() bool { return fs.Len() == 0 }

// ExclusionMargin returns floor(min(w,h) * fraction), the border width inside
// which no keypoint may originate.
func ExclusionMargin(width, height int, fraction float64) int {
	return int(math.Floor(float64(min(width, height)) * fraction))
}

// InBounds reports whether (x, y) lies strictly outside the excluded border.
func InBounds(x, y float64, width, height, margin int) bool {
	m := float64(margin)
	return x >= m && y >= m && x < float64(width-margin) && y < float64(height-margin)
}

// Extractor detects keypoints and descriptors on one page.
// A page without keypoints yields an empty FeatureSet and no error.
type Extractor interface {
	Extract(ctx context.Context, page *raster.Page) (*FeatureSet, error)
}

// Match is one candidate correspondence from an old keypoint to a new keypoint.
type Match struct {
	QueryIdx int // Index into the old FeatureSet
	TrainIdx int // Index into the new FeatureSet
	Distance int // Hamming distance of the best candidate
	Old      geometry.Point2D
	New      geometry.Point2D
}

// MatchSet holds the correspondences that passed the ratio test.
type MatchSet struct {
	Matches  []Match
	OldCount int // Keypoints in the old set
	NewCount int // Keypoints in the new set
}

// Len returns the number of correspondences.
func (ms *MatchSet) Len() int {
	if ms == nil {
		return 0
	}
	return len(ms.Matches)
}

// Points returns the old and new coordinates as parallel slices.
func (ms *MatchSet) Points() (oldPts, newPts []geometry.Point2D) {
	oldPts = make([]geometry.Point2D, ms.Len())
	newPts = make([]geometry.Point2D, ms.Len())
	for i, m := range ms.Matches {
		oldPts[i] = m.Old
		newPts[i] = m.New
	}
	return oldPts, newPts
}

// Matcher finds correspondences between an old and a new FeatureSet.
type Matcher interface {
	Match(ctx context.Context, oldSet, newSet *FeatureSet) (*MatchSet, error)
}
