package features

import (
	"image"
	"math"
	"math/rand"
)

const (
	patchSize   = 31
	halfPatch   = patchSize / 2
	patternClip = 13
	// patchBorder keeps every rotated test point inside the image:
	// ceil(13*sqrt(2)) = 19 >= halfPatch.
	patchBorder  = 19
	patternSeed  = 0x0b51ef
	smoothRadius = 2.0
)

// briefPair is one intensity comparison of the descriptor, relative to the keypoint.
type briefPair struct {
	x1, y1, x2, y2 float64
}

// newBriefPattern draws the 256 test pairs from an isotropic Gaussian
// (sigma = patchSize/5) clipped to the patch. The seed is fixed so every
// extractor produces comparable descriptors.
func newBriefPattern() []briefPair {
	rng := rand.New(rand.NewSource(patternSeed))
	sigma := float64(patchSize) / 5
	sample := func() float64 {
		v := math.Round(rng.NormFloat64() * sigma)
		return math.Max(-patternClip, math.Min(patternClip, v))
	}

	pairs := make([]briefPair, DescriptorBits)
	for i := range pairs {
		pairs[i] = briefPair{x1: sample(), y1: sample(), x2: sample(), y2: sample()}
	}
	return pairs
}

// circleExtents returns, for each row offset v in [0, r], the largest u with u²+v² <= r².
func circleExtents(r int) []int {
	umax := make([]int, r+1)
	for v := 0; v <= r; v++ {
		umax[v] = int(math.Floor(math.Sqrt(float64(r*r - v*v))))
	}
	return umax
}

// intensityAngle returns the orientation of the intensity centroid of the
// circular patch around (x, y).
func intensityAngle(g *image.Gray, x, y int, umax []int) float64 {
	r := len(umax) - 1
	var m01, m10 int
	for v := -r; v <= r; v++ {
		ext := umax[abs(v)]
		row := (y+v)*g.Stride + x
		for u := -ext; u <= ext; u++ {
			val := int(g.Pix[row+u])
			m10 += u * val
			m01 += v * val
		}
	}
	return math.Atan2(float64(m01), float64(m10))
}

// describe evaluates the rotated BRIEF pattern on the smoothed level image.
func describe(smooth *image.Gray, x, y int, angle float64, pattern []briefPair) Descriptor {
	cos, sin := math.Cos(angle), math.Sin(angle)
	at := func(px, py float64) uint8 {
		rx := int(math.Round(cos*px - sin*py))
		ry := int(math.Round(sin*px + cos*py))
		return smooth.Pix[(y+ry)*smooth.Stride+x+rx]
	}

	var d Descriptor
	for i, p := range pattern {
		if at(p.x1, p.y1) < at(p.x2, p.y2) {
			d.SetBit(i)
		}
	}
	return d
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
