package features

import (
	"image"
	"math/bits"
)

const (
	fastArc     = 9 // Contiguous circle pixels required for a corner
	harrisK     = 0.04
	harrisBlock = 7
)

// fastCircle is the 16-pixel Bresenham circle of radius 3, clockwise from 12 o'clock.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

type corner struct {
	x, y     int
	response float64
}

// detectFAST returns FAST-9 corners at least border pixels away from the image
// edge, scored by Harris response and thinned with 3x3 non-maximum suppression.
// The image origin must be (0, 0).
func detectFAST(g *image.Gray, threshold, border int) []corner {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if border < 4 {
		border = 4
	}
	if w <= 2*border || h <= 2*border {
		return nil
	}

	var offsets [16]int
	for k, p := range fastCircle {
		offsets[k] = p[1]*g.Stride + p[0]
	}

	score := make([]float64, w*h)
	var candidates []int
	for y := border; y < h-border; y++ {
		row := y * g.Stride
		for x := border; x < w-border; x++ {
			if !isFASTCorner(g.Pix, row+x, &offsets, threshold) {
				continue
			}
			r := harrisResponse(g, x, y)
			if r <= 0 {
				continue
			}
			score[y*w+x] = r
			candidates = append(candidates, y*w+x)
		}
	}

	corners := make([]corner, 0, len(candidates))
	for _, idx := range candidates {
		x, y := idx%w, idx/w
		s := score[idx]
		if isLocalMax(score, w, x, y, s) {
			corners = append(corners, corner{x: x, y: y, response: s})
		}
	}
	return corners
}

// isLocalMax keeps exactly one pixel of a plateau: the first in raster order.
func isLocalMax(score []float64, w, x, y int, s float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := score[(y+dy)*w+x+dx]
			if dy < 0 || (dy == 0 && dx < 0) {
				if n >= s {
					return false
				}
			} else if n > s {
				return false
			}
		}
	}
	return true
}

func isFASTCorner(pix []uint8, i int, offsets *[16]int, threshold int) bool {
	p := int(pix[i])
	hi, lo := p+threshold, p-threshold

	// A 9-pixel arc always covers at least two of the four compass points.
	nb, nd := 0, 0
	for k := 0; k < 16; k += 4 {
		v := int(pix[i+offsets[k]])
		if v > hi {
			nb++
		} else if v < lo {
			nd++
		}
	}
	if nb < 2 && nd < 2 {
		return false
	}

	var bright, dark uint32
	for k := 0; k < 16; k++ {
		v := int(pix[i+offsets[k]])
		if v > hi {
			bright |= 1 << uint(k)
		} else if v < lo {
			dark |= 1 << uint(k)
		}
	}
	return hasArc(bright) || hasArc(dark)
}

// hasArc reports whether the 16-bit circular mask has fastArc consecutive set bits.
func hasArc(mask uint32) bool {
	if bits.OnesCount32(mask) < fastArc {
		return false
	}
	const arc = 1<<fastArc - 1
	m := mask | mask<<16
	for k := 0; k < 16; k++ {
		if (m>>uint(k))&arc == arc {
			return true
		}
	}
	return false
}

// harrisResponse computes det(M) - k*trace(M)^2 over a 7x7 block of Sobel gradients.
func harrisResponse(g *image.Gray, x, y int) float64 {
	const r = harrisBlock / 2
	const norm = 1.0 / (4 * harrisBlock * 255)

	pix, stride := g.Pix, g.Stride
	at := func(px, py int) float64 { return float64(pix[py*stride+px]) }

	var a, b, c float64
	for py := y - r; py <= y+r; py++ {
		for px := x - r; px <= x+r; px++ {
			ix := (at(px+1, py-1) + 2*at(px+1, py) + at(px+1, py+1)) -
				(at(px-1, py-1) + 2*at(px-1, py) + at(px-1, py+1))
			iy := (at(px-1, py+1) + 2*at(px, py+1) + at(px+1, py+1)) -
				(at(px-1, py-1) + 2*at(px, py-1) + at(px+1, py-1))
			ix *= norm
			iy *= norm
			a += ix * ix
			b += iy * iy
			c += ix * iy
		}
	}
	return a*b - c*c - harrisK*(a+b)*(a+b)
}
