package raster

import (
	"image"

	"sheetdiff/pkg/colorutil"

	"github.com/anthonynsimon/bild/effect"
)

// Gray converts an image to single-channel intensity using BT.601 luma.
// The result always has its origin at (0, 0).
func Gray(img image.Image) *image.Gray {
	switch src := img.(type) {
	case *image.RGBA:
		return lumaRows(src.Pix, src.Stride, src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y), src.Rect.Dx(), src.Rect.Dy())
	case *image.NRGBA:
		// Opaque rasters only: colour channels are read as-is.
		return lumaRows(src.Pix, src.Stride, src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y), src.Rect.Dx(), src.Rect.Dy())
	case *image.Gray:
		b := src.Bounds()
		dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return dst
	default:
		// BT.601 weights so every input type agrees with colorutil.Luma.
		return Gray(effect.GrayscaleWithWeights(img, 0.299, 0.587, 0.114))
	}
}

// lumaRows walks a 4-byte-per-pixel Pix slice directly; At() on a full sheet is too slow.
func lumaRows(pix []uint8, stride, start, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		si := start + y*stride
		di := y * dst.Stride
		for x := 0; x < w; x++ {
			dst.Pix[di+x] = colorutil.Luma(pix[si], pix[si+1], pix[si+2])
			si += 4
		}
	}
	return dst
}
