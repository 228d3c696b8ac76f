package alignment

import (
	"context"
	"image"
	"image/color"

	"sheetdiff/internal/raster"
	"sheetdiff/pkg/colorutil"
	apperrors "sheetdiff/pkg/errors"
	"sheetdiff/pkg/geometry"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// warpBand is the number of destination rows resampled between context polls.
const warpBand = 256

// Warper resamples the old page into a width x height raster in the new page's frame.
type Warper interface {
	Warp(ctx context.Context, src *raster.Page, t geometry.AffineTransform, width, height int) (*image.RGBA, error)
}

// BilinearWarper resamples with bilinear interpolation. Destination pixels
// whose source location falls outside the old page keep the Background colour.
type BilinearWarper struct {
	Background color.RGBA
}

// NewBilinearWarper returns a warper with a white background.
func NewBilinearWarper() *BilinearWarper {
	return &BilinearWarper{Background: colorutil.Background}
}

// Warp maps src through t (old -> new coordinates) into a raster of exactly
// width x height pixels.
func (w *BilinearWarper) Warp(ctx context.Context, src *raster.Page, t geometry.AffineTransform, width, height int) (*image.RGBA, error) {
	if err := validateWarp(src, t, width, height); err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(w.Background), image.Point{}, draw.Src)

	s2d := f64.Aff3{t.A, t.B, t.TX, t.C, t.D, t.TY}
	srcImg := src.RGBA()
	for y := 0; y < height; y += warpBand {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		band := dst.SubImage(image.Rect(0, y, width, min(y+warpBand, height))).(*image.RGBA)
		draw.BiLinear.Transform(band, s2d, srcImg, srcImg.Bounds(), draw.Src, nil)
	}
	return dst, nil
}

func validateWarp(src *raster.Page, t geometry.AffineTransform, width, height int) error {
	if src == nil {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "nil source page")
	}
	if width <= 0 || height <= 0 {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "invalid output size %dx%d", width, height)
	}
	if _, ok := t.Inverse(); !ok || !t.IsFinite() {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "transform is not invertible")
	}
	return nil
}
