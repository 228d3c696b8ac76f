//go:build opencv

package alignment

import (
	"context"
	"image"
	"image/color"
	"runtime"
	"sync"

	"sheetdiff/internal/raster"
	"sheetdiff/pkg/colorutil"
	apperrors "sheetdiff/pkg/errors"
	"sheetdiff/pkg/geometry"

	"gocv.io/x/gocv"
)

// CVWarper resamples with OpenCV's warpAffine.
// Build with -tags opencv; requires OpenCV 4 and cgo.
type CVWarper struct {
	Background color.RGBA
}

// NewCVWarper returns an OpenCV warper with a white background.
func NewCVWarper() *CVWarper {
	return &CVWarper{Background: colorutil.Background}
}

// Warp maps src through t into a width x height raster.
func (w *CVWarper) Warp(ctx context.Context, src *raster.Page, t geometry.AffineTransform, width, height int) (*image.RGBA, error) {
	if err := validateWarp(src, t, width, height); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat := rgbaToBGRMat(src.RGBA())
	defer mat.Close()

	transformMat := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer transformMat.Close()
	transformMat.SetDoubleAt(0, 0, t.A)
	transformMat.SetDoubleAt(0, 1, t.B)
	transformMat.SetDoubleAt(0, 2, t.TX)
	transformMat.SetDoubleAt(1, 0, t.C)
	transformMat.SetDoubleAt(1, 1, t.D)
	transformMat.SetDoubleAt(1, 2, t.TY)

	dst := gocv.NewMat()
	defer dst.Close()

	gocv.WarpAffineWithParams(mat, &dst, transformMat, image.Point{X: width, Y: height},
		gocv.InterpolationLinear, gocv.BorderConstant, w.Background)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dst.Empty() {
		return nil, apperrors.New(apperrors.ErrCodeInternal, "warpAffine produced an empty image")
	}
	return bgrMatToRGBA(dst), nil
}

// rgbaToBGRMat converts to OpenCV's default BGR layout, one stripe per CPU.
func rgbaToBGRMat(img *image.RGBA) gocv.Mat {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)

	forStripes(height, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			off := img.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < width; x++ {
				mat.SetUCharAt(y, x*3+0, img.Pix[off+2])
				mat.SetUCharAt(y, x*3+1, img.Pix[off+1])
				mat.SetUCharAt(y, x*3+2, img.Pix[off+0])
				off += 4
			}
		}
	})
	return mat
}

// bgrMatToRGBA converts a BGR Mat back to RGBA.
func bgrMatToRGBA(mat gocv.Mat) *image.RGBA {
	h, w := mat.Rows(), mat.Cols()
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	forStripes(h, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			off := y * img.Stride
			for x := 0; x < w; x++ {
				img.Pix[off+0] = mat.GetUCharAt(y, x*3+2) // R
				img.Pix[off+1] = mat.GetUCharAt(y, x*3+1) // G
				img.Pix[off+2] = mat.GetUCharAt(y, x*3+0) // B
				img.Pix[off+3] = 255
				off += 4
			}
		}
	})
	return img
}

// forStripes runs fn over horizontal stripes in parallel.
func forStripes(height int, fn func(yStart, yEnd int)) {
	numWorkers := runtime.NumCPU()
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < height; start += rowsPerWorker {
		end := min(start+rowsPerWorker, height)
		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			fn(yStart, yEnd)
		}(start, end)
	}
	wg.Wait()
}
