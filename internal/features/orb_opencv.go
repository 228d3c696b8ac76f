//go:build opencv

package features

import (
	"context"
	"image"
	"image/color"
	"math"

	"sheetdiff/internal/config"
	"sheetdiff/internal/raster"
	apperrors "sheetdiff/pkg/errors"

	"gocv.io/x/gocv"
)

// CVORB extracts features with OpenCV's ORB implementation.
// Build with -tags opencv; requires OpenCV 4 and cgo.
type CVORB struct {
	cfg config.FeatureConfig
}

// NewCVORB creates an OpenCV-backed extractor.
func NewCVORB(cfg config.FeatureConfig) (*CVORB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CVORB{cfg: cfg}, nil
}

// Extract runs ORB with a mask that zeroes the excluded border.
func (o *CVORB) Extract(ctx context.Context, page *raster.Page) (*FeatureSet, error) {
	if page == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "nil page")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, h := page.Width(), page.Height()
	margin := ExclusionMargin(w, h, o.cfg.ExcludeMargin)
	fs := &FeatureSet{Width: w, Height: h, Margin: margin}
	if w <= 2*margin || h <= 2*margin {
		return fs, nil
	}

	gray, err := gocv.ImageGrayToMatGray(page.Gray())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, err, "convert page to Mat")
	}
	defer gray.Close()

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8U)
	defer mask.Close()
	gocv.Rectangle(&mask, image.Rect(margin, margin, w-margin, h-margin), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	orb := gocv.NewORBWithParams(o.cfg.NFeatures, float32(o.cfg.ScaleFactor), o.cfg.PyramidLevels,
		patchSize, 0, 2, gocv.ORBScoreTypeHarris, patchSize, o.cfg.FastThreshold)
	defer orb.Close()

	kps, desc := orb.DetectAndCompute(gray, mask)
	defer desc.Close()

	for i, kp := range kps {
		// The mask is applied per level; rounding can leave points on the border line.
		if !InBounds(kp.X, kp.Y, w, h, margin) {
			continue
		}
		var d Descriptor
		for b := 0; b < DescriptorBits/8; b++ {
			d[b/8] |= uint64(desc.GetUCharAt(i, b)) << (8 * uint(b%8))
		}
		fs.Keypoints = append(fs.Keypoints, Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Angle * math.Pi / 180,
			Response: kp.Response,
			Octave:   kp.Octave,
		})
		fs.Descriptors = append(fs.Descriptors, d)
	}
	return fs, nil
}
