package features

import (
	"context"
	"image"
	"math"
	"sort"

	"sheetdiff/internal/config"
	"sheetdiff/internal/raster"
	apperrors "sheetdiff/pkg/errors"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

// ORB is a pure Go oriented-FAST / rotated-BRIEF extractor.
//
// Corners are detected on an image pyramid, ranked by Harris response and
// described with 256 binary intensity tests on a Gaussian-smoothed copy of
// their level. Keypoint coordinates are always reported in level-0 pixels.
type ORB struct {
	cfg     config.FeatureConfig
	pattern []briefPair
	umax    []int
}

// NewORB creates an extractor from a validated feature configuration.
func NewORB(cfg config.FeatureConfig) (*ORB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ORB{
		cfg:     cfg,
		pattern: newBriefPattern(),
		umax:    circleExtents(halfPatch),
	}, nil
}

type pyramidLevel struct {
	gray   *image.Gray
	smooth *image.Gray
	sx, sy float64 // Level pixel -> level-0 pixel
}

type candidate struct {
	corner
	level  int
	x0, y0 float64
}

// Extract detects up to NFeatures keypoints outside the excluded border.
func (o *ORB) Extract(ctx context.Context, page *raster.Page) (*FeatureSet, error) {
	if page == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "nil page")
	}

	w, h := page.Width(), page.Height()
	margin := ExclusionMargin(w, h, o.cfg.ExcludeMargin)
	fs := &FeatureSet{Width: w, Height: h, Margin: margin}
	if w <= 2*margin || h <= 2*margin {
		return fs, nil
	}

	base := page.Gray()
	levels := make([]pyramidLevel, 0, o.cfg.PyramidLevels)
	var cands []candidate

	for lvl := 0; lvl < o.cfg.PyramidLevels; lvl++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img := base
		if lvl > 0 {
			factor := math.Pow(o.cfg.ScaleFactor, float64(lvl))
			lw := int(math.Round(float64(w) / factor))
			lh := int(math.Round(float64(h) / factor))
			if lw <= 2*patchBorder || lh <= 2*patchBorder {
				break
			}
			img = raster.Gray(imaging.Resize(base, lw, lh, imaging.Linear))
		}

		level := pyramidLevel{
			gray: img,
			sx:   float64(w) / float64(img.Rect.Dx()),
			sy:   float64(h) / float64(img.Rect.Dy()),
		}
		for _, c := range detectFAST(img, o.cfg.FastThreshold, patchBorder) {
			x0, y0 := float64(c.x)*level.sx, float64(c.y)*level.sy
			if !InBounds(x0, y0, w, h, margin) {
				continue
			}
			cands = append(cands, candidate{corner: c, level: lvl, x0: x0, y0: y0})
		}
		levels = append(levels, level)
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.response != b.response {
			return a.response > b.response
		}
		if a.level != b.level {
			return a.level < b.level
		}
		if a.y0 != b.y0 {
			return a.y0 < b.y0
		}
		return a.x0 < b.x0
	})
	if len(cands) > o.cfg.NFeatures {
		cands = cands[:o.cfg.NFeatures]
	}

	fs.Keypoints = make([]Keypoint, 0, len(cands))
	fs.Descriptors = make([]Descriptor, 0, len(cands))
	for i, c := range cands {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		lv := &levels[c.level]
		if lv.smooth == nil {
			lv.smooth = raster.Gray(blur.Gaussian(lv.gray, smoothRadius))
		}

		angle := intensityAngle(lv.gray, c.x, c.y, o.umax)
		fs.Keypoints = append(fs.Keypoints, Keypoint{
			X:        c.x0,
			Y:        c.y0,
			Size:     patchSize * lv.sx,
			Angle:    angle,
			Response: c.response,
			Octave:   c.level,
		})
		fs.Descriptors = append(fs.Descriptors, describe(lv.smooth, c.x, c.y, angle, o.pattern))
	}

	return fs, nil
}
