// Package overlay composites a warped old raster and a new raster into the
// three-class diff image.
//
// Each pixel is first classified by two independent binary content masks
// (luma below the content threshold):
//
//	removed   = old && !new
//	added     = new && !old
//	unchanged = old && new
//
// Content pixels are painted with the palette colour of their class.
// Background pixels are copied from the new raster untouched.
package overlay

import (
	"context"
	"image"
	"image/color"
	"image/draw"

	"sheetdiff/internal/config"
	"sheetdiff/pkg/colorutil"
	apperrors "sheetdiff/pkg/errors"
)

// rowBand is the number of rows classified between context polls.
const rowBand = 128

// Class is the diff class of one overlay pixel.
type Class uint8

const (
	ClassBackground Class = iota
	ClassUnchanged
	ClassRemoved
	ClassAdded
)

func (c Class) String() string {
	switch c {
	case ClassUnchanged:
		return "unchanged"
	case ClassRemoved:
		return "removed"
	case ClassAdded:
		return "added"
	default:
		return "background"
	}
}

// Image is the composited diff of one drawing pair.
type Image struct {
	Raster    *image.RGBA
	Removed   int // Pixels with content only in the old revision
	Added     int // Pixels with content only in the new revision
	Unchanged int // Pixels with content in both revisions

	// ChangedBounds is the bounding box of removed and added pixels; empty
	// when there are none.
	ChangedBounds image.Rectangle

	// ChangesDetected is true when Removed+Added exceeds the noise floor.
	ChangesDetected bool

	classes []Class
	width   int
}

// ClassAt returns the diff class of pixel (x, y).
func (im *Image) ClassAt(x, y int) Class {
	if x < 0 || y < 0 || x >= im.width || y*im.width+x >= len(im.classes) {
		return ClassBackground
	}
	return im.classes[y*im.width+x]
}

// Changed returns the number of removed and added pixels.
func (im *Image) Changed() int {
	return im.Removed + im.Added
}

// ChangeRatio returns the changed pixels as a fraction of all content pixels.
func (im *Image) ChangeRatio() float64 {
	content := im.Removed + im.Added + im.Unchanged
	if content == 0 {
		return 0
	}
	return float64(im.Changed()) / float64(content)
}

// Compositor builds overlay images with a fixed palette and thresholds.
type Compositor struct {
	threshold uint8
	minPixels int
	palette   colorutil.Palette
}

// NewCompositor creates a compositor from a validated configuration.
func NewCompositor(cfg config.OverlayConfig) (*Compositor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	palette, err := cfg.Palette()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "overlay palette")
	}
	return &Compositor{
		threshold: uint8(min(cfg.ContentThreshold, 255)),
		minPixels: cfg.MinChangedPixels,
		palette:   palette,
	}, nil
}

// Palette returns the class colours in use.
func (c *Compositor) Palette() colorutil.Palette {
	return c.palette
}

// Composite classifies every pixel of oldImg (already warped into the new
// frame) against newImg. Both rasters must have identical dimensions.
func (c *Compositor) Composite(ctx context.Context, oldImg, newImg *image.RGBA) (*Image, error) {
	if oldImg == nil || newImg == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "nil raster")
	}
	ob, nb := oldImg.Bounds(), newImg.Bounds()
	if ob.Dx() != nb.Dx() || ob.Dy() != nb.Dy() {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput,
			"dimension mismatch: old %dx%d, new %dx%d", ob.Dx(), ob.Dy(), nb.Dx(), nb.Dy())
	}
	width, height := nb.Dx(), nb.Dy()
	if width == 0 || height == 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "empty raster")
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), newImg, nb.Min, draw.Src)

	result := &Image{
		Raster:  out,
		classes: make([]Class, width*height),
		width:   width,
	}
	changed := image.Rectangle{}

	for y := 0; y < height; y++ {
		if y%rowBand == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		oi := oldImg.PixOffset(ob.Min.X, ob.Min.Y+y)
		ni := newImg.PixOffset(nb.Min.X, nb.Min.Y+y)
		di := out.PixOffset(0, y)
		for x := 0; x < width; x++ {
			oldInk := c.isContent(oldImg.Pix[oi : oi+3])
			newInk := c.isContent(newImg.Pix[ni : ni+3])
			oi += 4
			ni += 4

			var class Class
			var paint color.RGBA
			switch {
			case oldInk && newInk:
				class, paint = ClassUnchanged, c.palette.Unchanged
				result.Unchanged++
			case oldInk:
				class, paint = ClassRemoved, c.palette.Removed
				result.Removed++
			case newInk:
				class, paint = ClassAdded, c.palette.Added
				result.Added++
			default:
				di += 4
				continue
			}

			result.classes[y*width+x] = class
			out.Pix[di+0] = paint.R
			out.Pix[di+1] = paint.G
			out.Pix[di+2] = paint.B
			out.Pix[di+3] = 255
			di += 4

			if class != ClassUnchanged {
				changed = changed.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}

	result.ChangedBounds = changed
	result.ChangesDetected = result.Changed() > c.minPixels
	return result, nil
}

func (c *Compositor) isContent(rgb []uint8) bool {
	return colorutil.Luma(rgb[0], rgb[1], rgb[2]) < c.threshold
}
