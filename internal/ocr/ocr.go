// Package ocr reads sheet identifiers from the title block of a drawing page.
//
// The Tesseract engine is only compiled with the "ocr" build tag:
//
//	go build -tags ocr ./...
//
// Without it NewEngine returns ErrNotEnabled. Title-block cropping and
// identifier selection are pure Go and always available.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	"sheetdiff/internal/sheetid"

	"github.com/disintegration/imaging"
)

// ErrNotEnabled is returned when OCR support was not compiled in.
var ErrNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// SheetChars is the character set allowed in title-block recognition.
const SheetChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ-._:#/ "

// minTextHeight is the crop height below which regions are upscaled.
const minTextHeight = 300

// Region selects a part of the page by fractions of its width and height.
type Region struct {
	Left, Top, Right, Bottom float64
}

// TitleBlock is the bottom-right corner where sheet numbers are printed.
var TitleBlock = Region{Left: 0.65, Top: 0.8, Right: 1, Bottom: 1}

// Rect returns the pixel rectangle of r inside bounds.
func (r Region) Rect(bounds image.Rectangle) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	return image.Rect(
		bounds.Min.X+int(r.Left*w),
		bounds.Min.Y+int(r.Top*h),
		bounds.Min.X+int(r.Right*w),
		bounds.Min.Y+int(r.Bottom*h),
	).Intersect(bounds)
}

// Prepare crops region from img, converts it to grey, stretches contrast and
// upscales short crops so Tesseract sees text of a readable size.
func Prepare(img image.Image, region Region) (*image.NRGBA, error) {
	rect := region.Rect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("empty OCR region %v", rect)
	}

	crop := imaging.Crop(img, rect)
	if h := crop.Bounds().Dy(); h < minTextHeight {
		crop = imaging.Resize(crop, 0, minTextHeight, imaging.CatmullRom)
	}
	gray := imaging.Grayscale(crop)
	return imaging.AdjustContrast(gray, 20), nil
}

// encodePNG serializes img for the OCR engine.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Recognizer turns an image into text.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Identifier finds the sheet identifier of a page.
type Identifier struct {
	rec    Recognizer
	region Region
}

// NewIdentifier reads identifiers from region of each page with rec.
func NewIdentifier(rec Recognizer, region Region) *Identifier {
	return &Identifier{rec: rec, region: region}
}

// Identify returns the canonical identifier found in the page's title block,
// or "" when the recognized text holds none.
func (id *Identifier) Identify(ctx context.Context, img image.Image) (string, error) {
	prepared, err := Prepare(img, id.region)
	if err != nil {
		return "", err
	}
	text, err := id.rec.Recognize(ctx, prepared)
	if err != nil {
		return "", err
	}
	return sheetid.FromText(text), nil
}
