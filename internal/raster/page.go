// Package raster holds the decoded page rasters the comparison core works on.
package raster

import (
	"image"
	"image/draw"

	apperrors "sheetdiff/pkg/errors"
)

// Origin indicates which revision a page belongs to.
type Origin int

const (
	OriginUnknown Origin = iota
	OriginOld            // Previous revision
	OriginNew            // Current revision
)

func (o Origin) String() string {
	switch o {
	case OriginOld:
		return "old"
	case OriginNew:
		return "new"
	default:
		return "unknown"
	}
}

// Page is one rendered drawing sheet. Pixels are stored as 8-bit RGBA with the
// origin at (0, 0). A Page is never modified after construction.
type Page struct {
	img        *image.RGBA
	identifier string
	origin     Origin
	index      int
}

// NewPage copies img into a new Page. Nil and zero-size images are rejected
// with an INVALID_INPUT error.
func NewPage(img image.Image, identifier string, origin Origin, index int) (*Page, error) {
	if img == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "page %d: nil image", index)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "page %d: zero-size image %dx%d", index, b.Dx(), b.Dy())
	}

	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	return &Page{
		img:        rgba,
		identifier: identifier,
		origin:     origin,
		index:      index,
	}, nil
}

// Width returns the image width in pixels.
func (p *Page) Width() int { return p.img.Rect.Dx() }

// Height returns the image height in pixels.
func (p *Page) Height() int { return p.img.Rect.Dy() }

// Identifier returns the sheet identifier as extracted upstream (possibly empty).
func (p *Page) Identifier() string { return p.identifier }

// Origin returns which revision the page belongs to.
func (p *Page) Origin() Origin { return p.origin }

// Index returns the page position within its drawing set.
func (p *Page) Index() int { return p.index }

// RGBA returns the backing raster. Callers must treat it as read-only.
func (p *Page) RGBA() *image.RGBA { return p.img }

// Gray returns a fresh single-channel intensity copy of the page.
func (p *Page) Gray() *image.Gray { return Gray(p.img) }
