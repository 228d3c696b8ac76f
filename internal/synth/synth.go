// Package synth draws deterministic pseudo drawing sheets for demos and tests.
//
// A sheet is a white raster covered with rectangle outlines, straight lines
// and small specks in random grey levels, with an optional sheet label in the
// bottom-right title block. The same seed always produces the same content;
// Offset shifts every shape so two sheets differ by an exact integer
// translation. The label is not shifted.
package synth

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Sheet describes a synthetic drawing.
type Sheet struct {
	Width, Height int
	Seed          int64
	Offset        image.Point // Added to every shape position
	Rects         int
	Lines         int
	Specks        int
	Label         string // Printed in the title block when set
}

// DefaultSheet returns a dense sheet of the given size.
func DefaultSheet(width, height int, seed int64) Sheet {
	area := width * height
	return Sheet{
		Width:  width,
		Height: height,
		Seed:   seed,
		Rects:  area / 1800,
		Lines:  area / 5000,
		Specks: area / 800,
	}
}

// Render draws the sheet.
func (s Sheet) Render() *image.RGBA {
	img := Blank(s.Width, s.Height)
	rng := rand.New(rand.NewSource(s.Seed))

	for i := 0; i < s.Rects; i++ {
		x, y := rng.Intn(s.Width), rng.Intn(s.Height)
		w, h := 8+rng.Intn(62), 8+rng.Intn(62)
		t := 1 + rng.Intn(3)
		c := ink(rng)
		r := image.Rect(x, y, x+w, y+h).Add(s.Offset)
		Fill(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), c)
		Fill(img, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), c)
		Fill(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), c)
		Fill(img, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), c)
	}

	for i := 0; i < s.Lines; i++ {
		x, y := rng.Intn(s.Width), rng.Intn(s.Height)
		n := 20 + rng.Intn(120)
		dx, dy := 1, 0
		switch rng.Intn(4) {
		case 1:
			dx, dy = 0, 1
		case 2:
			dx, dy = 1, 1
		case 3:
			dx, dy = 1, -1
		}
		c := ink(rng)
		for k := 0; k < n; k++ {
			p := image.Pt(x+k*dx, y+k*dy).Add(s.Offset)
			Fill(img, image.Rect(p.X, p.Y, p.X+2, p.Y+2), c)
		}
	}

	for i := 0; i < s.Specks; i++ {
		x, y := rng.Intn(s.Width), rng.Intn(s.Height)
		sz := 2 + rng.Intn(3)
		p := image.Pt(x, y).Add(s.Offset)
		Fill(img, image.Rect(p.X, p.Y, p.X+sz, p.Y+sz), ink(rng))
	}

	if s.Label != "" {
		DrawText(img, s.Width-10-7*len(s.Label), s.Height-10, s.Label)
	}
	return img
}

// DrawText writes text in black with its baseline at (x, y).
func DrawText(img *image.RGBA, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// Blank returns a white raster.
func Blank(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// Fill paints r (clipped to the image) with c.
func Fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

func ink(rng *rand.Rand) color.RGBA {
	v := uint8(rng.Intn(160))
	return color.RGBA{R: v, G: v, B: v, A: 255}
}
