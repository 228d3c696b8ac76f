// Package colorutil provides the overlay palette and intensity helpers.
//
// All colours are stored as color.RGBA in R, G, B order. Libraries that work in
// BGR order (OpenCV) must swap channels at their boundary; the triplets below
// are the ones written into overlay rasters.
package colorutil

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Default overlay colours.
var (
	// Removed marks content present only in the old revision: (255, 0, 0).
	Removed = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	// Added marks content present only in the new revision: (0, 0, 255).
	Added = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	// Unchanged marks content present in both revisions: (128, 128, 128).
	Unchanged = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	// Background fills warped pixels that map outside the source raster.
	Background = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Palette holds the colour of each diff class.
type Palette struct {
	Removed   color.RGBA
	Added     color.RGBA
	Unchanged color.RGBA
}

// DefaultPalette returns the documented default class colours.
func DefaultPalette() Palette {
	return Palette{Removed: Removed, Added: Added, Unchanged: Unchanged}
}

// ParsePalette builds a Palette from "#rrggbb" strings. Empty strings keep the default.
func ParsePalette(removed, added, unchanged string) (Palette, error) {
	p := DefaultPalette()
	for _, f := range []struct {
		name string
		hex  string
		dst  *color.RGBA
	}{
		{"removed", removed, &p.Removed},
		{"added", added, &p.Added},
		{"unchanged", unchanged, &p.Unchanged},
	} {
		if f.hex == "" {
			continue
		}
		c, err := ParseHex(f.hex)
		if err != nil {
			return Palette{}, fmt.Errorf("%s colour: %w", f.name, err)
		}
		*f.dst = c
	}
	return p, nil
}

// ParseHex parses a "#rrggbb" colour into an opaque color.RGBA.
func ParseHex(s string) (color.RGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// Hex formats a colour as "#rrggbb".
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Luma returns the ITU-R BT.601 luminance of an 8-bit RGB triplet, rounded.
// Grey inputs (r == g == b) map to themselves.
func Luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}
