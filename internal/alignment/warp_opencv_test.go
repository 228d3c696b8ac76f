//go:build opencv

package alignment

import (
	"context"
	"image"
	"image/color"
	"testing"

	"sheetdiff/internal/raster"
	"sheetdiff/internal/synth"
	"sheetdiff/pkg/geometry"
)

func TestCVWarper_BackgroundChannelOrder(t *testing.T) {
	page, err := raster.NewPage(synth.Blank(40, 30), "A-1", raster.OriginOld, 0)
	if err != nil {
		t.Fatal(err)
	}
	bg := color.RGBA{R: 200, G: 30, B: 60, A: 255}
	w := &CVWarper{Background: bg}

	// Shift right by 20 so the left half has no source pixels.
	out, err := w.Warp(context.Background(), page, geometry.Translation(20, 0), 40, 30)
	if err != nil {
		t.Fatalf("Warp: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 40, 30) {
		t.Fatalf("bounds: got %v", out.Bounds())
	}
	if got := out.RGBAAt(5, 15); got != bg {
		t.Errorf("fill pixel: got %v, want %v", got, bg)
	}
	if got := out.RGBAAt(35, 15); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("copied pixel: got %v, want white", got)
	}
}
