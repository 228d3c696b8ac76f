package alignment

import (
	"context"
	"image"
	"testing"

	"sheetdiff/internal/raster"
	"sheetdiff/internal/synth"
	"sheetdiff/pkg/colorutil"
	apperrors "sheetdiff/pkg/errors"
	"sheetdiff/pkg/geometry"
)

func newWarpPage(t *testing.T, w, h int) *raster.Page {
	t.Helper()
	page, err := raster.NewPage(synth.DefaultSheet(w, h, 11).Render(), "W-1", raster.OriginOld, 0)
	if err != nil {
		t.Fatalf("NewPage failed: %v", err)
	}
	return page
}

func TestWarp_OutputSize(t *testing.T) {
	src := newWarpPage(t, 50, 40)
	tests := []struct {
		name string
		w, h int
		tr   geometry.AffineTransform
	}{
		{"same size", 50, 40, geometry.Identity()},
		{"larger", 120, 90, geometry.Similarity(1.3, 10, 5, 5)},
		{"smaller", 20, 10, geometry.Translation(-3, 2)},
	}

	warper := NewBilinearWarper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := warper.Warp(context.Background(), src, tt.tr, tt.w, tt.h)
			if err != nil {
				t.Fatalf("Warp failed: %v", err)
			}
			if out.Bounds() != image.Rect(0, 0, tt.w, tt.h) {
				t.Errorf("bounds: got %v", out.Bounds())
			}
		})
	}
}

func TestWarp_IdentityCopiesPixels(t *testing.T) {
	src := newWarpPage(t, 300, 270)
	out, err := NewBilinearWarper().Warp(context.Background(), src, geometry.Identity(), 300, 270)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 270; y++ {
		for x := 0; x < 300; x++ {
			if got, want := out.RGBAAt(x, y), src.RGBA().RGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d,%d): got %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestWarp_IntegerTranslation(t *testing.T) {
	const dx, dy = 5, 3
	src := newWarpPage(t, 80, 60)
	out, err := NewBilinearWarper().Warp(context.Background(), src, geometry.Translation(dx, dy), 80, 60)
	if err != nil {
		t.Fatal(err)
	}

	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			got := out.RGBAAt(x, y)
			if x < dx || y < dy {
				if got != colorutil.Background {
					t.Fatalf("uncovered pixel (%d,%d): got %v, want background", x, y, got)
				}
				continue
			}
			if want := src.RGBA().RGBAAt(x-dx, y-dy); got != want {
				t.Fatalf("pixel (%d,%d): got %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestWarp_OutsideSourceIsBackground(t *testing.T) {
	src := newWarpPage(t, 50, 40)
	out, err := NewBilinearWarper().Warp(context.Background(), src, geometry.Translation(500, 500), 50, 40)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(out.Pix); i++ {
		if out.Pix[i] != 255 {
			t.Fatalf("byte %d: got %d, want 255", i, out.Pix[i])
		}
	}
}

func TestWarp_InvalidInput(t *testing.T) {
	src := newWarpPage(t, 20, 20)
	tests := []struct {
		name string
		src  *raster.Page
		tr   geometry.AffineTransform
		w, h int
	}{
		{"nil source", nil, geometry.Identity(), 20, 20},
		{"zero width", src, geometry.Identity(), 0, 20},
		{"negative height", src, geometry.Identity(), 20, -1},
		{"singular", src, geometry.Scale(0, 1), 20, 20},
		{"zero transform", src, geometry.AffineTransform{}, 20, 20},
	}

	warper := NewBilinearWarper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := warper.Warp(context.Background(), tt.src, tt.tr, tt.w, tt.h)
			if !apperrors.Is(err, apperrors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestWarp_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewBilinearWarper().Warp(ctx, newWarpPage(t, 20, 20), geometry.Identity(), 20, 20); err == nil {
		t.Error("expected cancellation error")
	}
}
