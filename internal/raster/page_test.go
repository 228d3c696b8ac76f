package raster

import (
	"image"
	"image/color"
	"testing"

	"sheetdiff/pkg/colorutil"
	apperrors "sheetdiff/pkg/errors"
)

func TestNewPage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 30))
	src.Set(5, 5, color.RGBA{10, 20, 30, 255})

	page, err := NewPage(src, "A-101", OriginOld, 2)
	if err != nil {
		t.Fatalf("NewPage failed: %v", err)
	}

	if page.Width() != 40 || page.Height() != 30 {
		t.Errorf("dimensions: got %dx%d, want 40x30", page.Width(), page.Height())
	}
	if page.Identifier() != "A-101" || page.Origin() != OriginOld || page.Index() != 2 {
		t.Errorf("metadata: got %q %s %d", page.Identifier(), page.Origin(), page.Index())
	}

	// The page owns a copy; mutating the source must not leak in.
	src.Set(5, 5, color.RGBA{255, 255, 255, 255})
	if got := page.RGBA().RGBAAt(5, 5); got != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("page pixel changed with source: %v", got)
	}
}

func TestNewPage_NormalizesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 20, 30, 40))
	src.Set(10, 20, color.RGBA{1, 2, 3, 255})

	page, err := NewPage(src, "", OriginNew, 0)
	if err != nil {
		t.Fatalf("NewPage failed: %v", err)
	}
	if page.RGBA().Rect.Min != (image.Point{}) {
		t.Errorf("bounds min: got %v, want (0,0)", page.RGBA().Rect.Min)
	}
	if got := page.RGBA().RGBAAt(0, 0); got != (color.RGBA{1, 2, 3, 255}) {
		t.Errorf("pixel (0,0): got %v", got)
	}
}

func TestNewPage_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
	}{
		{"nil", nil},
		{"zero width", image.NewRGBA(image.Rect(0, 0, 0, 10))},
		{"zero height", image.NewGray(image.Rect(0, 0, 10, 0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPage(tt.img, "X", OriginOld, 0)
			if !apperrors.Is(err, apperrors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestGray(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 1))
	src.SetRGBA(0, 0, color.RGBA{0, 0, 0, 255})
	src.SetRGBA(1, 0, color.RGBA{200, 200, 200, 255})
	src.SetRGBA(2, 0, color.RGBA{255, 0, 0, 255})

	g := Gray(src)
	want := []uint8{0, 200, 76}
	for x, w := range want {
		if got := g.GrayAt(x, 0).Y; got != w {
			t.Errorf("pixel %d: got %d, want %d", x, got, w)
		}
	}
}

func TestGray_GraySubImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 10, 10))
	src.SetGray(4, 6, color.Gray{Y: 42})

	sub := src.SubImage(image.Rect(3, 5, 8, 9)).(*image.Gray)
	g := Gray(sub)
	if g.Rect != image.Rect(0, 0, 5, 4) {
		t.Fatalf("bounds: got %v", g.Rect)
	}
	if got := g.GrayAt(1, 1).Y; got != 42 {
		t.Errorf("pixel: got %d, want 42", got)
	}
}

func TestGray_PalettedMatchesLuma(t *testing.T) {
	palette := color.Palette{
		color.RGBA{255, 0, 0, 255},
		color.RGBA{0, 255, 0, 255},
		color.RGBA{0, 0, 255, 255},
		color.RGBA{10, 20, 30, 255},
		color.RGBA{200, 100, 50, 255},
		color.RGBA{239, 239, 239, 255},
		color.RGBA{255, 255, 255, 255},
	}
	src := image.NewPaletted(image.Rect(2, 3, 2+len(palette), 5), palette)
	for i := range palette {
		src.SetColorIndex(2+i, 3, uint8(i))
		src.SetColorIndex(2+i, 4, uint8(len(palette)-1-i))
	}

	g := Gray(src)
	if g.Rect != image.Rect(0, 0, len(palette), 2) {
		t.Fatalf("bounds: got %v", g.Rect)
	}
	for y := 0; y < 2; y++ {
		for x := range palette {
			c := src.At(2+x, 3+y).(color.RGBA)
			want := colorutil.Luma(c.R, c.G, c.B)
			if got := g.GrayAt(x, y).Y; got != want {
				t.Errorf("pixel (%d,%d) %v: got %d, want %d", x, y, c, got, want)
			}
		}
	}
}

func TestOriginString(t *testing.T) {
	if OriginOld.String() != "old" || OriginNew.String() != "new" || OriginUnknown.String() != "unknown" {
		t.Error("unexpected origin strings")
	}
}
