package colorutil

import (
	"image/color"
	"testing"
)

func TestDefaultPaletteTriplets(t *testing.T) {
	p := DefaultPalette()

	tests := []struct {
		name string
		got  color.RGBA
		want [3]uint8
	}{
		{"removed", p.Removed, [3]uint8{255, 0, 0}},
		{"added", p.Added, [3]uint8{0, 0, 255}},
		{"unchanged", p.Unchanged, [3]uint8{128, 128, 128}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := [3]uint8{tt.got.R, tt.got.G, tt.got.B}
			if got != tt.want {
				t.Errorf("RGB = %v, want %v", got, tt.want)
			}
			if tt.got.A != 255 {
				t.Errorf("alpha = %d, want 255", tt.got.A)
			}
		})
	}
}

func TestParsePalette(t *testing.T) {
	p, err := ParsePalette("#00ff00", "", "#101010")
	if err != nil {
		t.Fatalf("ParsePalette failed: %v", err)
	}
	if p.Removed != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("removed = %v", p.Removed)
	}
	if p.Added != Added {
		t.Errorf("added should keep default, got %v", p.Added)
	}
	if p.Unchanged != (color.RGBA{16, 16, 16, 255}) {
		t.Errorf("unchanged = %v", p.Unchanged)
	}

	if _, err := ParsePalette("red", "", ""); err == nil {
		t.Error("expected error for non-hex colour")
	}
}

func TestHexRoundTrip(t *testing.T) {
	for _, c := range []color.RGBA{Removed, Added, Unchanged, Background} {
		parsed, err := ParseHex(Hex(c))
		if err != nil {
			t.Fatalf("ParseHex(%s): %v", Hex(c), err)
		}
		if parsed != c {
			t.Errorf("round trip %v -> %s -> %v", c, Hex(c), parsed)
		}
	}
}

func TestLuma(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    uint8
	}{
		{0, 0, 0, 0},
		{255, 255, 255, 255},
		{239, 239, 239, 239},
		{255, 0, 0, 76},
		{0, 255, 0, 150},
		{0, 0, 255, 29},
	}

	for _, tt := range tests {
		if got := Luma(tt.r, tt.g, tt.b); got != tt.want {
			t.Errorf("Luma(%d,%d,%d) = %d, want %d", tt.r, tt.g, tt.b, got, tt.want)
		}
	}
}
