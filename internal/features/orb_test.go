package features

import (
	"context"
	"errors"
	"image"
	"testing"

	"sheetdiff/internal/config"
	"sheetdiff/internal/raster"
	"sheetdiff/internal/synth"
)

func newTestPage(t *testing.T, img image.Image) *raster.Page {
	t.Helper()
	page, err := raster.NewPage(img, "T-1", raster.OriginOld, 0)
	if err != nil {
		t.Fatalf("NewPage failed: %v", err)
	}
	return page
}

func newTestORB(t *testing.T, mutate func(*config.FeatureConfig)) *ORB {
	t.Helper()
	cfg := config.Default().Features
	if mutate != nil {
		mutate(&cfg)
	}
	orb, err := NewORB(cfg)
	if err != nil {
		t.Fatalf("NewORB failed: %v", err)
	}
	return orb
}

func TestExtract_MarginInvariant(t *testing.T) {
	page := newTestPage(t, synth.DefaultSheet(400, 360, 7).Render())
	orb := newTestORB(t, nil)

	fs, err := orb.Extract(context.Background(), page)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if fs.Margin != 72 {
		t.Errorf("margin: got %d, want floor(360*0.2)=72", fs.Margin)
	}
	if fs.Empty() {
		t.Fatal("expected keypoints on a dense drawing")
	}
	if len(fs.Descriptors) != len(fs.Keypoints) {
		t.Fatalf("descriptors %d != keypoints %d", len(fs.Descriptors), len(fs.Keypoints))
	}
	for i, kp := range fs.Keypoints {
		if !InBounds(kp.X, kp.Y, 400, 360, fs.Margin) {
			t.Fatalf("keypoint %d at (%.1f, %.1f) lies in the excluded margin", i, kp.X, kp.Y)
		}
	}
}

func TestExtract_ContentOnlyInMargin(t *testing.T) {
	// All content sits inside the 20% border, so nothing may be detected.
	img := synth.Blank(500, 500)
	sheet := synth.DefaultSheet(90, 500, 3)
	border := sheet.Render()
	for y := 0; y < 500; y++ {
		for x := 0; x < 90; x++ {
			img.SetRGBA(x, y, border.RGBAAt(x, y))
		}
	}

	fs, err := newTestORB(t, nil).Extract(context.Background(), newTestPage(t, img))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !fs.Empty() {
		t.Errorf("expected no keypoints, got %d", fs.Len())
	}
}

func TestExtract_Blank(t *testing.T) {
	fs, err := newTestORB(t, nil).Extract(context.Background(), newTestPage(t, synth.Blank(300, 300)))
	if err != nil {
		t.Fatalf("blank page should not be an error: %v", err)
	}
	if !fs.Empty() {
		t.Errorf("expected empty feature set, got %d keypoints", fs.Len())
	}
	if fs.Width != 300 || fs.Height != 300 {
		t.Errorf("dimensions: got %dx%d", fs.Width, fs.Height)
	}
}

func TestExtract_FeatureCap(t *testing.T) {
	page := newTestPage(t, synth.DefaultSheet(400, 400, 11).Render())
	orb := newTestORB(t, func(c *config.FeatureConfig) { c.NFeatures = 25 })

	fs, err := orb.Extract(context.Background(), page)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if fs.Len() != 25 {
		t.Fatalf("expected exactly 25 keypoints, got %d", fs.Len())
	}
	for i := 1; i < fs.Len(); i++ {
		if fs.Keypoints[i].Response > fs.Keypoints[i-1].Response {
			t.Fatalf("keypoints not ordered by response at %d", i)
		}
	}
}

func TestExtract_Deterministic(t *testing.T) {
	page := newTestPage(t, synth.DefaultSheet(320, 320, 5).Render())
	orb := newTestORB(t, nil)

	a, err := orb.Extract(context.Background(), page)
	if err != nil {
		t.Fatal(err)
	}
	b, err := orb.Extract(context.Background(), page)
	if err != nil {
		t.Fatal(err)
	}
	if a.Len() != b.Len() {
		t.Fatalf("lengths differ: %d vs %d", a.Len(), b.Len())
	}
	for i := range a.Keypoints {
		if a.Keypoints[i] != b.Keypoints[i] || a.Descriptors[i] != b.Descriptors[i] {
			t.Fatalf("feature %d differs between runs", i)
		}
	}
}

func TestExtract_TranslationEquivariant(t *testing.T) {
	shift := image.Pt(6, 9)
	oldImg := synth.DefaultSheet(480, 480, 21).Render()
	sheet := synth.DefaultSheet(480, 480, 21)
	sheet.Offset = shift
	newImg := sheet.Render()

	orb := newTestORB(t, func(c *config.FeatureConfig) { c.ExcludeMargin = 0.1 })
	a, err := orb.Extract(context.Background(), newTestPage(t, oldImg))
	if err != nil {
		t.Fatal(err)
	}
	b, err := orb.Extract(context.Background(), newTestPage(t, newImg))
	if err != nil {
		t.Fatal(err)
	}

	type key struct{ x, y int }
	index := make(map[key]Descriptor)
	for i, kp := range b.Keypoints {
		if kp.Octave == 0 {
			index[key{int(kp.X), int(kp.Y)}] = b.Descriptors[i]
		}
	}

	same := 0
	for i, kp := range a.Keypoints {
		if kp.Octave != 0 {
			continue
		}
		if d, ok := index[key{int(kp.X) + shift.X, int(kp.Y) + shift.Y}]; ok && d == a.Descriptors[i] {
			same++
		}
	}
	if same < 20 {
		t.Errorf("expected at least 20 identical shifted level-0 features, got %d", same)
	}
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestORB(t, nil).Extract(ctx, newTestPage(t, synth.DefaultSheet(200, 200, 1).Render()))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExtract_NilPage(t *testing.T) {
	if _, err := newTestORB(t, nil).Extract(context.Background(), nil); err == nil {
		t.Error("expected error for nil page")
	}
}

func TestNewORB_InvalidConfig(t *testing.T) {
	cfg := config.Default().Features
	cfg.NFeatures = 0
	if _, err := NewORB(cfg); err == nil {
		t.Error("expected error for n_features = 0")
	}
}

func TestExclusionMargin(t *testing.T) {
	tests := []struct {
		w, h     int
		fraction float64
		want     int
	}{
		{1000, 1000, 0.2, 200},
		{1000, 700, 0.2, 140},
		{99, 501, 0.2, 19},
		{100, 100, 0, 0},
	}
	for _, tt := range tests {
		if got := ExclusionMargin(tt.w, tt.h, tt.fraction); got != tt.want {
			t.Errorf("ExclusionMargin(%d, %d, %g) = %d, want %d", tt.w, tt.h, tt.fraction, got, tt.want)
		}
	}
}

func TestInBounds(t *testing.T) {
	tests := []struct {
		x, y float64
		want bool
	}{
		{200, 200, true},
		{199.9, 500, false},
		{799.9, 500, true},
		{800, 500, false},
		{500, 799, true},
		{500, 800, false},
	}
	for _, tt := range tests {
		if got := InBounds(tt.x, tt.y, 1000, 1000, 200); got != tt.want {
			t.Errorf("InBounds(%g, %g) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestHasArc(t *testing.T) {
	tests := []struct {
		name string
		mask uint32
		want bool
	}{
		{"empty", 0, false},
		{"nine from zero", 0x1FF, true},
		{"eight", 0xFF, false},
		{"wrapping nine", 0xF01F, true},
		{"split", 0x5555, false},
		{"full", 0xFFFF, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasArc(tt.mask); got != tt.want {
				t.Errorf("hasArc(%#x) = %v, want %v", tt.mask, got, tt.want)
			}
		})
	}
}
