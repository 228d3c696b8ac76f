// Command aligntest runs the alignment pipeline on one old+new page pair and
// prints every stage's result.
//
//	aligntest -old rev1/A-101.png -new rev2/A-101.png -o overlay.png
//	aligntest -demo -rot 2.5 -scale 1.03 -dx 14 -dy -6
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"sheetdiff/internal/alignment"
	"sheetdiff/internal/config"
	"sheetdiff/internal/features"
	"sheetdiff/internal/overlay"
	"sheetdiff/internal/pageio"
	"sheetdiff/internal/raster"
	"sheetdiff/internal/synth"
	"sheetdiff/pkg/geometry"
)

func main() {
	oldPath := flag.String("old", "", "Path to old page")
	newPath := flag.String("new", "", "Path to new page")
	cfgPath := flag.String("c", "", "TOML configuration file")
	outPath := flag.String("o", "", "Write the overlay PNG here")
	demo := flag.Bool("demo", false, "Align a synthetic sheet against a transformed copy")
	size := flag.Int("size", 1200, "Demo sheet size in pixels")
	rot := flag.Float64("rot", 1.5, "Demo rotation in degrees")
	scale := flag.Float64("scale", 1.02, "Demo scale")
	dx := flag.Float64("dx", 12, "Demo X translation")
	dy := flag.Float64("dy", -8, "Demo Y translation")
	residuals := flag.Int("residuals", 10, "Number of worst residuals to print")
	flag.Parse()

	if !*demo && (*oldPath == "" || *newPath == "") {
		fmt.Println("Usage: aligntest -old <page> -new <page> [-c config.toml] [-o overlay.png]")
		fmt.Println("       aligntest -demo [-size 1200] [-rot 1.5] [-scale 1.02] [-dx 12] [-dy -8]")
		os.Exit(1)
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	var oldPage, newPage *raster.Page
	var truth *geometry.AffineTransform
	var err error
	if *demo {
		t := geometry.Similarity(*scale, *rot, *dx, *dy)
		truth = &t
		oldPage, newPage, err = demoPair(ctx, *size, t)
	} else {
		oldPage, err = loadPage(*oldPath, raster.OriginOld)
		if err == nil {
			newPage, err = loadPage(*newPath, raster.OriginNew)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare pages: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Old: %dx%d  New: %dx%d\n", oldPage.Width(), oldPage.Height(), newPage.Width(), newPage.Height())

	// Step 1: Features
	fmt.Printf("\n=== Extracting features ===\n")
	orb, err := features.NewORB(cfg.Features)
	if err != nil {
		fail("extractor", err)
	}
	start := time.Now()
	oldSet, err := orb.Extract(ctx, oldPage)
	if err != nil {
		fail("extract old", err)
	}
	newSet, err := orb.Extract(ctx, newPage)
	if err != nil {
		fail("extract new", err)
	}
	fmt.Printf("Keypoints: old %d, new %d (%s)\n", oldSet.Len(), newSet.Len(), since(start))

	// Step 2: Matching
	fmt.Printf("\n=== Matching ===\n")
	matcher, err := features.NewBruteForceMatcher(cfg.Matching)
	if err != nil {
		fail("matcher", err)
	}
	start = time.Now()
	ms, err := matcher.Match(ctx, oldSet, newSet)
	if err != nil {
		fail("match", err)
	}
	fmt.Printf("Correspondences: %d (%s)\n", ms.Len(), since(start))

	// Step 3: Estimation
	fmt.Printf("\n=== Estimating transform ===\n")
	estimator, err := alignment.NewRANSACEstimator(cfg.Estimation)
	if err != nil {
		fail("estimator", err)
	}
	start = time.Now()
	res, err := estimator.Estimate(ctx, ms)
	if err != nil {
		fail("estimate", err)
	}
	fmt.Printf("Inliers: %d / %d  score %.3f (%s)\n", res.Inliers, res.Total, res.Score, since(start))
	if failure := res.Err(); failure != nil {
		fmt.Fprintf(os.Stderr, "Alignment failed: %v\n", failure)
		os.Exit(2)
	}
	t := res.Transform
	fmt.Printf("Rotation: %.4f°\n", res.RotationDeg)
	fmt.Printf("Scale: %.6f\n", res.Scale)
	fmt.Printf("Translation: (%.2f, %.2f)\n", t.TX, t.TY)
	fmt.Printf("Mean error: %.3f px\n", res.MeanError)
	if truth != nil {
		s, r := truth.Decompose()
		fmt.Printf("Expected: rotation %.4f°, scale %.6f, translation (%.2f, %.2f)\n", r, s, truth.TX, truth.TY)
	}
	printResiduals(ms, t, cfg.Estimation.ReprojThreshold, *residuals)

	// Step 4: Warp and composite
	fmt.Printf("\n=== Warping and compositing ===\n")
	start = time.Now()
	warped, err := alignment.NewBilinearWarper().Warp(ctx, oldPage, t, newPage.Width(), newPage.Height())
	if err != nil {
		fail("warp", err)
	}
	comp, err := overlay.NewCompositor(cfg.Overlay)
	if err != nil {
		fail("compositor", err)
	}
	im, err := comp.Composite(ctx, warped, newPage.RGBA())
	if err != nil {
		fail("composite", err)
	}
	fmt.Printf("Removed: %d  Added: %d  Unchanged: %d  (%.3f%% changed, %s)\n",
		im.Removed, im.Added, im.Unchanged, 100*im.ChangeRatio(), since(start))
	if im.ChangesDetected {
		fmt.Printf("Changed region: %v\n", im.ChangedBounds)
	}

	if *outPath != "" {
		if err := pageio.WritePNG(*outPath, im.Raster); err != nil {
			fail("write overlay", err)
		}
		fmt.Printf("Overlay written to %s\n", *outPath)
	}
}

func loadPage(path string, origin raster.Origin) (*raster.Page, error) {
	img, err := pageio.Load(path)
	if err != nil {
		return nil, err
	}
	return raster.NewPage(img, "", origin, 0)
}

// demoPair renders a synthetic sheet and resamples it through t, so the
// estimator should recover t.
func demoPair(ctx context.Context, size int, t geometry.AffineTransform) (*raster.Page, *raster.Page, error) {
	sheet := synth.DefaultSheet(size, size, 1)
	sheet.Label = "A-101"
	oldPage, err := raster.NewPage(sheet.Render(), sheet.Label, raster.OriginOld, 0)
	if err != nil {
		return nil, nil, err
	}
	moved, err := alignment.NewBilinearWarper().Warp(ctx, oldPage, t, size, size)
	if err != nil {
		return nil, nil, err
	}
	// A revision note so the overlay has something to show.
	synth.DrawText(moved, size/10, size/10, "REV B: ADDED NOTE")
	newPage, err := raster.NewPage(moved, sheet.Label, raster.OriginNew, 0)
	if err != nil {
		return nil, nil, err
	}
	return oldPage, newPage, nil
}

func printResiduals(ms *features.MatchSet, t geometry.AffineTransform, threshold float64, n int) {
	if ms.Len() == 0 || n <= 0 {
		return
	}
	type entry struct {
		p   geometry.Point2D
		err float64
	}
	entries := make([]entry, 0, ms.Len())
	for _, m := range ms.Matches {
		q := t.Apply(m.Old)
		entries = append(entries, entry{m.New, math.Hypot(m.New.X-q.X, m.New.Y-q.Y)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].err > entries[j].err })

	fmt.Printf("\nWorst residuals:\n")
	for _, e := range entries[:min(n, len(entries))] {
		tag := ""
		if e.err > threshold {
			tag = "  outlier"
		}
		fmt.Printf("  X=%5.0f Y=%5.0f  err=%.1f px%s\n", e.p.X, e.p.Y, e.err, tag)
	}
}

func since(t time.Time) time.Duration {
	return time.Since(t).Round(time.Millisecond)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s failed: %v\n", step, err)
	os.Exit(1)
}
