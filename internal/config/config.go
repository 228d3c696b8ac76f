// Package config defines the comparison configuration.
//
// A Config is a plain value: build it once with Default or Load, validate it,
// and pass it (or one of its sections) into each component constructor.
// Nothing in the module keeps configuration in package-level state.
//
// # File format
//
// Configuration files are TOML, one table per component:
//
//	[features]
//	n_features = 10000
//	exclude_margin = 0.2
//
//	[estimation]
//	ransac_reproj_threshold = 15.0
//	scale_min = 0.3
//	scale_max = 2.5
//
//	[run]
//	workers = 8
//	pair_timeout = "2m"
package config

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"sheetdiff/pkg/colorutil"
	apperrors "sheetdiff/pkg/errors"

	"github.com/BurntSushi/toml"
)

// Config is the complete configuration of the comparison core.
type Config struct {
	Features   FeatureConfig    `toml:"features"`
	Matching   MatchingConfig   `toml:"matching"`
	Estimation EstimationConfig `toml:"estimation"`
	Overlay    OverlayConfig    `toml:"overlay"`
	Run        RunConfig        `toml:"run"`
}

// FeatureConfig configures keypoint detection.
type FeatureConfig struct {
	NFeatures     int     `toml:"n_features"`     // Maximum keypoints kept per page
	ExcludeMargin float64 `toml:"exclude_margin"` // Border fraction of min(w,h) with no keypoints
	PyramidLevels int     `toml:"pyramid_levels"`
	ScaleFactor   float64 `toml:"scale_factor"`   // Downscale ratio between pyramid levels
	FastThreshold int     `toml:"fast_threshold"` // Intensity difference for the FAST test
}

// MatchingConfig configures descriptor matching.
type MatchingConfig struct {
	RatioThreshold float64 `toml:"ratio_threshold"`
	CrossCheck     bool    `toml:"cross_check"`
	MaxAngleDelta  float64 `toml:"max_angle_delta"` // Degrees; 0 compares every orientation
}

// EstimationConfig configures RANSAC and the accepted transform bounds.
type EstimationConfig struct {
	MinMatches      int     `toml:"min_matches"`
	ReprojThreshold float64 `toml:"ransac_reproj_threshold"` // Inlier distance in pixels
	MaxIters        int     `toml:"max_iters"`
	Confidence      float64 `toml:"confidence"`
	ScaleMin        float64 `toml:"scale_min"`
	ScaleMax        float64 `toml:"scale_max"`
	RotationDegMin  float64 `toml:"rotation_deg_min"`
	RotationDegMax  float64 `toml:"rotation_deg_max"`
	Seed            int64   `toml:"ransac_seed"`
}

// OverlayConfig configures content masks and overlay colours.
type OverlayConfig struct {
	ContentThreshold int `toml:"content_threshold"` // Luma below this is content
	// MinChangedPixels is the noise floor: changes are reported only when
	// removed+added pixels exceed it.
	MinChangedPixels int    `toml:"min_changed_pixels"`
	RemovedColor     string `toml:"removed_color"`
	AddedColor       string `toml:"added_color"`
	UnchangedColor   string `toml:"unchanged_color"`
}

// RunConfig configures batch execution.
type RunConfig struct {
	Workers     int      `toml:"workers"`
	PairTimeout Duration `toml:"pair_timeout"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Features: FeatureConfig{
			NFeatures:     10000,
			ExcludeMargin: 0.2,
			PyramidLevels: 4,
			ScaleFactor:   1.2,
			FastThreshold: 20,
		},
		Matching: MatchingConfig{
			RatioThreshold: 0.75,
			MaxAngleDelta:  40,
		},
		Estimation: EstimationConfig{
			MinMatches:      4,
			ReprojThreshold: 15.0,
			MaxIters:        5000,
			Confidence:      0.95,
			ScaleMin:        0.3,
			ScaleMax:        2.5,
			RotationDegMin:  -30,
			RotationDegMax:  30,
			Seed:            1,
		},
		Overlay: OverlayConfig{
			ContentThreshold: 240,
			MinChangedPixels: 0,
			RemovedColor:     colorutil.Hex(colorutil.Removed),
			AddedColor:       colorutil.Hex(colorutil.Added),
			UnchangedColor:   colorutil.Hex(colorutil.Unchanged),
		},
		Run: RunConfig{
			Workers:     runtime.NumCPU(),
			PairTimeout: Duration(2 * time.Minute),
		},
	}
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var problems []string
	for _, p := range [][]string{
		c.Features.problems(),
		c.Matching.problems(),
		c.Estimation.problems(),
		c.Overlay.problems(),
		c.Run.problems(),
	} {
		problems = append(problems, p...)
	}
	if len(problems) > 0 {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "%s", strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks the feature section.
func (c FeatureConfig) Validate() error { return asError(c.problems()) }

// Validate checks the matching section.
func (c MatchingConfig) Validate() error { return asError(c.problems()) }

// Validate checks the estimation section.
func (c EstimationConfig) Validate() error { return asError(c.problems()) }

// Validate checks the overlay section.
func (c OverlayConfig) Validate() error { return asError(c.problems()) }

// Validate checks the run section.
func (c RunConfig) Validate() error { return asError(c.problems()) }

func asError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return apperrors.New(apperrors.ErrCodeInvalidConfig, "%s", strings.Join(problems, "; "))
}

func (c FeatureConfig) problems() []string {
	var p []string
	if c.NFeatures <= 0 {
		p = append(p, fmt.Sprintf("n_features must be > 0, got %d", c.NFeatures))
	}
	if c.ExcludeMargin < 0 || c.ExcludeMargin >= 0.5 {
		p = append(p, fmt.Sprintf("exclude_margin must be in [0, 0.5), got %g", c.ExcludeMargin))
	}
	if c.PyramidLevels < 1 {
		p = append(p, fmt.Sprintf("pyramid_levels must be >= 1, got %d", c.PyramidLevels))
	}
	if c.ScaleFactor <= 1 {
		p = append(p, fmt.Sprintf("scale_factor must be > 1, got %g", c.ScaleFactor))
	}
	if c.FastThreshold <= 0 || c.FastThreshold > 255 {
		p = append(p, fmt.Sprintf("fast_threshold must be in (0, 255], got %d", c.FastThreshold))
	}
	return p
}

func (c MatchingConfig) problems() []string {
	var p []string
	if c.RatioThreshold <= 0 || c.RatioThreshold > 1 {
		p = append(p, fmt.Sprintf("ratio_threshold must be in (0, 1], got %g", c.RatioThreshold))
	}
	if c.MaxAngleDelta < 0 || c.MaxAngleDelta > 180 {
		p = append(p, fmt.Sprintf("max_angle_delta must be in [0, 180], got %g", c.MaxAngleDelta))
	}
	return p
}

func (c EstimationConfig) problems() []string {
	var p []string
	if c.MinMatches < 3 {
		p = append(p, fmt.Sprintf("min_matches must be >= 3, got %d", c.MinMatches))
	}
	if c.ReprojThreshold <= 0 {
		p = append(p, fmt.Sprintf("ransac_reproj_threshold must be > 0, got %g", c.ReprojThreshold))
	}
	if c.MaxIters <= 0 {
		p = append(p, fmt.Sprintf("max_iters must be > 0, got %d", c.MaxIters))
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		p = append(p, fmt.Sprintf("confidence must be in (0, 1), got %g", c.Confidence))
	}
	if c.ScaleMin <= 0 {
		p = append(p, fmt.Sprintf("scale_min must be > 0, got %g", c.ScaleMin))
	}
	if c.ScaleMin >= c.ScaleMax {
		p = append(p, fmt.Sprintf("scale_min (%g) must be < scale_max (%g)", c.ScaleMin, c.ScaleMax))
	}
	if c.RotationDegMin >= c.RotationDegMax {
		p = append(p, fmt.Sprintf("rotation_deg_min (%g) must be < rotation_deg_max (%g)", c.RotationDegMin, c.RotationDegMax))
	}
	if c.RotationDegMin < -180 || c.RotationDegMax > 180 {
		p = append(p, "rotation bounds must lie within [-180, 180]")
	}
	return p
}

func (c OverlayConfig) problems() []string {
	var p []string
	if c.ContentThreshold <= 0 || c.ContentThreshold > 255 {
		p = append(p, fmt.Sprintf("content_threshold must be in (0, 255], got %d", c.ContentThreshold))
	}
	if c.MinChangedPixels < 0 {
		p = append(p, fmt.Sprintf("min_changed_pixels must be >= 0, got %d", c.MinChangedPixels))
	}
	if _, err := c.Palette(); err != nil {
		p = append(p, err.Error())
	}
	return p
}

func (c RunConfig) problems() []string {
	var p []string
	if c.Workers <= 0 {
		p = append(p, fmt.Sprintf("workers must be > 0, got %d", c.Workers))
	}
	if c.PairTimeout <= 0 {
		p = append(p, fmt.Sprintf("pair_timeout must be > 0, got %s", c.PairTimeout))
	}
	return p
}

// Palette parses the configured class colours.
func (c OverlayConfig) Palette() (colorutil.Palette, error) {
	return colorutil.ParsePalette(c.RemovedColor, c.AddedColor, c.UnchangedColor)
}

// Load reads a TOML file on top of the defaults and validates the result.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "decode %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, apperrors.New(apperrors.ErrCodeInvalidConfig, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes the configuration as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
