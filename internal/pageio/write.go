package pageio

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sheetdiff/internal/compare"
	apperrors "sheetdiff/pkg/errors"

	"gopkg.in/yaml.v3"
)

// Report formats accepted by WriteReport.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// WritePNG encodes img to path, creating parent directories as needed.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// WriteOverlays writes the overlay of every successful pair into dir and
// returns the written path per pair key.
func WriteOverlays(dir string, res *compare.BatchResult) (map[string]string, error) {
	paths := make(map[string]string)
	used := make(map[string]bool)
	for i := range res.Outcomes {
		o := &res.Outcomes[i]
		if o.Overlay == nil {
			continue
		}
		name := fileSafe(o.Pair.Identifier)
		if used[name] {
			name = fmt.Sprintf("%s_%d", name, i)
		}
		used[name] = true

		path := filepath.Join(dir, name+"_overlay.png")
		if err := WritePNG(path, o.Overlay.Raster); err != nil {
			return paths, err
		}
		paths[o.Pair.Key] = path
	}
	return paths, nil
}

// fileSafe keeps letters, digits, dots and dashes of an identifier.
func fileSafe(id string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, id)
	if s == "" {
		return "sheet"
	}
	return s
}

// Report is the serialized form of a batch result.
type Report struct {
	Batch    string          `json:"batch" yaml:"batch"`
	Started  time.Time       `json:"started" yaml:"started"`
	Duration string          `json:"duration" yaml:"duration"`
	Summary  compare.Summary `json:"summary" yaml:"summary"`
	Pairs    []PairReport    `json:"pairs" yaml:"pairs"`

	UnmatchedOld    []string `json:"unmatched_old,omitempty" yaml:"unmatched_old,omitempty"`
	UnmatchedNew    []string `json:"unmatched_new,omitempty" yaml:"unmatched_new,omitempty"`
	UnidentifiedOld []int    `json:"unidentified_old,omitempty" yaml:"unidentified_old,omitempty"`
	UnidentifiedNew []int    `json:"unidentified_new,omitempty" yaml:"unidentified_new,omitempty"`
	DuplicateOld    []string `json:"duplicate_old,omitempty" yaml:"duplicate_old,omitempty"`
	DuplicateNew    []string `json:"duplicate_new,omitempty" yaml:"duplicate_new,omitempty"`
}

// PairReport describes one compared pair.
type PairReport struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Status     string `json:"status" yaml:"status"`
	State      string `json:"state" yaml:"state"`
	Code       string `json:"code,omitempty" yaml:"code,omitempty"`
	Detail     string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Duration   string `json:"duration" yaml:"duration"`

	Alignment *AlignmentReport `json:"alignment,omitempty" yaml:"alignment,omitempty"`

	// ChangesDetected is absent when the pair could not be compared.
	ChangesDetected *bool  `json:"changes_detected,omitempty" yaml:"changes_detected,omitempty"`
	Removed         int    `json:"removed,omitempty" yaml:"removed,omitempty"`
	Added           int    `json:"added,omitempty" yaml:"added,omitempty"`
	Unchanged       int    `json:"unchanged,omitempty" yaml:"unchanged,omitempty"`
	ChangedBounds   []int  `json:"changed_bounds,omitempty" yaml:"changed_bounds,omitempty,flow"`
	Overlay         string `json:"overlay,omitempty" yaml:"overlay,omitempty"`
}

// AlignmentReport holds the estimated transform and its quality.
type AlignmentReport struct {
	Score       float64    `json:"score" yaml:"score"`
	Inliers     int        `json:"inliers" yaml:"inliers"`
	Total       int        `json:"total" yaml:"total"`
	Scale       float64    `json:"scale,omitempty" yaml:"scale,omitempty"`
	RotationDeg float64    `json:"rotation_deg,omitempty" yaml:"rotation_deg,omitempty"`
	MeanError   float64    `json:"mean_error,omitempty" yaml:"mean_error,omitempty"`
	Matrix      [6]float64 `json:"matrix" yaml:"matrix,flow"`
	Reason      string     `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// NewReport converts res into its report form. overlays maps pair keys to
// written overlay paths and may be nil.
func NewReport(res *compare.BatchResult, overlays map[string]string) Report {
	rep := Report{
		Batch:           res.ID.String(),
		Started:         res.Started,
		Duration:        res.Finished.Sub(res.Started).Round(time.Millisecond).String(),
		Summary:         res.Summary,
		Pairs:           make([]PairReport, 0, len(res.Outcomes)),
		UnmatchedOld:    res.UnmatchedOld,
		UnmatchedNew:    res.UnmatchedNew,
		UnidentifiedOld: res.UnidentifiedOld,
		UnidentifiedNew: res.UnidentifiedNew,
		DuplicateOld:    res.DuplicateOld,
		DuplicateNew:    res.DuplicateNew,
	}
	for i := range res.Outcomes {
		o := &res.Outcomes[i]
		pr := PairReport{
			Identifier: o.Pair.Identifier,
			Status:     string(o.Status),
			State:      o.State(),
			Code:       string(o.Code),
			Detail:     o.Detail,
			Duration:   o.Duration.Round(time.Millisecond).String(),
			Overlay:    overlays[o.Pair.Key],
		}
		if a := o.Alignment; a != nil {
			t := a.Transform
			pr.Alignment = &AlignmentReport{
				Score:       a.Score,
				Inliers:     a.Inliers,
				Total:       a.Total,
				Scale:       a.Scale,
				RotationDeg: a.RotationDeg,
				MeanError:   a.MeanError,
				Matrix:      [6]float64{t.A, t.B, t.TX, t.C, t.D, t.TY},
				Reason:      string(a.Reason),
			}
		}
		if changed, ok := o.ChangesDetected(); ok {
			pr.ChangesDetected = &changed
			pr.Removed = o.Overlay.Removed
			pr.Added = o.Overlay.Added
			pr.Unchanged = o.Overlay.Unchanged
			if b := o.Overlay.ChangedBounds; !b.Empty() {
				pr.ChangedBounds = []int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
			}
		}
		rep.Pairs = append(rep.Pairs, pr)
	}
	return rep
}

// WriteReport serializes rep to w as YAML or JSON.
func WriteReport(w io.Writer, rep Report, format string) error {
	switch strings.ToLower(format) {
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return nil
	default:
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "unknown report format %q", format)
	}
}
