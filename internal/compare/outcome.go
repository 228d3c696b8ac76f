package compare

import (
	"time"

	"sheetdiff/internal/alignment"
	"sheetdiff/internal/drawing"
	"sheetdiff/internal/overlay"
	apperrors "sheetdiff/pkg/errors"

	"github.com/google/uuid"
)

// Status is the final classification of one pair.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusAlignmentFailed Status = "alignment_failed"
	StatusError           Status = "error"
	StatusTimeout         Status = "timeout"
)

// Stage is a step of the per-pair state machine:
// pending -> extracting -> matching -> estimating -> warping -> compositing -> done.
type Stage string

const (
	StagePending     Stage = "pending"
	StageExtracting  Stage = "extracting"
	StageMatching    Stage = "matching"
	StageEstimating  Stage = "estimating"
	StageWarping     Stage = "warping"
	StageCompositing Stage = "compositing"
	StageDone        Stage = "done"
)

// Outcome is the result of comparing one drawing pair.
type Outcome struct {
	Pair      drawing.Pair
	Overlay   *overlay.Image    // Nil unless Status is success
	Alignment *alignment.Result // Nil when the pair failed before estimation
	Status    Status

	// Stage is the last stage entered: StageDone on success, otherwise the
	// stage that failed.
	Stage    Stage
	Detail   string
	Code     apperrors.Code
	Duration time.Duration
}

// State renders the state machine position: "done" or "failed@<stage>".
func (o *Outcome) State() string {
	if o.Status == StatusSuccess {
		return string(StageDone)
	}
	return "failed@" + string(o.Stage)
}

// ChangesDetected reports whether the overlay shows changes. ok is false
// when the pair could not be compared, so a failure is never read as
// "no changes".
func (o *Outcome) ChangesDetected() (changed, ok bool) {
	if o.Status != StatusSuccess || o.Overlay == nil {
		return false, false
	}
	return o.Overlay.ChangesDetected, true
}

// Score returns the alignment score, 0 when no alignment was attempted.
func (o *Outcome) Score() float64 {
	if o.Alignment == nil {
		return 0
	}
	return o.Alignment.Score
}

func (o *Outcome) fail(stage Stage, status Status, code apperrors.Code, detail string) {
	o.Stage = stage
	o.Status = status
	o.Code = code
	o.Detail = detail
	o.Overlay = nil
}

// Summary counts outcomes by status.
type Summary struct {
	Pairs           int `json:"pairs" yaml:"pairs"`
	Succeeded       int `json:"succeeded" yaml:"succeeded"`
	Changed         int `json:"changed" yaml:"changed"`
	AlignmentFailed int `json:"alignment_failed" yaml:"alignment_failed"`
	Errors          int `json:"errors" yaml:"errors"`
	Timeouts        int `json:"timeouts" yaml:"timeouts"`
	UnmatchedOld    int `json:"unmatched_old" yaml:"unmatched_old"`
	UnmatchedNew    int `json:"unmatched_new" yaml:"unmatched_new"`
	Unidentified    int `json:"unidentified" yaml:"unidentified"`
}

// BatchResult aggregates the outcomes of one batch. Outcomes are in pair order.
type BatchResult struct {
	ID       uuid.UUID
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome

	UnmatchedOld    []string
	UnmatchedNew    []string
	UnidentifiedOld []int
	UnidentifiedNew []int
	DuplicateOld    []string
	DuplicateNew    []string

	Summary Summary
}

func (r *BatchResult) summarize() {
	s := Summary{
		Pairs:        len(r.Outcomes),
		UnmatchedOld: len(r.UnmatchedOld),
		UnmatchedNew: len(r.UnmatchedNew),
		Unidentified: len(r.UnidentifiedOld) + len(r.UnidentifiedNew),
	}
	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		switch o.Status {
		case StatusSuccess:
			s.Succeeded++
			if changed, _ := o.ChangesDetected(); changed {
				s.Changed++
			}
		case StatusAlignmentFailed:
			s.AlignmentFailed++
		case StatusTimeout:
			s.Timeouts++
		default:
			s.Errors++
		}
	}
	r.Summary = s
}
