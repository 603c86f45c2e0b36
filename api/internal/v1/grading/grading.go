// Package grading implements the four-class physical grading schema used by
// the grain-physical-v1 model.
package grading

import (
	"encoding/json"

	"rice-grader/api/internal/grading/types"
)

// ModelVersion identifies this schema in analysis envelopes.
const ModelVersion = "grain-physical-v1"

const precision = 1

// Class indices emitted by the grain-physical model.
const (
	ClassWhole = iota
	ClassBroken
	ClassForeign
	ClassDiscolored
)

const (
	Premium     types.Grade = "Premium"
	Grade1      types.Grade = "Grade 1"
	Grade2      types.Grade = "Grade 2"
	Grade3      types.Grade = "Grade 3"
	Substandard types.Grade = "Substandard"
)

var labels = []string{"whole", "broken", "foreign", "discolored"}

type Counts struct {
	Whole      int `json:"whole"`
	Broken     int `json:"broken"`
	Discolored int `json:"discolored"`
	Foreign    int `json:"foreign"`
}

// Grains excludes foreign objects.
func (c Counts) Grains() int {
	return c.Whole + c.Broken + c.Discolored
}

type Result struct {
	Grade             types.Grade
	HeadRicePercent   types.Percent
	BrokenPercent     types.Percent
	DiscoloredPercent types.Percent
	ForeignObjects    int
	TotalGrains       int
	Counts            Counts
}

func (r Result) Graded() (types.Grade, bool) { return r.Grade, r.TotalGrains > 0 }
func (r Result) Grains() int                 { return r.TotalGrains }

func (r Result) MarshalJSON() ([]byte, error) {
	if r.TotalGrains == 0 {
		return json.Marshal(struct {
			Error string       `json:"error"`
			Grade *types.Grade `json:"grade"`
		}{Error: types.NoGrainsMessage})
	}
	return json.Marshal(struct {
		Grade             types.Grade   `json:"grade"`
		HeadRicePercent   types.Percent `json:"headRicePercent"`
		BrokenPercent     types.Percent `json:"brokenPercent"`
		DiscoloredPercent types.Percent `json:"discoloredPercent"`
		ForeignObjects    int           `json:"foreignObjects"`
		TotalGrains       int           `json:"totalGrains"`
		Counts            Counts        `json:"counts"`
	}{
		Grade:             r.Grade,
		HeadRicePercent:   r.HeadRicePercent,
		BrokenPercent:     r.BrokenPercent,
		DiscoloredPercent: r.DiscoloredPercent,
		ForeignObjects:    r.ForeignObjects,
		TotalGrains:       r.TotalGrains,
		Counts:            r.Counts,
	})
}

type Engine struct{}

func New() *Engine { return &Engine{} }

func (e *Engine) Version() string { return ModelVersion }

// Labels returns the class names indexed by class id.
func (e *Engine) Labels() []string { return append([]string(nil), labels...) }

func (e *Engine) Grade(dets []types.Detection) types.Result {
	return Evaluate(Tally(dets))
}

// Tally counts detections by class index. Unknown indices are ignored.
func Tally(dets []types.Detection) Counts {
	var c Counts
	for _, d := range dets {
		switch d.ClassID {
		case ClassWhole:
			c.Whole++
		case ClassBroken:
			c.Broken++
		case ClassForeign:
			c.Foreign++
		case ClassDiscolored:
			c.Discolored++
		}
	}
	return c
}

// Evaluate turns counts into percentages and a grade. Thresholds are checked
// against the unrounded percentages; rounding only affects the reported values.
func Evaluate(c Counts) Result {
	total := c.Grains()
	if total == 0 {
		return Result{Counts: c, ForeignObjects: c.Foreign}
	}

	head := types.Share(c.Whole, total)
	broken := types.Share(c.Broken, total)
	disc := types.Share(c.Discolored, total)

	return Result{
		Grade:             gradeFor(head, disc, c.Foreign),
		HeadRicePercent:   types.Round(head, precision),
		BrokenPercent:     types.Round(broken, precision),
		DiscoloredPercent: types.Round(disc, precision),
		ForeignObjects:    c.Foreign,
		TotalGrains:       total,
		Counts:            c,
	}
}

// gradeFor walks the table from the most stringent grade down.
func gradeFor(head, disc float64, foreign int) types.Grade {
	switch {
	case head >= 95.0 && disc <= 0.5 && foreign == 0:
		return Premium
	case head >= 80.0 && disc <= 2.0 && foreign <= 1:
		return Grade1
	case head >= 65.0 && disc <= 4.0:
		return Grade2
	case head >= 50.0 && disc <= 8.0:
		return Grade3
	default:
		return Substandard
	}
}
