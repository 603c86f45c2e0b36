// Package grading implements the seven-class NCT grading schema used by the
// grain quality detector.
package grading

import (
	"encoding/json"

	"rice-grader/api/internal/grading/types"
)

// ModelVersion identifies this schema in analysis envelopes.
const ModelVersion = "grain-quality-nct-v2"

const precision = 2

// Class names emitted by the grain quality detector.
const (
	LabelWhole         = "Whole"
	LabelBroken        = "Broken"
	LabelChalky        = "Chalky"
	LabelDiscolored    = "Discolored"
	LabelImmature      = "Immature"
	LabelForeignObject = "Foreign Object"
	LabelClean         = "Clean"

	// LabelDamaged is an alias some model revisions use for discolored grains.
	LabelDamaged = "Damaged"
)

const (
	Premium types.Grade = "PREMIUM"
	Grade1  types.Grade = "GRADE 1"
	Grade2  types.Grade = "GRADE 2"
	Grade3  types.Grade = "GRADE 3"
	Fail    types.Grade = "FAIL / BELOW GRADE 3"
)

var labels = []string{
	LabelWhole,
	LabelBroken,
	LabelChalky,
	LabelDiscolored,
	LabelImmature,
	LabelForeignObject,
	LabelClean,
}

type Counts struct {
	Whole         int `json:"whole"`
	Broken        int `json:"broken"`
	Chalky        int `json:"chalky"`
	Immature      int `json:"immature"`
	Discolored    int `json:"discolored"`
	Clean         int `json:"clean"`
	ForeignObject int `json:"foreignObject"`
}

// Grains excludes foreign objects.
func (c Counts) Grains() int {
	return c.Whole + c.Broken + c.Chalky + c.Discolored + c.Immature + c.Clean
}

type Result struct {
	Grade             types.Grade
	HeadRicePercent   types.Percent
	BrokenPercent     types.Percent
	ChalkyPercent     types.Percent
	ImmaturePercent   types.Percent
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
			Error       string       `json:"error"`
			Grade       *types.Grade `json:"grade"`
			TotalGrains int          `json:"totalGrains"`
		}{Error: types.NoGrainsMessage})
	}
	return json.Marshal(struct {
		Grade             types.Grade   `json:"grade"`
		HeadRicePercent   types.Percent `json:"headRicePercent"`
		BrokenPercent     types.Percent `json:"brokenPercent"`
		ChalkyPercent     types.Percent `json:"chalkyPercent"`
		ImmaturePercent   types.Percent `json:"immaturePercent"`
		DiscoloredPercent types.Percent `json:"discoloredPercent"`
		ForeignObjects    int           `json:"foreignObjects"`
		TotalGrains       int           `json:"totalGrains"`
		Counts            Counts        `json:"counts"`
	}{
		Grade:             r.Grade,
		HeadRicePercent:   r.HeadRicePercent,
		BrokenPercent:     r.BrokenPercent,
		ChalkyPercent:     r.ChalkyPercent,
		ImmaturePercent:   r.ImmaturePercent,
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

// Tally counts detections by class name. Damaged is folded into Discolored;
// any other unknown name is ignored.
func Tally(dets []types.Detection) Counts {
	var c Counts
	for _, d := range dets {
		switch d.Label {
		case LabelWhole:
			c.Whole++
		case LabelBroken:
			c.Broken++
		case LabelChalky:
			c.Chalky++
		case LabelDiscolored, LabelDamaged:
			c.Discolored++
		case LabelImmature:
			c.Immature++
		case LabelForeignObject:
			c.ForeignObject++
		case LabelClean:
			c.Clean++
		}
	}
	return c
}

type shares struct {
	head, broken, chalky, immature, discolored float64
}

// Evaluate turns counts into percentages and an NCT grade. Thresholds are
// checked against the unrounded percentages.
func Evaluate(c Counts) Result {
	total := c.Grains()
	if total == 0 {
		return Result{Counts: c, ForeignObjects: c.ForeignObject}
	}

	s := shares{
		head:       types.Share(c.Whole+c.Clean, total),
		broken:     types.Share(c.Broken, total),
		chalky:     types.Share(c.Chalky, total),
		immature:   types.Share(c.Immature, total),
		discolored: types.Share(c.Discolored, total),
	}

	return Result{
		Grade:             gradeFor(s, c.ForeignObject),
		HeadRicePercent:   types.Round(s.head, precision),
		BrokenPercent:     types.Round(s.broken, precision),
		ChalkyPercent:     types.Round(s.chalky, precision),
		ImmaturePercent:   types.Round(s.immature, precision),
		DiscoloredPercent: types.Round(s.discolored, precision),
		ForeignObjects:    c.ForeignObject,
		TotalGrains:       total,
		Counts:            c,
	}
}

// gradeFor walks the NCT table from PREMIUM down; the first match wins.
func gradeFor(s shares, foreign int) types.Grade {
	switch {
	case foreign == 0 && s.discolored <= 0.5 && s.head >= 57.0 && s.chalky < 2.0 && s.immature < 2.0:
		return Premium
	case foreign == 0 && s.discolored <= 2.0 && s.head >= 48.0 && s.chalky <= 5.0 && s.immature <= 5.0:
		return Grade1
	case s.head >= 39.0 && s.chalky <= 10.0 && s.immature <= 10.0:
		return Grade2
	case s.head >= 30.0 && s.chalky <= 15.0 && s.immature <= 15.0:
		return Grade3
	default:
		return Fail
	}
}
