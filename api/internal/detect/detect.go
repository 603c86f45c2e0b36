// Package detect defines the object-detection collaborator consumed by the
// grading engines. Detectors report labelled grains for an image on disk and
// apply their own confidence cutoff; graders never look at confidence.
package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rice-grader/api/internal/grading/types"
)

// DefaultThreshold matches the cutoff the grading models were tuned with.
const DefaultThreshold = 0.25

var ErrUnknownDetector = errors.New("unknown detector")

type Options struct {
	Threshold float64  // detections below this confidence are dropped
	Model     string   // model name on the inference backend
	Labels    []string // class names indexed by class id
}

type Detector interface {
	Name() string
	Detect(ctx context.Context, imagePath string, opt Options) ([]types.Detection, error)
}

// FilterByConfidence drops detections whose confidence is below threshold.
func FilterByConfidence(dets []types.Detection, threshold float64) []types.Detection {
	out := make([]types.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence < threshold {
			continue
		}
		out = append(out, d)
	}
	return out
}

// ResolveClasses reconciles ClassID and Label against the label table. A
// reported id is kept as is and only fills an empty label; a missing id (-1)
// is looked up by exact label. Unknown labels are kept as reported so graders
// can normalize aliases.
func ResolveClasses(dets []types.Detection, labels []string) []types.Detection {
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	out := make([]types.Detection, len(dets))
	for i, d := range dets {
		d.Label = strings.TrimSpace(d.Label)
		switch {
		case d.ClassID >= 0:
			if d.Label == "" && d.ClassID < len(labels) {
				d.Label = labels[d.ClassID]
			}
		case d.Label != "":
			if id, ok := index[d.Label]; ok {
				d.ClassID = id
			}
		}
		out[i] = d
	}
	return out
}

type Detectors struct {
	Default string
	YOLO    Detector
	Gemini  Detector
}

// GetDetector resolves a detector by name; an empty name selects the default.
func (d *Detectors) GetDetector(name string) (Detector, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = strings.ToLower(d.Default)
	}
	var det Detector
	switch name {
	case "yolo", "inference":
		det = d.YOLO
	case "gemini":
		det = d.Gemini
	default:
		return nil, fmt.Errorf("%w %q; use 'yolo' or 'gemini'", ErrUnknownDetector, name)
	}
	if det == nil {
		return nil, fmt.Errorf("%w %q: not configured", ErrUnknownDetector, name)
	}
	return det, nil
}
