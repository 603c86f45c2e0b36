// Package analyze runs one uploaded image through a detector and a grading
// engine and stamps the result with request metadata.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rice-grader/api/internal/detect"
	"rice-grader/api/internal/grading"
	"rice-grader/api/internal/grading/types"
)

// TimestampLayout is ISO-8601 in UTC with microseconds.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

type Service struct {
	Engines   *grading.Engines
	Detectors *detect.Detectors
	Threshold float64
	Models    map[string]string // model version -> backend model name

	Now func() time.Time
}

func New(engines *grading.Engines, detectors *detect.Detectors, threshold float64, models map[string]string) *Service {
	if threshold <= 0 {
		threshold = detect.DefaultThreshold
	}
	return &Service{
		Engines:   engines,
		Detectors: detectors,
		Threshold: threshold,
		Models:    models,
		Now:       time.Now,
	}
}

type Request struct {
	Schema    string // v1 | v2, or a model version
	Detector  string // empty selects the configured default
	ImagePath string
	Filename  string
}

type Report struct {
	Result       types.Result
	Timestamp    time.Time
	ModelVersion string
	Filename     string
}

// MarshalJSON emits the result's own fields plus the envelope metadata.
func (r Report) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(r.Result)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	ts, _ := json.Marshal(r.Timestamp.UTC().Format(TimestampLayout))
	mv, _ := json.Marshal(r.ModelVersion)
	fn, _ := json.Marshal(r.Filename)
	m["timestamp"] = ts
	m["modelVersion"] = mv
	m["filename"] = fn
	return json.Marshal(m)
}

// Analyze grades a single image. Detector failures are returned wrapped but
// otherwise untouched.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	engine, err := s.Engines.GetEngine(req.Schema)
	if err != nil {
		return nil, err
	}
	det, err := s.Detectors.GetDetector(req.Detector)
	if err != nil {
		return nil, err
	}

	dets, err := det.Detect(ctx, req.ImagePath, detect.Options{
		Threshold: s.Threshold,
		Model:     s.Models[engine.Version()],
		Labels:    engine.Labels(),
	})
	if err != nil {
		return nil, fmt.Errorf("%s detect: %w", det.Name(), err)
	}

	return &Report{
		Result:       engine.Grade(dets),
		Timestamp:    s.Now().UTC(),
		ModelVersion: engine.Version(),
		Filename:     req.Filename,
	}, nil
}
