package grading

import (
	"errors"
	"fmt"
	"strings"

	"rice-grader/api/internal/grading/types"
	v1 "rice-grader/api/internal/v1/grading"
	v2 "rice-grader/api/internal/v2/grading"
)

var ErrUnknownSchema = errors.New("unknown grading schema")

// Engine grades one image worth of detections under a fixed class taxonomy.
type Engine interface {
	Version() string
	Labels() []string
	Grade(dets []types.Detection) types.Result
}

type Engines struct {
	V1 Engine
	V2 Engine
}

func NewEngines() *Engines {
	return &Engines{
		V1: v1.New(),
		V2: v2.New(),
	}
}

// GetEngine resolves a schema name or model version to its engine.
func (e *Engines) GetEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "v1", "physical", v1.ModelVersion:
		return e.V1, nil
	case "v2", "nct", "quality", v2.ModelVersion:
		return e.V2, nil
	default:
		return nil, fmt.Errorf("%w %q; use 'v1' or 'v2'", ErrUnknownSchema, name)
	}
}
