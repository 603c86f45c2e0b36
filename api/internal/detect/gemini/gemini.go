// Package gemini asks a Gemini vision model to label the grains in a photo.
// It is a fallback for deployments without the YOLO sidecar.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"rice-grader/api/internal/detect"
	"rice-grader/api/internal/grading/types"
	"rice-grader/api/internal/util"
)

const attempts = 3

type Engine struct {
	APIKey string
	Model  string

	mu sync.Mutex
	cl *genai.Client
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// client creates the genai client on first use and reuses it afterwards.
func (e *Engine) client(ctx context.Context) (*genai.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cl != nil {
		return e.cl, nil
	}
	if e.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return nil, err
	}
	e.cl = cl
	return cl, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cl == nil {
		return nil
	}
	err := e.cl.Close()
	e.cl = nil
	return err
}

func (e *Engine) Detect(ctx context.Context, imagePath string, opt detect.Options) ([]types.Detection, error) {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	cl, err := e.client(ctx)
	if err != nil {
		return nil, err
	}

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return nil, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt(opt.Labels))},
	}

	parts := []genai.Part{
		genai.Text(`Return strict JSON: {"detections":[{"label":string,"confidence":number}]}.`),
		&genai.Blob{MIMEType: util.PickMIME("", "", img), Data: img},
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		txt := firstText(resp)
		if txt == "" {
			return nil, fmt.Errorf("gemini detect: empty response")
		}
		dets, err := ParseDetections(txt, opt.Labels)
		if err != nil {
			return nil, err
		}
		return detect.FilterByConfidence(dets, opt.Threshold), nil
	}
	return nil, fmt.Errorf("gemini detect: %w", lastErr)
}

// SystemPrompt instructs the model to label every grain with one of labels.
func SystemPrompt(labels []string) string {
	var b strings.Builder
	b.WriteString("You inspect photos of milled rice for quality grading.\n")
	b.WriteString("Find every individual kernel and every non-grain particle in the image.\n")
	b.WriteString("Label each object with exactly one of these classes:\n")
	for _, l := range labels {
		fmt.Fprintf(&b, "- %s\n", l)
	}
	b.WriteString("Give each object a confidence between 0 and 1. ")
	b.WriteString("Report one entry per object, do not aggregate counts, output JSON only.")
	return b.String()
}

// ParseDetections decodes the model reply and maps labels onto class ids.
func ParseDetections(txt string, labels []string) ([]types.Detection, error) {
	txt = util.StripCodeFences(strings.TrimSpace(txt))
	var out struct {
		Detections []struct {
			Label      string  `json:"label"`
			Confidence float64 `json:"confidence"`
		} `json:"detections"`
	}
	if err := json.Unmarshal([]byte(txt), &out); err != nil {
		return nil, fmt.Errorf("gemini detect: bad JSON: %w", err)
	}
	dets := make([]types.Detection, 0, len(out.Detections))
	for _, d := range out.Detections {
		dets = append(dets, types.Detection{ClassID: -1, Label: d.Label, Confidence: d.Confidence})
	}
	return detect.ResolveClasses(dets, labels), nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				if s := strings.TrimSpace(string(t)); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
