// Package inference talks to a model-serving sidecar that runs the trained
// YOLO grain models.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"rice-grader/api/internal/detect"
	"rice-grader/api/internal/grading/types"
)

type Engine struct {
	BaseURL string
	httpc   *http.Client

	mu     sync.Mutex
	labels map[string][]string // model -> class names, loaded on first use
}

func New(baseURL string) *Engine {
	return &Engine{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpc:   &http.Client{Timeout: 120 * time.Second},
		labels:  map[string][]string{},
	}
}

func (e *Engine) Name() string { return "yolo" }

type predictResponse struct {
	Detections []struct {
		ClassID    *int    `json:"class_id"`
		ClassName  string  `json:"class_name"`
		Confidence float64 `json:"confidence"`
	} `json:"detections"`
}

func (p predictResponse) detections() []types.Detection {
	out := make([]types.Detection, 0, len(p.Detections))
	for _, d := range p.Detections {
		id := -1
		if d.ClassID != nil {
			id = *d.ClassID
		}
		out = append(out, types.Detection{ClassID: id, Label: d.ClassName, Confidence: d.Confidence})
	}
	return out
}

// Detect uploads the image for inference with the given model. The sidecar
// is asked to apply the threshold; it is applied again here in case it
// does not.
func (e *Engine) Detect(ctx context.Context, imagePath string, opt detect.Options) ([]types.Detection, error) {
	if e.BaseURL == "" {
		return nil, fmt.Errorf("INFERENCE_URL is empty")
	}
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(img); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.WriteField("model", opt.Model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if err := writer.WriteField("conf", strconv.FormatFloat(opt.Threshold, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("write conf field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/predict", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("inference %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	raw := out.detections()
	labels := opt.Labels
	if needsNames(raw) {
		names, err := e.Labels(ctx, opt.Model)
		if err != nil {
			return nil, err
		}
		labels = names
	}
	dets := detect.ResolveClasses(raw, labels)
	return detect.FilterByConfidence(dets, opt.Threshold), nil
}

func needsNames(dets []types.Detection) bool {
	for _, d := range dets {
		if strings.TrimSpace(d.Label) == "" {
			return true
		}
	}
	return false
}

// Labels returns the class names of a model, fetching them from the sidecar
// the first time they are needed.
func (e *Engine) Labels(ctx context.Context, model string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if names, ok := e.labels[model]; ok {
		return names, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.BaseURL+"/models/"+url.PathEscape(model)+"/names", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load class names: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("class names %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var out struct {
		Names map[string]string `json:"names"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode class names: %w", err)
	}
	names, err := indexNames(out.Names)
	if err != nil {
		return nil, err
	}
	e.labels[model] = names
	return names, nil
}

// indexNames turns {"0":"whole","1":"broken"} into a slice indexed by id.
func indexNames(m map[string]string) ([]string, error) {
	ids := make([]int, 0, len(m))
	for k := range m {
		id, err := strconv.Atoi(k)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("bad class id %q", k)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	if len(ids) == 0 {
		return []string{}, nil
	}
	names := make([]string, ids[len(ids)-1]+1)
	for _, id := range ids {
		names[id] = m[strconv.Itoa(id)]
	}
	return names, nil
}

// Health checks that the sidecar is reachable.
func (e *Engine) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := e.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
