package inference

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rice-grader/api/internal/detect"
	v1 "rice-grader/api/internal/v1/grading"
	v2 "rice-grader/api/internal/v2/grading"
)

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, 0o600))
	return path
}

type sidecar struct {
	nameCalls    atomic.Int32
	predictCalls atomic.Int32
	gotModel     atomic.Value
	gotConf      atomic.Value
	detections   string
}

func (s *sidecar) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		s.predictCalls.Add(1)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			b, _ := io.ReadAll(f)
			assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, b)
		}
		s.gotModel.Store(r.FormValue("model"))
		s.gotConf.Store(r.FormValue("conf"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, s.detections)
	})
	mux.HandleFunc("/models/grain_physical/names", func(w http.ResponseWriter, r *http.Request) {
		s.nameCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"names": map[string]string{"0": "whole", "1": "broken", "2": "foreign", "3": "discolored"},
		})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func TestDetect_ResolvesAndFilters(t *testing.T) {
	t.Parallel()

	sc := &sidecar{detections: `{"detections":[
		{"class_id":0,"class_name":"whole","confidence":0.91},
		{"class_id":1,"class_name":"broken","confidence":0.40},
		{"class_id":3,"class_name":"discolored","confidence":0.10},
		{"class_name":"Damaged","confidence":0.70}
	]}`}
	srv := httptest.NewServer(sc.handler(t))
	defer srv.Close()

	e := New(srv.URL + "/")
	dets, err := e.Detect(context.Background(), writeImage(t), detect.Options{
		Threshold: 0.25,
		Model:     "grain_physical",
		Labels:    []string{"whole", "broken", "foreign", "discolored"},
	})
	require.NoError(t, err)
	require.Len(t, dets, 3)

	assert.Equal(t, 0, dets[0].ClassID)
	assert.Equal(t, 1, dets[1].ClassID)
	assert.Equal(t, -1, dets[2].ClassID, "missing class_id must not default to class 0")
	assert.Equal(t, "Damaged", dets[2].Label)

	assert.Equal(t, "grain_physical", sc.gotModel.Load())
	assert.Equal(t, "0.25", sc.gotConf.Load())
	assert.Equal(t, int32(0), sc.nameCalls.Load(), "names are only fetched when labels are missing")
}

func TestDetect_LoadsNamesOnce(t *testing.T) {
	t.Parallel()

	sc := &sidecar{detections: `{"detections":[
		{"class_id":0,"confidence":0.9},
		{"class_id":2,"confidence":0.9}
	]}`}
	srv := httptest.NewServer(sc.handler(t))
	defer srv.Close()

	e := New(srv.URL)
	img := writeImage(t)
	for i := 0; i < 3; i++ {
		dets, err := e.Detect(context.Background(), img, detect.Options{Threshold: 0.25, Model: "grain_physical"})
		require.NoError(t, err)
		require.Len(t, dets, 2)
		assert.Equal(t, "whole", dets[0].Label)
		assert.Equal(t, "foreign", dets[1].Label)
	}
	assert.Equal(t, int32(3), sc.predictCalls.Load())
	assert.Equal(t, int32(1), sc.nameCalls.Load())
}

func TestDetect_ReportedClassIDIsCounted(t *testing.T) {
	t.Parallel()

	// the model's own names disagree with the grader's table; the id decides
	sc := &sidecar{detections: `{"detections":[
		{"class_id":0,"class_name":"whole","confidence":0.9},
		{"class_id":2,"class_name":"discolored","confidence":0.9}
	]}`}
	srv := httptest.NewServer(sc.handler(t))
	defer srv.Close()

	eng := v1.New()
	dets, err := New(srv.URL).Detect(context.Background(), writeImage(t), detect.Options{
		Threshold: 0.25,
		Model:     "grain_physical",
		Labels:    eng.Labels(),
	})
	require.NoError(t, err)
	assert.Equal(t, v1.Counts{Whole: 1, Foreign: 1}, v1.Tally(dets))
}

func TestDetect_QualityLabelsMatchExactly(t *testing.T) {
	t.Parallel()

	sc := &sidecar{detections: `{"detections":[
		{"class_name":"whole","confidence":0.9},
		{"class_name":"damaged","confidence":0.9},
		{"class_name":"Damaged","confidence":0.9},
		{"class_id":0,"class_name":"Whole","confidence":0.9}
	]}`}
	srv := httptest.NewServer(sc.handler(t))
	defer srv.Close()

	dets, err := New(srv.URL).Detect(context.Background(), writeImage(t), detect.Options{
		Threshold: 0.25,
		Model:     "grain_quality_detector",
		Labels:    v2.New().Labels(),
	})
	require.NoError(t, err)
	assert.Equal(t, v2.Counts{Whole: 1, Discolored: 1}, v2.Tally(dets))
	assert.Equal(t, int32(0), sc.nameCalls.Load())
}

func TestLabels_EscapesModelName(t *testing.T) {
	t.Parallel()

	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.EscapedPath())
		_, _ = io.WriteString(w, `{"names":{"0":"whole"}}`)
	}))
	defer srv.Close()

	names, err := New(srv.URL).Labels(context.Background(), "grain physical/v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"whole"}, names)
	assert.Equal(t, "/models/grain%20physical%2Fv1/names", gotPath.Load())
}

func TestDetect_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Detect(context.Background(), writeImage(t), detect.Options{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inference 503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestDetect_MissingImage(t *testing.T) {
	t.Parallel()

	_, err := New("http://127.0.0.1:1").Detect(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"), detect.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDetect_NoBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New("").Detect(context.Background(), "x.jpg", detect.Options{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	sc := &sidecar{}
	srv := httptest.NewServer(sc.handler(t))
	defer srv.Close()
	assert.NoError(t, New(srv.URL).Health(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()
	assert.Error(t, New(down.URL).Health(context.Background()))
}

func TestIndexNames(t *testing.T) {
	t.Parallel()

	names, err := indexNames(map[string]string{"1": "b", "0": "a", "3": "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "", "d"}, names)

	_, err = indexNames(map[string]string{"x": "a"})
	assert.Error(t, err)

	names, err = indexNames(nil)
	require.NoError(t, err)
	assert.Empty(t, names)
}
