package gemini

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rice-grader/api/internal/detect"
	"rice-grader/api/internal/grading/types"
)

var nct = []string{"Whole", "Broken", "Chalky", "Discolored", "Immature", "Foreign Object", "Clean"}

func TestParseDetections(t *testing.T) {
	t.Parallel()

	txt := "```json\n" + `{"detections":[
		{"label":"Whole","confidence":0.9},
		{"label":" Foreign Object ","confidence":0.5},
		{"label":"chalky","confidence":0.4},
		{"label":"pebble","confidence":0.3}
	]}` + "\n```"

	got, err := ParseDetections(txt, nct)
	require.NoError(t, err)
	assert.Equal(t, []types.Detection{
		{ClassID: 0, Label: "Whole", Confidence: 0.9},
		{ClassID: 5, Label: "Foreign Object", Confidence: 0.5},
		{ClassID: -1, Label: "chalky", Confidence: 0.4},
		{ClassID: -1, Label: "pebble", Confidence: 0.3},
	}, got)
}

func TestParseDetections_Empty(t *testing.T) {
	t.Parallel()

	got, err := ParseDetections(`{"detections":[]}`, nct)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseDetections_BadJSON(t *testing.T) {
	t.Parallel()

	_, err := ParseDetections("I see 12 grains of rice.", nct)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad JSON")
}

func TestSystemPrompt(t *testing.T) {
	t.Parallel()

	p := SystemPrompt(nct)
	for _, l := range nct {
		assert.Contains(t, p, "- "+l+"\n")
	}
	assert.Contains(t, p, "JSON")
}

func TestDetect_NoAPIKey(t *testing.T) {
	t.Parallel()

	img := filepath.Join(t.TempDir(), "g.jpg")
	require.NoError(t, os.WriteFile(img, []byte{0xFF, 0xD8, 0xFF}, 0o600))

	e := New("  ", "gemini-2.5-flash")
	_, err := e.Detect(context.Background(), img, detect.Options{Labels: nct})
	require.EqualError(t, err, "GEMINI_API_KEY is empty")
	assert.NoError(t, e.Close())
}

func TestDetect_MissingImage(t *testing.T) {
	t.Parallel()

	_, err := New("key", "m").Detect(context.Background(), filepath.Join(t.TempDir(), "none.jpg"), detect.Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFirstText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", firstText(nil))
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			nil,
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("  ")}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(` {"detections":[]} `)}}},
		},
	}
	assert.Equal(t, `{"detections":[]}`, firstText(resp))
}
