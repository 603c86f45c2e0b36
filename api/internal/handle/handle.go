package handle

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"rice-grader/api/internal/analyze"
)

type Handle struct {
	svc *analyze.Service

	MaxUploadBytes    int64
	Timeout           time.Duration
	ExposeErrorDetail bool
	TempDir           string // "" uses os.TempDir
}

func New(svc *analyze.Service) *Handle {
	return &Handle{
		svc:               svc,
		MaxUploadBytes:    20 << 20,
		Timeout:           60 * time.Second,
		ExposeErrorDetail: true,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

// Root answers GET / with a short banner.
func (h *Handle) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hum.AI Rice Grading API", "status": "running"})
}

func (h *Handle) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
