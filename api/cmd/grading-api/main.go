package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rice-grader/api/internal/analyze"
	"rice-grader/api/internal/config"
	"rice-grader/api/internal/detect"
	"rice-grader/api/internal/detect/gemini"
	"rice-grader/api/internal/detect/inference"
	"rice-grader/api/internal/grading"
	handle "rice-grader/api/internal/handle"
	"rice-grader/api/internal/httpserver"
	v1 "rice-grader/api/internal/v1/grading"
	v2 "rice-grader/api/internal/v2/grading"
)

func main() {
	cfg := config.Load()

	yolo := inference.New(cfg.InferenceURL)
	detectors := &detect.Detectors{
		Default: cfg.Detector,
		YOLO:    yolo,
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		g := gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
		defer g.Close()
		detectors.Gemini = g
	}
	if _, err := detectors.GetDetector(""); err != nil {
		log.Fatalf("detector: %v", err)
	}

	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := yolo.Health(ctx); err != nil {
			log.Printf("warning: inference service not available: %v", err)
		}
		cancel()
	}

	svc := analyze.New(grading.NewEngines(), detectors, cfg.ConfidenceThreshold, map[string]string{
		v1.ModelVersion: cfg.ModelV1,
		v2.ModelVersion: cfg.ModelV2,
	})

	h := handle.New(svc)
	h.MaxUploadBytes = cfg.MaxUploadBytes
	h.Timeout = cfg.DetectTimeout
	h.ExposeErrorDetail = cfg.ExposeErrorDetail

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.Root)
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/api/analyze/physical", h.AnalyzePhysical)
	mux.HandleFunc("/api/analyze/quality", h.AnalyzeQuality)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	log.Printf("rice grading api on %s; detector=%s inference=%s", addr, cfg.Detector, cfg.InferenceURL)
	handler := httpserver.WithRequestID(httpserver.CORS(cfg.CORSOrigins, mux))
	if err := httpserver.StartHTTP(ctx, addr, handler); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
