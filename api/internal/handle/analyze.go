package handle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"rice-grader/api/internal/analyze"
	"rice-grader/api/internal/detect"
	"rice-grader/api/internal/grading"
	"rice-grader/api/internal/httpserver"
	"rice-grader/api/internal/util"
)

const (
	formField       = "image"
	invalidFileType = "Invalid file type. Please upload an image."
	redactedDetail  = "analysis failed"
)

// AnalyzePhysical grades an upload with the four-class physical schema.
func (h *Handle) AnalyzePhysical(w http.ResponseWriter, r *http.Request) {
	h.analyze(w, r, "v1")
}

// AnalyzeQuality grades an upload with the NCT seven-class schema.
func (h *Handle) AnalyzeQuality(w http.ResponseWriter, r *http.Request) {
	h.analyze(w, r, "v2")
}

func (h *Handle) analyze(w http.ResponseWriter, r *http.Request, schema string) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", h.MaxUploadBytes))
			return
		}
		writeDetail(w, http.StatusBadRequest, "Failed to parse form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(formField)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No image uploaded")
		return
	}
	defer file.Close()

	if !util.IsImageType(header.Header.Get("Content-Type")) {
		writeDetail(w, http.StatusBadRequest, invalidFileType)
		return
	}

	dir, err := os.MkdirTemp(h.TempDir, "grain-upload-*")
	if err != nil {
		h.fail(w, r, fmt.Errorf("create temp dir: %w", err))
		return
	}
	defer os.RemoveAll(dir)

	filename := header.Filename
	path, err := saveUpload(dir, filename, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	report, err := h.svc.Analyze(ctx, analyze.Request{
		Schema:    schema,
		Detector:  r.URL.Query().Get("detector"),
		ImagePath: path,
		Filename:  filename,
	})
	if err != nil {
		if errors.Is(err, detect.ErrUnknownDetector) || errors.Is(err, grading.ErrUnknownSchema) {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// saveUpload stores the upload under its base name inside dir.
func saveUpload(dir, filename string, src multipart.File) (string, error) {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		name = "upload"
	}
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

// deadline honours X-Request-Timeout or ?timeoutSec= (seconds), falling back
// to the configured timeout.
func (h *Handle) deadline(r *http.Request) time.Duration {
	for _, ts := range []string{r.Header.Get("X-Request-Timeout"), r.URL.Query().Get("timeoutSec")} {
		if ts == "" {
			continue
		}
		if v, _ := strconv.Atoi(ts); v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	if h.Timeout > 0 {
		return h.Timeout
	}
	return 60 * time.Second
}

func (h *Handle) fail(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("analyze failed id=%s: %v", httpserver.RequestID(r.Context()), err)
	detail := err.Error()
	if !h.ExposeErrorDetail {
		detail = redactedDetail
	}
	writeDetail(w, http.StatusInternalServerError, detail)
}
