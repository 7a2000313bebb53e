package transcription

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/your-org/mediascribe/internal/batch"
	"github.com/your-org/mediascribe/internal/domain"
	"github.com/your-org/mediascribe/internal/export"
	"github.com/your-org/mediascribe/internal/staging"
)

// HTTPHandler exposes REST endpoints for batch runs.
type HTTPHandler struct {
	service      *Service
	logger       *zap.Logger
	maxSizeBytes int64
	formMemBytes int64
	router       chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(service *Service, logger *zap.Logger, maxSizeBytes, formMemBytes int64) *HTTPHandler {
	h := &HTTPHandler{
		service:      service,
		logger:       logger,
		maxSizeBytes: maxSizeBytes,
		formMemBytes: formMemBytes,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/healthz", h.handleHealth)
	r.Route("/api/v1/runs", func(r chi.Router) {
		r.Post("/", h.handleCreateRun)
		r.Get("/{id}", h.handleGetRun)
		r.Get("/{id}/events", h.handleEvents)
		r.Get("/{id}/exports/{kind}", h.handleExport)
	})

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HTTPHandler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > 0 && r.ContentLength > h.maxSizeBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSizeBytes)

	if err := r.ParseMultipartForm(h.formMemBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	op, err := domain.ParseOperation(r.FormValue("operation"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format, err := domain.ParseOutputFormat(r.FormValue("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	individual := false
	if raw := r.FormValue("individual"); raw != "" {
		if individual, err = strconv.ParseBool(raw); err != nil {
			writeError(w, http.StatusBadRequest, "individual must be a boolean")
			return
		}
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "files field is required")
		return
	}

	var (
		items    []domain.MediaItem
		rejected []domain.Notice
	)
	for _, header := range headers {
		if !staging.AcceptedExtension(header.Filename) {
			rejected = append(rejected, domain.Notice{
				SourceName: header.Filename,
				Kind:       domain.NoticeRejectedUpload,
				Cause:      fmt.Sprintf("extension %q not accepted", filepath.Ext(header.Filename)),
			})
			continue
		}
		item, err := readUpload(header)
		if err != nil {
			h.logger.Warn("read upload failed", zap.String("file", header.Filename), zap.Error(err))
			rejected = append(rejected, domain.Notice{
				SourceName: header.Filename,
				Kind:       domain.NoticeRejectedUpload,
				Cause:      err.Error(),
			})
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "no acceptable audio files",
			"rejected": rejected,
		})
		return
	}

	run, err := h.service.StartRun(StartOptions{
		Request: domain.ProcessingRequest{
			Operation:      op,
			Format:         format,
			SourceLanguage: r.FormValue("language"),
		},
		Items:      items,
		Individual: individual,
		Rejected:   rejected,
	})
	if err != nil {
		if errors.Is(err, batch.ErrRegistryFull) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.logger.Error("start run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "start run failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":   run.ID,
		"status":   run.Status,
		"total":    run.Total,
		"rejected": rejected,
	})
}

func readUpload(header *multipart.FileHeader) (domain.MediaItem, error) {
	file, err := header.Open()
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("read upload: %w", err)
	}
	return domain.MediaItem{
		Name:     header.Filename,
		Data:     data,
		MimeType: header.Header.Get("Content-Type"),
	}, nil
}

func (h *HTTPHandler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Run(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *HTTPHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = v
	}

	events, err := h.service.Events(chi.URLParam(r, "id"), since)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Run(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if run.Status != domain.RunStatusCompleted {
		writeError(w, http.StatusConflict, "run not completed")
		return
	}

	// The daily text and zip files are replaced by every run, so a run's own
	// copy is rendered from its results. The table is cumulative per day.
	var (
		path   string
		ctype  string
		render func(io.Writer) error
	)
	switch chi.URLParam(r, "kind") {
	case "table":
		path = run.Exports.Table
	case "text":
		path = run.Exports.Text
		ctype = "text/plain; charset=utf-8"
		render = func(out io.Writer) error { return export.WriteText(out, run.Results) }
	case "zip":
		path = run.Exports.Individual
		ctype = "application/zip"
		render = func(out io.Writer) error { return export.WriteIndividual(out, run.Results, run.FinishedAt) }
	default:
		writeError(w, http.StatusBadRequest, "kind must be table, text or zip")
		return
	}
	if path == "" {
		writeError(w, http.StatusNotFound, "export not available")
		return
	}

	if render == nil {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
		http.ServeFile(w, r, path)
		return
	}

	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		h.logger.Error("render export failed", zap.String("run_id", run.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "render export failed")
		return
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", runFileName(path, run.ID)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// runFileName suffixes the daily export name with the run ID.
func runFileName(dailyPath, runID string) string {
	base := filepath.Base(dailyPath)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_" + runID + ext
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
