// Package handler exposes the analysis HTTP API.
package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/licenselens/licenselens-backend/internal/analysis/domain"
	"github.com/licenselens/licenselens-backend/pkg/errors"
	"github.com/licenselens/licenselens-backend/pkg/httputil"
	"github.com/licenselens/licenselens-backend/pkg/logger"
)

// Service is the analysis use case layer consumed by the HTTP handlers.
type Service interface {
	Analyze(ctx context.Context, imageData []byte, instructions string) (*domain.Analysis, error)
	GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error)
	ListAnalyses(ctx context.Context, limit int) ([]*domain.Analysis, error)
}

// Handler handles analysis HTTP requests.
type Handler struct {
	service       Service
	logger        *logger.Logger
	maxUploadSize int64
}

// NewHandler creates a new analysis handler.
func NewHandler(svc Service, log *logger.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		service:       svc,
		logger:        log.WithComponent("analysis-handler"),
		maxUploadSize: maxUploadSize,
	}
}

// RegisterRoutes registers the analysis routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analyses", func(r chi.Router) {
		r.Post("/", h.CreateAnalysis)
		r.Get("/", h.ListAnalyses)
		r.Get("/{id}", h.GetAnalysis)
		r.Get("/{id}/download", h.DownloadAnalysis)
	})
}

type createAnalysisRequest struct {
	Instructions string `validate:"required,max=4000"`
}

// CreateAnalysis accepts a multipart upload (image file + instructions) and
// runs one synchronous analysis. The response carries the completed record.
func (h *Handler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		httputil.Error(w, errors.BadRequest("invalid multipart form or upload too large"))
		return
	}

	req := createAnalysisRequest{Instructions: r.FormValue("instructions")}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		httputil.Error(w, errors.Unprocessable("NO_IMAGE", "no image file provided"))
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		httputil.Error(w, errors.BadRequest("failed to read uploaded file"))
		return
	}

	h.logger.Info().
		Str("filename", header.Filename).
		Int("bytes", len(imageData)).
		Msg("analysis requested")

	analysis, err := h.service.Analyze(r.Context(), imageData, req.Instructions)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, analysis)
}

// GetAnalysis returns a stored analysis by ID.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	analysis, err := h.service.GetAnalysis(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, analysis)
}

// ListAnalyses returns recent analyses, newest first.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.Error(w, errors.BadRequest("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	analyses, err := h.service.ListAnalyses(r.Context(), limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, analyses, &httputil.Meta{Total: int64(len(analyses))})
}

// DownloadAnalysis streams the analysis as a plain text attachment.
func (h *Handler) DownloadAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	analysis, err := h.service.GetAnalysis(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", domain.DownloadFilename))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(analysis.DownloadText()))
}
