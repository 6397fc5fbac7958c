// Package handler contains the HTTP handlers for the public API.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/drishti-ai/drishti/internal/api/response"
	"github.com/drishti-ai/drishti/internal/ingest"
	"github.com/drishti-ai/drishti/internal/pipeline"
	"github.com/drishti-ai/drishti/pkg/models"
)

// maxUploadBytes caps the multipart read before modality-specific
// ceilings apply.
const maxUploadBytes = 256 << 20

// Analyzer defines the pipeline surface the handlers depend on.
type Analyzer interface {
	SubmitAndWait(ctx context.Context, p pipeline.SubmitParams) (*models.AnalysisRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.AnalysisRequest, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// NewAnalyzeHandler returns the handler for POST /v1/analyze. The
// submission completes synchronously when the pipeline finishes inside
// the latency budget (200 with the full result); otherwise the caller
// gets 202 with a pending record to poll.
func NewAnalyzeHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				response.Error(w, http.StatusRequestEntityTooLarge,
					"PAYLOAD_TOO_LARGE", "Upload exceeds the maximum size", nil)
				return
			}
			response.Error(w, http.StatusBadRequest,
				"INVALID_PAYLOAD", "Request must be multipart/form-data with a file field", nil)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest,
				"INVALID_PAYLOAD", "file field is required", nil)
			return
		}
		defer file.Close()

		payload, err := io.ReadAll(file)
		if err != nil {
			response.Error(w, http.StatusBadRequest,
				"INVALID_PAYLOAD", "Could not read uploaded file", nil)
			return
		}

		params := pipeline.SubmitParams{
			Payload:      payload,
			DeclaredType: r.FormValue("type"),
			Language:     r.FormValue("language"),
			FileName:     header.Filename,
		}
		if captions, ok := r.MultipartForm.Value["caption"]; ok && len(captions) > 0 {
			params.Caption = &captions[0]
		}

		req, err := svc.SubmitAndWait(r.Context(), params)
		if err != nil {
			writeSubmitError(w, err)
			return
		}

		if req.Terminal() {
			response.JSON(w, req)
			return
		}
		response.Accepted(w, req)
	}
}

// NewPollHandler returns the handler for GET /v1/analyze/{requestID}.
func NewPollHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseRequestID(w, r)
		if !ok {
			return
		}

		req, err := svc.Get(r.Context(), id)
		if errors.Is(err, pipeline.ErrNotFound) {
			response.Error(w, http.StatusNotFound,
				"NOT_FOUND", "Unknown or expired request id", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, req)
	}
}

// NewCancelHandler returns the handler for DELETE /v1/analyze/{requestID}.
// Cancelling a request that already reached a terminal state is a no-op.
func NewCancelHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseRequestID(w, r)
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), id); err != nil {
			if errors.Is(err, pipeline.ErrNotFound) {
				response.Error(w, http.StatusNotFound,
					"NOT_FOUND", "Unknown or expired request id", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		req, err := svc.Get(r.Context(), id)
		if err != nil {
			response.Accepted(w, map[string]any{"request_id": id})
			return
		}
		response.Accepted(w, req)
	}
}

func parseRequestID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			"INVALID_REQUEST", "request id must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrPayloadTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge,
			"PAYLOAD_TOO_LARGE", err.Error(), nil)
	case errors.Is(err, ingest.ErrInvalidPayload):
		response.Error(w, http.StatusBadRequest,
			"INVALID_PAYLOAD", err.Error(), nil)
	default:
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
