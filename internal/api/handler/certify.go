package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/drishti-ai/drishti/internal/api/response"
	"github.com/drishti-ai/drishti/internal/store"
	"github.com/drishti-ai/drishti/pkg/models"
)

// CertIssuer defines the certificate operations the handlers depend on.
type CertIssuer interface {
	Certify(ctx context.Context, payload []byte, fileName string) (*models.Certificate, error)
	Verify(ctx context.Context, hash string) (*models.Certificate, error)
}

// NewCertifyHandler returns the handler for POST /v1/certify. The file
// is hashed and signed in-process; the payload itself is never stored.
func NewCertifyHandler(svc CertIssuer) http.HandlerFunc {
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
		if len(payload) == 0 {
			response.Error(w, http.StatusBadRequest,
				"INVALID_PAYLOAD", "Uploaded file is empty", nil)
			return
		}

		cert, err := svc.Certify(r.Context(), payload, header.Filename)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Could not issue certificate", nil)
			return
		}

		response.Created(w, cert)
	}
}

type verifyResult struct {
	Valid       bool                `json:"valid"`
	Certificate *models.Certificate `json:"certificate,omitempty"`
}

// NewVerifyHandler returns the handler for GET /v1/verify/{hash}. A
// hash with no certificate on record is a valid negative answer, not an
// error, so the handler always responds 200.
func NewVerifyHandler(svc CertIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")

		cert, err := svc.Verify(r.Context(), hash)
		if errors.Is(err, store.ErrNotFound) {
			response.JSON(w, verifyResult{Valid: false})
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, verifyResult{Valid: true, Certificate: cert})
	}
}
