package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/drishti-ai/drishti/internal/api/response"
	"github.com/drishti-ai/drishti/internal/store"
	"github.com/drishti-ai/drishti/pkg/models"
)

const (
	rawKeyPrefix = "vv_sk_"
	keyPrefixLen = 8
)

var validTiers = map[string]bool{
	models.TierFree:       true,
	models.TierStartup:    true,
	models.TierEnterprise: true,
}

// KeysHandler serves the admin API-key management endpoints.
type KeysHandler struct {
	store store.Store
}

func NewKeysHandler(s store.Store) *KeysHandler {
	return &KeysHandler{store: s}
}

type createKeyRequest struct {
	Name   string   `json:"name"`
	Tier   string   `json:"tier"`
	Scopes []string `json:"scopes"`
}

type createKeyResponse struct {
	*models.APIKey
	// Key is the raw secret, returned exactly once at creation.
	Key string `json:"key"`
}

// Create handles POST /v1/admin/keys.
func (h *KeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			"INVALID_REQUEST", "Request body must be valid JSON", nil)
		return
	}
	if req.Name == "" {
		response.Error(w, http.StatusBadRequest,
			"INVALID_REQUEST", "name is required", nil)
		return
	}
	if req.Tier == "" {
		req.Tier = models.TierFree
	}
	if !validTiers[req.Tier] {
		response.Error(w, http.StatusBadRequest,
			"INVALID_REQUEST", "tier must be one of free, startup, enterprise", nil)
		return
	}
	if len(req.Scopes) == 0 {
		req.Scopes = []string{"analyze"}
	}

	rawKey, err := generateRawKey()
	if err != nil {
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Could not generate key material", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Could not hash key material", nil)
		return
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      req.Name,
		KeyHash:   string(hash),
		KeyPrefix: rawKey[:keyPrefixLen],
		Tier:      req.Tier,
		Scopes:    req.Scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.CreateAPIKey(r.Context(), key); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			response.Error(w, http.StatusConflict,
				"DUPLICATE_KEY", "A key with this name already exists", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Could not create key", nil)
		return
	}

	response.Created(w, createKeyResponse{APIKey: key, Key: rawKey})
}

// List handles GET /v1/admin/keys.
func (h *KeysHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Could not list keys", nil)
		return
	}
	response.JSON(w, keys)
}

// Revoke handles DELETE /v1/admin/keys/{keyID}.
func (h *KeysHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "keyID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			"INVALID_REQUEST", "key id must be a UUID", nil)
		return
	}

	if err := h.store.RevokeAPIKey(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound,
				"NOT_FOUND", "Unknown key id", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Could not revoke key", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func generateRawKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading randomness: %w", err)
	}
	return rawKeyPrefix + hex.EncodeToString(buf), nil
}
