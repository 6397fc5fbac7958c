package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/drishti-ai/drishti/internal/api"
	"github.com/drishti-ai/drishti/internal/api/handler"
	mw "github.com/drishti-ai/drishti/internal/api/middleware"
	"github.com/drishti-ai/drishti/internal/blob"
	"github.com/drishti-ai/drishti/internal/cache"
	"github.com/drishti-ai/drishti/internal/certs"
	"github.com/drishti-ai/drishti/internal/config"
	"github.com/drishti-ai/drishti/internal/consistency"
	"github.com/drishti-ai/drishti/internal/detect"
	"github.com/drishti-ai/drishti/internal/fusion"
	"github.com/drishti-ai/drishti/internal/ingest"
	"github.com/drishti-ai/drishti/internal/metadata"
	"github.com/drishti-ai/drishti/internal/pipeline"
	"github.com/drishti-ai/drishti/internal/reqstore"
	"github.com/drishti-ai/drishti/internal/store"
	"github.com/drishti-ai/drishti/pkg/models"
)

// ─── test fixtures ───────────────────────────────────────────────────────────

const (
	testRawKey  = "vv_sk_test_contract_key_123456789"
	noAdminKey  = "vv_sk_no_admin_scope_key_98765432"
	testCertURL = "https://verify.drishti.test"
)

func hashOf(t *testing.T, raw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// ─── mock store ──────────────────────────────────────────────────────────────

type mockStore struct {
	keys  []*models.APIKey
	certs []*models.Certificate
}

func newMockStore(t *testing.T) *mockStore {
	t.Helper()
	return &mockStore{
		keys: []*models.APIKey{
			{
				ID:        uuid.New(),
				Name:      "admin-key",
				KeyHash:   hashOf(t, testRawKey),
				KeyPrefix: testRawKey[:8],
				Tier:      models.TierEnterprise,
				Scopes:    []string{"analyze", "admin"},
			},
			{
				ID:        uuid.New(),
				Name:      "plain-key",
				KeyHash:   hashOf(t, noAdminKey),
				KeyPrefix: noAdminKey[:8],
				Tier:      models.TierFree,
				Scopes:    []string{"analyze"},
			},
		},
	}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

func (s *mockStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	// The real store inserts id and timestamps verbatim; a zero id would
	// collide on the primary key from the second insert onward.
	for _, existing := range s.keys {
		if existing.ID == key.ID {
			return store.ErrDuplicateKey
		}
		if existing.Name == key.Name && existing.DeletedAt == nil {
			return store.ErrDuplicateKey
		}
	}
	s.keys = append(s.keys, key)
	return nil
}

func (s *mockStore) ListAPIKeys(_ context.Context) ([]*models.APIKey, error) {
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.DeletedAt == nil {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *mockStore) RevokeAPIKey(_ context.Context, id uuid.UUID) error {
	for _, k := range s.keys {
		if k.ID == id && k.DeletedAt == nil {
			now := time.Now().UTC()
			k.DeletedAt = &now
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *mockStore) CreateCertificate(_ context.Context, cert *models.Certificate) error {
	s.certs = append(s.certs, cert)
	return nil
}

func (s *mockStore) GetCertificateByHash(_ context.Context, hash string) (*models.Certificate, error) {
	for _, c := range s.certs {
		if c.Hash == hash {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

var _ store.Store = (*mockStore)(nil)

// ─── test harness ────────────────────────────────────────────────────────────

type testServer struct {
	server *httptest.Server
	store  *mockStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ms := newMockStore(t)

	analysisSvc := pipeline.NewService(
		ingest.NewNormalizer(map[string]int64{
			"image": 1 << 20, "video": 4 << 20, "audio": 1 << 20,
			"text": 16 << 10, "whatsapp": 1 << 20,
		}),
		detect.NewRegistry(),
		metadata.NewScanner(),
		consistency.NewEngine(),
		fusion.New(config.DefaultPolicy()),
		reqstore.New(cache.NewMemoryCache(), 30*time.Minute),
		blob.NewMemoryStager(),
		5*time.Second,
		2*time.Second,
	)

	certSvc, err := certs.New(ms, "", testCertURL)
	require.NoError(t, err)

	keys := handler.NewKeysHandler(ms)

	deps := api.Dependencies{
		Auth:      mw.NewAuth(ms),
		RateLimit: mw.NewRateLimit(cache.NewMemoryCache()),

		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
		AnalyzeHandler: handler.NewAnalyzeHandler(analysisSvc),
		PollHandler:    handler.NewPollHandler(analysisSvc),
		CancelHandler:  handler.NewCancelHandler(analysisSvc),
		CertifyHandler: handler.NewCertifyHandler(certSvc),
		VerifyHandler:  handler.NewVerifyHandler(certSvc),

		CreateKeyHandler: keys.Create,
		ListKeysHandler:  keys.List,
		RevokeKeyHandler: keys.Revoke,
	}

	srv := httptest.NewServer(api.NewRouter(deps))
	t.Cleanup(srv.Close)

	return &testServer{server: srv, store: ms}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) multipartRequest(t *testing.T, path, rawKey, fileName string, file []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if file != nil {
		fw, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest("POST", ts.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+rawKey)
	return req
}

func (ts *testServer) jsonRequest(t *testing.T, method, path, rawKey string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseData(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data envelope: %+v", body)
	return data
}

func parseError(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %+v", body)
	return errObj
}

// jpegNoise frames deterministic high-entropy bytes as a JPEG.
func jpegNoise(n int) []byte {
	out := make([]byte, 0, n+4)
	out = append(out, 0xFF, 0xD8, 0xFF, 0xE0)
	state := uint32(0x6C078965)
	for len(out) < n {
		state = state*1664525 + 1013904223
		out = append(out, byte(state>>24))
	}
	return out
}

// ─── analyze ─────────────────────────────────────────────────────────────────

func TestAnalyze_ImageSyncCompletion(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.multipartRequest(t, "/v1/analyze", testRawKey,
		"suspect.jpg", jpegNoise(8192), map[string]string{"type": "image"}))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseData(t, resp)
	assert.Equal(t, "complete", data["status"])
	assert.Equal(t, "image", data["modality"])
	assert.NotEmpty(t, data["request_id"])

	result, ok := data["result"].(map[string]any)
	require.True(t, ok, "completed analysis must carry a result")

	subScores := result["sub_scores"].(map[string]any)
	assert.Contains(t, subScores, "image")
	assert.Contains(t, subScores, "metadata")

	conf := result["overall_confidence"].(float64)
	assert.GreaterOrEqual(t, conf, 0.0)
	assert.LessOrEqual(t, conf, 1.0)
	assert.NotEmpty(t, result["verdict"])

	indicators := result["indicators"].(map[string]any)
	for _, lang := range []string{"en", "hi", "mr"} {
		assert.Contains(t, indicators, lang)
	}

	viral := result["viral_risk"].(map[string]any)
	assert.NotEmpty(t, viral["label"])
}

func TestAnalyze_TextOnlySubScores(t *testing.T) {
	ts := newTestServer(t)
	prose := strings.Repeat("In conclusion, it is important to note that this plays a crucial role. ", 8)

	resp := ts.do(t, ts.multipartRequest(t, "/v1/analyze", testRawKey,
		"essay.txt", []byte(prose), map[string]string{"type": "text"}))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseData(t, resp)
	require.Equal(t, "complete", data["status"])

	result := data["result"].(map[string]any)
	subScores := result["sub_scores"].(map[string]any)
	assert.Contains(t, subScores, "text")
	assert.Contains(t, subScores, "metadata")
	assert.NotContains(t, subScores, "image")
	assert.NotContains(t, subScores, "video")
	_, hasZones := result["heatmap_zones"]
	assert.False(t, hasZones, "text analysis has no spatial evidence")
}

func TestAnalyze_WhatsAppContradiction(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.multipartRequest(t, "/v1/analyze", testRawKey,
		"forward.jpg", jpegNoise(8192), map[string]string{
			"type":    "whatsapp",
			"caption": "100% REAL footage caught on camera, completely unedited",
		}))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseData(t, resp)
	require.Equal(t, "complete", data["status"])

	result := data["result"].(map[string]any)
	cmce := result["cmce"].(map[string]any)
	assert.Equal(t, "CRITICAL", cmce["risk"])
	assert.GreaterOrEqual(t, result["overall_confidence"].(float64), 0.75)
	assert.Equal(t, "Manipulated", result["verdict"])
}

func TestAnalyze_MissingFile(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.multipartRequest(t, "/v1/analyze", testRawKey,
		"", nil, map[string]string{"type": "image"}))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PAYLOAD", parseError(t, resp)["code"])
}

func TestAnalyze_UnknownType(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.multipartRequest(t, "/v1/analyze", testRawKey,
		"f.bin", jpegNoise(1024), map[string]string{"type": "hologram"}))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PAYLOAD", parseError(t, resp)["code"])
}

func TestAnalyze_OversizedPayload(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.multipartRequest(t, "/v1/analyze", testRawKey,
		"big.txt", []byte(strings.Repeat("a", (16<<10)+1)), map[string]string{"type": "text"}))

	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", parseError(t, resp)["code"])
}

func TestAnalyze_UnsupportedLanguage(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.multipartRequest(t, "/v1/analyze", testRawKey,
		"f.jpg", jpegNoise(1024), map[string]string{"type": "image", "language": "xx"}))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PAYLOAD", parseError(t, resp)["code"])
}

func TestAnalyze_UndetectableContentFails(t *testing.T) {
	ts := newTestServer(t)

	// Passes ingestion as a declared image but is below every engine's
	// minimum, so the request fails with DETECTION_UNAVAILABLE.
	resp := ts.do(t, ts.multipartRequest(t, "/v1/analyze", testRawKey,
		"t.jpg", []byte("0123456789"), map[string]string{"type": "image"}))

	require.Equal(t, http.StatusOK, resp.StatusCode, "a failed analysis is still a terminal 200")
	data := parseData(t, resp)
	assert.Equal(t, "failed", data["status"])
	assert.Equal(t, "DETECTION_UNAVAILABLE", data["error"])
}

// ─── poll / cancel ───────────────────────────────────────────────────────────

func TestPoll_Roundtrip(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.multipartRequest(t, "/v1/analyze", testRawKey,
		"p.jpg", jpegNoise(4096), map[string]string{"type": "image"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := parseData(t, resp)["request_id"].(string)

	poll := ts.do(t, ts.jsonRequest(t, "GET", "/v1/analyze/"+id, testRawKey, nil))
	require.Equal(t, http.StatusOK, poll.StatusCode)
	data := parseData(t, poll)
	assert.Equal(t, id, data["request_id"])
	assert.Equal(t, "complete", data["status"])
	assert.NotNil(t, data["result"])
}

func TestPoll_UnknownID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.jsonRequest(t, "GET", "/v1/analyze/"+uuid.NewString(), testRawKey, nil))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", parseError(t, resp)["code"])
}

func TestPoll_MalformedID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.jsonRequest(t, "GET", "/v1/analyze/not-a-uuid", testRawKey, nil))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", parseError(t, resp)["code"])
}

func TestCancel_CompletedIsNoOp(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.multipartRequest(t, "/v1/analyze", testRawKey,
		"c.jpg", jpegNoise(4096), map[string]string{"type": "image"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := parseData(t, resp)["request_id"].(string)

	cancel := ts.do(t, ts.jsonRequest(t, "DELETE", "/v1/analyze/"+id, testRawKey, nil))
	require.Equal(t, http.StatusAccepted, cancel.StatusCode)
	assert.Equal(t, "complete", parseData(t, cancel)["status"],
		"cancel after completion must not change the terminal status")
}

func TestCancel_UnknownID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.jsonRequest(t, "DELETE", "/v1/analyze/"+uuid.NewString(), testRawKey, nil))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ─── certify / verify ────────────────────────────────────────────────────────

func TestCertify_Issues201(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.multipartRequest(t, "/v1/certify", testRawKey,
		"press.jpg", []byte("original press photo bytes"), nil))

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := parseData(t, resp)
	hash := data["hash"].(string)
	assert.True(t, strings.HasPrefix(hash, "vv_auth_"))
	assert.Equal(t, "C2PA v1.3", data["standard"])
	assert.Equal(t, "DRISHTI Authenticity Network", data["issuer"])
	assert.Equal(t, testCertURL+"/"+hash, data["verify_url"])
	assert.NotEmpty(t, data["signature"])
}

func TestCertify_EmptyFile(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.multipartRequest(t, "/v1/certify", testRawKey,
		"empty.bin", []byte{}, nil))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PAYLOAD", parseError(t, resp)["code"])
}

func TestVerify_KnownAndUnknown(t *testing.T) {
	ts := newTestServer(t)

	issued := ts.do(t, ts.multipartRequest(t, "/v1/certify", testRawKey,
		"v.jpg", []byte("certified content"), nil))
	require.Equal(t, http.StatusCreated, issued.StatusCode)
	hash := parseData(t, issued)["hash"].(string)

	known := ts.do(t, ts.jsonRequest(t, "GET", "/v1/verify/"+hash, "", nil))
	require.Equal(t, http.StatusOK, known.StatusCode)
	data := parseData(t, known)
	assert.Equal(t, true, data["valid"])
	cert := data["certificate"].(map[string]any)
	assert.Equal(t, hash, cert["hash"])

	unknown := ts.do(t, ts.jsonRequest(t, "GET", "/v1/verify/vv_auth_"+strings.Repeat("0", 64), "", nil))
	require.Equal(t, http.StatusOK, unknown.StatusCode, "an unknown hash is a negative answer, not an error")
	data = parseData(t, unknown)
	assert.Equal(t, false, data["valid"])
	_, hasCert := data["certificate"]
	assert.False(t, hasCert)
}

// ─── admin keys ──────────────────────────────────────────────────────────────

func TestKeys_CreateListRevoke(t *testing.T) {
	ts := newTestServer(t)

	created := ts.do(t, ts.jsonRequest(t, "POST", "/v1/admin/keys", testRawKey, map[string]any{
		"name":   "partner-newsroom",
		"tier":   "startup",
		"scopes": []string{"analyze"},
	}))
	require.Equal(t, http.StatusCreated, created.StatusCode)
	data := parseData(t, created)

	rawKey := data["key"].(string)
	assert.True(t, strings.HasPrefix(rawKey, "vv_sk_"))
	assert.Equal(t, rawKey[:8], data["key_prefix"])
	assert.Equal(t, "startup", data["tier"])
	_, leaked := data["key_hash"]
	assert.False(t, leaked, "hash must never serialize")

	list := ts.do(t, ts.jsonRequest(t, "GET", "/v1/admin/keys", testRawKey, nil))
	require.Equal(t, http.StatusOK, list.StatusCode)
	var listBody struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(list.Body).Decode(&listBody))
	assert.Len(t, listBody.Data, 3)

	revoke := ts.do(t, ts.jsonRequest(t, "DELETE", "/v1/admin/keys/"+data["id"].(string), testRawKey, nil))
	require.Equal(t, http.StatusNoContent, revoke.StatusCode)

	// The revoked key no longer authenticates.
	after := ts.do(t, ts.jsonRequest(t, "GET", "/v1/admin/keys", rawKey, nil))
	assert.Equal(t, http.StatusUnauthorized, after.StatusCode)
}

func TestKeys_CreateAssignsIdentity(t *testing.T) {
	ts := newTestServer(t)

	first := ts.do(t, ts.jsonRequest(t, "POST", "/v1/admin/keys", testRawKey, map[string]any{
		"name": "first-of-many",
	}))
	require.Equal(t, http.StatusCreated, first.StatusCode)
	data := parseData(t, first)

	id, err := uuid.Parse(data["id"].(string))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id, "the handler must mint the key id")

	var stored *models.APIKey
	for _, k := range ts.store.keys {
		if k.Name == "first-of-many" {
			stored = k
		}
	}
	require.NotNil(t, stored)
	assert.Equal(t, id, stored.ID)
	assert.WithinDuration(t, time.Now().UTC(), stored.CreatedAt, time.Minute)
	assert.WithinDuration(t, time.Now().UTC(), stored.UpdatedAt, time.Minute)

	// A second fresh name must not collide with the first row's identity.
	second := ts.do(t, ts.jsonRequest(t, "POST", "/v1/admin/keys", testRawKey, map[string]any{
		"name": "second-of-many",
	}))
	require.Equal(t, http.StatusCreated, second.StatusCode)
	assert.NotEqual(t, data["id"], parseData(t, second)["id"])
}

func TestKeys_DuplicateName(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.jsonRequest(t, "POST", "/v1/admin/keys", testRawKey, map[string]any{
		"name": "admin-key",
	}))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE_KEY", parseError(t, resp)["code"])
}

func TestKeys_InvalidTier(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.jsonRequest(t, "POST", "/v1/admin/keys", testRawKey, map[string]any{
		"name": "bad-tier",
		"tier": "platinum",
	}))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestKeys_RequiresAdminScope(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.jsonRequest(t, "GET", "/v1/admin/keys", noAdminKey, nil))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", parseError(t, resp)["code"])
}

// ─── misc ────────────────────────────────────────────────────────────────────

func TestAnalyze_RateLimitHeadersPresent(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, ts.multipartRequest(t, "/v1/analyze", noAdminKey,
		"h.jpg", jpegNoise(1024), map[string]string{"type": "image"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "100", resp.Header.Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
}

func TestAnalyze_NonMultipartBody(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest("POST", ts.server.URL+"/v1/analyze",
		strings.NewReader(fmt.Sprintf(`{"type":%q}`, "image")))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	req.Header.Set("Content-Type", "application/json")

	resp := ts.do(t, req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PAYLOAD", parseError(t, resp)["code"])
}
