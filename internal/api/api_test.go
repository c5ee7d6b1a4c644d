package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	backend "judge-backend/internal/api"
	"judge-backend/internal/compute"
	"judge-backend/internal/crypto"
	"judge-backend/internal/database"
	"judge-backend/internal/scoring"
	"judge-backend/internal/storage"
	"judge-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	ownerWallet    = "0x1111111111111111111111111111111111111111"
	strangerWallet = "0x2222222222222222222222222222222222222222"
	providerAddr   = "0xf07240Efa67755B5311bc75784a061eDB47165Dd"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	return db
}

type fakeRegistry struct {
	owner        string
	ownerErr     error
	encryptedURI string
	uriErr       error
}

func (f *fakeRegistry) OwnerOf(ctx context.Context, tokenId uint64) (string, error) {
	return f.owner, f.ownerErr
}

func (f *fakeRegistry) EncryptedURI(ctx context.Context, tokenId uint64) (string, error) {
	return f.encryptedURI, f.uriErr
}

func (f *fakeRegistry) Authorization(ctx context.Context, tokenId uint64, executor string) ([]byte, error) {
	return nil, nil
}

func (f *fakeRegistry) MetadataHash(ctx context.Context, tokenId uint64) (string, error) {
	return "", nil
}

type fakeBroker struct {
	services    []api.Service
	servicesErr error
	endpoint    string
	model       string
	valid       bool
}

func (f *fakeBroker) ListServices(ctx context.Context) ([]api.Service, error) {
	return f.services, f.servicesErr
}

func (f *fakeBroker) GetLedger(ctx context.Context) (compute.Ledger, error) {
	return compute.Ledger{TotalBalance: big.NewInt(2_000_000_000_000_000)}, nil
}

func (f *fakeBroker) DepositFund(ctx context.Context, amount *big.Int) error { return nil }

func (f *fakeBroker) AddLedger(ctx context.Context, amount *big.Int) error { return nil }

func (f *fakeBroker) AcknowledgeProviderSigner(ctx context.Context, provider string) error {
	return nil
}

func (f *fakeBroker) GetServiceMetadata(ctx context.Context, provider string) (compute.ServiceMetadata, error) {
	return compute.ServiceMetadata{Endpoint: f.endpoint, Model: f.model}, nil
}

func (f *fakeBroker) GetRequestHeaders(ctx context.Context, provider, body string) (map[string]string, error) {
	return map[string]string{"X-Billing-Nonce": "n-1"}, nil
}

func (f *fakeBroker) ProcessResponse(ctx context.Context, provider, content, chatId string) (bool, error) {
	return f.valid, nil
}

func brokerProvider(broker compute.Broker) compute.BrokerProvider {
	return func() (compute.Broker, error) { return broker, nil }
}

func encryptedProfile(t *testing.T, key string) string {
	t.Helper()
	profile := api.JudgeProfile{
		Version: "1",
		Rubric:  []api.RubricCriterion{{Criterion: "A", Weight: 1}},
		Prompts: api.JudgePrompts{System: "You are a judge."},
	}
	plaintext, err := json.Marshal(profile)
	require.NoError(t, err)

	ciphertext, err := crypto.Encrypt(string(plaintext), key)
	require.NoError(t, err)
	return ciphertext
}

func newCompletionServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":      "chat-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "test-model",
			"choices": []map[string]any{
				{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": answer}},
			},
		})
	}))
}

type testEnv struct {
	router   chi.Router
	registry *fakeRegistry
	broker   *fakeBroker
	db       *gorm.DB
}

func newTestEnv(t *testing.T, uploader storage.Uploader) *testEnv {
	t.Helper()

	key, err := crypto.NewKey()
	require.NoError(t, err)

	registry := &fakeRegistry{owner: ownerWallet, encryptedURI: encryptedProfile(t, key)}
	broker := &fakeBroker{
		services: []api.Service{{Provider: providerAddr, Model: "test-model"}},
		valid:    true,
	}

	db := createDB(t)
	pipeline := &scoring.Pipeline{
		Registry:    registry,
		Fetcher:     storage.NewHTTPFetcher(),
		MetadataKey: key,
		Broker:      brokerProvider(broker),
		Uploader:    uploader,
	}

	router := chi.NewRouter()
	backend.NewJudgeService(db, pipeline).AddRoutes(router)

	return &testEnv{router: router, registry: registry, broker: broker, db: db}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetMetadata(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/judge/1/metadata?wallet="+ownerWallet, nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "received response: "+rec.Body.String())

	var response api.MetadataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "1", response.Metadata.Version)
	assert.Equal(t, []api.RubricCriterion{{Criterion: "A", Weight: 1}}, response.Metadata.Rubric)
}

func TestGetMetadataUnauthorized(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/judge/1/metadata?wallet="+strangerWallet, nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "not owner or authorized", response["error"])
}

func TestGetMetadataMissingWallet(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/judge/1/metadata", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMetadataInvalidTokenId(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/judge/abc/metadata?wallet="+ownerWallet, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMetadataLookupFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registry.ownerErr = errors.New("rpc unreachable")

	req := httptest.NewRequest(http.MethodGet, "/judge/1/metadata?wallet="+ownerWallet, nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code, "lookup failure must not read as unauthorized")

	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response["details"], "rpc unreachable")
}

func TestScoreSubmission(t *testing.T) {
	answer := `{"scores":[{"criterion":"A","score":4,"weight":1}],"totalWeightedScore":4,"justification":"good"}`
	server := newCompletionServer(t, answer)
	defer server.Close()

	env := newTestEnv(t, nil)
	env.broker.endpoint = server.URL
	env.broker.model = "test-model"

	body, err := json.Marshal(api.ScoreRequest{Wallet: ownerWallet, SubmissionId: "s-1", Text: "our project"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/judge/1/score", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "received response: "+rec.Body.String())

	var response api.ScoreResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, uint64(1), response.Scorecard.TokenId)
	assert.Equal(t, "s-1", response.Scorecard.SubmissionId)
	assert.Equal(t, 4.0, response.Scorecard.TotalWeightedScore)
	assert.Equal(t, "good", response.Scorecard.Justification)
	assert.Equal(t, providerAddr, response.Scorecard.Provider)
	assert.True(t, response.Scorecard.Verified)
	assert.NotZero(t, response.Scorecard.CreatedAt)

	var records []database.ScorecardRecord
	require.NoError(t, env.db.Find(&records).Error)
	require.Len(t, records, 1, "scoring run must be recorded")
	assert.Equal(t, "s-1", records[0].SubmissionId)
}

func TestScoreSubmissionUnparseableAnswer(t *testing.T) {
	server := newCompletionServer(t, "I liked it a lot.")
	defer server.Close()

	env := newTestEnv(t, nil)
	env.broker.endpoint = server.URL
	env.broker.model = "test-model"

	body, err := json.Marshal(api.ScoreRequest{Wallet: ownerWallet, SubmissionId: "s-2", Text: "project"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/judge/1/score", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "parse failures are recovered, never surfaced")

	var response api.ScoreResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, []api.ScoreEntry{{Criterion: "A", Score: 3, Weight: 1}}, response.Scorecard.Scores)
	assert.Equal(t, 3.0, response.Scorecard.TotalWeightedScore)
	assert.Equal(t, "I liked it a lot.", response.Scorecard.Justification)
}

func TestScoreSubmissionMissingFields(t *testing.T) {
	env := newTestEnv(t, nil)

	body := []byte(`{"wallet": "` + ownerWallet + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/judge/1/score", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoreSubmissionUnauthorized(t *testing.T) {
	env := newTestEnv(t, nil)

	body, err := json.Marshal(api.ScoreRequest{Wallet: strangerWallet, SubmissionId: "s-1", Text: "project"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/judge/1/score", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScoreSubmissionNoServices(t *testing.T) {
	env := newTestEnv(t, nil)
	env.broker.services = nil

	body, err := json.Marshal(api.ScoreRequest{Wallet: ownerWallet, SubmissionId: "s-1", Text: "project"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/judge/1/score", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "no inference services available", response["error"])
}

func TestListServicesFallback(t *testing.T) {
	env := newTestEnv(t, nil)
	env.broker.servicesErr = errors.New("discovery down")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/judge/services", nil))

	require.Equal(t, http.StatusOK, rec.Code, "discovery failure is not an HTTP error")

	var response api.ServicesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Services, 2)
	assert.Equal(t, "gpt-oss-120b", response.Services[0].Model)
}

func newIndexerServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"txHash": "0xtx1"}) //nolint:errcheck
	}))
}

func TestUploadScorecard(t *testing.T) {
	indexer := newIndexerServer(t)
	defer indexer.Close()

	env := newTestEnv(t, storage.NewIndexerClient(indexer.URL))

	scorecard := api.Scorecard{
		TokenId:            1,
		SubmissionId:       "s-1",
		Scores:             []api.ScoreEntry{{Criterion: "A", Score: 4, Weight: 1}},
		TotalWeightedScore: 4,
		Justification:      "good",
		Provider:           providerAddr,
		Model:              "test-model",
		Verified:           true,
		CreatedAt:          1700000000000,
	}

	upload := func() api.UploadScorecardResponse {
		body, err := json.Marshal(api.UploadScorecardRequest{Scorecard: scorecard})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/judge/1/scorecard/upload", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "received response: "+rec.Body.String())
		var response api.UploadScorecardResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		return response
	}

	first := upload()
	assert.Equal(t, "0xtx1", first.TxHash)
	assert.NotEmpty(t, first.RootHash)

	second := upload()
	assert.Equal(t, first.RootHash, second.RootHash, "identical scorecards address identically")
}

func TestUploadScorecardTokenMismatch(t *testing.T) {
	env := newTestEnv(t, nil)

	body, err := json.Marshal(api.UploadScorecardRequest{Scorecard: api.Scorecard{TokenId: 2}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/judge/1/scorecard/upload", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadScorecardPersistenceFailure(t *testing.T) {
	indexer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "node down", http.StatusServiceUnavailable)
	}))
	defer indexer.Close()

	env := newTestEnv(t, storage.NewIndexerClient(indexer.URL))

	body, err := json.Marshal(api.UploadScorecardRequest{Scorecard: api.Scorecard{TokenId: 1}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/judge/1/scorecard/upload", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListScorecards(t *testing.T) {
	answer := `{"scores":[{"criterion":"A","score":5,"weight":1}],"totalWeightedScore":5,"justification":"great"}`
	server := newCompletionServer(t, answer)
	defer server.Close()

	env := newTestEnv(t, nil)
	env.broker.endpoint = server.URL
	env.broker.model = "test-model"

	body, err := json.Marshal(api.ScoreRequest{Wallet: ownerWallet, SubmissionId: "s-9", Text: "project"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/judge/1/score", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/judge/1/scorecards", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []api.ScorecardRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "s-9", runs[0].SubmissionId)
	assert.Equal(t, 5.0, runs[0].TotalWeightedScore)
}
