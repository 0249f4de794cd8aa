package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3Health-View/backend/internal/auth"
	"github.com/3Health-View/backend/internal/domain"
	"github.com/3Health-View/backend/internal/event"
	"github.com/3Health-View/backend/internal/oura"
	"github.com/3Health-View/backend/internal/recommend"
	"github.com/3Health-View/backend/internal/repository/memory"
	"github.com/3Health-View/backend/internal/service"
	"github.com/3Health-View/backend/pkg/health"
	"github.com/3Health-View/backend/pkg/middleware"
)

const testSecret = "handler-test-secret"

// ============================================================================
// Fakes
// ============================================================================

type fakeFetcher struct {
	calls    atomic.Int32
	payloads map[string]oura.Payload
	err      error
}

func (f *fakeFetcher) FetchAll(_ context.Context, _ string, reqs []oura.Request) (map[string]oura.Payload, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]oura.Payload, len(reqs))
	for _, req := range reqs {
		out[req.Name] = f.payloads[req.Name]
	}
	return out, nil
}

// recommenderModelJSON scores three classes over the display features:
// class 0 when sleep_score < 70, class 1 otherwise (class 2 is a constant).
const recommenderModelJSON = `{
	"learner": {
		"gradient_booster": {
			"name": "gbtree",
			"model": {
				"tree_info": [0, 1, 2],
				"trees": [
					{"left_children": [1, -1, -1], "right_children": [2, -1, -1], "split_indices": [0, 0, 0],
					 "split_conditions": [70, 1.0, -1.0], "default_left": [0, 0, 0]},
					{"left_children": [-1], "right_children": [-1], "split_indices": [0],
					 "split_conditions": [0.5], "default_left": [0]},
					{"left_children": [-1], "right_children": [-1], "split_indices": [0],
					 "split_conditions": [0.2], "default_left": [0]}
				]
			}
		},
		"learner_model_param": {"base_score": "[5E-1]", "num_class": "3", "num_feature": "15"},
		"objective": {"name": "multi:softprob"}
	},
	"version": [2, 1, 0]
}`

func newTestRecommender(t *testing.T) *recommend.Recommender {
	t.Helper()
	model, err := recommend.ParseModel(strings.NewReader(recommenderModelJSON))
	require.NoError(t, err)
	rec, err := recommend.New(model, recommend.NewLabelEncoder([]string{"go_to_bed_earlier", "keep_routine", "take_it_easy"}))
	require.NoError(t, err)
	return rec
}

type fakeOAuth struct {
	resp *oura.TokenResponse
	err  error
}

func (f *fakeOAuth) ExchangeCode(context.Context, string, string) (*oura.TokenResponse, error) {
	return f.resp, f.err
}

func (f *fakeOAuth) Refresh(context.Context, string) (*oura.TokenResponse, error) {
	return f.resp, f.err
}

// ============================================================================
// Test Server
// ============================================================================

type testServer struct {
	handler     http.Handler
	sessions    *auth.SessionManager
	docs        *memory.DocumentRepository
	fetcher     *fakeFetcher
	oauth       *fakeOAuth
	recommender *recommend.Recommender
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

func onePayload(doc map[string]any) oura.Payload {
	return oura.Payload{"data": []any{doc}}
}

func dayPayloads(day string) map[string]oura.Payload {
	return map[string]oura.Payload{
		"main": onePayload(map[string]any{
			"id":        "sleep-" + day,
			"day":       day,
			"type":      "long_sleep",
			"readiness": map[string]any{"score": 78.0},
		}),
		"sleep": onePayload(map[string]any{"day": day, "score": 85.0}),
		"activity": onePayload(map[string]any{
			"day":   day,
			"score": 64.0,
			"met":   map[string]any{"interval": 60.0, "items": []any{1.0, 0.9, 1.2}},
		}),
		"readiness":  onePayload(map[string]any{"day": day, "score": 78.0}),
		"sleep_time": onePayload(map[string]any{"day": day, "recommendation": "earlier_bedtime", "status": "optimal"}),
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := newTestLogger()
	producer := event.NewProducer(nil, "threehv.events", logger)
	sessions := auth.NewSessionManager(testSecret, time.Hour)

	docs := memory.NewDocumentRepository()
	fetcher := &fakeFetcher{payloads: dayPayloads(today())}
	oauth := &fakeOAuth{resp: &oura.TokenResponse{
		Status: http.StatusOK,
		Body:   json.RawMessage(`{"access_token":"at","refresh_token":"rt","expires_in":86400}`),
	}}

	users := service.NewUserService(memory.NewUserRepository(), sessions, oauth, producer, logger)
	recommender := newTestRecommender(t)
	data := service.NewDataService(docs, memory.NewDisplayCache(time.Minute), fetcher, recommender, producer, logger)

	handler := NewRouter(users, data, sessions.Validate, health.NewHandler(), logger, RouterConfig{
		CORS:                middleware.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		CredentialRateLimit: middleware.RateLimitConfig{RPS: 0.01, Burst: 5},
	})

	return &testServer{
		handler:     handler,
		sessions:    sessions,
		docs:        docs,
		fetcher:     fetcher,
		oauth:       oauth,
		recommender: recommender,
	}
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
	Error   *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func (s *testServer) sessionToken(t *testing.T, email string) string {
	t.Helper()
	token, err := s.sessions.Issue(&domain.User{
		Email:       email,
		FirstName:   "Ada",
		LastName:    "Lovelace",
		OuraToken:   "oura-access",
		OuraRefresh: "oura-refresh",
	})
	require.NoError(t, err)
	return token
}

func signupBody() map[string]string {
	return map[string]string{
		"email":     "ada@example.com",
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"password":  "s3cret-pass",
	}
}

// ============================================================================
// Users
// ============================================================================

func TestHello(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/hello", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World!", decodeEnvelope(t, rec).Message)
}

func TestSignupAndLogin(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/users/signup", "", signupBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "User Sign Up Successful", env.Message)
	require.NotEmpty(t, env.Token)

	claims, err := srv.sessions.Validate(env.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "Ada", claims.FirstName)

	rec = srv.do(t, http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect Password", decodeEnvelope(t, rec).Message)

	rec = srv.do(t, http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	env = decodeEnvelope(t, rec)
	assert.Equal(t, "User Sign In Successful", env.Message)
	assert.NotEmpty(t, env.Token)
}

func TestSignup_Duplicate(t *testing.T) {
	srv := newTestServer(t)

	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/users/signup", "", signupBody()).Code)

	rec := srv.do(t, http.MethodPost, "/api/v1/users/signup", "", signupBody())

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists.", decodeEnvelope(t, rec).Message)
}

func TestSignup_MissingFields(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/users/signup", "", map[string]string{"email": "ada@example.com"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "[email, firstName, lastName, password] are required!", env.Message)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "password")
}

func TestSignup_WrongContentType(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/signup", bytes.NewBufferString("email=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestLogin_RateLimitedPerClient(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]string{"email": "nobody@example.com", "password": "guess"}

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodPost, "/api/v1/users/login", "", body).Code, "attempt %d", i+1)
	}

	rec := srv.do(t, http.MethodPost, "/api/v1/users/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", decodeEnvelope(t, rec).Message)

	rec = srv.do(t, http.MethodPost, "/api/v1/users/signup", "", signupBody())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/users/refresh-token", "", map[string]string{"refreshToken": "rt"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_UnknownUser(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User does not exist", decodeEnvelope(t, rec).Message)
}

func TestLogin_MalformedBody(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "[email, password] is required!", env.Message)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
}

func TestUpdateOura(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/users/signup", "", signupBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decodeEnvelope(t, rec).Token

	rec = srv.do(t, http.MethodPatch, "/api/v1/users/update-oura", token, map[string]string{
		"ouraToken":   "new-access",
		"ouraRefresh": "new-refresh",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "User Oura Tokens Updated", env.Message)

	claims, err := srv.sessions.Validate(env.Token)
	require.NoError(t, err)
	assert.Equal(t, "new-access", claims.OuraToken)
	assert.Equal(t, "new-refresh", claims.OuraRefresh)
}

func TestUpdateOura_RequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPatch, "/api/v1/users/update-oura", "", map[string]string{
		"ouraToken":   "new-access",
		"ouraRefresh": "new-refresh",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateOura_UnknownUser(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPatch, "/api/v1/users/update-oura", srv.sessionToken(t, "ghost@example.com"), map[string]string{
		"ouraToken":   "new-access",
		"ouraRefresh": "new-refresh",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetToken_PassesUpstreamThrough(t *testing.T) {
	srv := newTestServer(t)
	srv.oauth.resp = &oura.TokenResponse{
		Status: http.StatusBadRequest,
		Body:   json.RawMessage(`{"error":"invalid_grant"}`),
	}

	rec := srv.do(t, http.MethodPost, "/api/v1/users/get-token", "", map[string]string{
		"code":        "auth-code",
		"redirectUrl": "https://app.example.com/callback",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_grant"}`, rec.Body.String())
}

func TestGetToken_TransportFailure(t *testing.T) {
	srv := newTestServer(t)
	srv.oauth.err = errors.New("dial tcp: connection refused")

	rec := srv.do(t, http.MethodPost, "/api/v1/users/get-token", "", map[string]string{
		"code":        "auth-code",
		"redirectUrl": "https://app.example.com/callback",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error has occurred", decodeEnvelope(t, rec).Message)
}

func TestRefreshToken(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/users/refresh-token", "", map[string]string{"refreshToken": "rt"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"access_token":"at","refresh_token":"rt","expires_in":86400}`, rec.Body.String())
}

func TestRefreshToken_Missing(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/users/refresh-token", "", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "[refreshToken] is required!", decodeEnvelope(t, rec).Message)
}

// ============================================================================
// Data
// ============================================================================

func TestDisplayInfo_SyncsThenServesFromCache(t *testing.T) {
	srv := newTestServer(t)
	token := srv.sessionToken(t, "ada@example.com")

	rec := srv.do(t, http.MethodGet, "/api/v1/data/display-info", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "success", env.Message)

	var records []domain.DisplayRecord
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, today(), records[0].Day)
	assert.Equal(t, "ada@example.com", records[0].Email)
	assert.Equal(t, 85.0, records[0].SleepScore)
	assert.Equal(t, 64.0, records[0].ActivityScore)
	assert.Contains(t, srv.recommender.Classes(), records[0].Recommendation)
	assert.Equal(t, "keep_routine", records[0].Recommendation)

	rec = srv.do(t, http.MethodGet, "/api/v1/data/display-info", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), srv.fetcher.calls.Load())
}

func TestDisplayInfo_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t)
	srv.fetcher.payloads = map[string]oura.Payload{
		"main":     {"data": []any{}},
		"sleep":    {"data": []any{}},
		"activity": {"data": []any{}},
	}

	rec := srv.do(t, http.MethodGet, "/api/v1/data/display-info", srv.sessionToken(t, "ada@example.com"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"success","data":[]}`, rec.Body.String())
}

func TestDisplayInfo_ExpiredToken(t *testing.T) {
	srv := newTestServer(t)
	expired, err := auth.NewSessionManager(testSecret, -time.Minute).Issue(&domain.User{Email: "ada@example.com"})
	require.NoError(t, err)

	rec := srv.do(t, http.MethodGet, "/api/v1/data/display-info", expired, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has expired", decodeEnvelope(t, rec).Message)
	assert.Zero(t, srv.fetcher.calls.Load())
}

func TestDisplayInfo_ForeignSignature(t *testing.T) {
	srv := newTestServer(t)
	forged, err := auth.NewSessionManager("other-secret", time.Hour).Issue(&domain.User{Email: "ada@example.com"})
	require.NoError(t, err)

	rec := srv.do(t, http.MethodGet, "/api/v1/data/display-info", forged, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDisplayInfo_UpstreamFailure(t *testing.T) {
	srv := newTestServer(t)
	srv.fetcher.err = &oura.FetchError{Source: "sleep", Err: errors.New("oura returned status 401")}

	rec := srv.do(t, http.MethodGet, "/api/v1/data/display-info", srv.sessionToken(t, "ada@example.com"), nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error getting sleep data", decodeEnvelope(t, rec).Message)
}

func TestUpdateScoresThenRemoveData(t *testing.T) {
	srv := newTestServer(t)
	token := srv.sessionToken(t, "ada@example.com")

	rec := srv.do(t, http.MethodPost, "/api/v1/data/update-scores", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var records []domain.DisplayRecord
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "earlier_bedtime", records[0].OuraRecommendation)

	for _, sr := range domain.AllSeries {
		assert.Len(t, srv.docs.Raw(sr.Collection()), 1, "series %s", sr)
	}
	activity := srv.docs.Raw(domain.SeriesActivity.Collection())[0]
	_, compressed := activity.Payload.Object("met")["items"].(string)
	assert.True(t, compressed)

	rec = srv.do(t, http.MethodDelete, "/api/v1/data/remove-data", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var msg string
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &msg))
	assert.Equal(t, service.RemoveDataMessage, msg)
	for _, sr := range domain.AllSeries {
		assert.Empty(t, srv.docs.Raw(sr.Collection()), "series %s", sr)
	}
}

func TestData_RequiresBearer(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/data/display-info"},
		{http.MethodPost, "/api/v1/data/update-scores"},
		{http.MethodDelete, "/api/v1/data/remove-data"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := srv.do(t, tt.method, tt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

// ============================================================================
// Operational endpoints
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/ready", "", nil).Code)

	srv.do(t, http.MethodGet, "/api/v1/hello", "", nil)
	rec := srv.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestPprof_DeniedWithoutAllowlist(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/debug/pprof/", "", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
