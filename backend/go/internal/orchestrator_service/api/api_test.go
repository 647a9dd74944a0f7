package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Conductor/backend/go/internal/agent"
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/internal/orchestrator"
	"Conductor/backend/go/internal/orchestrator_service/service"
	"Conductor/backend/go/internal/orchestrator_service/store"
	"Conductor/backend/go/pkg/logger"
	"Conductor/backend/go/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrchestrator struct {
	answer string
	err    error
	got    string
}

func (f *fakeOrchestrator) AskObserved(_ context.Context, message string, _ agent.Observer) (string, error) {
	f.got = message
	if strings.TrimSpace(message) == "" {
		return "", orchestrator.ErrEmptyMessage
	}
	return f.answer, f.err
}

func (f *fakeOrchestrator) Capabilities() []agent.Metadata {
	return []agent.Metadata{{Name: "database"}, {Name: "filesystem"}}
}

type oneRecordStore struct {
	rec *models.AskRecord
}

func (s *oneRecordStore) Create(_ context.Context, rec *models.AskRecord) error {
	s.rec = rec
	return nil
}

func (s *oneRecordStore) Complete(_ context.Context, _ string, status models.TaskStatus, response, _ string) error {
	s.rec.Status, s.rec.Response = status, response
	return nil
}

func (s *oneRecordStore) Get(_ context.Context, id string) (*models.AskRecord, error) {
	if s.rec == nil || s.rec.ID != id {
		return nil, store.ErrNotFound
	}
	return s.rec, nil
}

func newRouter(orch *fakeOrchestrator, opts RouterOptions, svcOpts ...service.Option) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svcOpts = append(svcOpts, service.WithLogger(logger.Discard()))
	svc := service.NewAskService(orch, svcOpts...)
	return NewRouter(NewAPI(svc, "conductor", logger.Discard()), opts)
}

func post(router http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAsk_OK(t *testing.T) {
	orch := &fakeOrchestrator{answer: "Inserted your note."}
	rec := post(newRouter(orch, RouterOptions{}), `{"message": "save a note"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"response": "Inserted your note."}, decode(t, rec))
	assert.Equal(t, "save a note", orch.got)
	assert.NotEmpty(t, rec.Header().Get(AskIDHeader))
}

func TestAsk_EmptyMessage(t *testing.T) {
	router := newRouter(&fakeOrchestrator{}, RouterOptions{})
	for _, body := range []string{`{"message": ""}`, `{"message": "   "}`, `{}`} {
		rec := post(router, body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, map[string]any{"detail": "Message cannot be empty"}, decode(t, rec))
	}
}

func TestAsk_BadJSON(t *testing.T) {
	rec := post(newRouter(&fakeOrchestrator{}, RouterOptions{}), `{"message":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "Invalid request payload")
}

func TestAsk_OrchestratorError(t *testing.T) {
	rec := post(newRouter(&fakeOrchestrator{err: errors.New("reached max iterations")}, RouterOptions{}), `{"message":"x"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"detail": "reached max iterations"}, decode(t, rec))
}

func TestRoot(t *testing.T) {
	router := newRouter(&fakeOrchestrator{}, RouterOptions{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "conductor", body["service"])
	assert.Equal(t, []any{"database", "filesystem"}, body["capabilities"])
}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAsk_JWT(t *testing.T) {
	st := &oneRecordStore{}
	router := newRouter(&fakeOrchestrator{answer: "hi"}, RouterOptions{JwtSecret: "s3cret"}, service.WithStore(st))

	rec := post(router, `{"message":"x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bad := sign(t, "other", jwt.MapClaims{"sub": "u1"})
	rec = post(router, `{"message":"x"}`, map[string]string{"Authorization": "Bearer " + bad})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	good := sign(t, "s3cret", jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()})
	rec = post(router, `{"message":"x"}`, map[string]string{"Authorization": "Bearer " + good})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", st.rec.UserID)
}

func TestGetAsk(t *testing.T) {
	st := &oneRecordStore{}
	router := newRouter(&fakeOrchestrator{answer: "hi"}, RouterOptions{}, service.WithStore(st))

	rec := post(router, `{"message":"x"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(AskIDHeader)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/asks/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "hi", body["response"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/asks/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAsk_DisabledWithoutStore(t *testing.T) {
	router := newRouter(&fakeOrchestrator{}, RouterOptions{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/asks/any", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	router := newRouter(&fakeOrchestrator{answer: "ok"}, RouterOptions{Gatherer: reg}, service.WithMetrics(m))

	post(router, `{"message":"x"}`, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `conductor_ask_requests_total{status="success"} 1`)
}
