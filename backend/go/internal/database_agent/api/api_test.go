package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/pkg/a2a_host"
	"Conductor/backend/go/pkg/logger"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCapability struct {
	resp *models.AgentResponse
	err  error
	got  string
}

func (s *stubCapability) Name() string        { return "database" }
func (s *stubCapability) Description() string { return "stub" }
func (s *stubCapability) Invoke(_ context.Context, instruction string) (*models.AgentResponse, error) {
	s.got = instruction
	return s.resp, s.err
}

func TestNewCard(t *testing.T) {
	card := NewCard("http://localhost:8002/", "db agent", "")
	assert.Equal(t, CardName, card.Name)
	assert.Equal(t, "1.0.0", card.Version)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "create_row", card.Skills[0].ID)
}

func TestExecutor(t *testing.T) {
	ok := &stubCapability{resp: models.OK("Inserted", nil)}
	out, err := NewExecutor(ok, logger.Discard()).answer(context.Background(), "add a note")
	require.NoError(t, err)
	assert.Equal(t, "Inserted", out)
	assert.Equal(t, "add a note", ok.got)

	failed := &stubCapability{resp: models.Fail("Validation failed", models.CodeValidationError, "title: field required")}
	out, err = NewExecutor(failed, logger.Discard()).answer(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Validation failed: title: field required", out)

	broken := &stubCapability{err: errors.New("llm down")}
	_, err = NewExecutor(broken, logger.Discard()).answer(context.Background(), "x")
	assert.ErrorContains(t, err, "llm down")
}

func TestRouter_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	capability := &stubCapability{resp: models.OK("Inserted", nil)}
	srv := httptest.NewServer(NewRouter(NewCard("", "db", ""), capability, logger.Discard()))
	defer srv.Close()

	out, err := a2a_host.NewClient(nil).SendMessage(context.Background(), srv.URL+"/", "insert {\"title\": \"a\"} into notes")
	require.NoError(t, err)
	assert.Equal(t, "Inserted", out)
	assert.Equal(t, "insert {\"title\": \"a\"} into notes", capability.got)
}

func TestRouter_CapabilityErrorIsInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	capability := &stubCapability{err: errors.New("llm down")}
	srv := httptest.NewServer(NewRouter(NewCard("", "db", ""), capability, logger.Discard()))
	defer srv.Close()

	_, err := a2a_host.NewClient(nil).SendMessage(context.Background(), srv.URL+"/", "insert")
	assert.ErrorIs(t, err, a2a.ErrInternalError)
}

func TestRouter_Healthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(NewCard("", "db", ""), &stubCapability{}, logger.Discard())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), CardName)
}

func TestNewServer_ServesCardOnDatabaseAddress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.DatabaseAgent.PublicURL = "http://localhost:8002/"

	server, _, err := NewServer(cfg, &stubCapability{resp: models.OK("Inserted", nil)}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, ":8002", server.Addr())

	srv := httptest.NewServer(server.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + a2asrv.WellKnownAgentCardPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	var card a2a.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, CardName, card.Name)
	assert.Equal(t, Description, card.Description)
	assert.Equal(t, "http://localhost:8002/", card.URL)

	out, err := a2a_host.NewClient(nil).SendMessage(context.Background(), srv.URL+"/", "insert")
	require.NoError(t, err)
	assert.Equal(t, "Inserted", out)
}
