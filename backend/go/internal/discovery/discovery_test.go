package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"Conductor/backend/go/internal/llm/llmtest"
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/pkg/logger"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry([]models.AgentDescriptor{
		{Name: "zeta", Port: 9001},
		{Name: "alpha", Port: 9002, Host: "db.internal"},
	})
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)

	d, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "http://db.internal:9002/.well-known/agent.json", d.CardURL())

	list[0].Name = "mutated"
	assert.Equal(t, "alpha", r.List()[0].Name)
}

func TestNewRegistry_Invalid(t *testing.T) {
	_, err := NewRegistry([]models.AgentDescriptor{{Name: "a", Port: 1}, {Name: "a", Port: 2}})
	assert.Error(t, err)
	_, err = NewRegistry([]models.AgentDescriptor{{Name: "a", Port: 0}})
	assert.Error(t, err)
	_, err = NewRegistry([]models.AgentDescriptor{{Port: 80}})
	assert.Error(t, err)
}

type failingSource struct{}

func (failingSource) Descriptors(context.Context) ([]models.AgentDescriptor, error) {
	return nil, errors.New("etcd down")
}

func TestMultiSource_StaticWins(t *testing.T) {
	static, _ := NewRegistry([]models.AgentDescriptor{{Name: "db", Port: 8002, Description: "static"}})
	dynamic, _ := NewRegistry([]models.AgentDescriptor{
		{Name: "db", Port: 9999, Description: "dynamic"},
		{Name: "search", Port: 8003},
	})

	descs, err := MultiSource{static, failingSource{}, dynamic}.Descriptors(context.Background())
	assert.ErrorContains(t, err, "etcd down")
	require.Len(t, descs, 2)
	assert.Equal(t, "static", descs[0].Description)
	assert.Equal(t, "search", descs[1].Name)
}

// cardServer 启动一个返回名片的服务，并返回指向它的注册表条目。
func cardServer(t *testing.T, name, description string) models.AgentDescriptor {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/agent.json" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(a2a.AgentCard{Name: name, Description: description, URL: srv.URL + "/"})
	}))
	t.Cleanup(srv.Close)
	return descriptorFor(t, name, srv.URL)
}

func descriptorFor(t *testing.T, name, raw string) models.AgentDescriptor {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return models.AgentDescriptor{Name: name, Host: host, Port: port}
}

func TestSearchAgents_PicksAnsweredURL(t *testing.T) {
	db := cardServer(t, "Supabase Agent", "inserts rows")
	search := cardServer(t, "Search Agent", "searches the web")
	registry, err := NewRegistry([]models.AgentDescriptor{db, search})
	require.NoError(t, err)

	model := llmtest.New(llmtest.Text("The best agent is " + search.BaseURL() + "/"))
	s := NewSearcher(registry, http.DefaultClient, model, WithLogger(logger.Discard()))

	got, err := s.SearchAgents(context.Background(), "find news about go")
	require.NoError(t, err)
	assert.Equal(t, search.BaseURL()+"/", got)

	prompt := llmtest.LastPrompt(model.Requests[0])
	assert.Contains(t, prompt, "find news about go")
	assert.Contains(t, prompt, "searches the web")
}

func TestSearchAgents_FallsBackToFirstCandidate(t *testing.T) {
	db := cardServer(t, "Supabase Agent", "inserts rows")
	search := cardServer(t, "Search Agent", "searches the web")
	registry, _ := NewRegistry([]models.AgentDescriptor{search, db})

	s := NewSearcher(registry, http.DefaultClient, llmtest.New(llmtest.Text("http://elsewhere:1/")), WithLogger(logger.Discard()))
	got, err := s.SearchAgents(context.Background(), "anything")
	require.NoError(t, err)
	// 注册表按名称排序，Search Agent 排在第一位
	assert.Equal(t, search.BaseURL()+"/", got)
}

func TestSearchAgents_SkipsUnreachableAndErrorsWhenNone(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	defer down.Close()
	registry, _ := NewRegistry([]models.AgentDescriptor{descriptorFor(t, "broken", down.URL)})

	s := NewSearcher(registry, http.DefaultClient, llmtest.New(), WithLogger(logger.Discard()))
	_, err := s.SearchAgents(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNoAgents)
}

func TestSearchAgents_SingleCandidateSkipsModel(t *testing.T) {
	db := cardServer(t, "Supabase Agent", "inserts rows")
	registry, _ := NewRegistry([]models.AgentDescriptor{db})
	model := llmtest.New()

	got, err := NewSearcher(registry, http.DefaultClient, model, WithLogger(logger.Discard())).
		SearchAgents(context.Background(), "insert a row")
	require.NoError(t, err)
	assert.Equal(t, db.BaseURL()+"/", got)
	assert.Equal(t, 0, model.Calls())
}
