package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"Conductor/backend/go/internal/llm"
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/pkg/logger"

	"github.com/a2aproject/a2a-go/a2a"
)

// ErrNoAgents 表示没有任何可用的 Agent 名片。
var ErrNoAgents = errors.New("no agent cards available")

// SearcherPrompt 是选择 Agent 时的系统提示词。
const SearcherPrompt = `Your job is to search through a list of agent cards, which will have descriptions and URLs of agents, and determine which agent to use for a given query.
You should ONLY return the URL of the chosen agent.`

// Doer 是发送请求的最小接口。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Searcher 拉取注册表中每个 Agent 的名片，再让模型挑选一个。
type Searcher struct {
	source Source
	client Doer
	llm    llm.LLM
	log    *logger.Logger
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithLogger sets the searcher's logger.
func WithLogger(log *logger.Logger) SearcherOption {
	return func(s *Searcher) { s.log = log }
}

// NewSearcher creates a Searcher.
func NewSearcher(source Source, client Doer, model llm.LLM, opts ...SearcherOption) *Searcher {
	s := &Searcher{source: source, client: client, llm: model, log: logger.New("agent_searcher", "", "")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Candidate 是一个成功拉取到名片的 Agent。
type Candidate struct {
	Descriptor models.AgentDescriptor
	Card       a2a.AgentCard
}

// URL 返回 Agent 的调用地址：名片中声明的 url，缺失时使用注册表地址。
func (c Candidate) URL() string {
	if u := strings.TrimSpace(c.Card.URL); u != "" {
		return u
	}
	return c.Descriptor.BaseURL()
}

// Cards 按注册表顺序拉取所有名片，失败的条目记录日志后跳过。
func (s *Searcher) Cards(ctx context.Context) ([]Candidate, error) {
	descs, err := s.source.Descriptors(ctx)
	if err != nil {
		s.log.WithErr(err).Warn("agent source returned errors")
	}

	var out []Candidate
	for _, d := range descs {
		card, err := s.fetchCard(ctx, d.CardURL())
		if err != nil {
			s.log.WithErr(err).WithPayload(map[string]interface{}{"agent": d.Name, "url": d.CardURL()}).
				Warn("Failed to fetch agent card")
			continue
		}
		out = append(out, Candidate{Descriptor: d, Card: card})
	}
	return out, nil
}

func (s *Searcher) fetchCard(ctx context.Context, url string) (a2a.AgentCard, error) {
	var card a2a.AgentCard
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return card, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return card, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return card, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return card, fmt.Errorf("decode agent card: %w", err)
	}
	return card, nil
}

// SearchAgents 返回最适合处理 query 的 Agent 地址。
// 模型的回答不在候选地址中时退回第一个候选。
func (s *Searcher) SearchAgents(ctx context.Context, query string) (string, error) {
	candidates, err := s.Cards(ctx)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", ErrNoAgents
	}
	if len(candidates) == 1 {
		return candidates[0].URL(), nil
	}

	answer, err := llm.GenerateText(ctx, s.llm, SearcherPrompt, buildSearchPrompt(query, candidates))
	if err != nil {
		return "", fmt.Errorf("agent search failed: %w", err)
	}
	if url, ok := matchURL(answer, candidates); ok {
		return url, nil
	}
	s.log.WithPayload(map[string]interface{}{"answer": answer}).
		Warn("agent search answer is not an offered url, using the first candidate")
	return candidates[0].URL(), nil
}

type cardSummary struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	URL         string           `json:"url"`
	Skills      []a2a.AgentSkill `json:"skills,omitempty"`
}

func buildSearchPrompt(query string, candidates []Candidate) string {
	summaries := make([]cardSummary, len(candidates))
	for i, c := range candidates {
		summaries[i] = cardSummary{
			Name:        c.Card.Name,
			Description: c.Card.Description,
			URL:         c.URL(),
			Skills:      c.Card.Skills,
		}
	}
	cards, _ := json.MarshalIndent(summaries, "", "  ")
	return fmt.Sprintf("Query: %s\n\nAgent cards:\n%s\n\nReturn only the url of the chosen agent.", query, cards)
}

// matchURL 先做精确匹配，再做包含匹配。
func matchURL(answer string, candidates []Candidate) (string, bool) {
	a := strings.Trim(strings.TrimSpace(answer), "\"'`<>")
	a = strings.TrimRight(a, "/.")
	for _, c := range candidates {
		if strings.TrimRight(c.URL(), "/") == a {
			return c.URL(), true
		}
	}
	for _, trim := range []bool{false, true} {
		for _, c := range candidates {
			u := c.URL()
			if trim {
				u = strings.TrimRight(u, "/")
			}
			if strings.Contains(answer, u) {
				return c.URL(), true
			}
		}
	}
	return "", false
}
