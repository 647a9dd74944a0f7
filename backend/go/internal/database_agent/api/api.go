// Package api 把数据库 Agent 以 A2A 服务的形式暴露给其他 Agent。
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"Conductor/backend/go/internal/agent"
	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/pkg/a2a_host"
	phttp "Conductor/backend/go/pkg/http"
	"Conductor/backend/go/pkg/logger"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	"github.com/gin-gonic/gin"
)

// CardName 是名片和注册表中使用的 Agent 名称。
const CardName = "Supabase Agent"

// Description 是名片与注册中心里的能力说明。
const Description = "Creates rows in the database, fetches rows with filters and evolves table schemas. New rows are categorized automatically."

// CreateRowSkill 是名片中声明的技能。
var CreateRowSkill = a2a.AgentSkill{
	ID:          "create_row",
	Name:        "Create Row",
	Description: "creates a new row in the database",
	Tags:        []string{"database", "insert", "create"},
	Examples: []string{
		"Your new record has been created",
		"Your new table has been created",
		"There was an error creating the row",
	},
}

// NewCard 构造数据库 Agent 的名片。
func NewCard(publicURL, description, version string) a2a.AgentCard {
	return a2a_host.Card(a2a_host.CardOptions{
		Name:        CardName,
		Description: description,
		URL:         publicURL,
		Version:     version,
		Skills:      []a2a.AgentSkill{CreateRowSkill},
	})
}

// Executor 把 A2A 消息交给数据库能力处理，实现 a2asrv.AgentExecutor。
type Executor struct {
	capability agent.Capability
	log        *logger.Logger
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)

// NewExecutor creates an Executor.
func NewExecutor(capability agent.Capability, log *logger.Logger) *Executor {
	return &Executor{capability: capability, log: log}
}

// Execute 把回答作为一条 agent 消息写入队列。
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	text, err := a2a_host.RequestText(reqCtx)
	if err != nil {
		return err
	}
	answer, err := e.answer(ctx, text)
	if err != nil {
		e.log.WithErr(err).Error("a2a executor failed")
		return err
	}
	return a2a_host.Reply(ctx, reqCtx, queue, answer)
}

// Cancel 不支持：每个请求都在一次调用内同步完成。
func (e *Executor) Cancel(context.Context, *a2asrv.RequestContext, eventqueue.Queue) error {
	return a2a.ErrTaskNotCancelable
}

// answer 业务失败以文本返回给调用方，只有无法产生结果时才返回错误。
func (e *Executor) answer(ctx context.Context, text string) (string, error) {
	resp, err := e.capability.Invoke(ctx, text)
	if err != nil {
		return "", fmt.Errorf("invoke database agent: %w", err)
	}
	if resp.Success {
		return resp.Message, nil
	}
	e.log.WithPayload(map[string]interface{}{"code": resp.ErrorCode()}).Warn("database agent request failed")
	if resp.Error != nil && resp.Error.Detail != "" {
		return fmt.Sprintf("%s: %s", resp.Message, resp.Error.Detail), nil
	}
	return resp.Message, nil
}

// NewRouter 注册名片、JSON-RPC 入口和健康检查。
func NewRouter(card a2a.AgentCard, capability agent.Capability, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	a2a_host.NewServer(card, NewExecutor(capability, log)).Register(router)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "agent": card.Name})
	})
	return router
}

// NewServer 在 cfg.DatabaseAgent.Address 上构造数据库 Agent 的 A2A 服务，
// 独立的 database_agent 与开启 serveA2A 的 orchestrator 共用。
func NewServer(cfg *config.AppConfig, capability agent.Capability, log *logger.Logger) (*phttp.Server, *gin.Engine, error) {
	card := NewCard(strings.TrimSuffix(cfg.DatabaseAgent.PublicURL, "/")+"/", Description, cfg.App.Version)
	router := NewRouter(card, capability, log)
	server, err := phttp.NewServer(cfg, router, phttp.WithAddress(cfg.DatabaseAgent.Address), phttp.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return server, router, nil
}
