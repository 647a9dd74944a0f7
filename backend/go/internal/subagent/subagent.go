// Package subagent 把一个或多个 MCP 工具服务包装成编排器可以委派任务的能力。
package subagent

import (
	"Conductor/backend/go/internal/agent"
	"Conductor/backend/go/internal/llm"
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/pkg/logger"
	"Conductor/backend/go/pkg/mcp_host"
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"golang.org/x/sync/errgroup"
)

// ServerSpec 描述一个以 stdio 子进程方式运行的工具服务。
type ServerSpec struct {
	Name    string
	Command string
	Args    []string
	Env     []string
	// Credential 为所需凭据的值；CredentialName 不为空而 Credential 为空时不启动。
	CredentialName string
	Credential     string
}

// Enabled 判断启动所需的凭据是否齐全。
func (s ServerSpec) Enabled() bool {
	return s.CredentialName == "" || s.Credential != ""
}

// SubAgent 是一个拥有独立工具服务和系统提示词的子 Agent。
type SubAgent struct {
	name        string
	description string
	servers     []ServerSpec
	host        *mcp_host.Host
	runner      *agent.Runner
	log         *logger.Logger
}

var _ agent.Capability = (*SubAgent)(nil)

// Option 配置 SubAgent。
type Option func(*SubAgent)

// WithLogger 设置日志记录器。
func WithLogger(l *logger.Logger) Option {
	return func(s *SubAgent) {
		if l != nil {
			s.log = l
		}
	}
}

// New 创建一个子 Agent，工具服务在 Start 时才会启动。
func New(name, description, systemPrompt string, client llm.LLM, servers []ServerSpec, maxIterations int, opts ...Option) *SubAgent {
	s := &SubAgent{
		name:        name,
		description: description,
		servers:     servers,
		host:        mcp_host.NewHost(),
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = agent.NewRunner(client, systemPrompt,
		agent.WithMaxIterations(maxIterations),
		agent.WithLogger(s.log))
	return s
}

func (s *SubAgent) Name() string        { return s.name }
func (s *SubAgent) Description() string { return s.description }

// Start 启动所有可用的工具服务，单个服务失败只记录日志。
// 返回成功启动的服务数量。
func (s *SubAgent) Start(ctx context.Context) int {
	started := 0
	for _, spec := range s.servers {
		if !spec.Enabled() {
			s.log.WithPayload(map[string]interface{}{"server": spec.Name, "credential": spec.CredentialName}).
				Warn("Credential missing, tool server not started")
			continue
		}
		err := s.host.Connect(ctx, mcp_host.ConnectOptions{
			ServerName: spec.Name,
			Command:    spec.Command,
			Args:       spec.Args,
			Env:        spec.Env,
		})
		if err != nil {
			s.log.WithErr(err).WithPayload(map[string]interface{}{"server": spec.Name}).Error("Failed to start tool server")
			continue
		}
		started++
		s.log.WithPayload(map[string]interface{}{"server": spec.Name}).Info("Tool server started")
	}
	return started
}

// Attach 直接挂载一个已创建的 MCP 客户端。
func (s *SubAgent) Attach(ctx context.Context, name string, c client.MCPClient) error {
	return s.host.Attach(ctx, name, c)
}

// Available 表示至少有一个工具服务在运行。
func (s *SubAgent) Available() bool {
	return len(s.host.Servers()) > 0
}

// Stop 关闭全部工具服务子进程。
func (s *SubAgent) Stop() error {
	return s.host.CloseAll()
}

// Invoke 用当前工具服务提供的工具运行工具调用循环。
func (s *SubAgent) Invoke(ctx context.Context, instruction string) (*models.AgentResponse, error) {
	if !s.Available() {
		return models.Fail(
			fmt.Sprintf("%s is not available", s.name),
			models.CodeCapabilityUnavailable,
			"no tool server is running for this agent",
		), nil
	}

	mcpTools, err := s.host.ListTools(ctx)
	if err != nil {
		s.log.WithErr(err).Warn("Some tool servers failed to list tools")
	}
	if len(mcpTools) == 0 {
		return models.Fail(
			fmt.Sprintf("%s has no tools", s.name),
			models.CodeCapabilityUnavailable,
			fmt.Sprint(err),
		), nil
	}

	decls := llm.ConvertMCPTools(mcpTools)
	tools := make([]agent.Tool, 0, len(decls))
	for _, decl := range decls {
		toolName := decl.Name
		tools = append(tools, agent.Tool{
			Declaration: decl,
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.host.CallTool(ctx, toolName, args)
			},
		})
	}

	answer, err := s.runner.Run(ctx, instruction, tools, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	return models.OK(answer, nil), nil
}

// StartAll 并发启动所有子 Agent 的工具服务，单个失败不会影响其他子 Agent。
func StartAll(ctx context.Context, log *logger.Logger, agents ...*SubAgent) {
	var g errgroup.Group
	for _, sa := range agents {
		g.Go(func() error {
			n := sa.Start(ctx)
			log.WithPayload(map[string]interface{}{"agent": sa.Name(), "servers": n}).Info("Sub-agent started")
			return nil
		})
	}
	_ = g.Wait()
}

// StopAll 关闭所有子 Agent 的工具服务。
func StopAll(log *logger.Logger, agents ...*SubAgent) {
	for _, sa := range agents {
		if err := sa.Stop(); err != nil {
			log.WithErr(err).WithPayload(map[string]interface{}{"agent": sa.Name()}).Error("Error stopping sub-agent")
		}
	}
}
