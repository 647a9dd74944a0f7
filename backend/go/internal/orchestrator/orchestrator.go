// Package orchestrator 把用户请求交给模型，由模型决定调用哪些能力。
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"Conductor/backend/go/internal/agent"
	"Conductor/backend/go/internal/llm"
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/pkg/logger"
	"Conductor/backend/go/pkg/metrics"
)

// ErrEmptyMessage 表示请求内容为空。
var ErrEmptyMessage = errors.New("message cannot be empty")

// SystemPrompt 是编排器的系统提示词。
const SystemPrompt = `You are a primary orchestration agent that can call upon specialized subagents to perform various tasks.
Each subagent is an expert in interacting with a specific service. Analyze the user request and delegate the work to the appropriate subagent by calling its tool with a clear instruction.
You may call several subagents for one request. When the work is done, answer the user directly.`

// Orchestrator 持有所有能力，并用工具调用循环处理请求。
type Orchestrator struct {
	registry *agent.LocalRegistry
	runner   *agent.Runner
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	maxIterations int
	metrics       *metrics.Metrics
	log           *logger.Logger
}

// WithMaxIterations 设置单次请求的循环上限。
func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

// WithMetrics 记录每次能力调用。
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates an Orchestrator over the capabilities in registry.
func New(client llm.LLM, registry *agent.LocalRegistry, opts ...Option) *Orchestrator {
	o := options{log: logger.New("orchestrator", "", "")}
	for _, opt := range opts {
		opt(&o)
	}
	return &Orchestrator{
		registry: registry,
		runner: agent.NewRunner(client, SystemPrompt,
			agent.WithMaxIterations(o.maxIterations),
			agent.WithLogger(o.log),
		),
		metrics: o.metrics,
		log:     o.log,
	}
}

// Capabilities 返回当前可用能力的描述。
func (o *Orchestrator) Capabilities() []agent.Metadata {
	return o.registry.Metadata()
}

// Ask 处理一条用户消息并返回最终回答。
func (o *Orchestrator) Ask(ctx context.Context, message string) (string, error) {
	return o.AskObserved(ctx, message, nil)
}

// AskObserved 与 Ask 相同，并把循环中的进度事件交给 observer。
func (o *Orchestrator) AskObserved(ctx context.Context, message string, observer agent.Observer) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	caps := o.registry.List()
	tools := make([]agent.Tool, 0, len(caps))
	for _, c := range caps {
		tools = append(tools, agent.CapabilityTool(c, o.recordInvocation))
	}

	start := time.Now()
	answer, err := o.runner.Run(ctx, message, tools, observer)
	if err != nil {
		o.log.WithErr(err).Error("orchestrator run failed")
		return "", err
	}
	o.log.WithPayload(map[string]interface{}{"duration_ms": time.Since(start).Milliseconds()}).Debug("orchestrator run finished")
	return answer, nil
}

func (o *Orchestrator) recordInvocation(name string, resp *models.AgentResponse, err error) {
	var (
		success bool
		code    string
	)
	if resp != nil {
		success = resp.Success
		code = resp.ErrorCode()
	}
	o.metrics.CapabilityInvoked(name, metrics.Outcome(success, code, err))
}
