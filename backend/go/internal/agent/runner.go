package agent

import (
	"Conductor/backend/go/internal/llm"
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
)

// DefaultMaxIterations 是工具调用循环的默认上限。
const DefaultMaxIterations = 10

// ErrMaxIterations 表示模型在上限内没有给出最终回答。
var ErrMaxIterations = errors.New("reached max iterations")

// ToolHandler 执行一次工具调用，返回值会作为观察结果发回给模型。
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// Tool 把工具声明和它的处理函数绑定在一起。
type Tool struct {
	Declaration models.ToolDeclaration
	Handler     ToolHandler
}

// Observer 接收循环中的进度事件，实现方不应阻塞。
type Observer interface {
	OnThinking(iteration int)
	OnToolCall(call *models.FunctionCall)
	OnToolResult(call *models.FunctionCall, response map[string]any)
}

// Runner 是编排器和各个子 Agent 共用的有界工具调用循环。
type Runner struct {
	llm           llm.LLM
	systemPrompt  string
	maxIterations int
	log           *logger.Logger
}

// RunnerOption 配置 Runner。
type RunnerOption func(*Runner)

// WithMaxIterations 设置循环上限，非正数使用默认值。
func WithMaxIterations(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

// WithLogger 设置日志记录器。
func WithLogger(l *logger.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner 创建一个新的 Runner。
func NewRunner(client llm.LLM, systemPrompt string, opts ...RunnerOption) *Runner {
	r := &Runner{
		llm:           client,
		systemPrompt:  systemPrompt,
		maxIterations: DefaultMaxIterations,
		log:           logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run 执行循环直到模型给出不含函数调用的回答。
// 工具按模型给出的顺序依次执行；处理函数的错误以 {"error": ...} 的形式反馈给模型，不会中断循环。
func (r *Runner) Run(ctx context.Context, prompt string, tools []Tool, observer Observer) (string, error) {
	byName := make(map[string]Tool, len(tools))
	decls := make([]models.ToolDeclaration, 0, len(tools))
	for _, t := range tools {
		byName[t.Declaration.Name] = t
		decls = append(decls, t.Declaration)
	}

	history := []models.Content{models.NewTextContent(models.SpeakerUser, prompt)}

	for i := 0; i < r.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if observer != nil {
			observer.OnThinking(i + 1)
		}
		r.log.WithPayload(map[string]interface{}{"iteration": i + 1}).Debug("Tool loop iteration")

		resp, err := r.llm.GenerateContent(ctx, &models.GenerateContentRequest{
			SystemInstruction: r.systemPrompt,
			Content:           history,
			Tools:             decls,
		})
		if err != nil {
			return "", fmt.Errorf("LLM GenerateContent failed: %w", err)
		}
		reply, ok := resp.First()
		if !ok {
			return "", fmt.Errorf("LLM returned empty content")
		}

		if !reply.HasFunctionCall() {
			return reply.Text(), nil
		}

		history = append(history, reply)
		observations := models.Content{Role: models.SpeakerTool}
		for _, call := range reply.FunctionCalls() {
			if observer != nil {
				observer.OnToolCall(call)
			}
			response := r.execute(ctx, byName, call)
			if observer != nil {
				observer.OnToolResult(call, response)
			}
			observations.Parts = append(observations.Parts, &models.Part{
				FunctionResponse: &models.FunctionResponse{ID: call.ID, Name: call.Name, Response: response},
			})
		}
		history = append(history, observations)
	}

	r.log.Error("Reached max iterations, stopping.")
	return "", ErrMaxIterations
}

func (r *Runner) execute(ctx context.Context, tools map[string]Tool, call *models.FunctionCall) map[string]any {
	tool, ok := tools[call.Name]
	if !ok {
		r.log.WithPayload(map[string]interface{}{"tool_name": call.Name}).Warn("Model requested an unknown tool")
		return map[string]any{"error": fmt.Sprintf("unknown tool: %s", call.Name)}
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	out, err := tool.Handler(ctx, args)
	if err != nil {
		r.log.WithErr(err).WithPayload(map[string]interface{}{"tool_name": call.Name}).Warn("Tool call failed")
		return map[string]any{"error": err.Error()}
	}

	switch v := out.(type) {
	case map[string]any:
		return v
	case *models.AgentResponse:
		return v.ToMap()
	default:
		return map[string]any{"output": v}
	}
}

// CapabilityTool 把一个能力包装成只有 instruction 参数的工具。
// onResult 可为空，用于统计调用结果。
func CapabilityTool(c Capability, onResult func(name string, resp *models.AgentResponse, err error)) Tool {
	return Tool{
		Declaration: models.ToolDeclaration{
			Name:        c.Name(),
			Description: c.Description(),
			Parameters:  llm.StringParam(InstructionParam, "The task for this agent, in natural language."),
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			instruction, _ := args[InstructionParam].(string)
			if instruction == "" {
				return nil, fmt.Errorf("missing required argument '%s'", InstructionParam)
			}
			resp, err := c.Invoke(ctx, instruction)
			if onResult != nil {
				onResult(c.Name(), resp, err)
			}
			if err != nil {
				return nil, err
			}
			return resp, nil
		},
	}
}

// StringArg 读取字符串参数。
func StringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
