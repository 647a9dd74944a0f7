package llm

import (
	"Conductor/backend/go/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAI 是一个用于 OpenAI 兼容接口的 LLM 客户端。
// Gemini 的 OpenAI 兼容端点也走这里。
type OpenAI struct {
	client *openai.Client // OpenAI 客户端实例。
	model  string         // 要使用的模型名称。
}

// NewOpenAI 创建一个新的 OpenAI 客户端，baseURL 为空时使用官方地址。
func NewOpenAI(model, apiKey, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// GenerateContent 使用 OpenAI API 生成内容。
func (o *OpenAI) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	openaiReq := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: toOpenAIMessages(req),
	}
	if len(req.Tools) > 0 {
		openaiReq.Tools = toOpenAITools(req.Tools)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}

	return fromOpenAIResponse(&resp), nil
}

// toOpenAIMessages 将内部请求转换为 OpenAI 的消息列表。
// 模型发起的函数调用对应 assistant 消息中的 tool_calls，函数结果对应 tool 消息。
func toOpenAIMessages(req *models.GenerateContentRequest) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}

	for _, content := range req.Content {
		switch content.Role {
		case models.SpeakerModel:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content.Text(),
			}
			for _, fc := range content.FunctionCalls() {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   fc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      fc.Name,
						Arguments: fc.ArgsToString(),
					},
				})
			}
			messages = append(messages, msg)
		case models.SpeakerTool:
			for _, part := range content.Parts {
				if part == nil || part.FunctionResponse == nil {
					continue
				}
				body, err := json.Marshal(part.FunctionResponse.Response)
				if err != nil {
					body = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
				}
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    string(body),
					Name:       part.FunctionResponse.Name,
					ToolCallID: part.FunctionResponse.ID,
				})
			}
		default:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: content.Text(),
			})
		}
	}
	return messages
}

// toOpenAITools 将工具声明转换为 OpenAI 的 function 工具。
func toOpenAITools(decls []models.ToolDeclaration) []openai.Tool {
	tools := make([]openai.Tool, 0, len(decls))
	for _, d := range decls {
		params := d.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

// fromOpenAIResponse 将 OpenAI 响应转换为我们的内部格式。
func fromOpenAIResponse(resp *openai.ChatCompletionResponse) *models.GenerateContentResponse {
	var content []models.Content
	for _, choice := range resp.Choices {
		var parts []*models.Part
		if choice.Message.Content != "" {
			parts = append(parts, &models.Part{Text: choice.Message.Content})
		}
		for _, tc := range choice.Message.ToolCalls {
			parts = append(parts, &models.Part{FunctionCall: fromOpenAIToolCall(tc)})
		}
		content = append(content, models.Content{Parts: parts, Role: models.SpeakerModel})
	}

	return &models.GenerateContentResponse{
		Content:      content,
		ResponseID:   resp.ID,
		ModelVersion: resp.Model,
	}
}

func fromOpenAIToolCall(tc openai.ToolCall) *models.FunctionCall {
	id := tc.ID
	if id == "" {
		// 部分兼容端点不返回调用 ID，tool 消息又必须带上它
		id = "call_" + uuid.NewString()
	}
	args := map[string]any{}
	if strings.TrimSpace(tc.Function.Arguments) != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = map[string]any{"raw": tc.Function.Arguments}
		}
	}
	return &models.FunctionCall{ID: id, Name: tc.Function.Name, Args: args}
}
