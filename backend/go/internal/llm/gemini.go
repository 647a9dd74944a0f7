package llm

import (
	"Conductor/backend/go/internal/models"
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini 是一个实现了 LLM 接口的结构体，用于与 Gemini 原生 API 交互。
// 工具与系统提示随每次请求变化，所以每次调用都会派生一个新的 GenerativeModel。
type Gemini struct {
	client    *genai.Client
	modelName string
}

// NewGemini 创建一个新的 Gemini 客户端。
//
// 参数:
//
//	ctx: 上下文，用于控制客户端的生命周期。
//	model: 要使用的 Gemini 模型名称。
//	apiKey: Gemini API 密钥。
func NewGemini(ctx context.Context, model, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, modelName: model}, nil
}

// GenerateContent 把历史记录回放到聊天会话中，再发送最后一条消息。
func (g *Gemini) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	if len(req.Content) == 0 {
		return nil, errors.New("gemini: empty request content")
	}

	model := g.client.GenerativeModel(g.modelName)
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstruction)}}
	}
	if len(req.Tools) > 0 {
		decls, err := toGenaiDeclarations(req.Tools)
		if err != nil {
			return nil, err
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	session := model.StartChat()
	last := len(req.Content) - 1
	for _, c := range req.Content[:last] {
		session.History = append(session.History, toGenaiContent(c))
	}

	resp, err := session.SendMessage(ctx, toGenaiContent(req.Content[last]).Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini send message: %w", err)
	}
	return fromGenaiResponse(resp), nil
}

// Close 释放底层连接。
func (g *Gemini) Close() error {
	return g.client.Close()
}

// toGenaiContent 将内部 Content 转换为 GenAI Content。
// 函数结果以 user 角色发送，这是 Gemini 对话协议的要求。
func toGenaiContent(c models.Content) *genai.Content {
	role := "user"
	if c.Role == models.SpeakerModel {
		role = "model"
	}
	out := &genai.Content{Role: role}
	for _, p := range c.Parts {
		if p == nil {
			continue
		}
		switch {
		case p.FunctionCall != nil:
			out.Parts = append(out.Parts, genai.FunctionCall{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args})
		case p.FunctionResponse != nil:
			out.Parts = append(out.Parts, genai.FunctionResponse{Name: p.FunctionResponse.Name, Response: p.FunctionResponse.Response})
		case p.Text != "":
			out.Parts = append(out.Parts, genai.Text(p.Text))
		}
	}
	return out
}

// fromGenaiResponse 将 GenAI 响应转换为内部响应结构体。
// Gemini 不返回调用 ID，这里用函数名和序号补齐，供后续的 FunctionResponse 对应。
func fromGenaiResponse(resp *genai.GenerateContentResponse) *models.GenerateContentResponse {
	if resp == nil {
		return &models.GenerateContentResponse{}
	}
	var content []models.Content
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		var parts []*models.Part
		for i, p := range cand.Content.Parts {
			switch v := p.(type) {
			case genai.Text:
				parts = append(parts, &models.Part{Text: string(v)})
			case genai.FunctionCall:
				parts = append(parts, &models.Part{FunctionCall: &models.FunctionCall{
					ID:   fmt.Sprintf("%s-%d", v.Name, i),
					Name: v.Name,
					Args: v.Args,
				}})
			default:
				parts = append(parts, &models.Part{Text: fmt.Sprintf("%v", v)})
			}
		}
		content = append(content, models.Content{Parts: parts, Role: models.SpeakerModel})
	}
	return &models.GenerateContentResponse{Content: content}
}

// toGenaiDeclarations 将工具声明转换为 Gemini 的 FunctionDeclaration 列表。
func toGenaiDeclarations(decls []models.ToolDeclaration) ([]*genai.FunctionDeclaration, error) {
	out := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		fd := &genai.FunctionDeclaration{Name: d.Name, Description: d.Description}
		if props, _ := d.Parameters["properties"].(map[string]any); len(props) > 0 {
			schema, err := toGenaiSchema(d.Parameters)
			if err != nil {
				return nil, fmt.Errorf("error converting parameters for tool '%s': %w", d.Name, err)
			}
			fd.Parameters = schema
		}
		out = append(out, fd)
	}
	return out, nil
}

// toGenaiSchema 递归转换 JSON Schema。
func toGenaiSchema(in map[string]any) (*genai.Schema, error) {
	s := &genai.Schema{}
	if desc, ok := in["description"].(string); ok {
		s.Description = desc
	}

	typ, _ := in["type"].(string)
	switch typ {
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	case "object", "":
		s.Type = genai.TypeObject
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", typ)
	}

	if enum, ok := in["enum"].([]any); ok {
		for _, e := range enum {
			if str, ok := e.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	s.Required = toStringSlice(in["required"])

	if props, ok := in["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			child, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid parameter format for %s", name)
			}
			converted, err := toGenaiSchema(child)
			if err != nil {
				return nil, err
			}
			s.Properties[name] = converted
		}
	}
	if items, ok := in["items"].(map[string]any); ok {
		converted, err := toGenaiSchema(items)
		if err != nil {
			return nil, err
		}
		s.Items = converted
	}
	return s, nil
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
