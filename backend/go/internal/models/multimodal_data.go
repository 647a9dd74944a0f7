package models

import (
	"encoding/json"
	"strings"
	"time"
)

// SpeakerRole 定义了消息发送者的角色。
type SpeakerRole string

const (
	SpeakerUser  SpeakerRole = "user"  // 用户角色。
	SpeakerModel SpeakerRole = "model" // 模型角色。
	SpeakerTool  SpeakerRole = "tool"  // 工具角色。
)

// Content 包含了构成单个消息的多个部分。
type Content struct {
	// 可选。构成单个消息的部分列表。
	Parts []*Part `json:"parts,omitempty"`
	// 可选。内容的生产者。
	Role SpeakerRole `json:"role,omitempty"`
}

// NewTextContent 构造只包含一段文本的消息。
func NewTextContent(role SpeakerRole, text string) Content {
	return Content{Role: role, Parts: []*Part{{Text: text}}}
}

// HasFunctionCall 判断消息中是否包含模型发起的函数调用。
func (c Content) HasFunctionCall() bool {
	for _, p := range c.Parts {
		if p != nil && p.FunctionCall != nil {
			return true
		}
	}
	return false
}

// FunctionCalls 返回消息中全部的函数调用，顺序与模型给出的顺序一致。
func (c Content) FunctionCalls() []*FunctionCall {
	var calls []*FunctionCall
	for _, p := range c.Parts {
		if p != nil && p.FunctionCall != nil {
			calls = append(calls, p.FunctionCall)
		}
	}
	return calls
}

// Text 拼接消息中的全部文本部分。
func (c Content) Text() string {
	var sb strings.Builder
	for _, p := range c.Parts {
		if p == nil || p.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// GenerateContentRequest 定义了生成内容的请求结构。
// 工具列表随请求传递，同一个模型句柄可以被多个 Agent 以不同的工具集复用。
type GenerateContentRequest struct {
	SystemInstruction string            `json:"systemInstruction,omitempty"` // 系统提示词。
	Content           []Content         `json:"content,omitempty"`           // 对话历史。
	Tools             []ToolDeclaration `json:"tools,omitempty"`             // 本次请求可用的工具。
}

// GenerateContentResponse 定义了生成内容的响应结构。
type GenerateContentResponse struct {
	Content      []Content `json:"content,omitempty"`      // 响应的内容列表。
	CreateTime   time.Time `json:"createTime,omitempty"`   // 响应创建时间。
	ResponseID   string    `json:"responseId,omitempty"`   // 响应ID。
	ModelVersion string    `json:"modelVersion,omitempty"` // 模型版本。
}

// First 返回第一个候选消息；没有候选时返回零值和 false。
func (r *GenerateContentResponse) First() (Content, bool) {
	if r == nil || len(r.Content) == 0 {
		return Content{}, false
	}
	return r.Content[0], true
}

// Part 定义了消息的单个部分。
type Part struct {
	// 可选。文本部分。
	Text string `json:"text,omitempty"`
	// 可选。模型返回的函数调用。
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`
	// 可选。函数调用的结果，作为下一轮的上下文发回给模型。
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// FunctionCall 包含了模型预测的函数调用信息。
type FunctionCall struct {
	// 可选。函数调用的唯一 ID，响应需要带上相同的 ID。
	ID string `json:"id,omitempty"`
	// 必填。要调用的函数名称。
	Name string `json:"name,omitempty"`
	// 可选。JSON 对象格式的函数参数。
	Args map[string]any `json:"args,omitempty"`
}

// ArgsToString 把参数序列化为 JSON 字符串，失败时返回空对象。
func (fc *FunctionCall) ArgsToString() string {
	if fc == nil || len(fc.Args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(fc.Args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// FunctionResponse 包含了函数调用的结果输出。
type FunctionResponse struct {
	// 可选。对应的函数调用 ID。
	ID string `json:"id,omitempty"`
	// 必填。函数名称，与 FunctionCall.Name 一致。
	Name string `json:"name,omitempty"`
	// 必填。使用 "output" 键表示输出，"error" 键表示错误。
	Response map[string]any `json:"response,omitempty"`
}

// ToolDeclaration 描述一个可以交给模型调用的工具。
// Parameters 是 JSON Schema 形式的对象描述。
type ToolDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}
