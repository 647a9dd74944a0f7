// Package llmtest 提供测试用的模型桩实现。
package llmtest

import (
	"Conductor/backend/go/internal/models"
	"context"
	"errors"
	"sync"
)

// ErrExhausted 表示脚本中的回复已经用完。
var ErrExhausted = errors.New("llmtest: no scripted reply left")

// Reply 构造一段脚本回复。
type Reply func(req *models.GenerateContentRequest) (*models.GenerateContentResponse, error)

// Scripted 按顺序返回预先写好的回复，并记录收到的请求。
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	Requests []*models.GenerateContentRequest
}

// New 创建一个脚本化模型。
func New(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

// GenerateContent 实现 llm.LLM。
func (s *Scripted) GenerateContent(_ context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, cloneRequest(req))
	if len(s.replies) == 0 {
		return nil, ErrExhausted
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return next(req)
}

// Calls 返回已处理的请求数量。
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

// Text 回复一段纯文本。
func Text(text string) Reply {
	return func(*models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
		return &models.GenerateContentResponse{
			Content: []models.Content{models.NewTextContent(models.SpeakerModel, text)},
		}, nil
	}
}

// Call 回复一个函数调用。
func Call(id, name string, args map[string]any) Reply {
	return func(*models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
		return &models.GenerateContentResponse{
			Content: []models.Content{{
				Role:  models.SpeakerModel,
				Parts: []*models.Part{{FunctionCall: &models.FunctionCall{ID: id, Name: name, Args: args}}},
			}},
		}, nil
	}
}

// Fail 回复一个错误。
func Fail(err error) Reply {
	return func(*models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
		return nil, err
	}
}

// Func 按请求内容动态生成回复。
func Func(fn Reply) Reply { return fn }

// LastPrompt 返回请求中最后一条消息的文本。
func LastPrompt(req *models.GenerateContentRequest) string {
	if len(req.Content) == 0 {
		return ""
	}
	return req.Content[len(req.Content)-1].Text()
}

func cloneRequest(req *models.GenerateContentRequest) *models.GenerateContentRequest {
	c := *req
	c.Content = append([]models.Content(nil), req.Content...)
	c.Tools = append([]models.ToolDeclaration(nil), req.Tools...)
	return &c
}
