package llm

import (
	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/internal/models"
	"context"
	"fmt"
	"strings"
)

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
// 编排器、子 Agent 和分类器都只依赖这个接口，测试中可以注入桩实现。
type LLM interface {
	GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error)
}

// NewClient 根据配置创建模型客户端。
// 缺少 API 密钥不会在这里报错，认证失败会在第一次调用时由远端返回。
func NewClient(cfg config.LLMConfig) (LLM, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return NewOpenAI(cfg.Model, cfg.APIKey, cfg.BaseURL), nil
	case "gemini":
		return NewGemini(context.Background(), cfg.Model, cfg.APIKey)
	case "ollama":
		return NewOllama(cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// GenerateText 是只需要一段文本回答时的便捷封装。
func GenerateText(ctx context.Context, client LLM, system, prompt string) (string, error) {
	resp, err := client.GenerateContent(ctx, &models.GenerateContentRequest{
		SystemInstruction: system,
		Content:           []models.Content{models.NewTextContent(models.SpeakerUser, prompt)},
	})
	if err != nil {
		return "", err
	}
	first, ok := resp.First()
	if !ok {
		return "", fmt.Errorf("LLM returned empty content")
	}
	return first.Text(), nil
}
