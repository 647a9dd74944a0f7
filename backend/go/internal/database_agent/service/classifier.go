package service

import (
	"Conductor/backend/go/internal/llm"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Uncategorized 在分类器没有给出可用标签时使用。
const Uncategorized = "uncategorized"

// Classifier 为一条记录选择已有分类或提出一个新分类。
type Classifier interface {
	Classify(ctx context.Context, data map[string]any, existing []string) (string, error)
}

// LLMClassifier 用一次模型调用完成分类。
type LLMClassifier struct {
	llm llm.LLM
}

// NewLLMClassifier 创建分类器。
func NewLLMClassifier(client llm.LLM) *LLMClassifier {
	return &LLMClassifier{llm: client}
}

const classifierSystemPrompt = "You label database records. Answer with the category label only, no explanation."

// ClassifierPrompt 构造分类提示词。
func ClassifierPrompt(data map[string]any, existing []string) string {
	body, err := json.Marshal(data)
	if err != nil {
		body = []byte(fmt.Sprintf("%v", data))
	}
	cats, _ := json.Marshal(existing)
	if existing == nil {
		cats = []byte("[]")
	}
	return fmt.Sprintf("Given the following data: %s, and these categories: %s, suggest the best category or a new concise one.", body, cats)
}

// Classify 实现 Classifier。
func (c *LLMClassifier) Classify(ctx context.Context, data map[string]any, existing []string) (string, error) {
	answer, err := llm.GenerateText(ctx, c.llm, classifierSystemPrompt, ClassifierPrompt(data, existing))
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	return CleanLabel(answer), nil
}

// CleanLabel 取回答的第一行，去掉引号、标点和空白；结果为空时返回 Uncategorized。
func CleanLabel(answer string) string {
	line := strings.TrimSpace(answer)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "Category:"))
	line = strings.Trim(line, " \t\"'`*.,;:!")
	if line == "" {
		return Uncategorized
	}
	return line
}
