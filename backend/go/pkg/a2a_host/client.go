package a2a_host

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
)

// DefaultTimeout 覆盖 a2aclient 默认的 5 秒超时，远端 Agent 通常需要多轮模型调用。
const DefaultTimeout = 2 * time.Minute

// Client 向远端 Agent 发送消息。
type Client struct {
	http *http.Client
}

// NewClient creates a Client; nil uses a plain client with DefaultTimeout.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{http: hc}
}

// SendMessage 发送一条用户消息，返回回答中所有文本片段的拼接。
func (c *Client) SendMessage(ctx context.Context, agentURL, text string) (string, error) {
	transport := a2aclient.NewJSONRPCTransport(agentURL, c.http)
	defer transport.Destroy()

	result, err := transport.SendMessage(ctx, &a2a.MessageSendParams{
		Message: a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text}),
	})
	if err != nil {
		return "", fmt.Errorf("send message to %s: %w", agentURL, err)
	}
	return ResultText(result), nil
}

// ResultText 同时兼容 message 和 task 两种返回；task 优先取产物，其次取状态消息。
func ResultText(result a2a.SendMessageResult) string {
	switch r := result.(type) {
	case *a2a.Message:
		return MessageText(r)
	case *a2a.Task:
		var texts []string
		for _, a := range r.Artifacts {
			if a == nil {
				continue
			}
			if t := partsText(a.Parts); t != "" {
				texts = append(texts, t)
			}
		}
		if len(texts) == 0 {
			return MessageText(r.Status.Message)
		}
		return strings.Join(texts, "\n")
	default:
		return ""
	}
}
