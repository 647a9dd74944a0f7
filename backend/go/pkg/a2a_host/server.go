package a2a_host

import (
	"context"
	"fmt"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	"github.com/gin-gonic/gin"
)

// ErrNoText 表示请求消息中没有文本片段，JSON-RPC 层返回 invalid params。
var ErrNoText = fmt.Errorf("message has no text parts: %w", a2a.ErrInvalidParams)

// Server 对外提供名片和 JSON-RPC 入口。
type Server struct {
	card a2a.AgentCard
	rpc  *a2asrv.JSONRPCHandler
}

// NewServer 用 a2asrv 的默认请求处理器包装 executor。
func NewServer(card a2a.AgentCard, executor a2asrv.AgentExecutor) *Server {
	return &Server{
		card: card,
		rpc:  a2asrv.NewJSONRPCHandler(a2asrv.NewHandler(executor)),
	}
}

// Card returns the served card.
func (s *Server) Card() a2a.AgentCard {
	return s.card
}

// Register 注册名片路由和 JSON-RPC 入口。
func (s *Server) Register(router gin.IRoutes) {
	card := s.card
	cardHandler := gin.WrapH(a2asrv.NewStaticAgentCardHandler(&card))
	router.GET(a2asrv.WellKnownAgentCardPath, cardHandler)
	router.GET(LegacyCardPath, cardHandler)
	router.POST("/", gin.WrapH(s.rpc))
}

// RequestText 取出触发本次执行的消息文本，没有文本时返回 ErrNoText。
func RequestText(reqCtx *a2asrv.RequestContext) (string, error) {
	if reqCtx == nil || reqCtx.Message == nil {
		return "", ErrNoText
	}
	text := strings.TrimSpace(MessageText(reqCtx.Message))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Reply 以一条 agent 消息结束本次执行。
func Reply(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue, text string) error {
	msg := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: text})
	msg.ContextID = reqCtx.ContextID
	return queue.Write(ctx, msg)
}

// MessageText 拼接消息中的全部文本片段。
func MessageText(m *a2a.Message) string {
	if m == nil {
		return ""
	}
	return partsText(m.Parts)
}

func partsText(parts a2a.ContentParts) string {
	var texts []string
	for _, p := range parts {
		switch t := p.(type) {
		case a2a.TextPart:
			texts = append(texts, t.Text)
		case *a2a.TextPart:
			texts = append(texts, t.Text)
		}
	}
	return strings.Join(texts, "\n")
}
