package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Conductor/backend/go/internal/agent"
	"Conductor/backend/go/internal/discovery"
	"Conductor/backend/go/internal/models"
)

// RemoteAgentsName 是远程 Agent 中继能力的名称。
const RemoteAgentsName = "remote_agents"

// AgentSearcher 为查询挑选远端 Agent 的地址。
type AgentSearcher interface {
	SearchAgents(ctx context.Context, query string) (string, error)
}

// MessageSender 向远端 Agent 发送消息。
type MessageSender interface {
	SendMessage(ctx context.Context, agentURL, text string) (string, error)
}

// RemoteAgents 先搜索最合适的远端 Agent，再把指令转发给它。
type RemoteAgents struct {
	searcher    AgentSearcher
	sender      MessageSender
	description string
}

var _ agent.Capability = (*RemoteAgents)(nil)

// NewRemoteAgents 创建中继能力，descriptors 用于生成描述。
func NewRemoteAgents(searcher AgentSearcher, sender MessageSender, descriptors []models.AgentDescriptor) *RemoteAgents {
	var b strings.Builder
	b.WriteString("Delegates the instruction to the best matching remote agent.")
	if len(descriptors) > 0 {
		b.WriteString(" Known agents:")
		for _, d := range descriptors {
			fmt.Fprintf(&b, " %s (%s);", d.Name, d.Description)
		}
	}
	return &RemoteAgents{searcher: searcher, sender: sender, description: b.String()}
}

func (r *RemoteAgents) Name() string { return RemoteAgentsName }

func (r *RemoteAgents) Description() string { return r.description }

// Invoke implements agent.Capability.
func (r *RemoteAgents) Invoke(ctx context.Context, instruction string) (*models.AgentResponse, error) {
	url, err := r.searcher.SearchAgents(ctx, instruction)
	if errors.Is(err, discovery.ErrNoAgents) {
		return models.Fail("No remote agent is reachable", models.CodeCapabilityUnavailable, err.Error()), nil
	}
	if err != nil {
		return models.Fail("Agent search failed", models.CodeInvocationError, err.Error()), nil
	}

	answer, err := r.sender.SendMessage(ctx, url, instruction)
	if err != nil {
		return models.Fail("Remote agent call failed", models.CodeInvocationError, err.Error()), nil
	}
	return models.OK(answer, map[string]any{"agent_url": url}), nil
}
