package agent

import (
	"Conductor/backend/go/internal/models"
	"context"
)

// Capability 定义了编排器可以委派任务的每一个子 Agent 必须实现的接口。
// 本地子 Agent、数据库 Agent 以及远程 Agent 中继都以同样的方式暴露给模型。
type Capability interface {
	// Name 是暴露给模型的工具名称，必须唯一。
	Name() string
	// Description 告诉模型什么时候应该使用这个能力。
	Description() string
	// Invoke 以自然语言指令执行任务。
	// 业务层面的失败通过 AgentResponse 返回，error 只用于无法产生结果的情况。
	Invoke(ctx context.Context, instruction string) (*models.AgentResponse, error)
}

// InstructionParam 是每个能力工具唯一的参数名。
const InstructionParam = "instruction"
