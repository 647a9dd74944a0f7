package models

import (
	"fmt"
	"strings"
)

// DefaultAgentHost 是注册表条目默认的主机名。
const DefaultAgentHost = "localhost"

// AgentDescriptor 是静态注册表中的一条 Agent 记录。
type AgentDescriptor struct {
	Name        string `json:"name" yaml:"name"`               // Agent 名称
	Host        string `json:"host,omitempty" yaml:"host"`     // 主机，为空时使用 localhost
	Port        int    `json:"port" yaml:"port"`               // 端口
	Description string `json:"description" yaml:"description"` // 能力描述
}

// BaseURL 返回 Agent 的根地址，例如 http://localhost:8002。
func (d AgentDescriptor) BaseURL() string {
	host := strings.TrimSpace(d.Host)
	if host == "" {
		host = DefaultAgentHost
	}
	return fmt.Sprintf("http://%s:%d", host, d.Port)
}

// CardURL 返回 Agent 名片的发现地址。
func (d AgentDescriptor) CardURL() string {
	return d.BaseURL() + "/.well-known/agent.json"
}
