// Package a2a_host 基于 a2a-go 提供 Agent 之间通信所需的部分：
// 名片发现、同步的 message/send 服务端和客户端。
package a2a_host

import (
	"github.com/a2aproject/a2a-go/a2a"
)

// ProtocolVersion 是名片中声明的协议版本。
const ProtocolVersion = "0.3.0"

// LegacyCardPath 是旧版客户端读取名片的路径。
const LegacyCardPath = "/.well-known/agent.json"

// CardOptions 描述一张 Agent 名片。
type CardOptions struct {
	Name        string
	Description string
	URL         string
	Version     string
	Skills      []a2a.AgentSkill
}

// Card 构造名片，输入输出模式固定为 text，不支持流式。
func Card(opts CardOptions) a2a.AgentCard {
	version := opts.Version
	if version == "" {
		version = "1.0.0"
	}
	return a2a.AgentCard{
		Name:               opts.Name,
		Description:        opts.Description,
		URL:                opts.URL,
		Version:            version,
		ProtocolVersion:    ProtocolVersion,
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Capabilities:       a2a.AgentCapabilities{Streaming: false},
		Skills:             opts.Skills,
	}
}
