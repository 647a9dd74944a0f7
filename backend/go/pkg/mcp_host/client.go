package mcp_host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ErrToolNotFound 表示没有任何已连接的服务端提供该工具。
var ErrToolNotFound = errors.New("tool not found on any connected server")

// Host 是一个 MCP 客户端主机
// 它可以连接并管理多个 MCP 服务端，聚合所有工具，并提供统一的调用入口。
type Host struct {
	servers map[string]client.MCPClient
	owners  map[string]string // 工具名 -> 服务端名，ListTools 时刷新
	mu      sync.RWMutex
}

// ConnectOptions 定义了连接到 stdio MCP 服务端的配置项
type ConnectOptions struct {
	ServerName string
	Command    string
	Args       []string
	Env        []string // KEY=VALUE 形式
}

// NewHost 创建一个新的 Host 实例
func NewHost() *Host {
	return &Host{
		servers: make(map[string]client.MCPClient),
		owners:  make(map[string]string),
	}
}

// Connect 启动一个 stdio 子进程并完成 MCP 初始化握手。
func (h *Host) Connect(ctx context.Context, opts ConnectOptions) error {
	if opts.Command == "" {
		return fmt.Errorf("server '%s': empty command", opts.ServerName)
	}
	mcpClient, err := client.NewStdioMCPClient(opts.Command, opts.Env, opts.Args...)
	if err != nil {
		return fmt.Errorf("failed to create stdio client: %w", err)
	}
	return h.adopt(ctx, opts.ServerName, mcpClient)
}

// Attach 接管一个已创建的客户端（例如进程内客户端），同样执行初始化握手。
func (h *Host) Attach(ctx context.Context, name string, c client.MCPClient) error {
	return h.adopt(ctx, name, c)
}

func (h *Host) adopt(ctx context.Context, name string, c client.MCPClient) error {
	h.mu.RLock()
	_, exists := h.servers[name]
	h.mu.RUnlock()
	if exists {
		_ = c.Close()
		return fmt.Errorf("server with name '%s' already connected", name)
	}

	initRequest := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "conductor-host",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}
	// 握手可能很慢，不持锁进行
	if _, err := c.Initialize(ctx, initRequest); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to initialize client: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.servers[name]; exists {
		_ = c.Close()
		return fmt.Errorf("server with name '%s' already connected", name)
	}
	h.servers[name] = c
	return nil
}

// Servers 返回已连接服务端的名称，按字典序排列。
func (h *Host) Servers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.servers))
	for name := range h.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListTools 聚合所有已连接服务端提供的工具列表，并记录每个工具属于哪个服务端。
// 单个服务端失败不会影响其他服务端，失败信息合并后与已取得的工具一起返回。
func (h *Host) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	// 只在读锁下拍快照，远程调用期间不持锁，CallTool 可以并发进行
	h.mu.RLock()
	names := sortedKeys(h.servers)
	clients := make([]client.MCPClient, len(names))
	for i, name := range names {
		clients[i] = h.servers[name]
	}
	h.mu.RUnlock()

	var (
		all  []mcp.Tool
		errs []error
	)
	owners := make(map[string]string)
	for i, name := range names {
		result, err := clients[i].ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			errs = append(errs, fmt.Errorf("server '%s': %w", name, err))
			continue
		}
		for _, tool := range result.Tools {
			if _, dup := owners[tool.Name]; dup {
				continue
			}
			owners[tool.Name] = name
			all = append(all, tool)
		}
	}

	h.mu.Lock()
	h.owners = owners
	h.mu.Unlock()
	return all, errors.Join(errs...)
}

// CallTool 把调用转发给拥有该工具的服务端，并把结果中的文本内容拼接返回。
// 工具自身报告的错误（IsError）以 error 形式返回。
func (h *Host) CallTool(ctx context.Context, toolName string, args map[string]any) (string, error) {
	h.mu.RLock()
	owner, ok := h.owners[toolName]
	c := h.servers[owner]
	h.mu.RUnlock()

	if !ok || c == nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}

	result, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call tool '%s': %w", toolName, err)
	}

	text := renderContent(result.Content)
	if result.IsError {
		return "", fmt.Errorf("tool '%s' failed: %s", toolName, text)
	}
	return text, nil
}

// CloseAll 关闭所有到服务端的连接并清理资源，单个失败不会中断其余关闭。
func (h *Host) CloseAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for name, c := range h.servers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("server '%s': %w", name, err))
		}
	}
	h.servers = make(map[string]client.MCPClient)
	h.owners = make(map[string]string)
	return errors.Join(errs...)
}

func renderContent(contents []mcp.Content) string {
	var parts []string
	for _, content := range contents {
		switch c := content.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s]", c.MIMEType))
		case mcp.EmbeddedResource:
			parts = append(parts, "[embedded resource]")
		}
	}
	return strings.Join(parts, "\n")
}

func sortedKeys(m map[string]client.MCPClient) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
