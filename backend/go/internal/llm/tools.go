package llm

import (
	"Conductor/backend/go/internal/models"

	"github.com/mark3labs/mcp-go/mcp"
)

// ConvertMCPTools 将 MCP 服务端返回的工具列表转换为模型可用的工具声明。
func ConvertMCPTools(tools []mcp.Tool) []models.ToolDeclaration {
	decls := make([]models.ToolDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, models.ToolDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertMCPInputSchema(tool.InputSchema),
		})
	}
	return decls
}

// convertMCPInputSchema 把 mcp.ToolInputSchema 转成 JSON Schema 对象。
func convertMCPInputSchema(in mcp.ToolInputSchema) map[string]any {
	properties := in.Properties
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(in.Required) > 0 {
		schema["required"] = in.Required
	}
	return schema
}

// StringParam 构造只有一个必填字符串参数的 Schema，Agent 之间的调用都使用这种形式。
func StringParam(name, description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			name: map[string]any{
				"type":        "string",
				"description": description,
			},
		},
		"required": []string{name},
	}
}
