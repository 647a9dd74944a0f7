package service

import (
	"Conductor/backend/go/internal/agent"
	"Conductor/backend/go/internal/llm"
	"Conductor/backend/go/internal/models"
	"context"
	"fmt"
)

// DatabaseAgentName 是数据库 Agent 作为能力暴露时的名称。
const DatabaseAgentName = "database"

const databaseSystemPrompt = `You are a database specialist. Help users manage their database. You have access to several tools to
complete all of the basic CRUD functions. You can use the insert, fetch, and schema_command tools to perform these actions,
which means you can create and edit tables. Always respond with whether or not the action was successful.`

// DatabaseAgent 用工具调用循环驱动 DatabaseService。
type DatabaseAgent struct {
	svc    *DatabaseService
	runner *agent.Runner
}

var _ agent.Capability = (*DatabaseAgent)(nil)

// NewDatabaseAgent 创建数据库 Agent。
func NewDatabaseAgent(svc *DatabaseService, client llm.LLM, maxIterations int) *DatabaseAgent {
	return &DatabaseAgent{
		svc: svc,
		runner: agent.NewRunner(client, databaseSystemPrompt,
			agent.WithMaxIterations(maxIterations),
			agent.WithLogger(svc.log)),
	}
}

func (a *DatabaseAgent) Name() string { return DatabaseAgentName }

func (a *DatabaseAgent) Description() string {
	return "Manages the structured database: inserts rows (auto-categorized), fetches rows with equality filters, and evolves table schemas (add column, create table)."
}

// Invoke 实现 agent.Capability。
func (a *DatabaseAgent) Invoke(ctx context.Context, instruction string) (*models.AgentResponse, error) {
	answer, err := a.runner.Run(ctx, instruction, a.Tools(), nil)
	if err != nil {
		return nil, err
	}
	return models.OK(answer, nil), nil
}

// Tools 返回绑定到服务操作的三个工具。
func (a *DatabaseAgent) Tools() []agent.Tool {
	return []agent.Tool{
		{
			Declaration: models.ToolDeclaration{
				Name:        "insert",
				Description: "Insert or upsert a row into a table. A category is assigned automatically when the data has none.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"table": map[string]any{"type": "string", "description": "Target table name"},
						"data":  map[string]any{"type": "object", "description": "Column values of the row"},
						"schema_changes": map[string]any{
							"type":        "array",
							"description": "Optional schema commands to apply before inserting",
							"items":       schemaCommandSchema(),
						},
					},
					"required": []string{"table", "data"},
				},
			},
			Handler: a.handleInsert,
		},
		{
			Declaration: models.ToolDeclaration{
				Name:        "fetch",
				Description: "Fetch rows from a table. Every filter is an equality condition; all conditions must match.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"table":   map[string]any{"type": "string", "description": "Table name"},
						"filters": map[string]any{"type": "object", "description": "Column/value pairs to match"},
					},
					"required": []string{"table"},
				},
			},
			Handler: a.handleFetch,
		},
		{
			Declaration: models.ToolDeclaration{
				Name:        "schema_command",
				Description: "Change the database schema: add_column {table, column, data_type} or create_table {table, columns:[{name,type}]}.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"command": schemaCommandSchema(),
					},
					"required": []string{"command"},
				},
			},
			Handler: a.handleSchemaCommand,
		},
	}
}

func schemaCommandSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type":      map[string]any{"type": "string", "enum": []any{CommandAddColumn, CommandCreateTable}},
			"table":     map[string]any{"type": "string"},
			"column":    map[string]any{"type": "string"},
			"data_type": map[string]any{"type": "string"},
			"columns": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name": map[string]any{"type": "string"},
						"type": map[string]any{"type": "string"},
					},
				},
			},
		},
		"required": []string{"type", "table"},
	}
}

func (a *DatabaseAgent) handleInsert(ctx context.Context, args map[string]any) (any, error) {
	table := agent.StringArg(args, "table")
	data, ok := args["data"].(map[string]any)
	if table == "" || !ok {
		return models.Fail("Validation error", models.CodeValidationError, "insert requires 'table' and an object 'data'"), nil
	}
	req := InsertRequest{Table: table, Data: data}
	if raw, ok := args["schema_changes"].([]any); ok {
		for _, item := range raw {
			cmd, err := ParseSchemaCommand(item)
			if err != nil {
				return models.Fail("Invalid schema command", models.CodeValidationError, err.Error()), nil
			}
			req.SchemaChanges = append(req.SchemaChanges, cmd)
		}
	}
	return a.svc.Insert(ctx, req)
}

func (a *DatabaseAgent) handleFetch(ctx context.Context, args map[string]any) (any, error) {
	table := agent.StringArg(args, "table")
	if table == "" {
		return models.Fail("Validation error", models.CodeValidationError, "fetch requires 'table'"), nil
	}
	filters, _ := args["filters"].(map[string]any)
	return a.svc.Fetch(ctx, table, filters)
}

func (a *DatabaseAgent) handleSchemaCommand(ctx context.Context, args map[string]any) (any, error) {
	raw, ok := args["command"]
	if !ok {
		return nil, fmt.Errorf("missing required argument 'command'")
	}
	cmd, err := ParseSchemaCommand(raw)
	if err != nil {
		return models.Fail("Invalid schema command", models.CodeValidationError, err.Error()), nil
	}
	return a.svc.SchemaCommand(ctx, cmd)
}
