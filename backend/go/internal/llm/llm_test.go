package llm

import (
	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/internal/models"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatServer 模拟 OpenAI 兼容的 /chat/completions 接口，记录收到的请求体。
func fakeChatServer(t *testing.T, reply map[string]any, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body := map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if seen != nil {
			*seen = body
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply)
	}))
}

func TestOpenAI_ToolCallRoundTrip(t *testing.T) {
	var seen map[string]any
	srv := fakeChatServer(t, map[string]any{
		"id":    "resp-1",
		"model": "test-model",
		"choices": []any{map[string]any{
			"index": 0,
			"message": map[string]any{
				"role":    "assistant",
				"content": "",
				"tool_calls": []any{map[string]any{
					"id":   "call_1",
					"type": "function",
					"function": map[string]any{
						"name":      "database",
						"arguments": `{"instruction":"add a row"}`,
					},
				}},
			},
			"finish_reason": "tool_calls",
		}},
	}, &seen)
	defer srv.Close()

	client := NewOpenAI("test-model", "test-key", srv.URL)
	resp, err := client.GenerateContent(context.Background(), &models.GenerateContentRequest{
		SystemInstruction: "be helpful",
		Content: []models.Content{
			models.NewTextContent(models.SpeakerUser, "store this"),
		},
		Tools: []models.ToolDeclaration{{
			Name:        "database",
			Description: "stores rows",
			Parameters:  StringParam("instruction", "what to do"),
		}},
	})
	require.NoError(t, err)

	first, ok := resp.First()
	require.True(t, ok)
	calls := first.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "database", calls[0].Name)
	assert.Equal(t, "add a row", calls[0].Args["instruction"])
	assert.Equal(t, "resp-1", resp.ResponseID)

	messages, _ := seen["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	tools, _ := seen["tools"].([]any)
	require.Len(t, tools, 1)
}

func TestToOpenAIMessages_ToolResults(t *testing.T) {
	req := &models.GenerateContentRequest{
		Content: []models.Content{
			models.NewTextContent(models.SpeakerUser, "hi"),
			{Role: models.SpeakerModel, Parts: []*models.Part{{FunctionCall: &models.FunctionCall{
				ID: "call_9", Name: "search", Args: map[string]any{"instruction": "go"},
			}}}},
			{Role: models.SpeakerTool, Parts: []*models.Part{{FunctionResponse: &models.FunctionResponse{
				ID: "call_9", Name: "search", Response: map[string]any{"success": true},
			}}}},
		},
	}

	msgs := toOpenAIMessages(req)
	require.Len(t, msgs, 3)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "call_9", msgs[1].ToolCalls[0].ID)
	assert.JSONEq(t, `{"instruction":"go"}`, msgs[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "tool", msgs[2].Role)
	assert.Equal(t, "call_9", msgs[2].ToolCallID)
	assert.JSONEq(t, `{"success":true}`, msgs[2].Content)
}

func TestGenerateText(t *testing.T) {
	srv := fakeChatServer(t, map[string]any{
		"choices": []any{map[string]any{
			"message": map[string]any{"role": "assistant", "content": "plain answer"},
		}},
	}, nil)
	defer srv.Close()

	text, err := GenerateText(context.Background(), NewOpenAI("m", "test-key", srv.URL), "", "question")
	require.NoError(t, err)
	assert.Equal(t, "plain answer", text)
}

func TestNewClient_Providers(t *testing.T) {
	c, err := NewClient(config.LLMConfig{Model: "m", APIKey: config.PlaceholderAPIKey})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, c)

	c, err = NewClient(config.LLMConfig{Provider: "ollama", Model: "llama3"})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, c)

	_, err = NewClient(config.LLMConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestConvertMCPTools(t *testing.T) {
	tool := mcp.NewTool("read_file",
		mcp.WithDescription("Read a file"),
		mcp.WithString("path", mcp.Required(), mcp.Description("file path")),
	)

	decls := ConvertMCPTools([]mcp.Tool{tool})
	require.Len(t, decls, 1)
	assert.Equal(t, "read_file", decls[0].Name)
	assert.Equal(t, "Read a file", decls[0].Description)
	assert.Equal(t, "object", decls[0].Parameters["type"])
	assert.Equal(t, []string{"path"}, decls[0].Parameters["required"])
	props := decls[0].Parameters["properties"].(map[string]any)
	assert.Contains(t, props, "path")
}

func TestToGenaiSchema(t *testing.T) {
	schema, err := toGenaiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"instruction": map[string]any{"type": "string", "description": "text"},
			"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"instruction"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"instruction"}, schema.Required)
	require.Contains(t, schema.Properties, "tags")
	require.NotNil(t, schema.Properties["tags"].Items)

	_, err = toGenaiSchema(map[string]any{"type": "tuple"})
	assert.Error(t, err)
}
