package agent

import (
	"Conductor/backend/go/internal/llm/llmtest"
	"Conductor/backend/go/internal/models"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCapability struct {
	name   string
	resp   *models.AgentResponse
	err    error
	called []string
}

func (s *stubCapability) Name() string        { return s.name }
func (s *stubCapability) Description() string { return "stub " + s.name }
func (s *stubCapability) Invoke(_ context.Context, instruction string) (*models.AgentResponse, error) {
	s.called = append(s.called, instruction)
	return s.resp, s.err
}

type recordingObserver struct {
	thinking int
	calls    []string
	results  []map[string]any
}

func (o *recordingObserver) OnThinking(int) { o.thinking++ }
func (o *recordingObserver) OnToolCall(call *models.FunctionCall) {
	o.calls = append(o.calls, call.Name)
}
func (o *recordingObserver) OnToolResult(_ *models.FunctionCall, r map[string]any) {
	o.results = append(o.results, r)
}

func TestRunner_DirectAnswer(t *testing.T) {
	model := llmtest.New(llmtest.Text("hello"))
	r := NewRunner(model, "system")

	out, err := r.Run(context.Background(), "hi", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	require.Len(t, model.Requests, 1)
	assert.Equal(t, "system", model.Requests[0].SystemInstruction)
}

func TestRunner_CallsCapabilitiesInOrder(t *testing.T) {
	db := &stubCapability{name: "database", resp: models.OK("Inserted", []map[string]any{{"id": 1}})}
	search := &stubCapability{name: "brave_search", resp: models.OK("found it", nil)}

	model := llmtest.New(
		llmtest.Call("c1", "brave_search", map[string]any{"instruction": "look up go"}),
		llmtest.Call("c2", "database", map[string]any{"instruction": "store it"}),
		llmtest.Text("done"),
	)
	obs := &recordingObserver{}
	r := NewRunner(model, "")

	out, err := r.Run(context.Background(), "research and store",
		[]Tool{CapabilityTool(db, nil), CapabilityTool(search, nil)}, obs)
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, []string{"look up go"}, search.called)
	assert.Equal(t, []string{"store it"}, db.called)
	assert.Equal(t, []string{"brave_search", "database"}, obs.calls)
	assert.Equal(t, 3, obs.thinking)

	// 第三次请求带上了两轮调用和观察结果
	last := model.Requests[2]
	require.Len(t, last.Content, 5)
	resp := last.Content[4].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "c2", resp.ID)
	assert.Equal(t, true, resp.Response["success"])
	assert.Equal(t, "Inserted", resp.Response["message"])
	require.Len(t, last.Tools, 2)
}

func TestRunner_ToolErrorsBecomeObservations(t *testing.T) {
	broken := &stubCapability{name: "github", err: errors.New("boom")}
	model := llmtest.New(
		llmtest.Call("c1", "github", map[string]any{"instruction": "list repos"}),
		llmtest.Call("c2", "nonexistent", map[string]any{"instruction": "x"}),
		llmtest.Call("c3", "github", map[string]any{}),
		llmtest.Text("sorry"),
	)
	obs := &recordingObserver{}
	out, err := NewRunner(model, "").Run(context.Background(), "q", []Tool{CapabilityTool(broken, nil)}, obs)
	require.NoError(t, err)
	assert.Equal(t, "sorry", out)
	require.Len(t, obs.results, 3)
	assert.Equal(t, "boom", obs.results[0]["error"])
	assert.Contains(t, obs.results[1]["error"], "unknown tool")
	assert.Contains(t, obs.results[2]["error"], "instruction")
	assert.Len(t, broken.called, 1)
}

func TestRunner_MaxIterations(t *testing.T) {
	replies := make([]llmtest.Reply, 0, 3)
	for i := 0; i < 3; i++ {
		replies = append(replies, llmtest.Call("c", "loop", nil))
	}
	model := llmtest.New(replies...)
	tool := Tool{
		Declaration: models.ToolDeclaration{Name: "loop"},
		Handler:     func(context.Context, map[string]any) (any, error) { return "again", nil },
	}

	_, err := NewRunner(model, "", WithMaxIterations(3)).Run(context.Background(), "q", []Tool{tool}, nil)
	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, 3, model.Calls())
}

func TestRunner_LLMErrorPropagates(t *testing.T) {
	model := llmtest.New(llmtest.Fail(errors.New("quota exceeded")))
	_, err := NewRunner(model, "").Run(context.Background(), "q", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestRunner_CapabilityResultHook(t *testing.T) {
	db := &stubCapability{name: "database", resp: models.Fail("Schema command failed", models.CodeSchemaError, "syntax")}
	var outcomes []string
	tool := CapabilityTool(db, func(name string, resp *models.AgentResponse, err error) {
		outcomes = append(outcomes, name+":"+resp.ErrorCode())
	})
	model := llmtest.New(
		llmtest.Call("c1", "database", map[string]any{"instruction": "alter"}),
		llmtest.Text("failed"),
	)
	_, err := NewRunner(model, "").Run(context.Background(), "q", []Tool{tool}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"database:schema_error"}, outcomes)
}

func TestLocalRegistry(t *testing.T) {
	reg := NewLocalRegistry()
	require.NoError(t, reg.Register(&stubCapability{name: "github"}))
	require.NoError(t, reg.Register(&stubCapability{name: "brave_search"}))
	assert.Error(t, reg.Register(&stubCapability{name: "github"}))

	list := reg.Metadata()
	require.Len(t, list, 2)
	assert.Equal(t, "brave_search", list[0].Name)

	_, ok := reg.Get("github")
	assert.True(t, ok)
	_, ok = reg.Get("missing")
	assert.False(t, ok)
}
