package subagent

import (
	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/internal/llm/llmtest"
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/pkg/tools/filesystem"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerSpecs(t *testing.T) {
	cfg := config.ToolServersConfig{}
	assert.False(t, BraveSearchServer(cfg).Enabled())
	assert.False(t, GitHubServer(cfg).Enabled())

	fs := FilesystemServer(cfg)
	assert.True(t, fs.Enabled())
	assert.Equal(t, "npx", fs.Command)
	assert.Equal(t, []string{"-y", "@modelcontextprotocol/server-filesystem", "."}, fs.Args)

	cfg.GitHubToken = "ghp_x"
	cfg.FileDir = "/data"
	cfg.FilesystemBuiltin = true
	gh := GitHubServer(cfg)
	assert.True(t, gh.Enabled())
	assert.Contains(t, gh.Env, "GITHUB_PERSONAL_ACCESS_TOKEN=ghp_x")

	fs = FilesystemServer(cfg)
	assert.Equal(t, "filesystem_server", fs.Command)
	assert.Equal(t, []string{"--allowed-dirs", "/data"}, fs.Args)
}

func TestStart_SkipsMissingCredentials(t *testing.T) {
	sa := New(BraveSearchName, "search", "", llmtest.New(), []ServerSpec{BraveSearchServer(config.ToolServersConfig{})}, 0)
	assert.Equal(t, 0, sa.Start(context.Background()))
	assert.False(t, sa.Available())

	resp, err := sa.Invoke(context.Background(), "find golang news")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, models.CodeCapabilityUnavailable, resp.ErrorCode())
}

func TestInvoke_UsesToolServer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "todo.txt"), []byte("buy milk"), 0o644))
	real, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	model := llmtest.New(
		llmtest.Call("c1", "read_file", map[string]any{"path": filepath.Join(real, "todo.txt")}),
		llmtest.Func(func(req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
			obs := req.Content[len(req.Content)-1].Parts[0].FunctionResponse
			return llmtest.Text("the file says: " + obs.Response["output"].(string))(req)
		}),
	)
	sa := New(FilesystemName, "files", "You are a filesystem specialist.", model, nil, 0)

	srv, err := filesystem.NewFilesystemServer([]string{dir})
	require.NoError(t, err)
	c, err := client.NewInProcessClient(srv)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, sa.Attach(context.Background(), "fs", c))
	defer sa.Stop()

	resp, err := sa.Invoke(context.Background(), "what is in todo.txt?")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "the file says: buy milk", resp.Message)

	first := model.Requests[0]
	assert.Equal(t, "You are a filesystem specialist.", first.SystemInstruction)
	assert.NotEmpty(t, first.Tools)
}

func TestDefaults(t *testing.T) {
	cfg := config.Default()
	agents := Defaults(cfg, llmtest.New())
	require.Len(t, agents, 3)
	names := []string{agents[0].Name(), agents[1].Name(), agents[2].Name()}
	assert.Equal(t, []string{BraveSearchName, FilesystemName, GitHubName}, names)
}
