package subagent

import (
	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/internal/llm"
)

const (
	BraveSearchName = "brave_search"
	FilesystemName  = "filesystem"
	GitHubName      = "github"
)

func command(cfg config.ToolServersConfig) string {
	if cfg.Command != "" {
		return cfg.Command
	}
	return "npx"
}

// BraveSearchServer 网页搜索工具服务，需要 BRAVE_API_KEY。
func BraveSearchServer(cfg config.ToolServersConfig) ServerSpec {
	return ServerSpec{
		Name:           BraveSearchName,
		Command:        command(cfg),
		Args:           []string{"-y", "@modelcontextprotocol/server-brave-search"},
		Env:            []string{"BRAVE_API_KEY=" + cfg.BraveAPIKey},
		CredentialName: "BRAVE_API_KEY",
		Credential:     cfg.BraveAPIKey,
	}
}

// FilesystemServer 文件系统工具服务，根目录默认为当前目录。
// FilesystemBuiltin 为 true 时改用内置的 Go 实现。
func FilesystemServer(cfg config.ToolServersConfig) ServerSpec {
	dir := cfg.FileDir
	if dir == "" {
		dir = "."
	}
	if cfg.FilesystemBuiltin {
		bin := cfg.FilesystemBinary
		if bin == "" {
			bin = "filesystem_server"
		}
		return ServerSpec{
			Name:    FilesystemName,
			Command: bin,
			Args:    []string{"--allowed-dirs", dir},
		}
	}
	return ServerSpec{
		Name:    FilesystemName,
		Command: command(cfg),
		Args:    []string{"-y", "@modelcontextprotocol/server-filesystem", dir},
	}
}

// GitHubServer 代码托管工具服务，需要 GITHUB_TOKEN。
func GitHubServer(cfg config.ToolServersConfig) ServerSpec {
	return ServerSpec{
		Name:           GitHubName,
		Command:        command(cfg),
		Args:           []string{"-y", "@modelcontextprotocol/server-github"},
		Env:            []string{"GITHUB_PERSONAL_ACCESS_TOKEN=" + cfg.GitHubToken},
		CredentialName: "GITHUB_TOKEN",
		Credential:     cfg.GitHubToken,
	}
}

// Defaults 构造三个内置子 Agent：网页搜索、文件系统和代码托管。
func Defaults(cfg *config.AppConfig, client llm.LLM, opts ...Option) []*SubAgent {
	maxIter := cfg.Orchestrator.MaxIterations
	return []*SubAgent{
		New(BraveSearchName,
			"Searches the web with Brave Search and summarizes what it finds.",
			"You are a web search specialist using Brave Search. Find relevant information on the web.",
			client, []ServerSpec{BraveSearchServer(cfg.ToolServers)}, maxIter, opts...),
		New(FilesystemName,
			"Reads, writes, lists and searches files and directories on the local file system.",
			"You are a filesystem specialist. Help users manage their files and directories.",
			client, []ServerSpec{FilesystemServer(cfg.ToolServers)}, maxIter, opts...),
		New(GitHubName,
			"Interacts with GitHub repositories, issues, pull requests and code search.",
			"You are a GitHub specialist. Help users interact with GitHub repositories and features.",
			client, []ServerSpec{GitHubServer(cfg.ToolServers)}, maxIter, opts...),
	}
}
