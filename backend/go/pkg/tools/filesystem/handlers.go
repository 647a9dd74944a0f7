package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/gobwas/glob"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	// maxReadSize 单次读取的最大文件大小 (5MB)
	maxReadSize = 5 * 1024 * 1024
	// maxSearchResults 搜索结果的最大数量
	maxSearchResults = 1000
)

// FileInfo 是 get_file_info 返回的文件元数据。
type FileInfo struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Created     time.Time `json:"created,omitempty"`
	Modified    time.Time `json:"modified"`
	Accessed    time.Time `json:"accessed"`
	IsDirectory bool      `json:"isDirectory"`
	Permissions string    `json:"permissions"`
	MimeType    string    `json:"mimeType"`
}

// Handler 实现了各个文件系统工具。
type Handler struct {
	guard *Guard
}

// NewHandler 创建工具处理器。
func NewHandler(guard *Guard) *Handler {
	return &Handler{guard: guard}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...))
}

// HandleReadFile 读取文本文件的完整内容，二进制文件会被拒绝。
func (h *Handler) HandleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return errorResult("%v", err), nil
	}
	real, err := h.guard.Resolve(path)
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	info, err := os.Stat(real)
	if err != nil {
		return errorResult("Error: %v", err), nil
	}
	if info.IsDir() {
		return errorResult("Error: %s is a directory, use list_directory instead", path), nil
	}
	if info.Size() > maxReadSize {
		return errorResult("Error: file is too large (%d bytes, limit %d)", info.Size(), maxReadSize), nil
	}

	mimeType := detectMimeType(real)
	if !isTextFile(mimeType) {
		return errorResult("Error: %s is not a text file (%s)", path, mimeType), nil
	}

	content, err := os.ReadFile(real)
	if err != nil {
		return errorResult("Error reading file: %v", err), nil
	}
	return mcp.NewToolResultText(string(content)), nil
}

// HandleWriteFile 创建或覆盖文件，父目录必须已存在。
func (h *Handler) HandleWriteFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return errorResult("%v", err), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return errorResult("%v", err), nil
	}
	real, err := h.guard.Resolve(path)
	if err != nil {
		return errorResult("Error: %v", err), nil
	}
	if info, err := os.Stat(real); err == nil && info.IsDir() {
		return errorResult("Error: cannot write to a directory: %s", path), nil
	}

	if err := os.WriteFile(real, []byte(content), 0o644); err != nil {
		return errorResult("Error writing file: %v", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), real)), nil
}

// HandleListDirectory 列出目录中的条目，目录以 [DIR] 标记。
func (h *Handler) HandleListDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return errorResult("%v", err), nil
	}
	real, err := h.guard.Resolve(path)
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	entries, err := os.ReadDir(real)
	if err != nil {
		return errorResult("Error reading directory: %v", err), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Directory listing for: %s\n", real)
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(&sb, "[DIR]  %s\n", entry.Name())
			continue
		}
		size := int64(0)
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		fmt.Fprintf(&sb, "[FILE] %s (%d bytes)\n", entry.Name(), size)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleSearchFiles 在目录下递归查找名称匹配 glob 模式的文件。
// 模式中不含通配符时按子串匹配。
func (h *Handler) HandleSearchFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return errorResult("%v", err), nil
	}
	pattern, err := request.RequireString("pattern")
	if err != nil {
		return errorResult("%v", err), nil
	}
	root, err := h.guard.Resolve(path)
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	if !strings.ContainsAny(pattern, "*?[{") {
		pattern = "*" + pattern + "*"
	}
	matcher, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return errorResult("Error: invalid pattern: %v", err), nil
	}

	var results []string
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // 跳过无法访问的条目
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p != root && matcher.Match(strings.ToLower(d.Name())) {
			results = append(results, p)
			if len(results) >= maxSearchResults {
				return fs.SkipAll
			}
		}
		return nil
	})
	if walkErr != nil {
		return errorResult("Error searching files: %v", walkErr), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No files found matching pattern '%s' in %s", pattern, root)), nil
	}
	sort.Strings(results)
	return mcp.NewToolResultText(fmt.Sprintf("Found %d results:\n%s", len(results), strings.Join(results, "\n"))), nil
}

// HandleGetFileInfo 返回文件或目录的元数据（JSON）。
func (h *Handler) HandleGetFileInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return errorResult("%v", err), nil
	}
	real, err := h.guard.Resolve(path)
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	info, err := stat(real)
	if err != nil {
		return errorResult("Error getting file info: %v", err), nil
	}
	body, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return errorResult("Error encoding file info: %v", err), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// HandleListAllowedDirectories 返回服务端允许访问的目录。
func (h *Handler) HandleListAllowedDirectories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("Allowed directories:\n" + strings.Join(h.guard.AllowedDirs(), "\n")), nil
}

func stat(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	// 有些系统不支持创建时间
	ts, err := times.Stat(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to get file times: %w", err)
	}

	out := FileInfo{
		Path:        path,
		Size:        info.Size(),
		Modified:    ts.ModTime(),
		Accessed:    ts.AccessTime(),
		IsDirectory: info.IsDir(),
		Permissions: fmt.Sprintf("%o", info.Mode().Perm()),
		MimeType:    "directory",
	}
	if ts.HasBirthTime() {
		out.Created = ts.BirthTime()
	}
	if !info.IsDir() {
		out.MimeType = detectMimeType(path)
	}
	return out, nil
}
