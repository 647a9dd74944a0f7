package filesystem

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Guard 把所有文件操作限制在允许的目录之内。
type Guard struct {
	allowedDirs []string // 规范化后的绝对路径，均以分隔符结尾
}

// NewGuard 规范化并校验允许访问的目录，目录必须存在。
func NewGuard(allowedDirs []string) (*Guard, error) {
	if len(allowedDirs) == 0 {
		return nil, fmt.Errorf("at least one allowed directory is required")
	}
	normalized := make([]string, 0, len(allowedDirs))
	for _, dir := range allowedDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %s: %w", dir, err)
		}
		// 允许目录本身可能是符号链接，例如 macOS 上的 /tmp
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			abs = real
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to access directory %s: %w", abs, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("path is not a directory: %s", abs)
		}
		// /tmp/foo 不应匹配 /tmp/foobar
		normalized = append(normalized, withSeparator(filepath.Clean(abs)))
	}
	return &Guard{allowedDirs: normalized}, nil
}

// AllowedDirs 返回允许访问的目录（不带结尾分隔符）。
func (g *Guard) AllowedDirs() []string {
	out := make([]string, 0, len(g.allowedDirs))
	for _, dir := range g.allowedDirs {
		out = append(out, strings.TrimSuffix(dir, string(filepath.Separator)))
	}
	return out
}

func (g *Guard) contains(absPath string) bool {
	candidate := withSeparator(filepath.Clean(absPath))
	for _, dir := range g.allowedDirs {
		if strings.HasPrefix(candidate, dir) {
			return true
		}
	}
	return false
}

// Resolve 校验请求的路径并返回解析符号链接后的真实路径。
// 对尚不存在的文件，改为校验其父目录。
func (g *Guard) Resolve(requested string) (string, error) {
	abs, err := filepath.Abs(requested)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(abs)
		realParent, err := filepath.EvalSymlinks(parent)
		if err != nil {
			return "", fmt.Errorf("parent directory does not exist: %s", parent)
		}
		if !g.contains(realParent) {
			return "", fmt.Errorf("access denied - path outside allowed directories: %s", abs)
		}
		return filepath.Join(realParent, filepath.Base(abs)), nil
	}

	if !g.contains(real) {
		return "", fmt.Errorf("access denied - path outside allowed directories: %s", abs)
	}
	return real, nil
}

func withSeparator(p string) string {
	if strings.HasSuffix(p, string(filepath.Separator)) {
		return p
	}
	return p + string(filepath.Separator)
}

// detectMimeType 优先按内容探测，读取失败时回退到扩展名。
func detectMimeType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
			return byExt
		}
		return "application/octet-stream"
	}
	return mtype.String()
}

var textApplicationTypes = []string{
	"application/json",
	"application/xml",
	"application/javascript",
	"application/x-javascript",
	"application/typescript",
	"application/x-yaml",
	"application/yaml",
	"application/toml",
	"application/x-sh",
	"application/x-shellscript",
}

// isTextFile 根据 MIME 类型判断是否为文本文件。
func isTextFile(mimeType string) bool {
	base, _, _ := strings.Cut(mimeType, ";")
	base = strings.TrimSpace(base)
	switch {
	case strings.HasPrefix(base, "text/"):
		return true
	case slices.Contains(textApplicationTypes, base):
		return true
	case strings.Contains(base, "+xml"), strings.Contains(base, "+json"), strings.Contains(base, "+yaml"):
		return true
	}
	return false
}
