package main

import (
	"Conductor/backend/go/pkg/tools/filesystem"
	"flag"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/server"
)

// 内置的文件系统工具服务，通过 stdio 与 MCP 客户端通信。
//
//	filesystem_server --allowed-dirs=/home/user/docs,/tmp
func main() {
	allowedDirs := flag.String("allowed-dirs", ".", "Comma-separated list of allowed directories")
	flag.Parse()

	var dirs []string
	for _, dir := range strings.Split(*allowedDirs, ",") {
		if dir = strings.TrimSpace(dir); dir != "" {
			dirs = append(dirs, dir)
		}
	}

	s, err := filesystem.NewFilesystemServer(dirs)
	if err != nil {
		log.Fatalf("failed to create filesystem server: %v", err)
	}

	// stdout 属于协议通道，日志只能写 stderr
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("STDIO server error: %v", err)
	}
}
