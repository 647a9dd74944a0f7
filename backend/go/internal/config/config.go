package config

import (
	"Conductor/backend/go/internal/models"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 默认值，与旧版本的环境变量约定保持一致。
const (
	DefaultModel       = "gemini-2.5-flash-preview-04-17"
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai"
	PlaceholderAPIKey  = "no-api-key-provided"
	DefaultConfigPath  = "backend/go/internal/config/config.yaml"
	DefaultCategories  = "categories"
	DefaultDatabaseURL = "http://localhost:8002"
)

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")，为空表示不启用
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address    string `yaml:"address"`    // MongoDB 连接 URI，为空表示不记录请求历史
	Username   string `yaml:"username"`   // 用户名
	Password   string `yaml:"password"`   // 密码
	Database   string `yaml:"database"`   // 数据库名称
	Collection string `yaml:"collection"` // 请求记录所在集合
}

// SupabaseConfig 定义了托管数据库 (PostgREST) 的连接配置。
type SupabaseConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anonKey"`
}

// EtcdConfig 定义了 Etcd 服务发现的连接配置。
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"` // Etcd 节点地址列表，为空表示只使用静态注册表
	Username  string   `yaml:"username"`  // 用户名
	Password  string   `yaml:"password"`  // 密码
	Prefix    string   `yaml:"prefix"`    // Agent 注册使用的键前缀
	LeaseTTL  int64    `yaml:"leaseTTL"`  // 注册租约 (秒)
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表，为空表示不发布进度事件
	Topic   string   `yaml:"topic"`   // 进度事件主题
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Supabase SupabaseConfig `yaml:"supabase"` // 数据库 Agent 默认使用的远端存储
	MySQL    MySQLConfig    `yaml:"mysql"`    // 数据库 Agent 的可选关系型存储
	Redis    RedisConfig    `yaml:"redis"`    // 分类写入的分布式锁
	MongoDB  MongoConfig    `yaml:"mongodb"`  // 请求历史
	Etcd     EtcdConfig     `yaml:"etcd"`     // Agent 注册与发现
	Kafka    KafkaConfig    `yaml:"kafka"`    // 进度事件
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// LLMConfig 描述一个补全服务。
type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" (兼容接口，默认), "gemini", "ollama"
	Model    string `yaml:"model"`    // 模型名称
	BaseURL  string `yaml:"baseURL"`  // 接口地址
	APIKey   string `yaml:"apiKey"`   // API 密钥
}

// ServerConfig 定义了 HTTP 入口的监听与跨域配置。
type ServerConfig struct {
	Address     string   `yaml:"address"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// AuthConfig 用于配置 /ask 的可选鉴权。
type AuthConfig struct {
	JwtSecret string `yaml:"jwtSecret"` // 为空表示不鉴权
}

// ToolServersConfig 描述子 Agent 依赖的工具服务进程。
type ToolServersConfig struct {
	Command           string `yaml:"command"`           // 启动外部工具服务的命令，默认 npx
	BraveAPIKey       string `yaml:"braveApiKey"`       // 为空时不启动搜索工具
	GitHubToken       string `yaml:"githubToken"`       // 为空时不启动代码托管工具
	FileDir           string `yaml:"fileDir"`           // 文件系统工具的根目录
	FilesystemBuiltin bool   `yaml:"filesystemBuiltin"` // 使用内置的 Go 文件系统工具服务
	FilesystemBinary  string `yaml:"filesystemBinary"`  // 内置工具服务的可执行文件路径
}

// OrchestratorConfig 定义了编排器的配置。
type OrchestratorConfig struct {
	MaxIterations int `yaml:"maxIterations"` // 单次请求工具调用循环的上限
}

// DatabaseAgentConfig 定义了数据库 Agent 的配置。
type DatabaseAgentConfig struct {
	Store           string `yaml:"store"`           // "supabase" (默认) 或 "mysql"
	CategoriesTable string `yaml:"categoriesTable"` // 分类表
	SchemaCacheSize int    `yaml:"schemaCacheSize"` // 表结构缓存容量
	Address         string `yaml:"address"`         // 独立部署时 A2A 服务的监听地址
	PublicURL       string `yaml:"publicURL"`       // 名片中对外公布的地址
	MaxIterations   int    `yaml:"maxIterations"`
	// ServeA2A 让 orchestrator 进程顺带在 Address 上提供数据库 Agent 的 A2A 服务，
	// 默认的 agents 条目因此不需要单独部署 database_agent。
	ServeA2A bool `yaml:"serveA2A"`
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了限流器的配置。限流按客户端地址分别计算。
type RateLimiterConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Algorithm   string            `yaml:"algorithm"` // 支持: "tokenBucket", "fixedWindow"
	FixedWindow FixedWindowConfig `yaml:"fixedWindow"`
	TokenBucket TokenBucketConfig `yaml:"tokenBucket"`
}

// FixedWindowConfig 定义了固定窗口计数器算法的配置。
type FixedWindowConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // 例如: "1m", "30s"
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App           AppInfo                  `yaml:"app"`
	Logger        LoggerConfig             `yaml:"logger"`
	LLM           LLMConfig                `yaml:"llm"`        // 编排器与子 Agent 共用的模型
	Classifier    LLMConfig                `yaml:"classifier"` // 分类器使用的模型，provider 为空时复用 llm
	Server        ServerConfig             `yaml:"server"`
	Auth          AuthConfig               `yaml:"auth"`
	Agents        []models.AgentDescriptor `yaml:"agents"` // 静态 Agent 注册表
	ToolServers   ToolServersConfig        `yaml:"toolServers"`
	Orchestrator  OrchestratorConfig       `yaml:"orchestrator"`
	DatabaseAgent DatabaseAgentConfig      `yaml:"databaseAgent"`
	Databases     DatabaseConfigs          `yaml:"databases"`
	Middleware    MiddlewareConfig         `yaml:"middleware"`
}

// Default 返回所有字段都带有默认值的配置。
func Default() *AppConfig {
	return &AppConfig{
		App:    AppInfo{Name: "conductor", Version: "1.0.0", Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    DefaultModel,
			BaseURL:  DefaultBaseURL,
			APIKey:   PlaceholderAPIKey,
		},
		Server: ServerConfig{
			Address:     ":8000",
			CORSOrigins: []string{"http://localhost:8080", "http://127.0.0.1:8080"},
		},
		Agents: []models.AgentDescriptor{
			{Name: "Supabase Agent", Port: 8002, Description: "Creates and fetches rows in the Supabase database."},
		},
		ToolServers: ToolServersConfig{
			Command:          "npx",
			FileDir:          ".",
			FilesystemBinary: "filesystem_server",
		},
		Orchestrator: OrchestratorConfig{MaxIterations: 10},
		DatabaseAgent: DatabaseAgentConfig{
			Store:           "supabase",
			CategoriesTable: DefaultCategories,
			SchemaCacheSize: 128,
			Address:         ":8002",
			PublicURL:       DefaultDatabaseURL,
			MaxIterations:   10,
			ServeA2A:        true,
		},
		Databases: DatabaseConfigs{
			MongoDB: MongoConfig{Database: "conductor", Collection: "asks"},
			Etcd:    EtcdConfig{Prefix: "/conductor/agents/", LeaseTTL: 15},
			Kafka:   KafkaConfig{Topic: "agent_logs"},
		},
		Middleware: MiddlewareConfig{
			RateLimiter: RateLimiterConfig{
				Algorithm:   "tokenBucket",
				TokenBucket: TokenBucketConfig{Rate: 5, Capacity: 10},
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          "30s",
			},
		},
	}
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
// 文件中没有出现的字段保留默认值。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	return cfg, nil
}

// Load 是各个入口使用的完整加载流程：
// 默认值 -> YAML 文件 (不存在时跳过) -> .env -> 环境变量。
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		loaded, err := LoadConfig(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
			// 没有配置文件时只使用默认值和环境变量
		default:
			return nil, err
		}
	}
	// .env 文件是可选的
	_ = godotenv.Load()
	ApplyEnv(cfg)
	return cfg, nil
}

// ApplyEnv 用环境变量覆盖配置。
func ApplyEnv(cfg *AppConfig) {
	if v := firstEnv("MODEL_CHOICE", "MAIN_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := firstEnv("BASE_URL", "MAIN_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := firstEnv("GEMINI_API_KEY", "OPENAI_API_KEY", "LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := firstEnv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := firstEnv("BRAVE_API_KEY"); v != "" {
		cfg.ToolServers.BraveAPIKey = v
	}
	if v := firstEnv("GITHUB_TOKEN"); v != "" {
		cfg.ToolServers.GitHubToken = v
	}
	if v := firstEnv("LOCAL_FILE_DIR"); v != "" {
		cfg.ToolServers.FileDir = v
	}
	if v := firstEnv("SUPABASE_URL"); v != "" {
		cfg.Databases.Supabase.URL = v
	}
	if v := firstEnv("SUPABASE_ANON_KEY"); v != "" {
		cfg.Databases.Supabase.AnonKey = v
	}
	if v := firstEnv("LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		cfg.LLM.APIKey = PlaceholderAPIKey
	}
}

// ClassifierLLM 返回分类器实际使用的模型配置。
func (c *AppConfig) ClassifierLLM() LLMConfig {
	if c.Classifier.Provider == "" {
		return c.LLM
	}
	return c.Classifier
}

// ConfigPath 返回配置文件路径，可以被 CONDUCTOR_CONFIG 覆盖。
func ConfigPath() string {
	if v := os.Getenv("CONDUCTOR_CONFIG"); v != "" {
		return v
	}
	return DefaultConfigPath
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
