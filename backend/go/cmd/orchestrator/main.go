package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"Conductor/backend/go/internal/agent"
	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/internal/database/kafka"
	"Conductor/backend/go/internal/database/mongo"
	dbapi "Conductor/backend/go/internal/database_agent/api"
	"Conductor/backend/go/internal/database_agent/bootstrap"
	"Conductor/backend/go/internal/discovery"
	"Conductor/backend/go/internal/discovery/etcd"
	"Conductor/backend/go/internal/llm"
	"Conductor/backend/go/internal/orchestrator"
	"Conductor/backend/go/internal/orchestrator_service/api"
	"Conductor/backend/go/internal/orchestrator_service/service"
	"Conductor/backend/go/internal/orchestrator_service/store"
	"Conductor/backend/go/internal/subagent"
	"Conductor/backend/go/pkg/a2a_host"
	phttp "Conductor/backend/go/pkg/http"
	"Conductor/backend/go/pkg/logger"
	"Conductor/backend/go/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	// 2. 初始化 Logger
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	appLogger := logger.New("orchestrator", "", "")
	appLogger.Info("Logger initialized for Orchestrator")
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化 LLM 客户端
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create LLM client: %v", err))
	}
	classifierClient, err := llm.NewClient(cfg.ClassifierLLM())
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create classifier LLM client: %v", err))
	}

	// 4. 指标
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(promRegistry)

	capabilities := agent.NewLocalRegistry()

	// 5. 启动子 Agent 的工具服务，失败的子 Agent 仍然注册，调用时返回不可用
	subAgents := subagent.Defaults(cfg, llmClient, subagent.WithLogger(appLogger))
	subagent.StartAll(ctx, appLogger, subAgents...)
	defer subagent.StopAll(appLogger, subAgents...)
	for _, sa := range subAgents {
		if err := capabilities.Register(sa); err != nil {
			appLogger.Fatal(err.Error())
		}
	}

	// 6. 数据库 Agent
	dbAgent, closeDB, err := bootstrap.New(ctx, cfg, llmClient, classifierClient, appMetrics, appLogger)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create database agent: %v", err))
	}
	defer closeDB()
	if err := capabilities.Register(dbAgent); err != nil {
		appLogger.Fatal(err.Error())
	}
	var dbServer *phttp.Server
	if cfg.DatabaseAgent.ServeA2A {
		dbServer = startDatabaseA2A(cfg, dbAgent, appLogger)
	}

	// 7. 远程 Agent：静态注册表优先，etcd 作为补充
	staticRegistry, err := discovery.NewRegistry(cfg.Agents)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Invalid agent registry: %v", err))
	}
	sources := discovery.MultiSource{staticRegistry}
	if len(cfg.Databases.Etcd.Endpoints) > 0 {
		etcdRegistry, err := etcd.New(cfg.Databases.Etcd, appLogger)
		if err != nil {
			appLogger.WithErr(err).Warn("etcd unavailable, using static agent registry only")
		} else {
			defer etcdRegistry.Close()
			sources = append(sources, etcdRegistry)
		}
	}
	if staticRegistry.Len() > 0 || len(sources) > 1 {
		httpClient, err := phttp.NewClient(cfg.Middleware.CircuitBreaker)
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to create http client: %v", err))
		}
		searcher := discovery.NewSearcher(sources, httpClient, llmClient, discovery.WithLogger(appLogger))
		// 远端 Agent 的回答需要多轮模型调用，单独用更长的超时，熔断照常生效
		relayClient, err := phttp.NewClient(cfg.Middleware.CircuitBreaker,
			phttp.WithHTTPClient(&http.Client{Timeout: a2a_host.DefaultTimeout}))
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to create A2A http client: %v", err))
		}
		remote := orchestrator.NewRemoteAgents(searcher, a2a_host.NewClient(relayClient.StandardClient()), staticRegistry.List())
		if err := capabilities.Register(remote); err != nil {
			appLogger.Fatal(err.Error())
		}
	}

	orch := orchestrator.New(llmClient, capabilities,
		orchestrator.WithMaxIterations(cfg.Orchestrator.MaxIterations),
		orchestrator.WithMetrics(appMetrics),
		orchestrator.WithLogger(appLogger),
	)

	// 8. 可选的请求历史与进度事件
	svcOpts := []service.Option{service.WithMetrics(appMetrics), service.WithLogger(appLogger)}
	if mongoCfg := cfg.Databases.MongoDB; mongoCfg.Address != "" {
		mongoClient, err := mongo.Open(ctx, &mongoCfg)
		if err != nil {
			appLogger.WithErr(err).Warn("MongoDB unavailable, ask history disabled")
		} else {
			defer mongoClient.Disconnect(context.Background())
			svcOpts = append(svcOpts, service.WithStore(store.NewMongoStore(mongoClient, mongoCfg.Database, mongoCfg.Collection)))
		}
	}
	if len(cfg.Databases.Kafka.Brokers) > 0 {
		publisher, err := kafka.NewLogPublisher(&cfg.Databases.Kafka)
		if err != nil {
			appLogger.WithErr(err).Warn("Kafka unavailable, progress events disabled")
		} else {
			defer publisher.Close()
			svcOpts = append(svcOpts, service.WithPublisher(publisher))
		}
	}
	askService := service.NewAskService(orch, svcOpts...)

	// 9. HTTP 服务
	router := api.NewRouter(api.NewAPI(askService, cfg.App.Name, appLogger), api.RouterOptions{
		JwtSecret: cfg.Auth.JwtSecret,
		Gatherer:  promRegistry,
	})
	server, err := phttp.NewServer(cfg, router, phttp.WithLogger(appLogger))
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create HTTP server: %v", err))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down orchestrator")
	case err := <-errCh:
		if err != nil {
			appLogger.WithErr(err).Error("HTTP server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithErr(err).Error("Graceful shutdown failed")
	}
	if dbServer != nil {
		if err := dbServer.Shutdown(shutdownCtx); err != nil {
			appLogger.WithErr(err).Error("Database agent A2A shutdown failed")
		}
	}
}

// startDatabaseA2A 在同一进程里提供数据库 Agent 的 A2A 服务，让默认的 agents 条目可达。
// 尽力而为：端口被占用等失败只记录日志，不影响主服务。
func startDatabaseA2A(cfg *config.AppConfig, capability agent.Capability, log *logger.Logger) *phttp.Server {
	server, _, err := dbapi.NewServer(cfg, capability, log)
	if err != nil {
		log.WithErr(err).Warn("database agent A2A server disabled")
		return nil
	}
	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.WithErr(err).Warn("database agent A2A server stopped")
		}
	}()
	return server
}
