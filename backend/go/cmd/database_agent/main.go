package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/internal/database_agent/api"
	"Conductor/backend/go/internal/database_agent/bootstrap"
	"Conductor/backend/go/internal/discovery/etcd"
	"Conductor/backend/go/internal/llm"
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/pkg/logger"
	"Conductor/backend/go/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	appLogger := logger.New("database_agent", "", "")
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create LLM client: %v", err))
	}
	classifierClient, err := llm.NewClient(cfg.ClassifierLLM())
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create classifier LLM client: %v", err))
	}

	promRegistry := prometheus.NewRegistry()
	appMetrics := metrics.New(promRegistry)

	dbAgent, closeDB, err := bootstrap.New(ctx, cfg, llmClient, classifierClient, appMetrics, appLogger)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create database agent: %v", err))
	}
	defer closeDB()

	server, router, err := api.NewServer(cfg, dbAgent, appLogger)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create HTTP server: %v", err))
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	// 配置了 etcd 时把自己注册进去，供编排器发现
	if len(cfg.Databases.Etcd.Endpoints) > 0 {
		desc, err := selfDescriptor(cfg.DatabaseAgent.PublicURL)
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Invalid public URL: %v", err))
		}
		desc.Description = api.Description
		registry, err := etcd.New(cfg.Databases.Etcd, appLogger)
		if err != nil {
			appLogger.WithErr(err).Warn("etcd unavailable, skipping registration")
		} else {
			defer registry.Close()
			deregister, err := registry.Register(ctx, desc)
			if err != nil {
				appLogger.WithErr(err).Warn("etcd registration failed")
			} else {
				defer deregister()
			}
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down database agent")
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
}

// selfDescriptor 从对外地址推导注册表条目。
func selfDescriptor(publicURL string) (models.AgentDescriptor, error) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return models.AgentDescriptor{}, err
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return models.AgentDescriptor{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return models.AgentDescriptor{}, err
	}
	return models.AgentDescriptor{Name: api.CardName, Host: host, Port: port}, nil
}
