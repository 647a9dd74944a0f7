package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions 控制可选的路由。
type RouterOptions struct {
	JwtSecret string              // 非空时 /ask 需要 Bearer token
	Gatherer  prometheus.Gatherer // 非空时暴露 /metrics
}

// NewRouter registers all the routes for the orchestrator service.
func NewRouter(api *API, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", api.RootHandler)

	ask := router.Group("/ask")
	if opts.JwtSecret != "" {
		ask.Use(AuthMiddleware(opts.JwtSecret))
	}
	ask.POST("", api.AskHandler)

	if api.service.HasHistory() {
		asks := router.Group("/asks")
		if opts.JwtSecret != "" {
			asks.Use(AuthMiddleware(opts.JwtSecret))
		}
		asks.GET("/:id", api.GetAskHandler)
	}

	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return router
}
