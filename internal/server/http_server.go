package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jcodog/Cleo-Dashboard-sub001/config"
	"github.com/jcodog/Cleo-Dashboard-sub001/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouteRegistrar adds API routes to the router.
type RouteRegistrar interface {
	RegisterRoutes(r gin.IRouter)
}

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// NewRouter builds the gin engine with recovery, request logging, tracing,
// /healthz and /metrics. gatherer may be nil to expose the default registry.
func NewRouter(cfg *config.Config, appLogger log.Logger, store Pinger, gatherer prometheus.Gatherer, apis ...RouteRegistrar) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			appLogger.Error(c.Request.Context(), "HTTP request failed", c.Errors.Last().Err, fields)
		} else {
			appLogger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	router.Use(otelgin.Middleware(cfg.OtelServiceName))

	router.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		if store != nil {
			if err := store.Ping(ctx); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	for _, a := range apis {
		a.RegisterRoutes(router)
	}

	return router
}

// NewHTTPServer wraps the router in an http.Server listening on cfg.HTTPAddr.
func NewHTTPServer(cfg *config.Config, appLogger log.Logger, store Pinger, gatherer prometheus.Gatherer, apis ...RouteRegistrar) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, appLogger, store, gatherer, apis...),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
