// Package http assembles the gin engine and HTTP server for the extraction
// API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NeuroChart-Intelligence/internal/application/extraction"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NeuroChart-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/NeuroChart-Intelligence/internal/interfaces/http/middleware"
)

// RouterDeps collects everything the router mounts.  Metrics and checkers
// are optional.
type RouterDeps struct {
	Service  extraction.Service
	Metrics  *prometheus.PipelineMetrics
	Checkers []handlers.HealthChecker
	Version  string
	Mode     string
	Logger   logging.Logger
}

// NewRouter builds the engine with the full middleware chain and all routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	switch deps.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(deps.Logger),
		middleware.RequestLogging(deps.Logger, "/healthz", "/readyz", "/metrics"),
		middleware.CORS(middleware.DefaultCORSConfig()),
	)

	handlers.NewHealthHandler(deps.Version, deps.Checkers...).RegisterRoutes(r)

	if deps.Metrics != nil {
		metricsHandler := deps.Metrics.Handler()
		r.GET("/metrics", func(c *gin.Context) {
			metricsHandler.ServeHTTP(c.Writer, c.Request)
		})
	}

	api := r.Group("/api/v1")
	handlers.NewExtractionHandler(deps.Service, deps.Logger).RegisterRoutes(api)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "COMMON_005", "message": "route not found"})
	})
	return r
}
