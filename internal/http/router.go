package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/platewatch/platewatch-backend/internal/http/handlers"
	httpMW "github.com/platewatch/platewatch-backend/internal/http/middleware"
	"github.com/platewatch/platewatch-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	UpdateSecret   string

	SearchHandler *httpH.SearchHandler
	JobHandler    *httpH.JobHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}

	if cfg.SearchHandler != nil {
		r.GET("/search", cfg.SearchHandler.Search)
	}

	if cfg.JobHandler != nil {
		guarded := r.Group("/", httpMW.RequireUpdateSecret(cfg.UpdateSecret))
		guarded.POST("/trigger-update", cfg.JobHandler.TriggerUpdate)
		admin := guarded.Group("/admin")
		admin.POST("/jobs/:type", cfg.JobHandler.Enqueue)
		admin.GET("/jobs/:type/:id", cfg.JobHandler.GetJob)
	}

	return r
}
