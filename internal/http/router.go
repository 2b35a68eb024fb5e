package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/contentagent/internal/http/handlers"
	httpMW "github.com/yungbote/contentagent/internal/http/middleware"
	"github.com/yungbote/contentagent/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	MaxBodySize int64

	HTTPMetrics    httpMW.HTTPObserver
	MetricsHandler http.Handler

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
	r.Use(httpMW.Metrics(cfg.HTTPMetrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	if cfg.MaxBodySize > 0 {
		r.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxBodySize)
			c.Next()
		})
	}

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.Health)
		r.GET("/availability", cfg.HealthHandler.Availability)
		r.GET("/input_schema", cfg.HealthHandler.InputSchema)
	}

	if cfg.JobHandler != nil {
		r.POST("/start_job", cfg.JobHandler.StartJob)
		r.GET("/status", cfg.JobHandler.Status)
	}

	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	return r
}
