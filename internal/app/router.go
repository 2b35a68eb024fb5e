package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/contentagent/internal/config"
	"github.com/yungbote/contentagent/internal/http"
	httpH "github.com/yungbote/contentagent/internal/http/handlers"
	"github.com/yungbote/contentagent/internal/observability"
	"github.com/yungbote/contentagent/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Job    *httpH.JobHandler
}

func wireHandlers(log *logger.Logger, cfg *config.Config, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(),
		Job: httpH.NewJobHandler(log, services.Controller, services.Status, httpH.AgentInfo{
			Identifier: cfg.Agent.Identifier,
			SellerVKey: cfg.Agent.SellerVKey,
		}),
	}
}

func wireRouter(log *logger.Logger, cfg *config.Config, handlers Handlers, metrics *observability.PrometheusRecorder) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		MaxBodySize:    cfg.HTTP.MaxRequestBytes,
		HTTPMetrics:    metrics,
		MetricsHandler: metrics.Handler(),
		JobHandler:     handlers.Job,
		HealthHandler:  handlers.Health,
	})
}
