package app

import (
	"gorm.io/gorm"

	apphttp "github.com/platewatch/platewatch-backend/internal/http"
	httpH "github.com/platewatch/platewatch-backend/internal/http/handlers"
	"github.com/platewatch/platewatch-backend/internal/platform/logger"
)

func wireRouter(db *gorm.DB, log *logger.Logger, cfg Config, s Services, r Repos) *apphttp.Server {
	log.Info("Wiring router...")
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:            log,
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.AllowedOrigins,
		UpdateSecret:   cfg.UpdateSecret,

		SearchHandler: httpH.NewSearchHandler(s.Search),
		JobHandler:    httpH.NewJobHandler(r.JobRun, s.JobRegistry),
		HealthHandler: httpH.NewHealthHandler(db),
	})
}
