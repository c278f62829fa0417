package app

import (
	"github.com/yungbote/slidedeck-backend/internal/http"
	"github.com/yungbote/slidedeck-backend/internal/observability"
	"github.com/yungbote/slidedeck-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlerset Handlers) *http.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewServer(http.RouterConfig{
		Log:                 log,
		Metrics:             metrics,
		ServiceName:         serviceName,
		AllowedOrigins:      cfg.AllowedOrigins,
		MaxUploadBytes:      cfg.MaxUploadBytes,
		HealthHandler:       handlerset.Health,
		FileHandler:         handlerset.File,
		TemplateHandler:     handlerset.Template,
		UserTemplateHandler: handlerset.UserTemplate,
		PageImageHandler:    handlerset.PageImage,
		ProjectHandler:      handlerset.Project,
		MaterialHandler:     handlerset.Material,
	})
}
