package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/slidedeck-backend/internal/http/handlers"
	httpMW "github.com/yungbote/slidedeck-backend/internal/http/middleware"
	"github.com/yungbote/slidedeck-backend/internal/observability"
	"github.com/yungbote/slidedeck-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string
	MaxUploadBytes int64

	FileHandler         *httpH.FileHandler
	TemplateHandler     *httpH.TemplateHandler
	UserTemplateHandler *httpH.UserTemplateHandler
	PageImageHandler    *httpH.PageImageHandler
	ProjectHandler      *httpH.ProjectHandler
	MaterialHandler     *httpH.MaterialHandler

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
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Stored files
	if cfg.FileHandler != nil {
		r.GET("/files/*filepath", cfg.FileHandler.Serve)
	}

	api := r.Group("/api")
	api.Use(httpMW.LimitBody(cfg.MaxUploadBytes))
	{
		if cfg.FileHandler != nil {
			api.DELETE("/files", cfg.FileHandler.DeletePageVersion)
		}

		// Templates
		if cfg.TemplateHandler != nil {
			api.POST("/projects/:project_id/template", cfg.TemplateHandler.Upload)
			api.GET("/projects/:project_id/template", cfg.TemplateHandler.Get)
			api.DELETE("/projects/:project_id/template", cfg.TemplateHandler.Delete)
		}
		if cfg.UserTemplateHandler != nil {
			api.POST("/user-templates/:template_id", cfg.UserTemplateHandler.Upload)
			api.GET("/user-templates/:template_id", cfg.UserTemplateHandler.Get)
			api.DELETE("/user-templates/:template_id", cfg.UserTemplateHandler.Delete)
		}

		// Pages
		if cfg.PageImageHandler != nil {
			api.POST("/projects/:project_id/pages/:page_id/image", cfg.PageImageHandler.Upload)
			api.DELETE("/projects/:project_id/pages/:page_id/image", cfg.PageImageHandler.DeleteLegacy)
			api.GET("/projects/:project_id/pages/:page_id/images", cfg.PageImageHandler.List)
			api.DELETE("/projects/:project_id/pages/:page_id/images", cfg.PageImageHandler.DeleteAll)
		}

		// Projects
		if cfg.ProjectHandler != nil {
			api.DELETE("/projects/:project_id/files", cfg.ProjectHandler.DeleteFiles)
		}

		// Materials
		if cfg.MaterialHandler != nil {
			api.GET("/projects/:project_id/materials", cfg.MaterialHandler.ListForProject)
			api.POST("/projects/:project_id/materials/upload", cfg.MaterialHandler.UploadForProject)
			api.GET("/materials", cfg.MaterialHandler.ListAll)
			api.POST("/materials/upload", cfg.MaterialHandler.UploadGlobal)
			api.POST("/materials/generated", cfg.MaterialHandler.UploadGenerated)
			api.GET("/materials/:id", cfg.MaterialHandler.Get)
			api.DELETE("/materials/:id", cfg.MaterialHandler.Delete)
		}
	}

	return r
}
