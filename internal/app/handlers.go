package app

import (
	httpH "github.com/yungbote/slidedeck-backend/internal/http/handlers"
)

type Handlers struct {
	Health       *httpH.HealthHandler
	File         *httpH.FileHandler
	Template     *httpH.TemplateHandler
	UserTemplate *httpH.UserTemplateHandler
	PageImage    *httpH.PageImageHandler
	Project      *httpH.ProjectHandler
	Material     *httpH.MaterialHandler
}

func wireHandlers(serviceset Services) Handlers {
	return Handlers{
		Health:       httpH.NewHealthHandler(),
		File:         httpH.NewFileHandler(serviceset.Assets),
		Template:     httpH.NewTemplateHandler(serviceset.Assets),
		UserTemplate: httpH.NewUserTemplateHandler(serviceset.Assets),
		PageImage:    httpH.NewPageImageHandler(serviceset.Assets),
		Project:      httpH.NewProjectHandler(serviceset.Assets),
		Material:     httpH.NewMaterialHandler(serviceset.Assets),
	}
}
