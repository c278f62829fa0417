package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidedeck-backend/internal/http/response"
	"github.com/yungbote/slidedeck-backend/internal/services"
)

type ProjectHandler struct {
	assets services.AssetService
}

func NewProjectHandler(assets services.AssetService) *ProjectHandler {
	return &ProjectHandler{assets: assets}
}

// DELETE /api/projects/:project_id/files
func (h *ProjectHandler) DeleteFiles(c *gin.Context) {
	res, err := h.assets.DeleteProject(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		response.RespondErr(c, "delete_project_failed", err)
		return
	}
	response.RespondOK(c, res)
}
