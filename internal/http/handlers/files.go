package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidedeck-backend/internal/http/response"
	"github.com/yungbote/slidedeck-backend/internal/services"
)

type FileHandler struct {
	assets services.AssetService
}

func NewFileHandler(assets services.AssetService) *FileHandler {
	return &FileHandler{assets: assets}
}

// GET /files/*filepath
func (h *FileHandler) Serve(c *gin.Context) {
	abs, err := h.assets.ResolveFile(c.Request.Context(), c.Request.URL.Path)
	if err != nil {
		response.RespondErr(c, "serve_file_failed", err)
		return
	}
	c.File(abs)
}

// DELETE /api/files?path=<relative path>
func (h *FileHandler) DeletePageVersion(c *gin.Context) {
	rel := c.Query("path")
	if rel == "" {
		response.RespondErr(c, "invalid_request", badRequest("path is required"))
		return
	}
	removed, err := h.assets.DeletePageImageVersion(c.Request.Context(), rel)
	if err != nil {
		response.RespondErr(c, "delete_file_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"removed": removed, "relative_path": rel})
}
