package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidedeck-backend/internal/http/response"
	"github.com/yungbote/slidedeck-backend/internal/services"
)

type PageImageHandler struct {
	assets services.AssetService
}

func NewPageImageHandler(assets services.AssetService) *PageImageHandler {
	return &PageImageHandler{assets: assets}
}

// POST /api/projects/:project_id/pages/:page_id/image
//
// Form fields: file (required), version (optional integer), format (optional,
// defaults to png).
func (h *PageImageHandler) Upload(c *gin.Context) {
	var version *int
	if raw := strings.TrimSpace(c.PostForm("version")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			response.RespondErr(c, "invalid_request", badRequest("version must be a non-negative integer"))
			return
		}
		version = &v
	}
	format := strings.TrimSpace(c.PostForm("format"))
	if format == "" {
		format = "png"
	}

	img, err := formImage(c)
	if err != nil {
		response.RespondErr(c, "invalid_request", err)
		return
	}

	out, err := h.assets.SavePageImage(c.Request.Context(), c.Param("project_id"), c.Param("page_id"), img, format, version)
	if err != nil {
		response.RespondErr(c, "save_page_image_failed", err)
		return
	}
	response.RespondCreated(c, out)
}

// GET /api/projects/:project_id/pages/:page_id/images
func (h *PageImageHandler) List(c *gin.Context) {
	versions, err := h.assets.ListPageVersions(c.Request.Context(), c.Param("project_id"), c.Param("page_id"))
	if err != nil {
		response.RespondErr(c, "list_page_images_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"versions": versions, "count": len(versions)})
}

// DELETE /api/projects/:project_id/pages/:page_id/images
func (h *PageImageHandler) DeleteAll(c *gin.Context) {
	n, err := h.assets.DeleteAllPageVersions(c.Request.Context(), c.Param("project_id"), c.Param("page_id"))
	if err != nil {
		response.RespondErr(c, "delete_page_images_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": n})
}

// DELETE /api/projects/:project_id/pages/:page_id/image
func (h *PageImageHandler) DeleteLegacy(c *gin.Context) {
	removed, err := h.assets.DeletePageImage(c.Request.Context(), c.Param("project_id"), c.Param("page_id"))
	if err != nil {
		response.RespondErr(c, "delete_page_image_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"removed": removed})
}
