package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/slidedeck-backend/internal/http/response"
	"github.com/yungbote/slidedeck-backend/internal/services"
)

type TemplateHandler struct {
	assets services.AssetService
}

func NewTemplateHandler(assets services.AssetService) *TemplateHandler {
	return &TemplateHandler{assets: assets}
}

// POST /api/projects/:project_id/template
func (h *TemplateHandler) Upload(c *gin.Context) {
	f, fh, err := formFile(c)
	if err != nil {
		response.RespondErr(c, "invalid_request", err)
		return
	}
	defer f.Close()

	out, err := h.assets.UploadTemplate(c.Request.Context(), c.Param("project_id"), fh.Filename, f)
	if err != nil {
		response.RespondErr(c, "upload_template_failed", err)
		return
	}
	response.RespondCreated(c, out)
}

// GET /api/projects/:project_id/template
func (h *TemplateHandler) Get(c *gin.Context) {
	abs, err := h.assets.TemplateFile(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		response.RespondErr(c, "get_template_failed", err)
		return
	}
	c.File(abs)
}

// DELETE /api/projects/:project_id/template
func (h *TemplateHandler) Delete(c *gin.Context) {
	removed, err := h.assets.DeleteTemplate(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		response.RespondErr(c, "delete_template_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"removed": removed})
}

type UserTemplateHandler struct {
	assets services.AssetService
}

func NewUserTemplateHandler(assets services.AssetService) *UserTemplateHandler {
	return &UserTemplateHandler{assets: assets}
}

// POST /api/user-templates/:template_id
func (h *UserTemplateHandler) Upload(c *gin.Context) {
	f, fh, err := formFile(c)
	if err != nil {
		response.RespondErr(c, "invalid_request", err)
		return
	}
	defer f.Close()

	out, err := h.assets.UploadUserTemplate(c.Request.Context(), c.Param("template_id"), fh.Filename, f)
	if err != nil {
		response.RespondErr(c, "upload_user_template_failed", err)
		return
	}
	response.RespondCreated(c, out)
}

// GET /api/user-templates/:template_id
func (h *UserTemplateHandler) Get(c *gin.Context) {
	abs, err := h.assets.UserTemplateFile(c.Request.Context(), c.Param("template_id"))
	if err != nil {
		response.RespondErr(c, "get_user_template_failed", err)
		return
	}
	c.File(abs)
}

// DELETE /api/user-templates/:template_id
func (h *UserTemplateHandler) Delete(c *gin.Context) {
	removed, err := h.assets.DeleteUserTemplate(c.Request.Context(), c.Param("template_id"))
	if err != nil {
		response.RespondErr(c, "delete_user_template_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"removed": removed})
}
