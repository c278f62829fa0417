package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/slidedeck-backend/internal/domain/materials"
	"github.com/yungbote/slidedeck-backend/internal/http/response"
	"github.com/yungbote/slidedeck-backend/internal/services"
)

type MaterialHandler struct {
	assets services.AssetService
}

func NewMaterialHandler(assets services.AssetService) *MaterialHandler {
	return &MaterialHandler{assets: assets}
}

// GET /api/projects/:project_id/materials?project_id=all|none|<id>
func (h *MaterialHandler) ListForProject(c *gin.Context) {
	def := materials.Scope{Kind: materials.ScopeProject, ProjectID: c.Param("project_id")}
	h.list(c, materials.ParseScope(c.Query("project_id"), def))
}

// GET /api/materials?project_id=all|none|<id>
func (h *MaterialHandler) ListAll(c *gin.Context) {
	h.list(c, materials.ParseScope(c.Query("project_id"), materials.Scope{Kind: materials.ScopeAll}))
}

func (h *MaterialHandler) list(c *gin.Context, scope materials.Scope) {
	rows, err := h.assets.ListMaterials(c.Request.Context(), scope)
	if err != nil {
		response.RespondErr(c, "list_materials_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"materials": rows, "count": len(rows)})
}

// POST /api/projects/:project_id/materials/upload?project_id=none|<id>
func (h *MaterialHandler) UploadForProject(c *gin.Context) {
	target := c.Param("project_id")
	switch q := c.Query("project_id"); q {
	case "":
	case "none":
		h.upload(c, nil)
		return
	default:
		target = q
	}
	h.upload(c, &target)
}

// POST /api/materials/upload?project_id=none|<id>
func (h *MaterialHandler) UploadGlobal(c *gin.Context) {
	h.upload(c, globalTarget(c))
}

// POST /api/materials/generated?project_id=none|<id>
//
// Stores a rendered image under a generated name. The upload is decoded and
// re-encoded as png.
func (h *MaterialHandler) UploadGenerated(c *gin.Context) {
	projectID := globalTarget(c)
	if !validOwner(c, projectID) {
		return
	}
	img, err := formImage(c)
	if err != nil {
		response.RespondErr(c, "invalid_request", err)
		return
	}
	m, err := h.assets.SaveGeneratedMaterial(c.Request.Context(), img, projectID)
	if err != nil {
		response.RespondErr(c, "save_material_failed", err)
		return
	}
	response.RespondCreated(c, m)
}

// GET /api/materials/:id
func (h *MaterialHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondErr(c, "invalid_request", badRequest("invalid material id"))
		return
	}
	m, err := h.assets.GetMaterial(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, "get_material_failed", err)
		return
	}
	response.RespondOK(c, m)
}

func globalTarget(c *gin.Context) *string {
	q := c.Query("project_id")
	if q == "" || q == "none" {
		return nil
	}
	return &q
}

func validOwner(c *gin.Context, projectID *string) bool {
	if projectID != nil && *projectID == "all" {
		response.RespondErr(c, "invalid_request", badRequest("project_id %q cannot own a material", "all"))
		return false
	}
	return true
}

func (h *MaterialHandler) upload(c *gin.Context, projectID *string) {
	if !validOwner(c, projectID) {
		return
	}
	f, fh, err := formFile(c)
	if err != nil {
		response.RespondErr(c, "invalid_request", err)
		return
	}
	defer f.Close()

	m, err := h.assets.UploadMaterial(c.Request.Context(), fh.Filename, f, projectID)
	if err != nil {
		response.RespondErr(c, "upload_material_failed", err)
		return
	}
	response.RespondCreated(c, m)
}

// DELETE /api/materials/:id
func (h *MaterialHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondErr(c, "invalid_request", badRequest("invalid material id"))
		return
	}
	res, err := h.assets.DeleteMaterial(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, "delete_material_failed", err)
		return
	}
	response.RespondOK(c, res)
}
