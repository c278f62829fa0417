package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/slidedeck-backend/internal/data/repos"
	types "github.com/yungbote/slidedeck-backend/internal/domain"
	"github.com/yungbote/slidedeck-backend/internal/observability"
	"github.com/yungbote/slidedeck-backend/internal/platform/apierr"
	"github.com/yungbote/slidedeck-backend/internal/platform/ctxutil"
	"github.com/yungbote/slidedeck-backend/internal/platform/dbctx"
	"github.com/yungbote/slidedeck-backend/internal/platform/filestore"
	"github.com/yungbote/slidedeck-backend/internal/platform/logger"
	"github.com/yungbote/slidedeck-backend/internal/realtime/bus"
)

// StoredAsset is what a successful write hands back to callers.
type StoredAsset struct {
	RelativePath string `json:"relative_path"`
	URL          string `json:"url"`
	Filename     string `json:"filename"`
}

type PageVersionView struct {
	Filename     string `json:"filename"`
	RelativePath string `json:"relative_path"`
	URL          string `json:"url"`
	Version      *int   `json:"version,omitempty"`
	TimestampMs  *int64 `json:"timestamp_ms,omitempty"`
}

type MaterialDeleteResult struct {
	Material    *types.Material `json:"material"`
	FileRemoved bool            `json:"file_removed"`
	FileError   string          `json:"file_error,omitempty"`
}

type ProjectDeleteResult struct {
	ProjectID        string `json:"project_id"`
	FilesRemoved     bool   `json:"files_removed"`
	MaterialsDeleted int64  `json:"materials_deleted"`
}

type AssetService interface {
	UploadTemplate(ctx context.Context, projectID, filename string, r io.Reader) (*StoredAsset, error)
	TemplateFile(ctx context.Context, projectID string) (string, error)
	DeleteTemplate(ctx context.Context, projectID string) (bool, error)

	UploadUserTemplate(ctx context.Context, templateID, filename string, r io.Reader) (*StoredAsset, error)
	UserTemplateFile(ctx context.Context, templateID string) (string, error)
	DeleteUserTemplate(ctx context.Context, templateID string) (bool, error)

	SavePageImage(ctx context.Context, projectID, pageID string, img image.Image, format string, version *int) (*StoredAsset, error)
	ListPageVersions(ctx context.Context, projectID, pageID string) ([]PageVersionView, error)
	DeletePageImage(ctx context.Context, projectID, pageID string) (bool, error)
	DeletePageImageVersion(ctx context.Context, relativePath string) (bool, error)
	DeleteAllPageVersions(ctx context.Context, projectID, pageID string) (int, error)

	UploadMaterial(ctx context.Context, filename string, r io.Reader, projectID *string) (*types.Material, error)
	SaveGeneratedMaterial(ctx context.Context, img image.Image, projectID *string) (*types.Material, error)
	ListMaterials(ctx context.Context, scope types.MaterialScope) ([]*types.Material, error)
	GetMaterial(ctx context.Context, id uuid.UUID) (*types.Material, error)
	DeleteMaterial(ctx context.Context, id uuid.UUID) (*MaterialDeleteResult, error)

	DeleteProject(ctx context.Context, projectID string) (*ProjectDeleteResult, error)

	// ResolveFile maps a /files/... URL path to an absolute path of an
	// existing regular file.
	ResolveFile(ctx context.Context, urlPath string) (string, error)
}

type AssetServiceOptions struct {
	// AllowedMaterialExtensions lists lowercase dotted extensions accepted by
	// UploadMaterial. Empty accepts any extension.
	AllowedMaterialExtensions []string
	Clock                     func() time.Time
}

type assetService struct {
	db        *gorm.DB
	log       *logger.Logger
	store     *filestore.Store
	urls      *filestore.URLMapper
	materials repos.MaterialRepo
	events    bus.Bus
	metrics   *observability.Metrics

	allowedExt map[string]bool
	now        func() time.Time
}

func NewAssetService(
	db *gorm.DB,
	log *logger.Logger,
	store *filestore.Store,
	urls *filestore.URLMapper,
	materials repos.MaterialRepo,
	events bus.Bus,
	metrics *observability.Metrics,
	opts AssetServiceOptions,
) AssetService {
	allowed := map[string]bool{}
	for _, ext := range opts.AllowedMaterialExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	if events == nil {
		events = bus.NewMemoryBus()
	}
	return &assetService{
		db:         db,
		log:        log.With("service", "AssetService"),
		store:      store,
		urls:       urls,
		materials:  materials,
		events:     events,
		metrics:    metrics,
		allowedExt: allowed,
		now:        now,
	}
}

func (s *assetService) stored(rel string) (*StoredAsset, error) {
	u, err := s.urls.URLForRelativePath(rel)
	if err != nil {
		return nil, err
	}
	return &StoredAsset{RelativePath: rel, URL: u, Filename: path.Base(rel)}, nil
}

func (s *assetService) publish(ctx context.Context, ev bus.AssetEvent) {
	ev.At = s.now().UTC()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish asset event failed", append([]interface{}{"type", ev.Type, "error", err}, ctxutil.LogFields(ctx)...)...)
	}
}

func (s *assetService) inconsistency(ctx context.Context, kind, rel string, err error) {
	s.metrics.IncInconsistency(kind)
	fields := []interface{}{"kind", kind, "relative_path", rel}
	if err != nil {
		fields = append(fields, "error", err)
	}
	s.log.Warn("asset inconsistency", append(fields, ctxutil.LogFields(ctx)...)...)
}

// ---------- templates ----------

func (s *assetService) UploadTemplate(ctx context.Context, projectID, filename string, r io.Reader) (out *StoredAsset, err error) {
	ctx, end := observability.StartSpan(ctx, "AssetService.UploadTemplate", attribute.String("project_id", projectID))
	defer func() { end(err) }()

	rel, err := s.store.SaveTemplate(ctx, projectID, filename, r)
	if err != nil {
		return nil, err
	}
	out, err = s.stored(rel)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, bus.AssetEvent{Type: bus.EventTemplateSaved, ProjectID: projectID, RelativePath: rel, URL: out.URL})
	return out, nil
}

func (s *assetService) TemplateFile(ctx context.Context, projectID string) (string, error) {
	abs, ok, err := s.store.TemplatePath(projectID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apierr.New(http.StatusNotFound, "template_not_found", fmt.Errorf("project %q has no template", projectID))
	}
	return abs, nil
}

func (s *assetService) DeleteTemplate(ctx context.Context, projectID string) (removed bool, err error) {
	ctx, end := observability.StartSpan(ctx, "AssetService.DeleteTemplate", attribute.String("project_id", projectID))
	defer func() { end(err) }()

	removed, err = s.store.DeleteTemplate(ctx, projectID)
	if err != nil {
		return false, err
	}
	if removed {
		s.publish(ctx, bus.AssetEvent{Type: bus.EventTemplateDeleted, ProjectID: projectID})
	}
	return removed, nil
}

func (s *assetService) UploadUserTemplate(ctx context.Context, templateID, filename string, r io.Reader) (out *StoredAsset, err error) {
	ctx, end := observability.StartSpan(ctx, "AssetService.UploadUserTemplate", attribute.String("template_id", templateID))
	defer func() { end(err) }()

	rel, err := s.store.SaveUserTemplate(ctx, templateID, filename, r)
	if err != nil {
		return nil, err
	}
	out, err = s.stored(rel)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, bus.AssetEvent{Type: bus.EventUserTemplateSaved, TemplateID: templateID, RelativePath: rel, URL: out.URL})
	return out, nil
}

func (s *assetService) UserTemplateFile(ctx context.Context, templateID string) (string, error) {
	abs, ok, err := s.store.UserTemplatePath(templateID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apierr.New(http.StatusNotFound, "template_not_found", fmt.Errorf("user template %q not found", templateID))
	}
	return abs, nil
}

func (s *assetService) DeleteUserTemplate(ctx context.Context, templateID string) (removed bool, err error) {
	ctx, end := observability.StartSpan(ctx, "AssetService.DeleteUserTemplate", attribute.String("template_id", templateID))
	defer func() { end(err) }()

	removed, err = s.store.DeleteUserTemplate(ctx, templateID)
	if err != nil {
		return false, err
	}
	if removed {
		s.publish(ctx, bus.AssetEvent{Type: bus.EventUserTemplateDeleted, TemplateID: templateID})
	}
	return removed, nil
}

// ---------- page images ----------

func (s *assetService) SavePageImage(ctx context.Context, projectID, pageID string, img image.Image, format string, version *int) (out *StoredAsset, err error) {
	ctx, end := observability.StartSpan(ctx, "AssetService.SavePageImage",
		attribute.String("project_id", projectID),
		attribute.String("page_id", pageID),
	)
	defer func() { end(err) }()

	rel, err := s.store.SaveGeneratedPageImage(ctx, projectID, pageID, img, format, version)
	if err != nil {
		return nil, err
	}
	out, err = s.stored(rel)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, bus.AssetEvent{Type: bus.EventPageImageSaved, ProjectID: projectID, RelativePath: rel, URL: out.URL})
	return out, nil
}

func (s *assetService) ListPageVersions(ctx context.Context, projectID, pageID string) ([]PageVersionView, error) {
	versions, err := s.store.ListPageVersions(ctx, projectID, pageID)
	if err != nil {
		return nil, err
	}
	out := make([]PageVersionView, 0, len(versions))
	for _, v := range versions {
		u, err := s.urls.URLForRelativePath(v.RelativePath)
		if err != nil {
			return nil, err
		}
		out = append(out, PageVersionView{
			Filename:     v.Filename,
			RelativePath: v.RelativePath,
			URL:          u,
			Version:      v.Version,
			TimestampMs:  v.TimestampMs,
		})
	}
	return out, nil
}

func (s *assetService) DeletePageImage(ctx context.Context, projectID, pageID string) (removed bool, err error) {
	removed, err = s.store.DeletePageImage(ctx, projectID, pageID)
	if err != nil {
		return false, err
	}
	if removed {
		s.publish(ctx, bus.AssetEvent{Type: bus.EventPageImageDeleted, ProjectID: projectID})
	}
	return removed, nil
}

// DeletePageImageVersion only accepts paths inside a project's pages directory.
func (s *assetService) DeletePageImageVersion(ctx context.Context, relativePath string) (removed bool, err error) {
	ctx, end := observability.StartSpan(ctx, "AssetService.DeletePageImageVersion", attribute.String("relative_path", relativePath))
	defer func() { end(err) }()

	parts := strings.Split(relativePath, "/")
	if len(parts) != 3 || parts[1] != string(filestore.CategoryPages) {
		return false, apierr.New(http.StatusBadRequest, "invalid_request", fmt.Errorf("%q is not a page image path", relativePath))
	}
	removed, err = s.store.DeletePageImageVersion(ctx, relativePath)
	if err != nil {
		return false, err
	}
	if removed {
		s.publish(ctx, bus.AssetEvent{Type: bus.EventPageImageDeleted, ProjectID: parts[0], RelativePath: relativePath, Count: 1})
	}
	return removed, nil
}

func (s *assetService) DeleteAllPageVersions(ctx context.Context, projectID, pageID string) (count int, err error) {
	ctx, end := observability.StartSpan(ctx, "AssetService.DeleteAllPageVersions",
		attribute.String("project_id", projectID),
		attribute.String("page_id", pageID),
	)
	defer func() { end(err) }()

	count, err = s.store.DeleteAllPageVersions(ctx, projectID, pageID)
	if err != nil {
		return count, err
	}
	if count > 0 {
		s.publish(ctx, bus.AssetEvent{Type: bus.EventPageImageDeleted, ProjectID: projectID, Count: count})
	}
	return count, nil
}

// ---------- materials ----------

func (s *assetService) checkMaterialExt(filename string) error {
	if len(s.allowedExt) == 0 {
		return nil
	}
	ext := strings.ToLower(path.Ext(filestore.SecureFilename(filename)))
	if ext == "" || !s.allowedExt[ext] {
		return apierr.New(http.StatusBadRequest, "invalid_file_type", fmt.Errorf("file type %q is not allowed", ext))
	}
	return nil
}

func (s *assetService) UploadMaterial(ctx context.Context, filename string, r io.Reader, projectID *string) (m *types.Material, err error) {
	ctx, end := observability.StartSpan(ctx, "AssetService.UploadMaterial", attribute.String("project_id", derefOr(projectID, "")))
	defer func() { end(err) }()

	if strings.TrimSpace(filename) == "" {
		return nil, apierr.New(http.StatusBadRequest, "invalid_request", errors.New("no file selected"))
	}
	if err := s.checkMaterialExt(filename); err != nil {
		return nil, err
	}
	rel, err := s.store.SaveMaterialUpload(ctx, filename, r, projectID)
	if err != nil {
		return nil, err
	}
	return s.recordMaterial(ctx, rel, projectID)
}

func (s *assetService) SaveGeneratedMaterial(ctx context.Context, img image.Image, projectID *string) (m *types.Material, err error) {
	ctx, end := observability.StartSpan(ctx, "AssetService.SaveGeneratedMaterial", attribute.String("project_id", derefOr(projectID, "")))
	defer func() { end(err) }()

	rel, err := s.store.SaveMaterialImage(ctx, img, projectID)
	if err != nil {
		return nil, err
	}
	return s.recordMaterial(ctx, rel, projectID)
}

// recordMaterial persists the record for a freshly written file. The file is
// removed again when the insert fails.
func (s *assetService) recordMaterial(ctx context.Context, rel string, projectID *string) (*types.Material, error) {
	asset, err := s.stored(rel)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	row := &types.Material{
		ID:           uuid.New(),
		ProjectID:    projectID,
		Filename:     asset.Filename,
		URL:          asset.URL,
		RelativePath: rel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.materials.Create(dbctx.Context{Ctx: ctx}, []*types.Material{row}); err != nil {
		if _, rmErr := s.store.DeleteFile(ctx, rel); rmErr != nil {
			s.inconsistency(ctx, "orphan_file", rel, rmErr)
		}
		return nil, fmt.Errorf("create material record: %w", err)
	}
	s.publish(ctx, bus.AssetEvent{
		Type:         bus.EventMaterialCreated,
		ProjectID:    derefOr(projectID, ""),
		MaterialID:   row.ID.String(),
		RelativePath: rel,
		URL:          row.URL,
	})
	return row, nil
}

func (s *assetService) ListMaterials(ctx context.Context, scope types.MaterialScope) ([]*types.Material, error) {
	return s.materials.List(dbctx.Context{Ctx: ctx}, scope)
}

func (s *assetService) GetMaterial(ctx context.Context, id uuid.UUID) (*types.Material, error) {
	m, err := s.materials.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apierr.New(http.StatusNotFound, "material_not_found", fmt.Errorf("material %s not found", id))
	}
	return m, nil
}

// DeleteMaterial removes the record and then the file. A file that cannot be
// removed is reported in the result and logged; the record stays deleted.
func (s *assetService) DeleteMaterial(ctx context.Context, id uuid.UUID) (res *MaterialDeleteResult, err error) {
	ctx, end := observability.StartSpan(ctx, "AssetService.DeleteMaterial", attribute.String("material_id", id.String()))
	defer func() { end(err) }()

	m, err := s.GetMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.materials.FullDeleteByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{m.ID}); err != nil {
		return nil, fmt.Errorf("delete material record: %w", err)
	}

	res = &MaterialDeleteResult{Material: m}
	removed, fileErr := s.store.DeleteFile(ctx, m.RelativePath)
	switch {
	case fileErr != nil:
		res.FileError = fileErr.Error()
		s.inconsistency(ctx, "delete_file_failed", m.RelativePath, fileErr)
	case !removed:
		s.inconsistency(ctx, "missing_file", m.RelativePath, nil)
	default:
		res.FileRemoved = true
	}
	s.publish(ctx, bus.AssetEvent{
		Type:         bus.EventMaterialDeleted,
		ProjectID:    derefOr(m.ProjectID, ""),
		MaterialID:   m.ID.String(),
		RelativePath: m.RelativePath,
	})
	return res, nil
}

// ---------- projects ----------

// DeleteProject drops the project's material records and then its whole
// directory tree.
func (s *assetService) DeleteProject(ctx context.Context, projectID string) (res *ProjectDeleteResult, err error) {
	ctx, end := observability.StartSpan(ctx, "AssetService.DeleteProject", attribute.String("project_id", projectID))
	defer func() { end(err) }()

	if _, err := s.store.Resolver().ProjectDir(projectID); err != nil {
		return nil, err
	}
	n, err := s.materials.FullDeleteByProjectID(dbctx.Context{Ctx: ctx}, projectID)
	if err != nil {
		return nil, fmt.Errorf("delete project materials: %w", err)
	}
	res = &ProjectDeleteResult{ProjectID: projectID, MaterialsDeleted: n}
	removed, err := s.store.DeleteProjectFiles(ctx, projectID)
	if err != nil {
		if n > 0 {
			s.inconsistency(ctx, "delete_project_files_failed", projectID, err)
		}
		return nil, err
	}
	res.FilesRemoved = removed
	if removed || n > 0 {
		s.publish(ctx, bus.AssetEvent{Type: bus.EventProjectDeleted, ProjectID: projectID, Count: int(n)})
	}
	return res, nil
}

// ---------- serving ----------

func (s *assetService) ResolveFile(ctx context.Context, urlPath string) (string, error) {
	rel, err := s.urls.ResolveURLPath(urlPath)
	if err != nil {
		return "", err
	}
	if !s.store.FileExists(rel) {
		return "", apierr.New(http.StatusNotFound, "not_found", fmt.Errorf("file %q not found", rel))
	}
	return s.store.AbsolutePath(rel)
}

func derefOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
