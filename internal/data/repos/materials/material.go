package materials

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/slidedeck-backend/internal/domain"
	"github.com/yungbote/slidedeck-backend/internal/platform/dbctx"
	"github.com/yungbote/slidedeck-backend/internal/platform/logger"
)

type MaterialRepo interface {
	Create(dbc dbctx.Context, rows []*types.Material) ([]*types.Material, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Material, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Material, error)
	GetByRelativePaths(dbc dbctx.Context, paths []string) ([]*types.Material, error)

	List(dbc dbctx.Context, scope types.MaterialScope) ([]*types.Material, error)
	ListRelativePaths(dbc dbctx.Context) ([]string, error)

	FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
	FullDeleteByProjectID(dbc dbctx.Context, projectID string) (int64, error)
}

type materialRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMaterialRepo(db *gorm.DB, baseLog *logger.Logger) MaterialRepo {
	return &materialRepo{db: db, log: baseLog.With("repo", "MaterialRepo")}
}

func (r *materialRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *materialRepo) Create(dbc dbctx.Context, rows []*types.Material) ([]*types.Material, error) {
	if len(rows) == 0 {
		return []*types.Material{}, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = row.CreatedAt
		}
	}
	if err := r.tx(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *materialRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Material, error) {
	var out []*types.Material
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *materialRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Material, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *materialRepo) GetByRelativePaths(dbc dbctx.Context, paths []string) ([]*types.Material, error) {
	var out []*types.Material
	if len(paths) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).Where("relative_path IN ?", paths).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// List returns materials newest first.
func (r *materialRepo) List(dbc dbctx.Context, scope types.MaterialScope) ([]*types.Material, error) {
	q := r.tx(dbc)
	switch scope.Kind {
	case types.MaterialScopeGlobal:
		q = q.Where("project_id IS NULL")
	case types.MaterialScopeProject:
		q = q.Where("project_id = ?", scope.ProjectID)
	}
	out := []*types.Material{}
	if err := q.Order("created_at DESC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *materialRepo) ListRelativePaths(dbc dbctx.Context) ([]string, error) {
	out := []string{}
	if err := r.tx(dbc).
		Model(&types.Material{}).
		Order("relative_path ASC").
		Pluck("relative_path", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *materialRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.tx(dbc).Where("id IN ?", ids).Delete(&types.Material{})
	return res.RowsAffected, res.Error
}

func (r *materialRepo) FullDeleteByProjectID(dbc dbctx.Context, projectID string) (int64, error) {
	if projectID == "" {
		return 0, nil
	}
	res := r.tx(dbc).Where("project_id = ?", projectID).Delete(&types.Material{})
	return res.RowsAffected, res.Error
}
