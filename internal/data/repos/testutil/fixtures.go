package testutil

import (
	"context"
	"path"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/slidedeck-backend/internal/domain"
)

func SeedMaterial(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID *string, rel string, createdAt time.Time) *types.Material {
	tb.Helper()
	m := &types.Material{
		ID:           uuid.New(),
		ProjectID:    projectID,
		Filename:     path.Base(rel),
		RelativePath: rel,
		URL:          "/files/" + rel,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed material: %v", err)
	}
	return m
}

func PtrString(v string) *string { return &v }
