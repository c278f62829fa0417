package materials

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/slidedeck-backend/internal/data/repos/testutil"
	types "github.com/yungbote/slidedeck-backend/internal/domain"
	"github.com/yungbote/slidedeck-backend/internal/platform/dbctx"
)

func TestMaterialRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewMaterialRepo(db, testutil.Logger(t))

	p1 := "p1"
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m1 := &types.Material{ProjectID: &p1, Filename: "a_1.png", RelativePath: "p1/materials/a_1.png", URL: "/files/p1/materials/a_1.png", CreatedAt: base}
	m2 := &types.Material{ProjectID: &p1, Filename: "b_2.png", RelativePath: "p1/materials/b_2.png", URL: "/files/p1/materials/b_2.png", CreatedAt: base.Add(time.Minute)}
	m3 := &types.Material{Filename: "c_3.png", RelativePath: "materials/c_3.png", URL: "/files/materials/c_3.png", CreatedAt: base.Add(2 * time.Minute)}

	created, err := repo.Create(dbc, []*types.Material{m1, m2, m3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, m := range created {
		if m.ID == uuid.Nil {
			t.Fatalf("Create: id not assigned for %s", m.RelativePath)
		}
		if !m.UpdatedAt.Equal(m.CreatedAt) {
			t.Fatalf("Create: updated_at want=%v got=%v", m.CreatedAt, m.UpdatedAt)
		}
	}

	if got, err := repo.GetByID(dbc, m1.ID); err != nil || got == nil || got.RelativePath != m1.RelativePath {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got, err := repo.GetByID(dbc, uuid.New()); err != nil || got != nil {
		t.Fatalf("GetByID(missing): got=%v err=%v", got, err)
	}
	if got, err := repo.GetByIDs(dbc, []uuid.UUID{m1.ID, m3.ID}); err != nil || len(got) != 2 {
		t.Fatalf("GetByIDs: len=%d err=%v", len(got), err)
	}
	if got, err := repo.GetByRelativePaths(dbc, []string{"materials/c_3.png", "nope"}); err != nil || len(got) != 1 {
		t.Fatalf("GetByRelativePaths: len=%d err=%v", len(got), err)
	}

	all, err := repo.List(dbc, types.MaterialScope{Kind: types.MaterialScopeAll})
	if err != nil || len(all) != 3 {
		t.Fatalf("List(all): len=%d err=%v", len(all), err)
	}
	if all[0].ID != m3.ID || all[2].ID != m1.ID {
		t.Fatalf("List(all): want newest first, got %s..%s", all[0].RelativePath, all[2].RelativePath)
	}

	global, err := repo.List(dbc, types.MaterialScope{Kind: types.MaterialScopeGlobal})
	if err != nil || len(global) != 1 || global[0].ProjectID != nil {
		t.Fatalf("List(global): got=%v err=%v", global, err)
	}

	proj, err := repo.List(dbc, types.MaterialScope{Kind: types.MaterialScopeProject, ProjectID: "p1"})
	if err != nil || len(proj) != 2 || proj[0].ID != m2.ID {
		t.Fatalf("List(project): got=%v err=%v", proj, err)
	}

	none, err := repo.List(dbc, types.MaterialScope{Kind: types.MaterialScopeProject, ProjectID: "other"})
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("List(other): got=%v err=%v", none, err)
	}

	paths, err := repo.ListRelativePaths(dbc)
	if err != nil || len(paths) != 3 || paths[0] != "materials/c_3.png" {
		t.Fatalf("ListRelativePaths: got=%v err=%v", paths, err)
	}

	n, err := repo.FullDeleteByIDs(dbc, []uuid.UUID{m3.ID})
	if err != nil || n != 1 {
		t.Fatalf("FullDeleteByIDs: n=%d err=%v", n, err)
	}
	n, err = repo.FullDeleteByIDs(dbc, []uuid.UUID{m3.ID})
	if err != nil || n != 0 {
		t.Fatalf("FullDeleteByIDs(again): n=%d err=%v", n, err)
	}

	n, err = repo.FullDeleteByProjectID(dbc, "p1")
	if err != nil || n != 2 {
		t.Fatalf("FullDeleteByProjectID: n=%d err=%v", n, err)
	}
	if got, err := repo.List(dbc, types.MaterialScope{}); err != nil || len(got) != 0 {
		t.Fatalf("List after delete: len=%d err=%v", len(got), err)
	}
}

func TestMaterialRepoRejectsDuplicatePath(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewMaterialRepo(db, testutil.Logger(t))

	testutil.SeedMaterial(t, ctx, db, nil, "materials/x_1.png", time.Now().UTC())
	dup := &types.Material{Filename: "x_1.png", RelativePath: "materials/x_1.png", URL: "/files/materials/x_1.png"}
	if _, err := repo.Create(dbctx.Context{Ctx: ctx}, []*types.Material{dup}); err == nil {
		t.Fatalf("Create duplicate relative_path: want error")
	}
}
