package services

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/slidedeck-backend/internal/data/repos"
	"github.com/yungbote/slidedeck-backend/internal/data/repos/testutil"
	types "github.com/yungbote/slidedeck-backend/internal/domain"
	"github.com/yungbote/slidedeck-backend/internal/observability"
	"github.com/yungbote/slidedeck-backend/internal/platform/dbctx"
	"github.com/yungbote/slidedeck-backend/internal/platform/filestore"
)

type reconcileFixture struct {
	rc    *Reconciler
	store *filestore.Store
	repo  repos.MaterialRepo
	// orphan has a file but no record, dangling has a record but no file.
	orphan, dangling, healthy string
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	ms := int64(1_700_000_000_000)
	store, err := filestore.New(t.TempDir(), filestore.WithClock(func() time.Time {
		ms++
		return time.UnixMilli(ms)
	}))
	require.NoError(t, err)
	urls := filestore.NewURLMapper("")
	repo := repos.NewMaterialRepo(db, log)

	pid := "p1"
	healthy, err := store.SaveMaterialUpload(ctx, "ok.png", strings.NewReader("ok"), &pid)
	require.NoError(t, err)
	orphan, err := store.SaveMaterialUpload(ctx, "stray.png", strings.NewReader("stray"), nil)
	require.NoError(t, err)
	dangling := "p1/materials/gone_1.png"

	now := time.Now().UTC()
	testutil.SeedMaterial(t, ctx, db, &pid, healthy, now)
	testutil.SeedMaterial(t, ctx, db, &pid, dangling, now)

	// non-material files are never considered
	_, err = store.SaveTemplate(ctx, pid, "t.png", strings.NewReader("t"))
	require.NoError(t, err)

	return &reconcileFixture{
		rc:       NewReconciler(log, store, urls, repo, observability.NewMetrics()),
		store:    store,
		repo:     repo,
		orphan:   orphan,
		dangling: dangling,
		healthy:  healthy,
	}
}

func TestReconcileReportOnly(t *testing.T) {
	f := newReconcileFixture(t)

	report, err := f.rc.Run(context.Background(), ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Records)
	assert.Equal(t, 2, report.Files)
	assert.Equal(t, []string{f.dangling}, report.MissingFiles)
	assert.Equal(t, []string{f.orphan}, report.OrphanFiles)
	assert.False(t, report.Consistent())
	assert.True(t, f.store.FileExists(f.orphan))
}

func TestReconcileRemovesOrphansAndDropsDangling(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	report, err := f.rc.Run(ctx, ReconcileOptions{DropDanglingRecords: true, RemoveOrphanFiles: true, AdoptOrphanFiles: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.DroppedRecords)
	assert.Equal(t, 1, report.RemovedFiles)
	assert.Equal(t, 0, report.AdoptedFiles)
	assert.False(t, f.store.FileExists(f.orphan))
	assert.True(t, f.store.FileExists(f.healthy))

	again, err := f.rc.Run(ctx, ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, again.Consistent())
}

func TestReconcileAdoptsOrphans(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	report, err := f.rc.Run(ctx, ReconcileOptions{AdoptOrphanFiles: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.AdoptedFiles)

	rows, err := f.repo.GetByRelativePaths(dbctx.Context{Ctx: ctx}, []string{f.orphan})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].ProjectID)
	assert.Equal(t, "/files/"+f.orphan, rows[0].URL)

	global, err := f.repo.List(dbctx.Context{Ctx: ctx}, types.MaterialScope{Kind: types.MaterialScopeGlobal})
	require.NoError(t, err)
	assert.Len(t, global, 1)
}

func TestReconcileLeavesRecentOrphans(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	report, err := f.rc.Run(ctx, ReconcileOptions{RemoveOrphanFiles: true, MinOrphanAge: time.Hour})
	require.NoError(t, err)
	assert.Empty(t, report.OrphanFiles)
	assert.Equal(t, []string{f.orphan}, report.RecentFiles)
	assert.Equal(t, 0, report.RemovedFiles)
	assert.True(t, f.store.FileExists(f.orphan), "in-flight upload must survive")

	abs, err := f.store.AbsolutePath(f.orphan)
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(abs, old, old))

	report, err = f.rc.Run(ctx, ReconcileOptions{RemoveOrphanFiles: true, MinOrphanAge: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, []string{f.orphan}, report.OrphanFiles)
	assert.Empty(t, report.RecentFiles)
	assert.Equal(t, 1, report.RemovedFiles)
	assert.False(t, f.store.FileExists(f.orphan))
}

func TestDiff(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, diff([]string{"c", "b", "a"}, []string{"b"}))
	assert.Equal(t, []string{}, diff(nil, []string{"x"}))
}
