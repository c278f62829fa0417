package services

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/slidedeck-backend/internal/data/repos"
	types "github.com/yungbote/slidedeck-backend/internal/domain"
	"github.com/yungbote/slidedeck-backend/internal/observability"
	"github.com/yungbote/slidedeck-backend/internal/platform/dbctx"
	"github.com/yungbote/slidedeck-backend/internal/platform/filestore"
	"github.com/yungbote/slidedeck-backend/internal/platform/logger"
)

type ReconcileOptions struct {
	// DropDanglingRecords deletes records whose file is gone.
	DropDanglingRecords bool
	// RemoveOrphanFiles deletes material files that have no record.
	RemoveOrphanFiles bool
	// AdoptOrphanFiles creates records for material files that have none.
	// Ignored when RemoveOrphanFiles is set.
	AdoptOrphanFiles bool
	// MinOrphanAge leaves alone files written more recently than this. An
	// upload publishes its file before its record commits, so a young file
	// without a record is usually still in flight.
	MinOrphanAge time.Duration
	Concurrency  int
}

type ReconcileReport struct {
	Records        int      `json:"records"`
	Files          int      `json:"files"`
	MissingFiles   []string `json:"missing_files"`
	OrphanFiles    []string `json:"orphan_files"`
	RecentFiles    []string `json:"recent_files"`
	DroppedRecords int      `json:"dropped_records"`
	RemovedFiles   int      `json:"removed_files"`
	AdoptedFiles   int      `json:"adopted_files"`
}

func (r *ReconcileReport) Consistent() bool {
	return len(r.MissingFiles) == 0 && len(r.OrphanFiles) == 0
}

// Reconciler compares material records with the material files on disk.
type Reconciler struct {
	log       *logger.Logger
	store     *filestore.Store
	urls      *filestore.URLMapper
	materials repos.MaterialRepo
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewReconciler(log *logger.Logger, store *filestore.Store, urls *filestore.URLMapper, materials repos.MaterialRepo, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		log:       log.With("service", "Reconciler"),
		store:     store,
		urls:      urls,
		materials: materials,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (rc *Reconciler) Run(ctx context.Context, opts ReconcileOptions) (report *ReconcileReport, err error) {
	ctx, end := observability.StartSpan(ctx, "Reconciler.Run")
	defer func() { end(err) }()

	var records, files []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = rc.materials.ListRelativePaths(dbctx.Context{Ctx: gctx})
		if err != nil {
			return fmt.Errorf("list material records: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		files, err = rc.store.ListMaterialFiles(gctx)
		if err != nil {
			return fmt.Errorf("list material files: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report = &ReconcileReport{
		Records:      len(records),
		Files:        len(files),
		MissingFiles: diff(records, files),
	}
	report.OrphanFiles, report.RecentFiles = rc.splitRecent(diff(files, records), opts.MinOrphanAge)
	for _, rel := range report.MissingFiles {
		rc.metrics.IncInconsistency("missing_file")
		rc.log.Warn("asset inconsistency", "kind", "missing_file", "relative_path", rel)
	}
	for _, rel := range report.OrphanFiles {
		rc.metrics.IncInconsistency("orphan_file")
		rc.log.Warn("asset inconsistency", "kind", "orphan_file", "relative_path", rel)
	}

	if opts.DropDanglingRecords && len(report.MissingFiles) > 0 {
		n, err := rc.dropRecords(ctx, report.MissingFiles)
		if err != nil {
			return report, err
		}
		report.DroppedRecords = n
	}
	switch {
	case opts.RemoveOrphanFiles && len(report.OrphanFiles) > 0:
		n, err := rc.forEach(ctx, opts.Concurrency, report.OrphanFiles, func(ctx context.Context, rel string) (bool, error) {
			return rc.store.DeleteFile(ctx, rel)
		})
		report.RemovedFiles = n
		if err != nil {
			return report, err
		}
	case opts.AdoptOrphanFiles && len(report.OrphanFiles) > 0:
		n, err := rc.forEach(ctx, opts.Concurrency, report.OrphanFiles, rc.adopt)
		report.AdoptedFiles = n
		if err != nil {
			return report, err
		}
	}

	rc.log.Info("reconcile finished",
		"records", report.Records,
		"files", report.Files,
		"missing_files", len(report.MissingFiles),
		"orphan_files", len(report.OrphanFiles),
		"recent_files", len(report.RecentFiles),
		"dropped_records", report.DroppedRecords,
		"removed_files", report.RemovedFiles,
		"adopted_files", report.AdoptedFiles,
	)
	return report, nil
}

// splitRecent separates files younger than minAge from real orphans. A file
// that vanished meanwhile is neither.
func (rc *Reconciler) splitRecent(orphans []string, minAge time.Duration) (old, recent []string) {
	recent = []string{}
	if minAge <= 0 {
		return orphans, recent
	}
	old = []string{}
	cutoff := rc.now().Add(-minAge)
	for _, rel := range orphans {
		mod, err := rc.store.ModTime(rel)
		switch {
		case filestore.IsNotFound(err):
		case err != nil:
			rc.log.Warn("stat orphan candidate failed", "relative_path", rel, "error", err)
			recent = append(recent, rel)
		case mod.After(cutoff):
			recent = append(recent, rel)
		default:
			old = append(old, rel)
		}
	}
	return old, recent
}

func (rc *Reconciler) dropRecords(ctx context.Context, rels []string) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := rc.materials.GetByRelativePaths(dbc, rels)
	if err != nil {
		return 0, fmt.Errorf("load dangling records: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	n, err := rc.materials.FullDeleteByIDs(dbc, ids)
	if err != nil {
		return 0, fmt.Errorf("drop dangling records: %w", err)
	}
	return int(n), nil
}

func (rc *Reconciler) adopt(ctx context.Context, rel string) (bool, error) {
	u, err := rc.urls.URLForRelativePath(rel)
	if err != nil {
		return false, err
	}
	var projectID *string
	if dir := path.Dir(rel); dir != string(filestore.CategoryMaterials) {
		pid := strings.SplitN(dir, "/", 2)[0]
		projectID = &pid
	}
	now := rc.now().UTC()
	row := &types.Material{
		ID:           uuid.New(),
		ProjectID:    projectID,
		Filename:     path.Base(rel),
		URL:          u,
		RelativePath: rel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := rc.materials.Create(dbctx.Context{Ctx: ctx}, []*types.Material{row}); err != nil {
		return false, fmt.Errorf("adopt %s: %w", rel, err)
	}
	return true, nil
}

// forEach applies fn to every path with bounded concurrency and counts the
// calls that reported true.
func (rc *Reconciler) forEach(ctx context.Context, limit int, rels []string, fn func(context.Context, string) (bool, error)) (int, error) {
	if limit <= 0 {
		limit = 4
	}
	var (
		mu    sync.Mutex
		count int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, rel := range rels {
		rel := rel
		g.Go(func() error {
			ok, err := fn(gctx, rel)
			if err != nil {
				return err
			}
			if ok {
				mu.Lock()
				count++
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	return count, err
}

// diff returns the sorted members of a that are not in b.
func diff(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		seen[s] = struct{}{}
	}
	out := []string{}
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
