package filestore

import (
	"context"
	"errors"
	"image"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/slidedeck-backend/internal/platform/logger"
)

// Observer receives one call per completed store operation.
type Observer interface {
	ObserveStoreOp(op string, category Category, err error, bytes int64, elapsed time.Duration)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log.With("service", "FileStore")
		}
	}
}

// Store persists project assets below a single root directory. Every path it
// returns is relative to that root and slash separated.
type Store struct {
	resolver *Resolver
	now      func() time.Time
	observer Observer
	log      *logger.Logger

	// dirLocks serializes single-file directories (templates), keyed by
	// relative dir.
	dirLocks sync.Map
}

func New(root string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, validationErr("init", "", "storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, ioErr("init", root, err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, ioErr("init", root, err)
	}
	s := &Store{
		resolver: NewResolver(abs),
		now:      time.Now,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Root() string        { return s.resolver.Root() }
func (s *Store) Resolver() *Resolver { return s.resolver }

func (s *Store) lockDir(rel string) func() {
	v, _ := s.dirLocks.LoadOrStore(rel, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Store) observe(op string, c Category, start time.Time, n int64, err error) {
	if s.observer != nil {
		s.observer.ObserveStoreOp(op, c, err, n, time.Since(start))
	}
}

// ---------- writes ----------

// SaveTemplate writes the project template as template.<ext>, where ext comes
// from the uploaded filename (png when absent). Any template.* sibling with a
// different extension is removed after the new file is in place.
func (s *Store) SaveTemplate(ctx context.Context, projectID, filename string, r io.Reader) (rel string, err error) {
	const op = "save_template"
	start := time.Now()
	var n int64
	defer func() { s.observe(op, CategoryTemplate, start, n, err) }()

	dir, err := s.resolver.TemplateDir(projectID)
	if err != nil {
		return "", err
	}
	rel, n, err = s.saveSingleTemplate(ctx, op, dir, filename, r)
	return rel, err
}

// SaveUserTemplate is SaveTemplate scoped to user-templates/<templateID>.
func (s *Store) SaveUserTemplate(ctx context.Context, templateID, filename string, r io.Reader) (rel string, err error) {
	const op = "save_user_template"
	start := time.Now()
	var n int64
	defer func() { s.observe(op, CategoryUserTemplates, start, n, err) }()

	dir, err := s.resolver.UserTemplateDir(templateID)
	if err != nil {
		return "", err
	}
	rel, n, err = s.saveSingleTemplate(ctx, op, dir, filename, r)
	return rel, err
}

func (s *Store) saveSingleTemplate(ctx context.Context, op, dir, filename string, r io.Reader) (string, int64, error) {
	if r == nil {
		return "", 0, validationErr(op, dir, "no file content")
	}
	if err := ctx.Err(); err != nil {
		return "", 0, ioErr(op, dir, err)
	}
	ext := uploadExt(SecureFilename(filename), defaultImageExt)
	name := templateFilename(ext)
	rel := path.Join(dir, name)

	abs, err := s.resolver.Ensure(dir)
	if err != nil {
		return "", 0, err
	}
	// write and prune hold the dir lock: at most one template.* remains
	unlock := s.lockDir(dir)
	defer unlock()
	n, err := writeReplace(abs, name, copyFrom(r))
	if err != nil {
		return "", 0, ioErr(op, rel, err)
	}
	s.removeStaleTemplates(abs, name)
	return rel, n, nil
}

func (s *Store) removeStaleTemplates(absDir, keep string) {
	entries, err := os.ReadDir(absDir)
	if err != nil {
		s.log.Warn("list template dir failed", "dir", absDir, "error", err)
		return
	}
	for _, e := range entries {
		name := e.Name()
		if name == keep || !e.Type().IsRegular() || stem(name) != templateStem {
			continue
		}
		if err := os.Remove(filepath.Join(absDir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("remove stale template failed", "file", name, "error", err)
		}
	}
}

// SaveGeneratedPageImage encodes img into the project's pages directory. With
// a version the name is <pageID>_v<version>.<ext> and an existing file of that
// exact name is replaced; without one the name carries the current epoch
// milliseconds and never replaces an existing file.
func (s *Store) SaveGeneratedPageImage(ctx context.Context, projectID, pageID string, img image.Image, format string, version *int) (rel string, err error) {
	const op = "save_page_image"
	start := time.Now()
	var n int64
	defer func() { s.observe(op, CategoryPages, start, n, err) }()

	if !validSegment(pageID) {
		return "", validationErr(op, "", "invalid page id %q", pageID)
	}
	if img == nil {
		return "", validationErr(op, "", "image is required")
	}
	if version != nil && *version < 0 {
		return "", validationErr(op, "", "version must not be negative")
	}
	ext, err := imageExt(format)
	if err != nil {
		return "", validationErr(op, "", "%v", err)
	}
	dir, err := s.resolver.PagesDir(projectID)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", ioErr(op, dir, err)
	}
	abs, err := s.resolver.Ensure(dir)
	if err != nil {
		return "", err
	}
	fill := func(w io.Writer) error { return encodeImage(w, img, ext) }

	var name string
	if version != nil {
		name = versionedPageFilename(pageID, *version, ext)
		n, err = writeReplace(abs, name, fill)
	} else {
		name, n, err = writeUnique(abs, s.now().UnixMilli(), func(ms int64) string {
			return timestampedFilename(pageID, ms, "."+ext)
		}, fill)
	}
	if err != nil {
		return "", ioErr(op, path.Join(dir, name), err)
	}
	return path.Join(dir, name), nil
}

// SaveMaterialImage encodes a generated image as material_<ms>.png in the
// project's materials directory, or the global one when projectID is nil.
func (s *Store) SaveMaterialImage(ctx context.Context, img image.Image, projectID *string) (rel string, err error) {
	const op = "save_material_image"
	start := time.Now()
	var n int64
	defer func() { s.observe(op, CategoryMaterials, start, n, err) }()

	if img == nil {
		return "", validationErr(op, "", "image is required")
	}
	fill := func(w io.Writer) error { return encodeImage(w, img, defaultImageExt) }
	rel, n, err = s.saveMaterial(ctx, op, projectID, materialBaseName, "."+defaultImageExt, fill)
	return rel, err
}

// SaveMaterialUpload stores uploaded bytes as <stem>_<ms><.ext>, where stem and
// ext come from the sanitized filename. An extension is required.
func (s *Store) SaveMaterialUpload(ctx context.Context, filename string, r io.Reader, projectID *string) (rel string, err error) {
	const op = "save_material_upload"
	start := time.Now()
	var n int64
	defer func() { s.observe(op, CategoryMaterials, start, n, err) }()

	if r == nil {
		return "", validationErr(op, "", "no file content")
	}
	base, ext := splitStem(SecureFilename(filename))
	if ext == "" || ext == "." {
		return "", validationErr(op, "", "filename %q has no extension", filename)
	}
	if base == "" {
		base = materialBaseName
	}
	rel, n, err = s.saveMaterial(ctx, op, projectID, base, ext, copyFrom(r))
	return rel, err
}

func (s *Store) saveMaterial(ctx context.Context, op string, projectID *string, base, dottedExt string, fill func(io.Writer) error) (string, int64, error) {
	dir, err := s.resolver.MaterialsDir(projectID)
	if err != nil {
		return "", 0, err
	}
	if err := ctx.Err(); err != nil {
		return "", 0, ioErr(op, dir, err)
	}
	abs, err := s.resolver.Ensure(dir)
	if err != nil {
		return "", 0, err
	}
	name, n, err := writeUnique(abs, s.now().UnixMilli(), func(ms int64) string {
		return timestampedFilename(base, ms, dottedExt)
	}, fill)
	if err != nil {
		return "", 0, ioErr(op, dir, err)
	}
	return path.Join(dir, name), n, nil
}

// ---------- deletes ----------

// DeletePageImageVersion removes one stored file. A missing file is not an
// error; it reports false.
func (s *Store) DeletePageImageVersion(ctx context.Context, rel string) (removed bool, err error) {
	start := time.Now()
	defer func() { s.observe("delete_page_version", CategoryPages, start, 0, err) }()
	return s.deleteRegular("delete_page_version", rel)
}

// DeleteFile removes one stored file of any category.
func (s *Store) DeleteFile(ctx context.Context, rel string) (removed bool, err error) {
	start := time.Now()
	defer func() { s.observe("delete_file", categoryOf(rel), start, 0, err) }()
	return s.deleteRegular("delete_file", rel)
}

func (s *Store) deleteRegular(op, rel string) (bool, error) {
	if isTemp(path.Base(rel)) {
		return false, validationErr(op, rel, "staged files cannot be deleted")
	}
	abs, err := s.resolver.Abs(rel)
	if err != nil {
		return false, err
	}
	info, err := os.Lstat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ioErr(op, rel, err)
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	return removeFile(op, rel, abs)
}

func removeFile(op, rel, abs string) (bool, error) {
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioErr(op, rel, err)
	}
	return true, nil
}

// DeleteTemplate removes every regular file in the project's template
// directory, whatever its extension.
func (s *Store) DeleteTemplate(ctx context.Context, projectID string) (removed bool, err error) {
	const op = "delete_template"
	start := time.Now()
	defer func() { s.observe(op, CategoryTemplate, start, 0, err) }()

	dir, err := s.resolver.TemplateDir(projectID)
	if err != nil {
		return false, err
	}
	unlock := s.lockDir(dir)
	defer unlock()
	return s.deleteMatching(op, dir, func(string) bool { return true })
}

// DeletePageImage removes files named exactly <pageID>.<ext>. Versioned
// renditions (<pageID>_vN, <pageID>_<ms>) are not matched; see
// DeleteAllPageVersions.
func (s *Store) DeletePageImage(ctx context.Context, projectID, pageID string) (removed bool, err error) {
	const op = "delete_page_image"
	start := time.Now()
	defer func() { s.observe(op, CategoryPages, start, 0, err) }()

	if !validSegment(pageID) {
		return false, validationErr(op, "", "invalid page id %q", pageID)
	}
	dir, err := s.resolver.PagesDir(projectID)
	if err != nil {
		return false, err
	}
	return s.deleteMatching(op, dir, func(name string) bool {
		return strings.HasPrefix(name, pageID+".")
	})
}

// DeleteAllPageVersions removes every versioned rendition of pageID and
// reports how many files were removed.
func (s *Store) DeleteAllPageVersions(ctx context.Context, projectID, pageID string) (count int, err error) {
	const op = "delete_page_versions"
	start := time.Now()
	defer func() { s.observe(op, CategoryPages, start, 0, err) }()

	if !validSegment(pageID) {
		return 0, validationErr(op, "", "invalid page id %q", pageID)
	}
	dir, err := s.resolver.PagesDir(projectID)
	if err != nil {
		return 0, err
	}
	abs, err := s.resolver.Abs(dir)
	if err != nil {
		return 0, err
	}
	entries, err := readDir(op, dir, abs)
	if err != nil || entries == nil {
		return 0, err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if _, ok := parsePageVersion(pageID, e.Name()); !ok {
			continue
		}
		ok, err := removeFile(op, path.Join(dir, e.Name()), filepath.Join(abs, e.Name()))
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

func (s *Store) deleteMatching(op, dir string, match func(name string) bool) (bool, error) {
	abs, err := s.resolver.Abs(dir)
	if err != nil {
		return false, err
	}
	entries, err := readDir(op, dir, abs)
	if err != nil || entries == nil {
		return false, err
	}
	removed := false
	for _, e := range entries {
		if !e.Type().IsRegular() || isTemp(e.Name()) || !match(e.Name()) {
			continue
		}
		ok, err := removeFile(op, path.Join(dir, e.Name()), filepath.Join(abs, e.Name()))
		if err != nil {
			return removed, err
		}
		removed = removed || ok
	}
	return removed, nil
}

// DeleteProjectFiles removes the whole project subtree. An absent project is
// a successful no-op reporting false.
func (s *Store) DeleteProjectFiles(ctx context.Context, projectID string) (removed bool, err error) {
	const op = "delete_project"
	start := time.Now()
	defer func() { s.observe(op, "", start, 0, err) }()

	dir, err := s.resolver.ProjectDir(projectID)
	if err != nil {
		return false, err
	}
	return s.removeTree(op, dir)
}

func (s *Store) DeleteUserTemplate(ctx context.Context, templateID string) (removed bool, err error) {
	const op = "delete_user_template"
	start := time.Now()
	defer func() { s.observe(op, CategoryUserTemplates, start, 0, err) }()

	dir, err := s.resolver.UserTemplateDir(templateID)
	if err != nil {
		return false, err
	}
	unlock := s.lockDir(dir)
	defer unlock()
	return s.removeTree(op, dir)
}

func (s *Store) removeTree(op, dir string) (bool, error) {
	abs, err := s.resolver.Abs(dir)
	if err != nil {
		return false, err
	}
	if _, err := os.Lstat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioErr(op, dir, err)
	}
	if err := os.RemoveAll(abs); err != nil {
		return false, ioErr(op, dir, err)
	}
	return true, nil
}

// ---------- lookups ----------

// FileExists reports whether rel names a regular file under the root.
func (s *Store) FileExists(rel string) bool {
	abs, err := s.resolver.Abs(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

func (s *Store) AbsolutePath(rel string) (string, error) {
	return s.resolver.Abs(rel)
}

// TemplatePath returns the absolute path of the project's template file, if any.
func (s *Store) TemplatePath(projectID string) (string, bool, error) {
	dir, err := s.resolver.TemplateDir(projectID)
	if err != nil {
		return "", false, err
	}
	return s.findTemplate("template_path", dir)
}

func (s *Store) UserTemplatePath(templateID string) (string, bool, error) {
	dir, err := s.resolver.UserTemplateDir(templateID)
	if err != nil {
		return "", false, err
	}
	return s.findTemplate("user_template_path", dir)
}

func (s *Store) findTemplate(op, dir string) (string, bool, error) {
	abs, err := s.resolver.Abs(dir)
	if err != nil {
		return "", false, err
	}
	entries, err := readDir(op, dir, abs)
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if e.Type().IsRegular() && stem(e.Name()) == templateStem {
			return filepath.Join(abs, e.Name()), true, nil
		}
	}
	return "", false, nil
}

// ListPageVersions returns pageID's versioned renditions, explicit versions
// first (ascending) then timestamped ones (oldest first).
func (s *Store) ListPageVersions(ctx context.Context, projectID, pageID string) ([]PageVersion, error) {
	const op = "list_page_versions"
	if !validSegment(pageID) {
		return nil, validationErr(op, "", "invalid page id %q", pageID)
	}
	dir, err := s.resolver.PagesDir(projectID)
	if err != nil {
		return nil, err
	}
	abs, err := s.resolver.Abs(dir)
	if err != nil {
		return nil, err
	}
	entries, err := readDir(op, dir, abs)
	if err != nil {
		return nil, err
	}
	out := []PageVersion{}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		pv, ok := parsePageVersion(pageID, e.Name())
		if !ok {
			continue
		}
		pv.RelativePath = path.Join(dir, e.Name())
		out = append(out, pv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Version != nil && b.Version != nil:
			return *a.Version < *b.Version
		case a.Version != nil:
			return true
		case b.Version != nil:
			return false
		default:
			return *a.TimestampMs < *b.TimestampMs
		}
	})
	return out, nil
}

// ModTime reports when the stored file was last written.
func (s *Store) ModTime(rel string) (time.Time, error) {
	const op = "mod_time"
	abs, err := s.resolver.Abs(rel)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, notFoundErr(op, rel)
	}
	if err != nil {
		return time.Time{}, ioErr(op, rel, err)
	}
	return info.ModTime(), nil
}

// ListMaterialFiles returns the relative path of every stored material file,
// global and per project.
func (s *Store) ListMaterialFiles(ctx context.Context) ([]string, error) {
	const op = "list_material_files"
	root := s.resolver.Root()
	top, err := os.ReadDir(root)
	if err != nil {
		return nil, ioErr(op, "", err)
	}
	dirs := []string{}
	for _, e := range top {
		if !e.IsDir() || e.Name() == string(CategoryUserTemplates) || isTemp(e.Name()) {
			continue
		}
		if e.Name() == string(CategoryMaterials) {
			dirs = append(dirs, e.Name())
			continue
		}
		dirs = append(dirs, path.Join(e.Name(), string(CategoryMaterials)))
	}
	out := []string{}
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := readDir(op, dir, filepath.Join(root, filepath.FromSlash(dir)))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Type().IsRegular() && !isTemp(e.Name()) {
				out = append(out, path.Join(dir, e.Name()))
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// readDir returns nil entries and no error when the directory does not exist.
func readDir(op, rel, abs string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ioErr(op, rel, err)
	}
	return entries, nil
}

func stem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

func categoryOf(rel string) Category {
	parts := strings.Split(rel, "/")
	switch {
	case len(parts) > 0 && (parts[0] == string(CategoryMaterials) || parts[0] == string(CategoryUserTemplates)):
		return Category(parts[0])
	case len(parts) > 1:
		return Category(parts[1])
	default:
		return ""
	}
}
