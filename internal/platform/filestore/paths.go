package filestore

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

type Category string

const (
	CategoryTemplate      Category = "template"
	CategoryPages         Category = "pages"
	CategoryMaterials     Category = "materials"
	CategoryExports       Category = "exports"
	CategoryUserTemplates Category = "user-templates"
)

// Servable reports whether files of this category may be served under a project.
func (c Category) Servable() bool {
	switch c {
	case CategoryTemplate, CategoryPages, CategoryMaterials, CategoryExports:
		return true
	default:
		return false
	}
}

const dirPerm = 0o755

// Resolver maps identifiers to slash-separated directories relative to root.
// Only Ensure touches the filesystem.
type Resolver struct {
	root string
}

func NewResolver(root string) *Resolver {
	return &Resolver{root: filepath.Clean(root)}
}

func (r *Resolver) Root() string { return r.root }

func (r *Resolver) ProjectDir(projectID string) (string, error) {
	if !validSegment(projectID) || reservedTopLevel(projectID) {
		return "", validationErr("project_dir", "", "invalid project id %q", projectID)
	}
	return projectID, nil
}

func (r *Resolver) categoryDir(projectID string, c Category) (string, error) {
	dir, err := r.ProjectDir(projectID)
	if err != nil {
		return "", err
	}
	return path.Join(dir, string(c)), nil
}

func (r *Resolver) TemplateDir(projectID string) (string, error) {
	return r.categoryDir(projectID, CategoryTemplate)
}

func (r *Resolver) PagesDir(projectID string) (string, error) {
	return r.categoryDir(projectID, CategoryPages)
}

// MaterialsDir is "<project>/materials", or the global "materials" when
// projectID is nil.
func (r *Resolver) MaterialsDir(projectID *string) (string, error) {
	if projectID == nil {
		return string(CategoryMaterials), nil
	}
	return r.categoryDir(*projectID, CategoryMaterials)
}

func (r *Resolver) UserTemplateDir(templateID string) (string, error) {
	if !validSegment(templateID) {
		return "", validationErr("user_template_dir", "", "invalid template id %q", templateID)
	}
	return path.Join(string(CategoryUserTemplates), templateID), nil
}

// Abs converts a relative path to an absolute one, rejecting anything that
// would land outside root.
func (r *Resolver) Abs(rel string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(rel, `\`, "/"))
	if clean == "/" || rel == "" || strings.HasPrefix(rel, "/") || containsDotDot(rel) {
		return "", validationErr("resolve", rel, "relative path outside storage root")
	}
	return filepath.Join(r.root, filepath.FromSlash(clean[1:])), nil
}

// Ensure creates rel (and parents) if absent and returns its absolute path.
// Concurrent callers racing on the same directory all succeed.
func (r *Resolver) Ensure(rel string) (string, error) {
	abs, err := r.Abs(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return "", ioErr("mkdir", rel, err)
	}
	return abs, nil
}

// Rel turns an absolute path under root back into a slash relative path.
func (r *Resolver) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", validationErr("relativize", abs, "path not under storage root")
	}
	return filepath.ToSlash(rel), nil
}

// reservedTopLevel names share root with project directories.
func reservedTopLevel(id string) bool {
	return id == string(CategoryMaterials) || id == string(CategoryUserTemplates)
}

func containsDotDot(rel string) bool {
	for _, part := range strings.FieldsFunc(rel, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}
