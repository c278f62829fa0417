package filestore

import (
	"strings"
)

const filesPrefix = "/files"

// URLMapper derives servable URLs that mirror the on-disk layout. It never
// touches the filesystem.
type URLMapper struct {
	baseURL string
}

// NewURLMapper takes an optional absolute base (e.g. a CDN origin); empty
// yields root-relative URLs.
func NewURLMapper(baseURL string) *URLMapper {
	return &URLMapper{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

func (m *URLMapper) FileURL(projectID string, category Category, filename string) string {
	return m.baseURL + filesPrefix + "/" + projectID + "/" + string(category) + "/" + filename
}

func (m *URLMapper) UserTemplateURL(templateID, filename string) string {
	return m.baseURL + filesPrefix + "/" + string(CategoryUserTemplates) + "/" + templateID + "/" + filename
}

func (m *URLMapper) GlobalMaterialURL(filename string) string {
	return m.baseURL + filesPrefix + "/" + string(CategoryMaterials) + "/" + filename
}

// URLForRelativePath maps a stored relative path to its URL.
func (m *URLMapper) URLForRelativePath(rel string) (string, error) {
	parts := strings.Split(strings.Trim(rel, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == string(CategoryMaterials):
		return m.GlobalMaterialURL(parts[1]), nil
	case len(parts) == 3 && parts[0] == string(CategoryUserTemplates):
		return m.UserTemplateURL(parts[1], parts[2]), nil
	case len(parts) == 3 && Category(parts[1]).Servable():
		return m.FileURL(parts[0], Category(parts[1]), parts[2]), nil
	default:
		return "", validationErr("url_for", rel, "path does not map to a servable url")
	}
}

// ResolveURLPath is the inverse of URLForRelativePath for the path part of a
// request ("/files/..." or the remainder after it). Unknown shapes are not found.
func (m *URLMapper) ResolveURLPath(urlPath string) (string, error) {
	p := strings.TrimPrefix(urlPath, filesPrefix)
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." || isTemp(part) {
			return "", notFoundErr("resolve_url", urlPath)
		}
	}
	switch {
	case len(parts) == 2 && parts[0] == string(CategoryMaterials):
	case len(parts) == 3 && parts[0] == string(CategoryUserTemplates):
	case len(parts) == 3 && Category(parts[1]).Servable():
	default:
		return "", notFoundErr("resolve_url", urlPath)
	}
	return strings.Join(parts, "/"), nil
}
