package filestore

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	templateStem     = "template"
	defaultImageExt  = "png"
	materialBaseName = "material"
	maxSegmentLen    = 255
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	segmentPattern      = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)
	asciiOnly           = transform.Chain(
		norm.NFKD,
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
)

// SecureFilename reduces an uploaded filename to a flat ASCII name made of
// letters, digits, '_', '.' and '-'. The result may be empty.
func SecureFilename(name string) string {
	ascii, _, err := transform.String(asciiOnly, name)
	if err != nil {
		ascii = ""
	}
	ascii = strings.NewReplacer("/", " ", `\`, " ").Replace(ascii)
	joined := strings.Join(strings.Fields(ascii), "_")
	return strings.Trim(unsafeFilenameChars.ReplaceAllString(joined, ""), "._")
}

// uploadExt is the lowercase text after the last dot of the sanitized name, or
// def when the name has no dot.
func uploadExt(sanitized, def string) string {
	i := strings.LastIndex(sanitized, ".")
	if i < 0 || i == len(sanitized)-1 {
		return def
	}
	return strings.ToLower(sanitized[i+1:])
}

// splitStem returns the stem and the lowercase dotted suffix.
func splitStem(sanitized string) (string, string) {
	ext := path.Ext(sanitized)
	return strings.TrimSuffix(sanitized, ext), strings.ToLower(ext)
}

func validSegment(s string) bool {
	return len(s) <= maxSegmentLen && segmentPattern.MatchString(s)
}

func templateFilename(ext string) string {
	return templateStem + "." + ext
}

func versionedPageFilename(pageID string, version int, ext string) string {
	return pageID + "_v" + strconv.Itoa(version) + "." + ext
}

func timestampedFilename(base string, ms int64, dottedExt string) string {
	return base + "_" + strconv.FormatInt(ms, 10) + dottedExt
}

// PageVersion describes one stored rendition of a page.
type PageVersion struct {
	Filename     string `json:"filename"`
	RelativePath string `json:"relative_path"`
	// Version is set for "<page>_vN" files.
	Version *int `json:"version,omitempty"`
	// TimestampMs is set for "<page>_<ms>" files.
	TimestampMs *int64 `json:"timestamp_ms,omitempty"`
}

// parsePageVersion reports whether filename belongs to pageID's versioned
// lineage and, if so, which disambiguator it carries.
func parsePageVersion(pageID, filename string) (PageVersion, bool) {
	stem := strings.TrimSuffix(filename, path.Ext(filename))
	if stem == filename {
		return PageVersion{}, false
	}
	rest, ok := strings.CutPrefix(stem, pageID+"_")
	if !ok || rest == "" {
		return PageVersion{}, false
	}
	pv := PageVersion{Filename: filename}
	if digits, ok := strings.CutPrefix(rest, "v"); ok && allDigits(digits) {
		n, err := strconv.Atoi(digits)
		if err != nil {
			return PageVersion{}, false
		}
		pv.Version = &n
		return pv, true
	}
	if allDigits(rest) {
		ms, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return PageVersion{}, false
		}
		pv.TimestampMs = &ms
		return pv, true
	}
	return PageVersion{}, false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
