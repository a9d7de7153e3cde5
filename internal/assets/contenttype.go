package assets

import (
	"path"
	"sort"
	"strings"
)

// DefaultContentType is used for extensions missing from the table and for
// files without an extension.
const DefaultContentType = "binary/octet-stream"

var contentTypes = map[string]string{
	"html": "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
}

// ContentType returns the MIME type for a file name. The lowercased text
// after the final '.' of the base name selects the entry, so "a.b.CSS" is
// text/css and "README" is DefaultContentType.
func ContentType(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return DefaultContentType
	}
	if ct, ok := contentTypes[strings.ToLower(base[i+1:])]; ok {
		return ct
	}
	return DefaultContentType
}

// Extensions returns the extensions with a dedicated content type, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(contentTypes))
	for ext := range contentTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
