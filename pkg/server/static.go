package server

import (
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SitemapPath serves sitemap.xml from the configured root.
const SitemapPath = "/sitemap"

// Cache-Control values for static files.
const (
	cacheImmutable  = "public, max-age=31536000, immutable"
	cacheRevalidate = "public, max-age=3600, must-revalidate"
)

// Sitemap returns a handler serving the file at file. A missing file goes
// to the not-found fallback.
func Sitemap(file string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := os.Stat(file)
		if err != nil || info.IsDir() {
			NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		http.ServeFile(w, r, file)
	}
}

// Static serves files from dir under prefix. Fingerprinted names are cached
// as immutable; everything else revalidates hourly. Anything that is not a
// regular file inside dir goes to the not-found fallback.
func Static(dir, prefix string) http.HandlerFunc {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	root := os.DirFS(dir)

	return func(w http.ResponseWriter, r *http.Request) {
		rel, ok := staticRelPath(r.URL.Path, prefix)
		if !ok {
			NotFound(w, r)
			return
		}

		f, err := root.Open(rel)
		if err != nil {
			NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			NotFound(w, r)
			return
		}
		content, ok := f.(io.ReadSeeker)
		if !ok {
			NotFound(w, r)
			return
		}

		if isFingerprinted(rel) {
			w.Header().Set("Cache-Control", cacheImmutable)
		} else {
			w.Header().Set("Cache-Control", cacheRevalidate)
		}
		http.ServeContent(w, r, rel, info.ModTime(), content)
	}
}

// staticRelPath returns a sanitized path relative to the static directory.
// Traversal and absolute-path tricks are rejected rather than cleaned away.
func staticRelPath(urlPath, prefix string) (string, bool) {
	if !strings.HasPrefix(urlPath, prefix) {
		return "", false
	}
	rel := strings.TrimPrefix(urlPath, prefix)
	if rel == "" {
		return "", false
	}

	// %00 and platform separators
	if strings.IndexByte(rel, 0) != -1 || strings.Contains(rel, "\\") {
		return "", false
	}
	if strings.HasPrefix(rel, "/") {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}
	return clean, true
}

// isFingerprinted reports whether the name carries a content hash, as in
// "main.a1b2c3d4.js".
func isFingerprinted(filePath string) bool {
	parts := strings.Split(path.Base(filePath), ".")
	if len(parts) < 3 {
		return false
	}

	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
