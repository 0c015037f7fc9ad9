package assets

import (
	"fmt"
)

// Logical names of the bundles referenced by the page shell.
const (
	MainCSS  = "main.css"
	MainJS   = "main.js"
	VendorJS = "vendor.js"
)

// RequiredBundles are the names the page shell cannot render without.
var RequiredBundles = []string{MainCSS, MainJS, VendorJS}

// Bundles are the public paths of the page shell's script and style bundles.
// An empty path means the bundle is not emitted.
type Bundles struct {
	MainCSS  string
	MainJS   string
	VendorJS string
}

// DevBundles returns the live endpoints served by the development
// middleware: only the main script, unbundled.
func DevBundles() Bundles {
	return Bundles{MainJS: "/main.js"}
}

// ResolveBundles looks up the shell bundles in m and prefixes them. Every
// name in required must be present; the first missing one is reported.
func ResolveBundles(m *Manifest, prefix string, required []string) (Bundles, error) {
	for _, name := range required {
		if !m.Has(name) {
			return Bundles{}, fmt.Errorf("%w: %q", ErrMissingEntry, name)
		}
	}

	r := NewResolver(m, prefix)
	var b Bundles
	if m.Has(MainCSS) {
		b.MainCSS = r.Asset(MainCSS)
	}
	if m.Has(MainJS) {
		b.MainJS = r.Asset(MainJS)
	}
	if m.Has(VendorJS) {
		b.VendorJS = r.Asset(VendorJS)
	}
	return b, nil
}

// Resolver provides asset path resolution.
// It combines manifest lookup with path prefixing.
type Resolver interface {
	// Asset resolves a logical name to its full URL path.
	//
	// Example:
	//   resolver.Asset("main.js") → "/public/main.81bd02.js"
	Asset(name string) string
}

// manifestResolver wraps a Manifest to implement Resolver.
type manifestResolver struct {
	manifest *Manifest
	prefix   string
}

// NewResolver creates a Resolver from a Manifest with a path prefix.
// Names absent from the manifest resolve to prefix+name.
func NewResolver(m *Manifest, prefix string) Resolver {
	return &manifestResolver{
		manifest: m,
		prefix:   prefix,
	}
}

func (r *manifestResolver) Asset(name string) string {
	if resolved, ok := r.manifest.Resolve(name); ok {
		return r.prefix + resolved
	}
	return r.prefix + name
}

// passthrough returns names unchanged, for development mode.
type passthrough struct {
	prefix string
}

// NewPassthroughResolver creates a resolver that only applies prefix.
//
//	// Development:
//	assets.NewPassthroughResolver("/").Asset("logo.svg") // "/logo.svg"
func NewPassthroughResolver(prefix string) Resolver {
	return &passthrough{prefix: prefix}
}

func (p *passthrough) Asset(name string) string {
	return p.prefix + name
}
