// Package render produces the HTML shell every page route responds with.
//
// The shell is a single html/template document that references the script
// and style bundles, embeds the page's initial state as script-safe JSON and
// exposes the build environment and feature flags to the client bundle.
//
// # Basic Usage
//
//	shell, err := render.NewShell(render.Config{
//	    Env:     "production",
//	    Bundles: bundles,
//	    Title:   "CV Maker",
//	}, logger)
//
//	func index(w http.ResponseWriter, r *http.Request) {
//	    if err := shell.Render(w, map[string]any{"cv": cv}); err != nil {
//	        middleware.Fail(w, r, err)
//	    }
//	}
//
// The template is executed into a buffer first, so a template failure never
// produces a partial page.
//
// # Initial State
//
// The state handed to Render is serialized to JSON, merged with
// {"build":{"env":<env>}} and escaped so that it cannot terminate the
// surrounding script element: '<', '>', '&', U+2028 and U+2029 are written
// as \u escapes.
//
// # Components
//
// Shell.Component renders a single component through a ComponentRenderer.
// It never fails: an error or panic is logged and replaced by a fixed
// placeholder.
package render
