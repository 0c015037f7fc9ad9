package render

import (
	"html/template"
	"maps"

	"github.com/delta94/cvmaker/pkg/assets"
)

// Context is the value handed to the shell template. It is built per
// response and never modified after execution starts.
type Context struct {
	Env             string
	EnableAnalytics bool
	Features        map[string]bool
	Bundles         assets.Bundles
	State           template.JS
	Title           string

	// Scripts are additional script URLs loaded after the main bundle.
	Scripts []string
}

func (s *Shell) newContext(state template.JS) Context {
	features := maps.Clone(s.cfg.Features)
	if features == nil {
		features = map[string]bool{}
	}
	return Context{
		Env:             s.cfg.Env,
		EnableAnalytics: s.cfg.EnableAnalytics,
		Features:        features,
		Bundles:         s.cfg.Bundles,
		State:           state,
		Title:           s.cfg.Title,
		Scripts:         s.cfg.Scripts,
	}
}
