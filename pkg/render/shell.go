package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/delta94/cvmaker/pkg/assets"
)

//go:embed templates/index.html.tmpl
var templateFS embed.FS

const defaultTemplate = "templates/index.html.tmpl"

// Config configures a Shell. It is read once by NewShell.
type Config struct {
	// Env is the build environment tag exposed to the client.
	Env string

	EnableAnalytics bool

	// Features are copied into every render.
	Features map[string]bool

	// Bundles are the script and style paths. See assets.ResolveBundles
	// and assets.DevBundles.
	Bundles assets.Bundles

	Title string

	// Scripts are loaded after the main bundle, in order. The development
	// assembly adds the live reload client here.
	Scripts []string

	// TemplatePath replaces the embedded template when set.
	TemplatePath string

	// Assets resolves names used with the template's asset function.
	// Defaults to a passthrough under "/".
	Assets assets.Resolver

	// Components backs the template's component function. Without it every
	// component renders as ComponentPlaceholder.
	Components ComponentRenderer

	// OnComponentError is called for every component replaced by the placeholder.
	OnComponentError func()
}

// Shell renders the HTML document shell.
type Shell struct {
	cfg    Config
	tmpl   *template.Template
	logger zerolog.Logger
}

// NewShell parses the template and returns a Shell.
func NewShell(cfg Config, logger zerolog.Logger) (*Shell, error) {
	if cfg.Assets == nil {
		cfg.Assets = assets.NewPassthroughResolver("/")
	}
	if cfg.OnComponentError == nil {
		cfg.OnComponentError = func() {}
	}
	if cfg.Components == nil {
		cfg.Components = noComponents{}
	}

	s := &Shell{
		cfg:    cfg,
		logger: logger.With().Str("component", "render").Logger(),
	}
	funcs := template.FuncMap{
		"asset":     cfg.Assets.Asset,
		"component": s.templateComponent,
	}

	var (
		tmpl *template.Template
		err  error
	)
	if cfg.TemplatePath != "" {
		tmpl, err = template.New(filepath.Base(cfg.TemplatePath)).Funcs(funcs).ParseFiles(cfg.TemplatePath)
	} else {
		tmpl, err = template.New("index.html.tmpl").Funcs(funcs).ParseFS(templateFS, defaultTemplate)
	}
	if err != nil {
		return nil, fmt.Errorf("render: parse template: %w", err)
	}

	s.tmpl = tmpl
	return s, nil
}

// Render writes the shell with state as the initial client state. Nothing is
// written when serialization or template execution fails.
func (s *Shell) Render(w http.ResponseWriter, state any) error {
	js, err := StateJSON(state, s.cfg.Env)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, s.newContext(js)); err != nil {
		return fmt.Errorf("render: execute template: %w", err)
	}

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, err = buf.WriteTo(w)
	return err
}
