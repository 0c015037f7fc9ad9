package render

import (
	"errors"
	"fmt"
	"html/template"
)

// ComponentPlaceholder replaces a component that failed to render.
const ComponentPlaceholder template.HTML = "<div>Some Error Occured</div>"

// ComponentRenderer renders a named UI component to static markup.
type ComponentRenderer interface {
	RenderComponent(component string, data any, templateColor string) (string, error)
}

// ComponentRendererFunc adapts a function to ComponentRenderer.
type ComponentRendererFunc func(component string, data any, templateColor string) (string, error)

// RenderComponent implements ComponentRenderer.
func (f ComponentRendererFunc) RenderComponent(component string, data any, templateColor string) (string, error) {
	return f(component, data, templateColor)
}

// ErrNoComponentRenderer is reported when a template calls component on a
// Shell configured without Components.
var ErrNoComponentRenderer = errors.New("render: no component renderer configured")

type noComponents struct{}

func (noComponents) RenderComponent(string, any, string) (string, error) {
	return "", ErrNoComponentRenderer
}

// Component renders component through r. An error or panic is logged and
// yields ComponentPlaceholder.
func (s *Shell) Component(r ComponentRenderer, component string, data any, templateColor string) (html template.HTML) {
	defer func() {
		if rec := recover(); rec != nil {
			s.componentFailed(component, fmt.Errorf("panic: %v", rec))
			html = ComponentPlaceholder
		}
	}()

	out, err := r.RenderComponent(component, data, templateColor)
	if err != nil {
		s.componentFailed(component, err)
		return ComponentPlaceholder
	}
	return template.HTML(out)
}

// templateComponent backs the template's component function.
func (s *Shell) templateComponent(component string, data any, templateColor string) template.HTML {
	return s.Component(s.cfg.Components, component, data, templateColor)
}

func (s *Shell) componentFailed(component string, err error) {
	s.logger.Error().Err(err).Str("ui_component", component).Msg("component render failed")
	s.cfg.OnComponentError()
}
