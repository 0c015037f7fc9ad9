package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
)

// escapeScript escapes JSON text for inclusion inside a <script> element.
// The result is still valid JSON and valid JavaScript.
func escapeScript(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))

	for _, r := range s {
		switch r {
		case '<':
			buf.WriteString(`\u003c`)
		case '>':
			buf.WriteString(`\u003e`)
		case '&':
			buf.WriteString(`\u0026`)
		case '\u2028':
			buf.WriteString(`\u2028`)
		case '\u2029':
			buf.WriteString(`\u2029`)
		default:
			buf.WriteRune(r)
		}
	}

	return buf.String()
}

// marshalRaw encodes v without HTML escaping; escapeScript runs afterwards.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// StateJSON serializes state merged with {"build":{"env":env}}. state must
// encode to a JSON object or null; a "build" key in state is replaced.
func StateJSON(state any, env string) (template.JS, error) {
	fields := map[string]json.RawMessage{}
	if state != nil {
		raw, err := marshalRaw(state)
		if err != nil {
			return "", fmt.Errorf("render: encode state: %w", err)
		}
		if !bytes.Equal(raw, []byte("null")) {
			if err := json.Unmarshal(raw, &fields); err != nil {
				return "", fmt.Errorf("render: state must be a JSON object: %w", err)
			}
		}
	}

	build, err := marshalRaw(map[string]string{"env": env})
	if err != nil {
		return "", err
	}
	fields["build"] = build

	out, err := marshalRaw(fields)
	if err != nil {
		return "", fmt.Errorf("render: encode state: %w", err)
	}
	return template.JS(escapeScript(string(out))), nil
}
