package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// ErrMalformedBody is wrapped by the error passed to Fail for unparseable
// JSON or form payloads.
var ErrMalformedBody = errors.New("malformed request body")

// Body is the parsed request payload. Content types other than JSON and
// url-encoded forms are left unparsed and produce an empty Body.
type Body struct {
	// MediaType is the request media type without parameters.
	MediaType string

	// Form holds url-encoded fields.
	Form url.Values

	// JSON holds the raw JSON document.
	JSON json.RawMessage

	// Raw is the body as read. Empty for unparsed content types.
	Raw []byte

	fields map[string]any
}

// Parsed reports whether the body was a recognized type.
func (b *Body) Parsed() bool {
	return b.Form != nil || b.JSON != nil
}

// Value returns a top-level string field from either a form or a JSON object.
func (b *Body) Value(key string) string {
	if b.Form != nil {
		return b.Form.Get(key)
	}
	if v, ok := b.fields[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// Fields returns the top-level JSON object fields, or nil.
func (b *Body) Fields() map[string]any {
	return b.fields
}

// Decode unmarshals a JSON body into dst.
func (b *Body) Decode(dst any) error {
	if b.JSON == nil {
		return fmt.Errorf("body is not JSON")
	}
	return json.Unmarshal(b.JSON, dst)
}

type bodyKey struct{}

// BodyFromContext returns the parsed body. It is never nil after BodyParser ran.
func BodyFromContext(ctx context.Context) *Body {
	b, _ := ctx.Value(bodyKey{}).(*Body)
	return b
}

// BodyParser reads application/json and application/x-www-form-urlencoded
// bodies up to limit bytes into a Body in the request context. The request
// body stays readable downstream. Malformed payloads fail with 400 and
// oversized ones with 413.
func BodyParser(limit int64) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := &Body{}
			mediaType, kind := classify(r.Header.Get("Content-Type"))
			body.MediaType = mediaType

			if kind != kindOther && r.Body != nil && r.Body != http.NoBody {
				raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
				if err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						Fail(w, r, WithStatus(http.StatusRequestEntityTooLarge, err))
						return
					}
					Fail(w, r, WithStatus(http.StatusBadRequest, fmt.Errorf("read body: %w", err)))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(raw))
				body.Raw = raw

				if err := body.parse(kind, raw); err != nil {
					Fail(w, r, WithStatus(http.StatusBadRequest, err))
					return
				}
				if kind == kindForm {
					r.PostForm = body.Form
					r.Form = mergeQuery(r.URL.Query(), body.Form)
				}
			}

			ctx := context.WithValue(r.Context(), bodyKey{}, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type bodyKind int

const (
	kindOther bodyKind = iota
	kindJSON
	kindForm
)

func classify(contentType string) (string, bodyKind) {
	if contentType == "" {
		return "", kindOther
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", kindOther
	}
	switch {
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return mediaType, kindJSON
	case mediaType == "application/x-www-form-urlencoded":
		return mediaType, kindForm
	default:
		return mediaType, kindOther
	}
}

func (b *Body) parse(kind bodyKind, raw []byte) error {
	switch kind {
	case kindJSON:
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			b.JSON = json.RawMessage("{}")
			b.fields = map[string]any{}
			return nil
		}
		if !json.Valid(trimmed) {
			return fmt.Errorf("%w: invalid JSON", ErrMalformedBody)
		}
		b.JSON = json.RawMessage(trimmed)
		var obj map[string]any
		if json.Unmarshal(trimmed, &obj) == nil {
			b.fields = obj
		}
	case kindForm:
		form, err := url.ParseQuery(string(raw))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		b.Form = form
	}
	return nil
}

func mergeQuery(query, form url.Values) url.Values {
	merged := make(url.Values, len(query)+len(form))
	for k, v := range form {
		merged[k] = append(merged[k], v...)
	}
	for k, v := range query {
		merged[k] = append(merged[k], v...)
	}
	return merged
}
