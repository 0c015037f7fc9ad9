package assets

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestJSON = `{"main.css":"main.3f2a9c.css","main.js":"main.81bd02.js","vendor.js":"vendor.c09e11.js","logo.svg":"logo.77aa.svg"}`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	m, err := Load(writeManifest(t, manifestJSON))
	require.NoError(t, err)
	assert.Equal(t, 4, m.Len())

	p, ok := m.Resolve("main.js")
	assert.True(t, ok)
	assert.Equal(t, "main.81bd02.js", p)

	_, ok = m.Resolve("missing.js")
	assert.False(t, ok)

	all := m.All()
	all["extra.js"] = "x"
	assert.False(t, m.Has("extra.js"), "All must return a copy")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)

	_, err = Load(writeManifest(t, `{"main.js": 3}`))
	assert.Error(t, err)

	m, err := Load(writeManifest(t, `null`))
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		in          string
		bucket, key string
		ok          bool
	}{
		{"s3://builds/web/manifest.json", "builds", "web/manifest.json", true},
		{"s3://builds/", "", "", false},
		{"s3://builds", "", "", false},
		{"dist/manifest.json", "", "", false},
	}
	for _, tt := range tests {
		b, k, ok := ParseS3URL(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.bucket, b, tt.in)
		assert.Equal(t, tt.key, k, tt.in)
	}
}

type fakeGetter struct {
	body  string
	err   error
	input *s3.GetObjectInput
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(f.body))}, nil
}

func TestLoadS3(t *testing.T) {
	g := &fakeGetter{body: manifestJSON}
	m, err := LoadS3(context.Background(), g, "builds", "web/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, "builds", aws.ToString(g.input.Bucket))
	assert.Equal(t, "web/manifest.json", aws.ToString(g.input.Key))
	assert.True(t, m.Has("vendor.js"))

	_, err = LoadS3(context.Background(), &fakeGetter{err: errors.New("access denied")}, "b", "k")
	assert.ErrorContains(t, err, "s3://b/k")
}

func TestLoadSourceFromS3Endpoint(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Path != "/builds/web/manifest.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, manifestJSON)
	}))
	defer srv.Close()

	opts := S3Options{
		Region:          "eu-west-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	}
	m, err := LoadSource(context.Background(), "s3://builds/web/manifest.json", opts)
	require.NoError(t, err)
	assert.Equal(t, "/builds/web/manifest.json", gotPath)
	assert.Equal(t, 4, m.Len())
}

func TestLoadSourceFromFile(t *testing.T) {
	m, err := LoadSource(context.Background(), writeManifest(t, manifestJSON), S3Options{})
	require.NoError(t, err)
	assert.True(t, m.Has("main.css"))
}
