// Package assets resolves the content-addressed bundle paths written by the
// front-end build.
//
// The build writes a manifest.json mapping logical bundle names to
// fingerprinted file names:
//
//	{
//	  "main.css": "main.3f2a9c.css",
//	  "main.js": "main.81bd02.js",
//	  "vendor.js": "vendor.c09e11.js"
//	}
//
// The manifest is loaded once at startup, from disk or from S3, and is
// immutable afterwards:
//
//	manifest, _ := assets.LoadSource(ctx, "dist/manifest.json", assets.S3Options{})
//	bundles, _ := assets.ResolveBundles(manifest, "/public/", assets.RequiredBundles)
//	// bundles.MainJS == "/public/main.81bd02.js"
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrMissingEntry is wrapped by ResolveBundles for absent required names.
var ErrMissingEntry = errors.New("assets: manifest entry missing")

// maxManifestSize bounds how much of a remote manifest is read.
const maxManifestSize = 4 << 20

// Manifest maps logical asset names to fingerprinted paths.
// It is immutable and safe for concurrent use.
type Manifest struct {
	entries map[string]string
}

// NewManifest creates a manifest from entries. The map is copied.
func NewManifest(entries map[string]string) *Manifest {
	return &Manifest{entries: maps.Clone(entries)}
}

// Parse decodes a JSON manifest.
func Parse(data []byte) (*Manifest, error) {
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("assets: parse manifest: %w", err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return &Manifest{entries: entries}, nil
}

// Load reads a manifest.json file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("assets: read manifest: %w", err)
	}
	return Parse(data)
}

// ObjectGetter is the part of *s3.Client used to fetch a remote manifest.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// LoadS3 fetches bucket/key and parses it.
func LoadS3(ctx context.Context, client ObjectGetter, bucket, key string) (*Manifest, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("assets: fetch s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("assets: read s3://%s/%s: %w", bucket, key, err)
	}
	return Parse(data)
}

// LoadSource loads src, which is either a file path or an s3://bucket/key URL.
func LoadSource(ctx context.Context, src string, opts S3Options) (*Manifest, error) {
	bucket, key, ok := ParseS3URL(src)
	if !ok {
		return Load(src)
	}
	return LoadS3(ctx, NewS3Client(opts), bucket, key)
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(src string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(src, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Resolve returns the fingerprinted path for name.
func (m *Manifest) Resolve(name string) (string, bool) {
	p, ok := m.entries[name]
	return p, ok
}

// Has reports whether the manifest contains name.
func (m *Manifest) Has(name string) bool {
	_, ok := m.entries[name]
	return ok
}

// Len returns the number of entries in the manifest.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// All returns a copy of all manifest entries.
func (m *Manifest) All() map[string]string {
	return maps.Clone(m.entries)
}
