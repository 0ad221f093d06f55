// Package blob copies a finished fileset to object storage.
package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Supported URL schemes.
const (
	SchemeS3  = "s3"
	SchemeGCS = "gs"
)

// Uploader stores objects in a single bucket.
type Uploader interface {
	Upload(ctx context.Context, key string, f *os.File, size int64) error
	Close() error
}

// Target is a parsed destination URL such as s3://bucket/results/.
type Target struct {
	Scheme string
	Bucket string
	Prefix string // key prefix without leading slash, may be empty
}

// ParseTarget parses an s3:// or gs:// URL.
func ParseTarget(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("parse upload url: %w", err)
	}
	switch u.Scheme {
	case SchemeS3, SchemeGCS:
	default:
		return Target{}, fmt.Errorf("unsupported upload scheme %q (want s3:// or gs://)", u.Scheme)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("upload url %q has no bucket", raw)
	}
	return Target{
		Scheme: u.Scheme,
		Bucket: u.Host,
		Prefix: strings.TrimPrefix(u.Path, "/"),
	}, nil
}

// Key returns the object key for a local file.
func (t Target) Key(localPath string) string {
	return path.Join(t.Prefix, filepath.Base(localPath))
}

// URL returns the object URL for a key.
func (t Target) URL(key string) string {
	return t.Scheme + "://" + t.Bucket + "/" + key
}

// UploadFiles uploads each file under the target prefix, keeping base names.
// It returns the URLs of the uploaded objects.
func UploadFiles(ctx context.Context, u Uploader, t Target, files []string) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, p := range files {
		key := t.Key(p)
		if err := uploadFile(ctx, u, key, p); err != nil {
			return urls, err
		}
		urls = append(urls, t.URL(key))
	}
	return urls, nil
}

func uploadFile(ctx context.Context, u Uploader, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}
	if err := u.Upload(ctx, key, f, stat.Size()); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
