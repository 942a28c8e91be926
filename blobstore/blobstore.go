// Package blobstore keeps uploaded files such as tile images and heraldry.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// MaxUploadSize is the largest file Upload accepts.
const MaxUploadSize = 16 << 20

var ErrTooLarge = fmt.Errorf("blobstore: file larger than %s", humanize.IBytes(MaxUploadSize))

// Dir stores blobs as files in Root and serves them under BaseURL.
type Dir struct {
	Root    string
	BaseURL string
}

// Upload writes r to a new file and returns the URL it can be fetched from.
// The extension of name is kept; the rest of the name is replaced with a random id.
func (d Dir) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return "", fmt.Errorf("blobstore.Upload: %w", err)
	}
	file := uuid.NewString() + cleanExt(name)
	dst := filepath.Join(d.Root, file)

	f, err := os.CreateTemp(d.Root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("blobstore.Upload: %w", err)
	}
	defer os.Remove(f.Name())

	n, err := io.Copy(f, io.LimitReader(contextReader{ctx, r}, MaxUploadSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("blobstore.Upload: %s: %w", name, err)
	}
	if n > MaxUploadSize {
		return "", ErrTooLarge
	}
	if err := os.Rename(f.Name(), dst); err != nil {
		return "", fmt.Errorf("blobstore.Upload: %w", err)
	}

	slog.Info("stored upload", "name", name, "file", file, "size", humanize.Bytes(uint64(n)))
	return d.url(file), nil
}

func (d Dir) url(file string) string {
	base := strings.TrimSuffix(d.BaseURL, "/")
	if u, err := url.Parse(base); err == nil && u.Scheme != "" {
		u.Path = path.Join(u.Path, file)
		return u.String()
	}
	return base + "/" + file
}

// Handler serves the stored files.
// Mount it under the path of BaseURL with http.StripPrefix.
func (d Dir) Handler() http.Handler {
	fs := http.FileServer(http.Dir(d.Root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/.") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	})
}

func cleanExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, c := range ext[1:] {
		if !('a' <= c && c <= 'z' || '0' <= c && c <= '9') {
			return ""
		}
	}
	return ext
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// IsTooLarge reports whether err came from an oversized upload.
func IsTooLarge(err error) bool { return errors.Is(err, ErrTooLarge) }
