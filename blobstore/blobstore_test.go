package blobstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"
)

func TestUpload(t *testing.T) {
	d := Dir{Root: t.TempDir(), BaseURL: "/blobs"}
	u, err := d.Upload(context.Background(), "Crest.PNG", strings.NewReader("not really a png"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u, "/blobs/") || !strings.HasSuffix(u, ".png") {
		t.Errorf("expected /blobs/<id>.png; got %q", u)
	}

	srv := httptest.NewServer(http.StripPrefix("/blobs", d.Handler()))
	defer srv.Close()
	resp, err := http.Get(srv.URL + u)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "not really a png" {
		t.Errorf("expected stored file; got %d %q", resp.StatusCode, body)
	}
}

func TestUploadURL(t *testing.T) {
	tt := map[string]struct {
		BaseURL string
		Name    string
		Prefix  string
		Ext     string
	}{
		"absolute base":  {BaseURL: "https://cdn.example.com/files/", Name: "a.webp", Prefix: "https://cdn.example.com/files/", Ext: ".webp"},
		"relative base":  {BaseURL: "/blobs", Name: "a.jpg", Prefix: "/blobs/", Ext: ".jpg"},
		"odd extension":  {BaseURL: "/blobs", Name: "a.p$g", Prefix: "/blobs/", Ext: ""},
		"no extension":   {BaseURL: "/blobs", Name: "README", Prefix: "/blobs/", Ext: ""},
		"long extension": {BaseURL: "/blobs", Name: "a.verylongext", Prefix: "/blobs/", Ext: ""},
	}
	for name, tc := range tt {
		d := Dir{Root: t.TempDir(), BaseURL: tc.BaseURL}
		u, err := d.Upload(context.Background(), tc.Name, strings.NewReader("x"))
		if err != nil {
			t.Errorf("%s: expected nil error; got %v", name, err)
			continue
		}
		if !strings.HasPrefix(u, tc.Prefix) {
			t.Errorf("%s: expected prefix %q; got %q", name, tc.Prefix, u)
		}
		if got := path.Ext(u); got != tc.Ext {
			t.Errorf("%s: expected extension %q; got %q", name, tc.Ext, got)
		}
	}
}

func TestUploadTooLarge(t *testing.T) {
	d := Dir{Root: t.TempDir(), BaseURL: "/blobs"}
	big := bytes.NewReader(make([]byte, MaxUploadSize+1))
	_, err := d.Upload(context.Background(), "big.png", big)
	if !IsTooLarge(err) {
		t.Errorf("expected ErrTooLarge; got %v", err)
	}
}

func TestUploadCancelled(t *testing.T) {
	d := Dir{Root: t.TempDir(), BaseURL: "/blobs"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Upload(ctx, "a.png", strings.NewReader("x")); err == nil {
		t.Errorf("expected an error for a cancelled upload")
	}
}
