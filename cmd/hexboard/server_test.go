package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Travis-Britz/hexboard"
	"github.com/Travis-Britz/hexboard/board"
	"github.com/Travis-Britz/hexboard/docstore"
	"github.com/Travis-Britz/hexboard/hexmap"
	"github.com/Travis-Britz/hexboard/identity"
	"github.com/Travis-Britz/hexboard/live"
	"github.com/Travis-Britz/hexboard/tilestore"
)

func TestParseGrid(t *testing.T) {
	tt := map[string]struct {
		In       string
		Expected hexmap.Grid
		Err      bool
	}{
		"default":     {In: "25x14", Expected: hexmap.Grid{Cols: 25, Rows: 14}},
		"upper case":  {In: " 8X3 ", Expected: hexmap.Grid{Cols: 8, Rows: 3}},
		"no rows":     {In: "25", Err: true},
		"zero cols":   {In: "0x4", Err: true},
		"not numbers": {In: "axb", Err: true},
	}
	for name, tc := range tt {
		got, err := parseGrid(tc.In)
		if tc.Err {
			if err == nil {
				t.Errorf("%s: expected an error", name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: expected nil error; got %v", name, err)
			continue
		}
		if got != tc.Expected {
			t.Errorf("%s: expected %v; got %v", name, tc.Expected, got)
		}
	}
}

func newTestApp(t *testing.T) (*app, *httptest.Server) {
	t.Helper()
	config.Blobs = t.TempDir()
	docs := docstore.NewMemory()
	tiles := tilestore.New(docs)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		tiles.Run(ctx)
	}()
	ids := identity.NewProvider()
	if err := ids.AddAccount("ana@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	a := newApp(docs, tiles, ids)
	srv := httptest.NewServer(a.routes())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return a, srv
}

func login(t *testing.T, srv *httptest.Server, email, password string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(credentials{Email: email, Password: password})
	resp, err := http.Post(srv.URL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestLogin(t *testing.T) {
	_, srv := newTestApp(t)

	resp := login(t, srv, "ana@example.com", "wrong")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected %d for bad password; got %d", http.StatusUnauthorized, resp.StatusCode)
	}

	resp = login(t, srv, "Ana@Example.com", "pw")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected %d; got %d", http.StatusOK, resp.StatusCode)
	}
	var got loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Token == "" || got.Email != "ana@example.com" {
		t.Errorf("expected a token for ana@example.com; got %+v", got)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == live.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != got.Token || !cookie.HttpOnly {
		t.Errorf("expected an http only session cookie holding the token; got %+v", cookie)
	}
}

func token(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := login(t, srv, "ana@example.com", "pw")
	defer resp.Body.Close()
	var got loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	return got.Token
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func upload(t *testing.T, srv *httptest.Server, tok string, name string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/upload", &body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestUploadAndBackground(t *testing.T) {
	a, srv := newTestApp(t)

	resp := upload(t, srv, "", "map.png", pngBytes(t))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected anonymous upload to be refused; got %d", resp.StatusCode)
	}

	tok := token(t, srv)
	resp = upload(t, srv, tok, "map.png", pngBytes(t))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected %d; got %d", http.StatusCreated, resp.StatusCode)
	}
	var uploaded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(uploaded.URL, "/blobs/") || !strings.HasSuffix(uploaded.URL, ".png") {
		t.Errorf("expected a png url under /blobs/; got %q", uploaded.URL)
	}

	blob, err := http.Get(srv.URL + uploaded.URL)
	if err != nil {
		t.Fatal(err)
	}
	blob.Body.Close()
	if blob.StatusCode != http.StatusOK {
		t.Errorf("expected uploaded file to be served; got %d", blob.StatusCode)
	}

	body, _ := json.Marshal(backgroundSetting{Src: uploaded.URL})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/background", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok)
	bg, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	bg.Body.Close()
	if bg.StatusCode != http.StatusNoContent {
		t.Fatalf("expected %d; got %d", http.StatusNoContent, bg.StatusCode)
	}
	if a.currentBackground() == nil {
		t.Errorf("expected background to be set")
	}
	doc, err := a.docs.Get(context.Background(), settingsCollection, backgroundID)
	if err != nil {
		t.Fatalf("expected background setting to be saved; got %v", err)
	}
	if !strings.Contains(string(doc.Data), uploaded.URL) {
		t.Errorf("expected saved setting to hold %q; got %s", uploaded.URL, doc.Data)
	}
}

func TestBackgroundSource(t *testing.T) {
	a, srv := newTestApp(t)
	tok := token(t, srv)
	tt := map[string]struct {
		Src      string
		Expected string
		Err      bool
	}{
		"blob":           {Src: "/blobs/abc.png", Expected: filepath.Join(a.blobs.Root, "abc.png")},
		"https":          {Src: "https://example.com/map.png", Expected: "https://example.com/map.png"},
		"local file":     {Src: "/etc/passwd", Err: true},
		"relative file":  {Src: "main.go", Err: true},
		"file url":       {Src: "file:///etc/passwd", Err: true},
		"ftp":            {Src: "ftp://example.com/map.png", Err: true},
		"blob traversal": {Src: "/blobs/../main.go", Err: true},
		"blob subdir":    {Src: "/blobs/a/b.png", Err: true},
		"no host":        {Src: "http:///map.png", Err: true},
	}
	for name, tc := range tt {
		got, err := a.backgroundSource(tc.Src)
		if tc.Err {
			if err == nil {
				t.Errorf("%s: expected an error; got %q", name, got)
			}
			body, _ := json.Marshal(backgroundSetting{Src: tc.Src})
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/background", bytes.NewReader(body))
			req.Header.Set("Authorization", "Bearer "+tok)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("%s: expected status %d; got %d", name, http.StatusBadRequest, resp.StatusCode)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: expected nil error; got %v", name, err)
			continue
		}
		if got != tc.Expected {
			t.Errorf("%s: expected %q; got %q", name, tc.Expected, got)
		}
	}
	if a.currentBackground() != nil {
		t.Errorf("expected no background to be set")
	}
}

func TestLogoutEndsSession(t *testing.T) {
	a, srv := newTestApp(t)
	tok := token(t, srv)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/logout", nil)
	req.AddCookie(&http.Cookie{Name: live.SessionCookie, Value: tok})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected %d; got %d", http.StatusNoContent, resp.StatusCode)
	}
	if _, ok := a.ids.Lookup(tok); ok {
		t.Errorf("expected token to be revoked")
	}
}

func TestTilesAndHouses(t *testing.T) {
	a, srv := newTestApp(t)
	for _, tile := range []hexboard.Tile{
		{Q: 1, R: 0, Title: "Velia", Lord: "House Arsha"},
		{Q: 2, R: 0, Title: "Olvia", Lord: "House Arsha"},
		{Q: 9, R: 9, Title: "Grana"},
	} {
		a.tiles.Put(tile, nil)
	}

	resp, err := http.Get(srv.URL + "/api/tiles")
	if err != nil {
		t.Fatal(err)
	}
	var tiles []hexboard.Tile
	err = json.NewDecoder(resp.Body).Decode(&tiles)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 3 {
		t.Errorf("expected 3 tiles; got %d", len(tiles))
	}

	resp, err = http.Get(srv.URL + "/api/houses")
	if err != nil {
		t.Fatal(err)
	}
	var houses []board.House
	err = json.NewDecoder(resp.Body).Decode(&houses)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(houses) == 0 || houses[0].Lord != "House Arsha" || houses[0].Territories != 2 {
		t.Errorf("expected House Arsha first with 2 territories; got %+v", houses)
	}
}

func TestMapImage(t *testing.T) {
	tt := map[string]struct {
		Query          string
		ExpectedStatus int
		Width, Height  int
	}{
		"default size": {Query: "", ExpectedStatus: http.StatusOK, Width: config.Width, Height: config.Height},
		"custom size":  {Query: "?width=320&height=200", ExpectedStatus: http.StatusOK, Width: 320, Height: 200},
		"zero width":   {Query: "?width=0", ExpectedStatus: http.StatusBadRequest},
		"too large":    {Query: "?height=100000", ExpectedStatus: http.StatusBadRequest},
		"not a number": {Query: "?width=wide", ExpectedStatus: http.StatusBadRequest},
	}
	_, srv := newTestApp(t)
	for name, tc := range tt {
		resp, err := http.Get(srv.URL + "/map.png" + tc.Query)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tc.ExpectedStatus {
			t.Errorf("%s: expected status %d; got %d", name, tc.ExpectedStatus, resp.StatusCode)
			resp.Body.Close()
			continue
		}
		if tc.ExpectedStatus != http.StatusOK {
			resp.Body.Close()
			continue
		}
		cfg, err := png.DecodeConfig(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Errorf("%s: expected a png; got %v", name, err)
			continue
		}
		if cfg.Width != tc.Width || cfg.Height != tc.Height {
			t.Errorf("%s: expected %dx%d; got %dx%d", name, tc.Width, tc.Height, cfg.Width, cfg.Height)
		}
	}
}
