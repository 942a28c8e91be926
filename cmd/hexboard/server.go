package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Travis-Britz/hexboard"
	"github.com/Travis-Britz/hexboard/blobstore"
	"github.com/Travis-Britz/hexboard/board"
	"github.com/Travis-Britz/hexboard/canvas"
	"github.com/Travis-Britz/hexboard/docstore"
	"github.com/Travis-Britz/hexboard/hexmap"
	"github.com/Travis-Britz/hexboard/identity"
	"github.com/Travis-Britz/hexboard/live"
	"github.com/Travis-Britz/hexboard/tilestore"
	"github.com/google/uuid"
)

const (
	// settingsCollection holds server settings that outlive a restart.
	settingsCollection = "settings"
	backgroundID       = "background"

	blobPrefix   = "/blobs"
	maxDimension = 4096
)

// app holds everything the http handlers share.
type app struct {
	docs    docstore.Store
	tiles   *tilestore.Store
	ids     *identity.Provider
	live    *live.Server
	blobs   blobstore.Dir
	grid    hexmap.Grid
	borders bool

	mu         sync.Mutex
	background image.Image
}

func newApp(docs docstore.Store, tiles *tilestore.Store, ids *identity.Provider) *app {
	a := &app{
		docs:    docs,
		tiles:   tiles,
		ids:     ids,
		live:    live.NewServer(tiles, ids),
		blobs:   blobstore.Dir{Root: config.Blobs, BaseURL: blobPrefix},
		grid:    config.Grid,
		borders: config.Borders,
	}
	a.live.Grid = a.grid
	a.live.FPS = config.FPS
	a.live.Borders = a.borders
	return a
}

func (a *app) setBackground(img image.Image) {
	a.mu.Lock()
	a.background = img
	a.mu.Unlock()
	a.live.SetBackground(img)
}

func (a *app) currentBackground() image.Image {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.background
}

var errBackgroundSource = errors.New("background must be an uploaded image or an http(s) url")

// backgroundSource resolves a background chosen through the api.
// Urls of uploaded blobs map to their files; any other local path is refused.
func (a *app) backgroundSource(src string) (string, error) {
	if name, ok := strings.CutPrefix(src, blobPrefix+"/"); ok {
		if name == "" || name == "." || name == ".." || name != path.Base(name) {
			return "", errBackgroundSource
		}
		return filepath.Join(a.blobs.Root, name), nil
	}
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errBackgroundSource
	}
	return src, nil
}

// loadBackground reads a background chosen through the api.
func (a *app) loadBackground(ctx context.Context, src string) (image.Image, error) {
	resolved, err := a.backgroundSource(src)
	if err != nil {
		return nil, err
	}
	return canvas.LoadImage(ctx, nil, resolved)
}

// restoreBackground loads the background saved by the last /api/background call.
// A background given in the configuration takes precedence.
func (a *app) restoreBackground(ctx context.Context) {
	src := config.Background
	load := func(src string) (image.Image, error) { return canvas.LoadImage(ctx, nil, src) }
	if src == "" {
		doc, err := a.docs.Get(ctx, settingsCollection, backgroundID)
		if err != nil {
			if !errors.Is(err, docstore.ErrNotFound) {
				slog.Error("reading saved background", "error", err)
			}
			return
		}
		var setting backgroundSetting
		if err := json.Unmarshal(doc.Data, &setting); err != nil || setting.Src == "" {
			return
		}
		src = setting.Src
		load = func(src string) (image.Image, error) { return a.loadBackground(ctx, src) }
	}
	img, err := load(src)
	if err != nil {
		// the board falls back to the placeholder fill
		slog.Error("loading background", "src", src, "error", err)
		return
	}
	a.setBackground(img)
}

type backgroundSetting struct {
	Src string `json:"src"`
}

func (a *app) routes() http.Handler {
	router := http.NewServeMux()
	router.Handle("/ws", a.live)
	router.HandleFunc("/map.png", a.handleMapImage)
	router.HandleFunc("/api/tiles", a.handleTiles)
	router.HandleFunc("/api/houses", a.handleHouses)
	router.HandleFunc("/api/login", a.handleLogin)
	router.HandleFunc("/api/logout", a.handleLogout)
	router.Handle("/api/upload", a.requireAdmin(http.HandlerFunc(a.handleUpload)))
	router.Handle("/api/background", a.requireAdmin(http.HandlerFunc(a.handleBackground)))
	router.Handle(blobPrefix+"/", http.StripPrefix(blobPrefix, a.blobs.Handler()))

	logRequest := func(next http.Handler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			slog.InfoContext(r.Context(), "incoming http request",
				"request", fmt.Sprintf("%s %s %s", r.Method, r.RequestURI, r.Proto),
			)
			next.ServeHTTP(w, r)
		}
	}

	var h http.Handler = router
	h = logRequest(h)
	h = injectCorrelationID(h)
	return h
}

func injectCorrelationID(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, correlationID, uuid.New())
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func runHTTPServerMode(ctx context.Context, docs docstore.Store, tiles *tilestore.Store) error {
	ctx, shutdown := context.WithCancelCause(ctx)
	defer shutdown(nil)

	ids, err := identity.ParseAccounts(config.Admins)
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}
	if config.Admins == "" {
		slog.Info("no admin accounts configured; the map is read only")
	}

	a := newApp(docs, tiles, ids)
	a.restoreBackground(ctx)

	srv := http.Server{
		Addr:    config.Bind,
		Handler: a.routes(),
	}

	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		// pending writes are drained before Run returns
		tiles.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tiles.Follow(ctx); err != nil {
			slog.Error("stopped following tile changes", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("starting http service", "bind", config.Bind)
		defer slog.Info("stopped http service")
		shutdown(srv.ListenAndServe())
	}()

	wg.Add(1)
	go func() {
		// this goroutine waits for a cancelled context and then tries to gracefully shut down the http server
		defer wg.Done()
		<-ctx.Done()
		wait := 5 * time.Second
		waitctx, cancel := context.WithTimeout(context.Background(), wait)
		defer cancel()
		if err := srv.Shutdown(waitctx); err != nil {
			slog.Info("error while stopping http server", "error", err, "wait", wait)
		}
	}()
	wg.Wait()
	<-ctx.Done()
	return context.Cause(ctx)
}

// renderMap draws tiles once onto a new width by height image.
func renderMap(tiles []hexboard.Tile, width, height int, background image.Image) *canvas.Image {
	img := canvas.NewImage(width, height)
	board.Draw(img, board.Frame{
		Tiles:      tiles,
		Layout:     hexmap.NewLayout(float64(width), float64(height), config.Grid),
		Background: background,
		Borders:    config.Borders,
	})
	return img
}

func (a *app) handleMapImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	width, err := dimension(r, "width", config.Width)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	height, err := dimension(r, "height", config.Height)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	img := renderMap(a.tiles.Tiles(), width, height, a.currentBackground())
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := img.EncodePNG(w); err != nil {
		slog.DebugContext(r.Context(), "writing map image", "error", err)
	}
}

func dimension(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxDimension {
		return 0, fmt.Errorf("%s must be a number between 1 and %d", name, maxDimension)
	}
	return n, nil
}

func (a *app) handleTiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, a.tiles.Tiles())
}

func (a *app) handleHouses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, board.Houses(a.tiles.Tiles()))
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

func (a *app) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var c credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&c); err != nil {
		http.Error(w, "expected a json body with email and password", http.StatusBadRequest)
		return
	}
	tok, err := a.ids.Login(c.Email, c.Password)
	if err != nil {
		slog.InfoContext(r.Context(), "login failed", "email", c.Email)
		http.Error(w, "bad email or password", http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     live.SessionCookie,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(identity.DefaultSessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{Email: strings.ToLower(strings.TrimSpace(c.Email)), Token: tok})
}

func (a *app) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if tok := requestToken(r); tok != "" {
		a.ids.Logout(tok)
	}
	http.SetCookie(w, &http.Cookie{
		Name:   live.SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// requestToken returns the session token from the bearer header or the session cookie.
func requestToken(r *http.Request) string {
	if tok, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		return strings.TrimSpace(tok)
	}
	if c, err := r.Cookie(live.SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// requireAdmin rejects requests without a live session.
// Every configured account is an admin.
func (a *app) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, ok := a.ids.Lookup(requestToken(r))
		if !ok {
			http.Error(w, board.NoticeSignInRequired, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), editorKey, email)
		slog.DebugContext(ctx, "admin request", "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type uploadResponse struct {
	URL string `json:"url"`
}

func (a *app) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, blobstore.MaxUploadSize+1<<20)
	f, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, blobstore.ErrTooLarge.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "expected a multipart form with a file field", http.StatusBadRequest)
		return
	}
	defer f.Close()

	url, err := a.blobs.Upload(r.Context(), header.Filename, f)
	if err != nil {
		if blobstore.IsTooLarge(err) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		slog.ErrorContext(r.Context(), "upload failed", "error", err)
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{URL: url})
}

func (a *app) handleBackground(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var setting backgroundSetting
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&setting); err != nil || setting.Src == "" {
		http.Error(w, "expected a json body with src", http.StatusBadRequest)
		return
	}
	if _, err := a.backgroundSource(setting.Src); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	img, err := a.loadBackground(r.Context(), setting.Src)
	if err != nil {
		slog.InfoContext(r.Context(), "background rejected", "src", setting.Src, "error", err)
		http.Error(w, "could not load image", http.StatusUnprocessableEntity)
		return
	}
	a.setBackground(img)

	data, _ := json.Marshal(setting)
	if err := a.docs.Set(r.Context(), settingsCollection, backgroundID, data); err != nil {
		slog.ErrorContext(r.Context(), "saving background", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
