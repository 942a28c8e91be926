package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Travis-Britz/hexboard"
	"github.com/Travis-Britz/hexboard/board"
	"github.com/Travis-Britz/hexboard/canvas"
	"github.com/Travis-Britz/hexboard/docstore"
	"github.com/Travis-Britz/hexboard/hexmap"
	"github.com/Travis-Britz/hexboard/sheet"
	"github.com/Travis-Britz/hexboard/tilestore"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var config = struct {
	Bind       string
	Store      string
	Background string
	Grid       hexmap.Grid
	Admins     string
	Blobs      string
	FPS        int
	Borders    bool
	VerboseLog bool
	Width      int
	Height     int
	Export     string
	Import     string
	Output     string
	Mode       mode
}{
	Store:  "memory:",
	Grid:   hexmap.Grid{Cols: hexboard.DefaultGridCols, Rows: hexboard.DefaultGridRows},
	Blobs:  "blobs",
	FPS:    board.DefaultFPS,
	Width:  1000,
	Height: 800,
}

type mode uint8

func (m mode) String() string {
	switch m {
	case SingleFile:
		return "SingleFile"
	case HTTPServer:
		return "HTTPServer"
	case Export:
		return "Export"
	case Import:
		return "Import"
	default:
		return fmt.Sprintf("%d", m)
	}
}

const (
	SingleFile mode = iota
	HTTPServer
	Export
	Import
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "reading .env: %v\n", err)
		os.Exit(2)
	}
	config.Bind = env("HEXBOARD_BIND", config.Bind)
	config.Store = env("HEXBOARD_STORE", config.Store)
	config.Background = env("HEXBOARD_BACKGROUND", config.Background)
	config.Admins = env("HEXBOARD_ADMINS", config.Admins)
	config.Blobs = env("HEXBOARD_BLOBS", config.Blobs)
	config.FPS = envInt("HEXBOARD_FPS", config.FPS)
	config.Borders = envBool("HEXBOARD_BORDERS", config.Borders)
	grid := env("HEXBOARD_GRID", formatGrid(config.Grid))

	flag.StringVar(&config.Bind, "serve", config.Bind, "Serve will start the process as an HTTP server bound to the given network interface such as \"localhost:8080\".")
	flag.StringVar(&config.Store, "store", config.Store, "Tile database: \"memory:\", \"sqlite:path/to/file.db\" or a postgres:// url.")
	flag.StringVar(&config.Background, "background", config.Background, "Background image drawn behind the map (file path or http url).")
	flag.StringVar(&grid, "grid", grid, "Map size in hexes, columns x rows.")
	flag.StringVar(&config.Admins, "admins", config.Admins, "Comma separated email:password pairs allowed to edit. The password may be a bcrypt hash.")
	flag.StringVar(&config.Blobs, "blobs", config.Blobs, "Directory for uploaded images.")
	flag.IntVar(&config.FPS, "fps", config.FPS, "Frame rate of the glow animation.")
	flag.BoolVar(&config.Borders, "borders", config.Borders, "Outline the realm of every house.")
	flag.BoolVar(&config.VerboseLog, "v", config.VerboseLog, "Enable writing verbose logging information to stderr.")
	flag.IntVar(&config.Width, "width", config.Width, "Width of a rendered map image.")
	flag.IntVar(&config.Height, "height", config.Height, "Height of a rendered map image.")
	flag.StringVar(&config.Export, "export", "", "Write every tile to the given xlsx file.")
	flag.StringVar(&config.Import, "import", "", "Store every tile read from the given xlsx file.")
	flag.Parse()

	config.Output = flag.Arg(0)

	var err error
	if config.Grid, err = parseGrid(grid); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var logLevel = slog.LevelInfo
	if config.VerboseLog {
		logLevel = slog.LevelDebug
	}
	slog.SetLogLoggerLevel(logLevel)
	baseLogger := slog.New(&contextHandler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}),
	})
	slog.SetDefault(baseLogger)

	switch {
	case config.Bind != "":
		config.Mode = HTTPServer
	case config.Export != "":
		config.Mode = Export
	case config.Import != "":
		config.Mode = Import
	default:
		config.Mode = SingleFile
	}

	ctx, shutdown := context.WithCancelCause(context.Background())
	go func() {
		defer slog.Debug("received interrupt")
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt)
		<-stop
		shutdown(errGracefulShutdown)
	}()

	if err := run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			err = context.Cause(ctx)
		}
		if errors.Is(err, errGracefulShutdown) {
			return
		}
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	docs, err := docstore.Open(config.Store)
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}
	defer docs.Close()

	tiles := tilestore.New(docs)
	if err := tiles.Load(ctx); err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	switch config.Mode {
	case HTTPServer:
		slog.Info("starting", "mode", config.Mode, "bind", config.Bind, "store", storeKind(config.Store), "grid", formatGrid(config.Grid), "tiles", tiles.Len())
		return runHTTPServerMode(ctx, docs, tiles)
	case Export:
		slog.Info("starting", "mode", config.Mode, "output", config.Export, "tiles", tiles.Len())
		return sheet.ExportFile(config.Export, tiles.Tiles())
	case Import:
		slog.Info("starting", "mode", config.Mode, "input", config.Import)
		return runImportMode(ctx, tiles, config.Import)
	case SingleFile:
		slog.Info("starting", "mode", config.Mode, "output", config.Output, "width", config.Width, "height", config.Height)
		var bg image.Image
		if config.Background != "" {
			if bg, err = canvas.LoadImage(ctx, nil, config.Background); err != nil {
				return err
			}
		}
		img := renderMap(tiles.Tiles(), config.Width, config.Height, bg)
		return writeToOutput(config.Output, img.EncodePNG)
	}
	return nil
}

// runImportMode stores every tile of the workbook at path and waits for the writes.
func runImportMode(ctx context.Context, tiles *tilestore.Store, path string) error {
	imported, err := sheet.ImportFile(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go tiles.Run(ctx)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	wg.Add(len(imported))
	for _, t := range imported {
		tiles.Put(t, func(err error) {
			defer wg.Done()
			if err != nil {
				slog.Debug("import write failed", "key", t.Key(), "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	slog.Info("import finished", "tiles", len(imported), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("import: %d of %d tiles could not be stored", failed, len(imported))
	}
	return nil
}

// writeToOutput runs encode against stdout for "-" or against the file output.
// A file is encoded beside output and renamed into place,
// so a viewer polling the file never reads a half written map.
func writeToOutput(output string, encode func(io.Writer) error) error {
	if output == "" {
		return fmt.Errorf("no output destination given")
	}
	if output == "-" {
		slog.Debug("writing to stdout")
		cw := &countingWriter{w: os.Stdout}
		if err := encode(cw); err != nil {
			return fmt.Errorf("failed to write output: %w (%s written)", err, humanize.Bytes(cw.n))
		}
		slog.Debug("finished writing", "size", humanize.Bytes(cw.n))
		return nil
	}

	f, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	cw := &countingWriter{w: f}
	err = encode(cw)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w (%s written)", err, humanize.Bytes(cw.n))
	}
	if err := os.Rename(f.Name(), output); err != nil {
		return err
	}
	slog.Debug("finished writing", "filename", output, "size", humanize.Bytes(cw.n))
	return nil
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

var errGracefulShutdown = errors.New("received shutdown signal")

// contextHandler tags records with the http request they were logged for.
// Requests that passed requireAdmin are also tagged with the editor.
type contextHandler struct {
	slog.Handler
}

var (
	correlationID = contextKey("correlation_id")
	editorKey     = contextKey("editor")
)

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(correlationID).(uuid.UUID); ok {
		r.AddAttrs(slog.String(string(correlationID), id.String()))
	}
	if email, ok := ctx.Value(editorKey).(string); ok && email != "" {
		r.AddAttrs(slog.String(string(editorKey), email))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{h.Handler.WithGroup(name)}
}

type contextKey string

func env(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v, err := strconv.Atoi(env(name, ""))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	v, err := strconv.ParseBool(env(name, ""))
	if err != nil {
		return fallback
	}
	return v
}

// parseGrid parses "25x14" as 25 columns and 14 rows.
func parseGrid(s string) (hexmap.Grid, error) {
	cs, rs, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !found {
		return hexmap.Grid{}, fmt.Errorf("invalid grid %q: expected columns x rows such as \"25x14\"", s)
	}
	cols, err := strconv.Atoi(strings.TrimSpace(cs))
	if err != nil || cols < 1 {
		return hexmap.Grid{}, fmt.Errorf("invalid grid %q: bad column count", s)
	}
	rows, err := strconv.Atoi(strings.TrimSpace(rs))
	if err != nil || rows < 1 {
		return hexmap.Grid{}, fmt.Errorf("invalid grid %q: bad row count", s)
	}
	return hexmap.Grid{Cols: cols, Rows: rows}, nil
}

func formatGrid(g hexmap.Grid) string {
	return fmt.Sprintf("%dx%d", g.Cols, g.Rows)
}

// storeKind hides credentials in a database url.
func storeKind(dsn string) string {
	kind, _, _ := strings.Cut(dsn, ":")
	return kind
}
