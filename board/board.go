// Package board draws the hex map for one viewer and turns the viewer's
// pointer input into tile changes.
//
// A Board is driven by a single goroutine started with Run.
// Every exported method queues work for that goroutine and returns right away,
// so input handlers never wait on drawing or on the document store.
// Results reach the viewer through a Presenter.
package board

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"slices"
	"time"

	"github.com/Travis-Britz/hexboard"
	"github.com/Travis-Britz/hexboard/canvas"
	"github.com/Travis-Britz/hexboard/hexmap"
)

// ErrClosed is returned when the board isn't running anymore.
var ErrClosed = errors.New("board is not running")

// TileStore is the tile cache a board renders from and writes to.
type TileStore interface {
	Tiles() []hexboard.Tile
	Get(hexboard.Key) (hexboard.Tile, bool)
	Lookup(hexmap.Hex) hexboard.Tile
	Put(t hexboard.Tile, done func(error)) hexboard.Tile
	Clear(key hexboard.Key, done func(error)) error
	Watch(fn func()) (cancel func())
	AnyGlowing() bool
}

type Config struct {
	Tiles     TileStore
	Canvas    canvas.Canvas
	Presenter Presenter

	// Scheduler defaults to a TimerScheduler at DefaultFPS.
	Scheduler Scheduler

	// Grid defaults to the size of the world map.
	Grid hexmap.Grid

	Background image.Image
	Borders    bool
}

// Board is the state of the map as seen by one viewer.
type Board struct {
	tiles     TileStore
	canvas    canvas.Canvas
	presenter Presenter
	scheduler Scheduler
	grid      hexmap.Grid

	// fields below are owned by the Run goroutine
	layout         hexmap.Layout
	background     image.Image
	borders        bool
	signedIn       bool
	mode           Mode
	hover          hexboard.Key
	tooltip        bool
	selection      []hexboard.Key
	dragStart      *[2]float64
	dragRect       *Rect
	dirty          bool
	frameRequested bool

	events      chan func()
	changed     chan struct{} // changed holds a pending tile store notification
	frames      chan time.Duration
	unavailable chan struct{} // unavailable is closed when Run returns
}

func New(cfg Config) *Board {
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewTimerScheduler(DefaultFPS)
	}
	if cfg.Grid == (hexmap.Grid{}) {
		cfg.Grid = hexmap.Grid{Cols: hexboard.DefaultGridCols, Rows: hexboard.DefaultGridRows}
	}
	w, h := cfg.Canvas.Size()
	return &Board{
		tiles:       cfg.Tiles,
		canvas:      cfg.Canvas,
		presenter:   cfg.Presenter,
		scheduler:   cfg.Scheduler,
		grid:        cfg.Grid,
		layout:      hexmap.NewLayout(float64(w), float64(h), cfg.Grid),
		background:  cfg.Background,
		borders:     cfg.Borders,
		events:      make(chan func(), 64),
		changed:     make(chan struct{}, 1),
		frames:      make(chan time.Duration, 1),
		unavailable: make(chan struct{}),
	}
}

// Run processes input and draws frames until ctx is cancelled.
// A board can only be run once.
func (b *Board) Run(ctx context.Context) error {
	defer close(b.unavailable)
	stop := b.tiles.Watch(b.tilesChanged)
	defer stop()

	b.dirty = true
	for {
		// draw once a burst of input has been handled
		if b.dirty && len(b.events) == 0 {
			b.render(b.scheduler.Now())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-b.events:
			fn()
		case <-b.changed:
			b.dirty = true
		case ts := <-b.frames:
			b.frameRequested = false
			b.render(ts)
		}
	}
}

// tilesChanged is called by the tile store from any goroutine.
func (b *Board) tilesChanged() {
	select {
	case b.changed <- struct{}{}:
	default:
	}
}

func (b *Board) frameDue(ts time.Duration) {
	select {
	case b.frames <- ts:
	default:
	}
}

func (b *Board) render(ts time.Duration) {
	b.dirty = false
	f := Frame{
		Tiles:      b.tiles.Tiles(),
		Layout:     b.layout,
		Hover:      b.hover,
		Selected:   make(map[hexboard.Key]bool, len(b.selection)),
		Drag:       b.dragRect,
		Background: b.background,
		Time:       ts,
		Borders:    b.borders,
	}
	for _, key := range b.selection {
		f.Selected[key] = true
	}
	glowing := Draw(b.canvas, f)
	b.presenter.FrameRendered()

	// the loop stops by itself once nothing glows
	if glowing && !b.frameRequested {
		b.frameRequested = true
		b.scheduler.RequestFrame(b.frameDue)
	}
}

// do queues fn to run on the board goroutine.
// It returns ErrClosed if the board isn't available.
func (b *Board) do(fn func()) error {
	select {
	case <-b.unavailable:
		return ErrClosed
	default:
	}
	select {
	case b.events <- fn:
		return nil
	case <-b.unavailable:
		return ErrClosed
	}
}

// ask runs fn on the board goroutine and waits for its result.
func ask[T any](b *Board, fn func(*Board) T) (T, error) {
	result := make(chan T, 1) // result must be buffered or the board may block
	err := b.do(func() { result <- fn(b) })
	if err != nil {
		var zero T
		return zero, err
	}
	select {
	case v := <-result:
		return v, nil
	case <-b.unavailable:
		var zero T
		return zero, ErrClosed
	}
}

// State is a snapshot of the viewer state of a board.
type State struct {
	Mode      Mode
	SignedIn  bool
	Hover     hexboard.Key
	Selection []hexboard.Key
	Drag      *Rect
	Layout    hexmap.Layout
}

// State returns the current viewer state.
// Every call queued before it has been handled when it returns.
func (b *Board) State() (State, error) {
	return ask(b, func(b *Board) State {
		s := State{
			Mode:      b.mode,
			SignedIn:  b.signedIn,
			Hover:     b.hover,
			Selection: slices.Clone(b.selection),
			Layout:    b.layout,
		}
		if b.dragRect != nil {
			r := *b.dragRect
			s.Drag = &r
		}
		return s
	})
}

// SetSignedIn changes whether the viewer may edit.
// Signing out returns the board to ModeEdit and drops any selection.
func (b *Board) SetSignedIn(signedIn bool) error {
	return b.do(func() {
		b.signedIn = signedIn
		if !signedIn {
			b.resetBulk()
			b.setMode(ModeEdit)
		}
		b.dirty = true
	})
}

// Resize sets the canvas size and lays the grid out again.
func (b *Board) Resize(width, height int) error {
	return b.do(func() {
		width, height = max(1, width), max(1, height)
		if w, h := b.canvas.Size(); w != width || h != height {
			b.canvas.Resize(width, height)
		}
		b.layout = hexmap.NewLayout(float64(width), float64(height), b.grid)
		b.dirty = true
	})
}

// SetBackground replaces the image drawn beneath the grid.
// A nil image draws a plain backdrop.
func (b *Board) SetBackground(img image.Image) error {
	return b.do(func() {
		b.background = img
		b.dirty = true
	})
}

// SetBorders turns house border overlays on or off.
func (b *Board) SetBorders(on bool) error {
	return b.do(func() {
		b.borders = on
		b.dirty = true
	})
}

// SetMode switches the click mode.
// Modes other than ModeEdit need a signed in viewer.
func (b *Board) SetMode(m Mode) error {
	return b.do(func() {
		if m != ModeEdit && !b.signedIn {
			return
		}
		b.setMode(m)
	})
}

// ToggleGlowMode switches between ModeGlow and ModeEdit.
func (b *Board) ToggleGlowMode() error {
	return b.do(func() {
		if !b.signedIn {
			return
		}
		if b.mode == ModeGlow {
			b.setMode(ModeEdit)
		} else {
			b.setMode(ModeGlow)
		}
	})
}

// ToggleBulkMode switches between ModeBulk and ModeEdit.
func (b *Board) ToggleBulkMode() error {
	return b.do(func() {
		if !b.signedIn {
			return
		}
		if b.mode == ModeBulk {
			b.setMode(ModeEdit)
		} else {
			b.setMode(ModeBulk)
		}
	})
}

func (b *Board) setMode(m Mode) {
	if b.mode == ModeBulk || m == ModeBulk {
		b.resetBulk()
	}
	if b.mode == m {
		return
	}
	slog.Debug("board mode changed", "from", b.mode, "to", m)
	b.mode = m
	b.presenter.ModeChanged(m)
	b.dirty = true
}

func (b *Board) resetBulk() {
	if b.selection != nil || b.dragStart != nil || b.dragRect != nil {
		b.dirty = true
	}
	b.selection = nil
	b.dragStart = nil
	b.dragRect = nil
}

// requireSignIn tells the viewer to sign in if they haven't.
func (b *Board) requireSignIn() bool {
	if !b.signedIn {
		b.presenter.Notify(NoticeSignInRequired)
		return false
	}
	return true
}

// reportWrite returns a completion callback for a tile write
// that tells the viewer about failures.
func (b *Board) reportWrite(key hexboard.Key) func(error) {
	return func(err error) {
		if err == nil {
			return
		}
		// the writer goroutine must not wait on this board
		go b.do(func() {
			slog.Debug("reporting failed write", "key", key, "error", err)
			b.presenter.Notify(NoticeWriteFailed + err.Error())
		})
	}
}

func (b *Board) put(t hexboard.Tile) {
	b.tiles.Put(t, b.reportWrite(t.Key()))
	b.dirty = true
}

func (b *Board) clear(key hexboard.Key) {
	if err := b.tiles.Clear(key, b.reportWrite(key)); err != nil {
		slog.Error("clearing tile", "key", key, "error", err)
	}
	b.dirty = true
}

// Click handles a click at x,y in canvas pixels.
func (b *Board) Click(x, y float64) error {
	return b.do(func() {
		if !b.requireSignIn() {
			return
		}
		h := b.layout.HexAt(x, y)
		key := hexboard.MakeKey(h.Q, h.R)
		tile, exists := b.tiles.Get(key)
		if !exists {
			tile = hexboard.NewTile(h.Q, h.R)
		}

		switch b.mode {
		case ModeClear:
			b.clear(key)
			b.setMode(ModeEdit)
		case ModeGlow:
			tile.Effect = !tile.Effect
			b.put(tile)
		case ModeCapital:
			if tile.Capital == nil {
				tile.Capital = &hexboard.Capital{}
			}
			b.presenter.EditTile(EditRequest{Kind: EditCapital, Tile: tile})
		case ModeBulk:
		default:
			if !exists {
				tile.Title = "Untitled"
			}
			b.presenter.EditTile(EditRequest{Kind: EditAttributes, Tile: tile})
		}
	})
}

// SubmitTile applies the answer to an edit request.
// Only the attributes of kind are taken from t.
func (b *Board) SubmitTile(kind EditKind, t hexboard.Tile) error {
	return b.do(func() {
		if !b.requireSignIn() {
			return
		}
		current := b.tiles.Lookup(hexmap.Hex{Q: t.Q, R: t.R})
		switch kind {
		case EditCapital:
			current.Capital = t.Capital
		default:
			current.Title = t.Title
			current.Info = t.Info
			current.Image = t.Image
			current.Color = t.Color
			current.Label = t.Label
			current.Lord = t.Lord
			current.LordInfo = t.LordInfo
			current.LordVideo = t.LordVideo
			current.Heraldry = t.Heraldry
		}
		b.put(current)
	})
}

// Move handles the pointer moving to x,y.
func (b *Board) Move(x, y float64) error {
	return b.do(func() {
		h := b.layout.HexAt(x, y)
		key := hexboard.MakeKey(h.Q, h.R)
		b.hover = key
		if t, ok := b.tiles.Get(key); ok && t.HasContent() {
			b.presenter.ShowTooltip(newTooltip(t, x, y))
			b.tooltip = true
		} else if b.tooltip {
			b.presenter.HideTooltip()
			b.tooltip = false
		}
		if b.dragStart != nil {
			r := NewRect(b.dragStart[0], b.dragStart[1], x, y)
			b.dragRect = &r
		}
		b.dirty = true
	})
}

// Leave handles the pointer leaving the canvas.
func (b *Board) Leave() error {
	return b.do(func() {
		if b.hover != "" {
			b.hover = ""
			b.dirty = true
		}
		if b.tooltip {
			b.presenter.HideTooltip()
			b.tooltip = false
		}
	})
}

// Down starts a drag selection in bulk mode.
func (b *Board) Down(x, y float64) error {
	return b.do(func() {
		if !b.signedIn || b.mode != ModeBulk {
			return
		}
		b.dragStart = &[2]float64{x, y}
		b.dragRect = nil
		b.dirty = true
	})
}

// Up ends a drag selection and selects every tile whose center lies inside it.
func (b *Board) Up(x, y float64) error {
	return b.do(func() {
		if !b.signedIn || b.mode != ModeBulk || b.dragStart == nil {
			return
		}
		r := NewRect(b.dragStart[0], b.dragStart[1], x, y)
		b.dragRect = &r
		b.dragStart = nil
		b.selection = Select(b.tiles.Tiles(), b.layout, r)
		b.presenter.BulkSelected(slices.Clone(b.selection))
		b.dirty = true
	})
}

// Select returns the keys of tiles whose centers lie inside r.
func Select(tiles []hexboard.Tile, l hexmap.Layout, r Rect) []hexboard.Key {
	keys := []hexboard.Key{}
	for _, t := range tiles {
		x, y := l.Center(hexmap.Hex{Q: t.Q, R: t.R})
		if r.Contains(x, y) {
			keys = append(keys, t.Key())
		}
	}
	return keys
}

// CloseBulk drops the selection without changing any tile.
func (b *Board) CloseBulk() error {
	return b.do(b.resetBulk)
}

// BulkAssignLord gives every selected tile to lord and closes the selection.
// An empty lord does nothing.
func (b *Board) BulkAssignLord(lord string) error {
	return b.do(func() {
		if lord == "" || !b.requireSignIn() {
			return
		}
		b.eachSelected(func(t hexboard.Tile) {
			t.Lord = lord
			b.put(t)
		})
		b.resetBulk()
	})
}

// BulkColor paints every selected tile and closes the selection.
// A color that cannot be parsed is rejected with a notice.
func (b *Board) BulkColor(color string) error {
	return b.do(func() {
		if color == "" || !b.requireSignIn() {
			return
		}
		if _, err := hexboard.ParseColor(color); err != nil {
			b.presenter.Notify(err.Error())
			return
		}
		b.eachSelected(func(t hexboard.Tile) {
			t.Color = color
			b.put(t)
		})
		b.resetBulk()
	})
}

// BulkClear resets every selected tile and closes the selection.
func (b *Board) BulkClear() error {
	return b.do(func() {
		if !b.requireSignIn() {
			return
		}
		b.eachSelected(func(t hexboard.Tile) {
			b.clear(t.Key())
		})
		b.resetBulk()
	})
}

func (b *Board) eachSelected(fn func(hexboard.Tile)) {
	for _, key := range b.selection {
		q, r, err := key.Coordinates()
		if err != nil {
			continue
		}
		fn(b.tiles.Lookup(hexmap.Hex{Q: q, R: r}))
	}
}

// ClearAllEffects turns off the glow of every tile.
func (b *Board) ClearAllEffects() error {
	return b.do(func() {
		if !b.requireSignIn() || !b.tiles.AnyGlowing() {
			return
		}
		for _, t := range b.tiles.Tiles() {
			if t.Effect {
				t.Effect = false
				b.put(t)
			}
		}
	})
}
