// Package tilestore keeps the tiles of a board in memory
// and mirrors every change to a document store.
//
// The in-memory copy is what boards render from.
// Writes update it immediately and are persisted in the background,
// one at a time and in the order they were made.
// A failed write leaves the local change in place and is reported to the caller.
package tilestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Travis-Britz/hexboard"
	"github.com/Travis-Britz/hexboard/docstore"
	"github.com/Travis-Britz/hexboard/hexmap"
)

// writeTimeout bounds a single document write.
// Writes are not tied to the caller's context, so a closed viewer never aborts one.
const writeTimeout = 15 * time.Second

type write struct {
	tile hexboard.Tile
	data []byte
	done func(error)
}

// Store is the tile cache of a board.
// It is safe for concurrent use.
type Store struct {
	docs       docstore.Store
	collection string

	mu       sync.Mutex
	idle     *sync.Cond // signalled when inflight drops to zero
	tiles    map[hexboard.Key]hexboard.Tile
	pending  map[hexboard.Key]int // writes not yet persisted, per key
	inflight int
	queue    []write
	wake     chan struct{}

	listenMu  sync.Mutex
	nextID    int
	watchers  map[int]func()
	errorSubs map[int]func(hexboard.Tile, error)
}

// New returns an empty store backed by the tile collection of docs.
// Call Load to fill it and Run to persist writes.
func New(docs docstore.Store) *Store {
	s := &Store{
		docs:       docs,
		collection: hexboard.TileCollection,
		tiles:      make(map[hexboard.Key]hexboard.Tile),
		pending:    make(map[hexboard.Key]int),
		wake:       make(chan struct{}, 1),
		watchers:   make(map[int]func()),
		errorSubs:  make(map[int]func(hexboard.Tile, error)),
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Load replaces the cache with every tile document in the store.
// Documents that cannot be decoded are skipped.
// Tiles with writes still in flight keep their local value.
func (s *Store) Load(ctx context.Context) error {
	docs, err := s.docs.GetAll(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("tilestore.Load: %w", err)
	}
	tiles := make(map[hexboard.Key]hexboard.Tile, len(docs))
	for _, doc := range docs {
		t, err := hexboard.DecodeTile(doc.ID, doc.Data)
		if err != nil {
			slog.Warn("skipping unreadable tile document", "id", doc.ID, "error", err)
			continue
		}
		tiles[t.Key()] = t
	}

	s.mu.Lock()
	for key := range s.pending {
		if t, ok := s.tiles[key]; ok {
			tiles[key] = t
		}
	}
	s.tiles = tiles
	s.mu.Unlock()

	slog.Debug("loaded tiles", "count", len(tiles))
	s.notify()
	return nil
}

// Get returns the cached tile for key.
func (s *Store) Get(key hexboard.Key) (hexboard.Tile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tiles[key]
	return t, ok
}

// Lookup returns the tile at h, or a default tile if there is none.
func (s *Store) Lookup(h hexmap.Hex) hexboard.Tile {
	if t, ok := s.Get(hexboard.MakeKey(h.Q, h.R)); ok {
		return t
	}
	return hexboard.NewTile(h.Q, h.R)
}

// Tiles returns a copy of every cached tile ordered by row and then column.
func (s *Store) Tiles() []hexboard.Tile {
	s.mu.Lock()
	tiles := make([]hexboard.Tile, 0, len(s.tiles))
	for _, t := range s.tiles {
		tiles = append(tiles, t)
	}
	s.mu.Unlock()
	slices.SortFunc(tiles, func(a, b hexboard.Tile) int {
		if a.R != b.R {
			return a.R - b.R
		}
		return a.Q - b.Q
	})
	return tiles
}

// Len returns the number of cached tiles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tiles)
}

// AnyGlowing reports whether any cached tile has its glow effect on.
func (s *Store) AnyGlowing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tiles {
		if t.Effect {
			return true
		}
	}
	return false
}

// Put stores t in the cache and queues it to be written.
// done, if not nil, is called from the writer goroutine with the result of the write.
// The normalized tile is returned.
func (s *Store) Put(t hexboard.Tile, done func(error)) hexboard.Tile {
	t = t.Normalize()
	data, err := t.Encode()
	if err != nil {
		if done != nil {
			done(err)
		}
		return t
	}
	key := t.Key()

	s.mu.Lock()
	s.tiles[key] = t
	s.pending[key]++
	s.inflight++
	s.queue = append(s.queue, write{tile: t, data: data, done: done})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.notify()
	return t
}

// Clear overwrites the tile at key with defaults.
// The document is kept so that every client sees the cleared tile.
func (s *Store) Clear(key hexboard.Key, done func(error)) error {
	q, r, err := key.Coordinates()
	if err != nil {
		return fmt.Errorf("tilestore.Clear: %w", err)
	}
	s.Put(hexboard.NewTile(q, r), done)
	return nil
}

// Run writes queued tiles until ctx is cancelled.
// Writes queued before cancellation are still attempted before Run returns.
func (s *Store) Run(ctx context.Context) error {
	for {
		select {
		case <-s.wake:
			s.drain()
		case <-ctx.Done():
			s.drain()
			return ctx.Err()
		}
	}
}

func (s *Store) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		w := s.queue[0]
		s.queue[0] = write{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.persist(w)
	}
}

func (s *Store) persist(w write) {
	key := w.tile.Key()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	err := s.docs.Set(ctx, s.collection, string(key), w.data)
	cancel()

	s.mu.Lock()
	if s.pending[key]--; s.pending[key] <= 0 {
		delete(s.pending, key)
	}
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()

	if err != nil {
		slog.Error("tile write failed; keeping local change", "key", key, "error", err)
		s.listenMu.Lock()
		subs := make([]func(hexboard.Tile, error), 0, len(s.errorSubs))
		for _, fn := range s.errorSubs {
			subs = append(subs, fn)
		}
		s.listenMu.Unlock()
		for _, fn := range subs {
			fn(w.tile, err)
		}
	}
	if w.done != nil {
		w.done(err)
	}
}

// Flush blocks until every queued write has been attempted.
// It never returns if Run is not running.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
}

// Watch calls fn after every change to the cache.
// fn is called from whichever goroutine made the change and must not block.
func (s *Store) Watch(fn func()) (cancel func()) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	return func() {
		s.listenMu.Lock()
		defer s.listenMu.Unlock()
		delete(s.watchers, id)
	}
}

// OnWriteError calls fn for every write that fails.
func (s *Store) OnWriteError(fn func(hexboard.Tile, error)) (cancel func()) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	id := s.nextID
	s.nextID++
	s.errorSubs[id] = fn
	return func() {
		s.listenMu.Lock()
		defer s.listenMu.Unlock()
		delete(s.errorSubs, id)
	}
}

func (s *Store) notify() {
	s.listenMu.Lock()
	fns := make([]func(), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.listenMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Follow merges changes made to the tile collection by other writers
// until ctx is cancelled.
// Changes to tiles with local writes in flight are ignored;
// the local value wins and is written over them.
func (s *Store) Follow(ctx context.Context) error {
	cancel := s.docs.Subscribe(s.collection, s.apply)
	defer cancel()
	<-ctx.Done()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (s *Store) apply(c docstore.Change) {
	var changed bool
	switch c.Kind {
	case docstore.Updated:
		t, err := hexboard.DecodeTile(c.ID, c.Data)
		if err != nil {
			slog.Warn("ignoring unreadable tile change", "id", c.ID, "error", err)
			return
		}
		key := t.Key()
		s.mu.Lock()
		if s.pending[key] == 0 {
			old, ok := s.tiles[key]
			if !ok || !sameTile(old, t) {
				s.tiles[key] = t
				changed = true
			}
		}
		s.mu.Unlock()
	case docstore.Deleted:
		key := hexboard.Key(c.ID)
		s.mu.Lock()
		if _, ok := s.tiles[key]; ok && s.pending[key] == 0 {
			delete(s.tiles, key)
			changed = true
		}
		s.mu.Unlock()
	}
	if changed {
		s.notify()
	}
}

func sameTile(a, b hexboard.Tile) bool {
	ac, bc := a.Capital, b.Capital
	a.Capital, b.Capital = nil, nil
	if a != b {
		return false
	}
	if ac == nil || bc == nil {
		return ac == bc
	}
	return *ac == *bc
}
