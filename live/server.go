// Package live connects viewers to boards over websockets.
//
// Each connection gets its own board, drawn on the server.
// The viewer sends pointer and form messages as JSON text;
// the server answers with PNG frames as binary messages
// and with JSON text messages for everything else.
package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Travis-Britz/hexboard"
	"github.com/Travis-Britz/hexboard/board"
	"github.com/Travis-Britz/hexboard/canvas"
	"github.com/Travis-Britz/hexboard/hexmap"
	"github.com/Travis-Britz/hexboard/identity"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SessionCookie holds the token of a signed in viewer.
const SessionCookie = "hexboard_session"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// maxMessageSize bounds viewer messages; submitted tiles are the largest.
	maxMessageSize = 64 << 10

	defaultWidth  = 1000
	defaultHeight = 800
	maxDimension  = 4096
)

// Server is an http.Handler that runs a board for every websocket connection.
type Server struct {
	Tiles    board.TileStore
	Identity *identity.Provider
	Grid     hexmap.Grid
	FPS      int
	Borders  bool

	upgrader      websocket.Upgrader
	messageLogger messageLogger

	mu         sync.Mutex
	background image.Image
	boards     map[string]*board.Board
}

func NewServer(tiles board.TileStore, ids *identity.Provider) *Server {
	return &Server{
		Tiles:         tiles,
		Identity:      ids,
		messageLogger: noopMessageLogger{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 64 << 10,
		},
		boards: make(map[string]*board.Board),
	}
}

// SetMessageLogger sets a logger for every text message sent and received.
// Frames are not logged.
func (s *Server) SetMessageLogger(l messageLogger) {
	s.messageLogger = l
}

// SetBackground changes the backdrop of every open board and of boards opened later.
func (s *Server) SetBackground(img image.Image) {
	s.mu.Lock()
	s.background = img
	boards := make([]*board.Board, 0, len(s.boards))
	for _, b := range s.boards {
		boards = append(boards, b)
	}
	s.mu.Unlock()
	for _, b := range boards {
		b.SetBackground(img)
	}
}

// Connections returns the number of open viewer connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.boards)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := &session{
		id:     uuid.NewString(),
		conn:   conn,
		server: s,
		out:    make(chan Message, 64),
		frames: make(chan struct{}, 1),
		auth:   s.Identity.NewSession(),
	}
	defer sess.auth.Close()
	width, height := dimension(r, "width", defaultWidth), dimension(r, "height", defaultHeight)
	sess.canvas = canvas.NewImage(width, height)

	s.mu.Lock()
	background := s.background
	s.mu.Unlock()
	sess.board = board.New(board.Config{
		Tiles:      s.Tiles,
		Canvas:     sess.canvas,
		Presenter:  (*presenter)(sess),
		Scheduler:  board.NewTimerScheduler(s.FPS),
		Grid:       s.Grid,
		Background: background,
		Borders:    s.Borders,
	})

	s.mu.Lock()
	s.boards[sess.id] = sess.board
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.boards, sess.id)
		s.mu.Unlock()
	}()

	slog.Info("viewer connected", "session", sess.id, "remote", r.RemoteAddr, "width", width, "height", height)
	defer slog.Info("viewer disconnected", "session", sess.id)

	if c, err := r.Cookie(SessionCookie); err == nil {
		if err := sess.auth.Resume(c.Value); err != nil {
			slog.Debug("ignoring session cookie", "session", sess.id, "error", err)
		}
	}
	stopAuth := sess.auth.OnAuthChange(sess.authChanged)
	defer stopAuth()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		if err := sess.board.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("board stopped", "session", sess.id, "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		// closing unblocks the reader once nothing more will be written
		defer conn.Close()
		sess.write(ctx)
	}()

	sess.read(ctx)
	cancel()
	wg.Wait()
}

// dimension reads a positive integer query parameter.
func dimension(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return min(v, maxDimension)
}

// session is one viewer connection.
type session struct {
	id     string
	conn   *websocket.Conn
	server *Server
	board  *board.Board
	canvas *canvas.Image
	auth   *identity.Session

	out chan Message

	// the latest frame; older frames are dropped when the viewer is slow
	frameMu sync.Mutex
	frame   []byte
	frames  chan struct{}
}

func (s *session) authChanged(signedIn bool) {
	s.board.SetSignedIn(signedIn)
	m := Message{Type: Auth, SignedIn: &signedIn}
	if signedIn {
		m.Email = s.auth.Email()
		m.Token = s.auth.Token()
	}
	s.send(m)
}

// send queues a text message without blocking.
func (s *session) send(m Message) {
	select {
	case s.out <- m:
	default:
		slog.Warn("dropping message for slow viewer", "session", s.id, "type", m.Type)
	}
}

func (s *session) setFrame(png []byte) {
	s.frameMu.Lock()
	s.frame = png
	s.frameMu.Unlock()
	select {
	case s.frames <- struct{}{}:
	default:
	}
}

func (s *session) takeFrame() []byte {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	png := s.frame
	s.frame = nil
	return png
}

// write is the only goroutine that writes to the connection.
func (s *session) write(ctx context.Context) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	logger := s.server.messageLogger
	for {
		var err error
		select {
		case <-ctx.Done():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case m := <-s.out:
			var b []byte
			b, err = json.Marshal(m)
			if err != nil {
				slog.Error("error marshaling message to JSON", "error", err, "type", m.Type)
				continue
			}
			logger.Sent(b)
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = s.conn.WriteMessage(websocket.TextMessage, b)
		case <-s.frames:
			png := s.takeFrame()
			if png == nil {
				continue
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = s.conn.WriteMessage(websocket.BinaryMessage, png)
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = s.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			slog.Debug("write failed", "session", s.id, "error", err)
			return
		}
	}
}

func (s *session) read(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	logger := s.server.messageLogger
	for ctx.Err() == nil {
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("read failed", "session", s.id, "error", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		logger.Received(b)
		var m Message
		if err := json.Unmarshal(b, &m); err != nil {
			slog.Error("decoding JSON failed", "error", err, "raw", string(b))
			continue
		}
		if err := s.handle(m); err != nil {
			if errors.Is(err, board.ErrClosed) {
				return
			}
			slog.Warn("bad viewer message", "session", s.id, "type", m.Type, "error", err)
		}
	}
}

func (s *session) handle(m Message) error {
	b := s.board
	switch m.Type {
	case Resize:
		return b.Resize(min(m.Width, maxDimension), min(m.Height, maxDimension))
	case PointerDown:
		return b.Down(m.X, m.Y)
	case PointerMove:
		return b.Move(m.X, m.Y)
	case PointerUp:
		return b.Up(m.X, m.Y)
	case PointerLeave:
		return b.Leave()
	case Click:
		return b.Click(m.X, m.Y)
	case SetMode:
		if m.Mode == nil {
			return errors.New("missing mode")
		}
		return b.SetMode(*m.Mode)
	case ToggleGlow:
		return b.ToggleGlowMode()
	case ToggleBulk:
		return b.ToggleBulkMode()
	case SubmitTile:
		if m.Tile == nil {
			return errors.New("missing tile")
		}
		kind := board.EditAttributes
		if m.Kind != nil {
			kind = *m.Kind
		}
		return b.SubmitTile(kind, *m.Tile)
	case BulkLord:
		return b.BulkAssignLord(m.Lord)
	case BulkColor:
		return b.BulkColor(m.Color)
	case BulkClear:
		return b.BulkClear()
	case BulkClose:
		return b.CloseBulk()
	case ClearEffects:
		return b.ClearAllEffects()
	case SignIn:
		if err := s.auth.SignIn(m.Email, m.Password); err != nil {
			s.send(Message{Type: Notice, Text: "Login error: " + err.Error()})
		}
		return nil
	case SignOut:
		if s.auth.SignedIn() {
			s.auth.SignOut()
			s.send(Message{Type: Notice, Text: "Logged out."})
		}
		return nil
	default:
		return fmt.Errorf("unexpected message type %v", m.Type)
	}
}

// presenter shows a board to the session's viewer.
// Its methods run on the board goroutine.
type presenter session

func (p *presenter) FrameRendered() {
	var buf bytes.Buffer
	if err := p.canvas.EncodePNG(&buf); err != nil {
		slog.Error("encoding frame", "session", p.id, "error", err)
		return
	}
	(*session)(p).setFrame(buf.Bytes())
}

func (p *presenter) EditTile(r board.EditRequest) {
	(*session)(p).send(Message{Type: Edit, Edit: &r})
}

func (p *presenter) ShowTooltip(t board.Tooltip) {
	(*session)(p).send(Message{Type: Tooltip, Tooltip: &t})
}

func (p *presenter) HideTooltip() {
	(*session)(p).send(Message{Type: TooltipHide})
}

func (p *presenter) BulkSelected(keys []hexboard.Key) {
	(*session)(p).send(Message{Type: Selection, Keys: keys})
}

func (p *presenter) ModeChanged(m board.Mode) {
	(*session)(p).send(Message{Type: ModeChanged, Mode: &m})
}

func (p *presenter) Notify(text string) {
	(*session)(p).send(Message{Type: Notice, Text: text})
}
