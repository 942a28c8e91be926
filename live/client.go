package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Travis-Britz/hexboard/board"
	"github.com/gorilla/websocket"
)

// Client is a viewer connection to a Server.
// Add handlers before calling Run.
type Client struct {
	URL string

	// Header is sent with the websocket handshake, for example to carry a session cookie.
	Header http.Header

	messageLogger  messageLogger
	connectHandler func()

	mu   sync.Mutex // guards conn writes
	conn *websocket.Conn
	err  chan error

	frameHandlers     []func(Frame)
	editHandlers      []func(board.EditRequest)
	tooltipHandlers   []func(board.Tooltip)
	hideHandlers      []func(TooltipHidden)
	selectionHandlers []func(SelectionMade)
	noticeHandlers    []func(NoticeShown)
	authHandlers      []func(AuthChanged)
	modeHandlers      []func(board.Mode)
}

func NewClient(url string) *Client {
	return &Client{
		URL:           url,
		messageLogger: noopMessageLogger{},
	}
}

// SetMessageLogger sets a logger to track all sent and received text messages.
// Given byte slices MUST NOT be modified in any way.
func (c *Client) SetMessageLogger(l messageLogger) {
	c.messageLogger = l
}

// SetConnectHandler sets a function h to be called upon connect success.
func (c *Client) SetConnectHandler(h func()) {
	c.connectHandler = h
}

// AddHandler registers h for the messages of its argument type.
// It panics for unsupported handler types.
func (c *Client) AddHandler(h any) {
	switch v := h.(type) {
	case func(Frame):
		c.frameHandlers = append(c.frameHandlers, v)
	case func(board.EditRequest):
		c.editHandlers = append(c.editHandlers, v)
	case func(board.Tooltip):
		c.tooltipHandlers = append(c.tooltipHandlers, v)
	case func(TooltipHidden):
		c.hideHandlers = append(c.hideHandlers, v)
	case func(SelectionMade):
		c.selectionHandlers = append(c.selectionHandlers, v)
	case func(NoticeShown):
		c.noticeHandlers = append(c.noticeHandlers, v)
	case func(AuthChanged):
		c.authHandlers = append(c.authHandlers, v)
	case func(board.Mode):
		c.modeHandlers = append(c.modeHandlers, v)
	default:
		panic(fmt.Sprintf("AddHandler: invalid type '%T'", h))
	}
}

// Run connects and runs the client,
// blocking until ctx is cancelled or a connection error occurs.
//
// The returned error will be nil if the given context was cancelled or the deadline exceeded.
// Use [WithRetry] to reconnect on error.
func (c *Client) Run(ctx context.Context) error {
	ctx, shutdown := context.WithCancel(ctx)
	defer shutdown()
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	slog.Debug("dialing board", "url", c.URL)
	conn, _, err := dialer.DialContext(ctx, c.URL, c.Header)
	if err != nil {
		return fmt.Errorf("live.Client.Run: unable to connect: %w", err)
	}
	defer conn.Close()
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.err = make(chan error, 1)
	if c.connectHandler != nil {
		c.connectHandler()
	}

	go c.read(conn)

	select {
	case <-ctx.Done():
		err = ctx.Err()
		c.mu.Lock()
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.mu.Unlock()
	case err = <-c.err:
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Send writes a message to the server.
func (c *Client) Send(m Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("live.Client.Send: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("live.Client.Send: not connected")
	}
	c.messageLogger.Sent(b)
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		c.exit(fmt.Errorf("write error: %w", err))
		return fmt.Errorf("live.Client.Send: %w", err)
	}
	return nil
}

func (c *Client) read(conn *websocket.Conn) {
	for {
		kind, b, err := conn.ReadMessage()
		if err != nil {
			c.exit(fmt.Errorf("read: %w", err))
			return
		}
		if kind == websocket.BinaryMessage {
			for _, h := range c.frameHandlers {
				h(Frame{PNG: b})
			}
			continue
		}
		c.messageLogger.Received(b)
		var m Message
		if err := json.Unmarshal(b, &m); err != nil {
			slog.Error("decoding JSON failed", "error", err, "raw", string(b))
			continue
		}
		c.handle(m)
	}
}

func (c *Client) handle(m Message) {
	switch v := m.message().(type) {
	case board.EditRequest:
		for _, h := range c.editHandlers {
			h(v)
		}
	case board.Tooltip:
		for _, h := range c.tooltipHandlers {
			h(v)
		}
	case TooltipHidden:
		for _, h := range c.hideHandlers {
			h(v)
		}
	case SelectionMade:
		for _, h := range c.selectionHandlers {
			h(v)
		}
	case NoticeShown:
		for _, h := range c.noticeHandlers {
			h(v)
		}
	case AuthChanged:
		for _, h := range c.authHandlers {
			h(v)
		}
	case board.Mode:
		for _, h := range c.modeHandlers {
			h(v)
		}
	}
}

// exit signals the client to stop with err.
func (c *Client) exit(err error) {
	select {
	case c.err <- err:
	default:
	}
}

type messageLogger interface {
	Sent([]byte)
	Received([]byte)
}

// noopMessageLogger performs no op.
type noopMessageLogger struct{}

func (noopMessageLogger) Sent([]byte)     {}
func (noopMessageLogger) Received([]byte) {}

// MessageLogger writes every text message to R or S.
// R and S can be the same writer.
// Writers cannot be nil; use io.Discard instead.
type MessageLogger struct {
	R  io.Writer // Writer for received messages
	S  io.Writer // Writer for sent messages
	mu sync.Mutex

	SentPrefix     string
	ReceivedPrefix string
}

func (l *MessageLogger) Sent(b []byte) {
	l.mu.Lock()
	fmt.Fprintln(l.S, l.SentPrefix+string(b))
	l.mu.Unlock()
}
func (l *MessageLogger) Received(b []byte) {
	l.mu.Lock()
	fmt.Fprintln(l.R, l.ReceivedPrefix+string(b))
	l.mu.Unlock()
}
