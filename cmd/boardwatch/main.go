// Boardwatch connects to a hexboard server and keeps the latest frame of the board in a file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/Travis-Britz/hexboard/board"
	"github.com/Travis-Britz/hexboard/live"
)

var config = struct {
	URL        string
	Output     string
	Token      string
	Email      string
	Password   string
	Width      int
	Height     int
	VerboseLog bool
}{
	URL:    "ws://localhost:8080/ws",
	Output: "board.png",
	Width:  1000,
	Height: 800,
}

func main() {
	flag.StringVar(&config.URL, "url", config.URL, "Websocket url of the board.")
	flag.StringVar(&config.Output, "o", config.Output, "File that receives the latest frame.")
	flag.StringVar(&config.Token, "token", config.Token, "Session token to resume, as returned by /api/login.")
	flag.StringVar(&config.Email, "email", config.Email, "Sign in with this email after connecting.")
	flag.StringVar(&config.Password, "password", config.Password, "Password for -email.")
	flag.IntVar(&config.Width, "width", config.Width, "Width of the frames.")
	flag.IntVar(&config.Height, "height", config.Height, "Height of the frames.")
	flag.BoolVar(&config.VerboseLog, "v", config.VerboseLog, "Print every text message sent and received.")
	flag.Parse()

	var logLevel = slog.LevelInfo
	if config.VerboseLog {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, shutdown := context.WithCancel(context.Background())
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt)
		<-stop
		slog.Debug("received interrupt")
		shutdown()
	}()

	if err := run(ctx); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	u, err := boardURL(config.URL, config.Width, config.Height)
	if err != nil {
		return err
	}
	client := live.NewClient(u)
	if config.Token != "" {
		client.Header = http.Header{}
		client.Header.Add("Cookie", (&http.Cookie{Name: live.SessionCookie, Value: config.Token}).String())
	}
	if config.VerboseLog {
		client.SetMessageLogger(&live.MessageLogger{
			R:              os.Stderr,
			S:              os.Stderr,
			SentPrefix:     "-> ",
			ReceivedPrefix: "<- ",
		})
	}
	client.SetConnectHandler(func() {
		slog.Info("connected", "url", u)
		if config.Email != "" {
			if err := client.Send(live.SignInMessage(config.Email, config.Password)); err != nil {
				slog.Error("sign in", "error", err)
			}
		}
	})

	var frames int
	client.AddHandler(func(f live.Frame) {
		if err := writeFrame(config.Output, f.PNG); err != nil {
			slog.Error("writing frame", "error", err)
			return
		}
		frames++
		slog.Debug("frame written", "frame", frames, "bytes", len(f.PNG))
	})
	client.AddHandler(func(n live.NoticeShown) {
		slog.Info("notice", "text", n.Text)
	})
	client.AddHandler(func(a live.AuthChanged) {
		slog.Info("auth changed", "signed_in", a.SignedIn, "email", a.Email)
	})
	client.AddHandler(func(m board.Mode) {
		slog.Info("mode changed", "mode", m)
	})

	return live.WithRetry(ctx, client)
}

// boardURL adds the frame size to the query of raw.
func boardURL(raw string, width, height int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", errors.New("url scheme must be ws or wss")
	}
	q := u.Query()
	q.Set("width", strconv.Itoa(width))
	q.Set("height", strconv.Itoa(height))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// writeFrame replaces the file at path with png.
// Readers never see a partially written frame.
func writeFrame(path string, png []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".frame-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(png); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
