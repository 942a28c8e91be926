package live

import (
	"github.com/Travis-Britz/hexboard"
	"github.com/Travis-Britz/hexboard/board"
)

// Message is a text message in either direction.
// Which fields are set depends on Type.
type Message struct {
	Type MessageType `json:"type"`

	// pointer position for pointer and click messages
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	Mode *board.Mode     `json:"mode,omitempty"`
	Kind *board.EditKind `json:"kind,omitempty"`
	Tile *hexboard.Tile  `json:"tile,omitempty"`

	Lord  string `json:"lord,omitempty"`
	Color string `json:"color,omitempty"`

	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`

	Edit     *board.EditRequest `json:"edit,omitempty"`
	Tooltip  *board.Tooltip     `json:"tooltip,omitempty"`
	Keys     []hexboard.Key     `json:"keys,omitempty"`
	Text     string             `json:"text,omitempty"`
	SignedIn *bool              `json:"signedIn,omitempty"`
	Token    string             `json:"token,omitempty"`
}

// Frame is a rendered board image in PNG format.
type Frame struct {
	PNG []byte
}

// TooltipHidden is received when the tooltip should be hidden.
type TooltipHidden struct{}

// SelectionMade is received when a bulk drag selection ends.
type SelectionMade struct {
	Keys []hexboard.Key
}

// NoticeShown is a short message for the viewer.
type NoticeShown struct {
	Text string
}

// AuthChanged is received when the connection signs in or out.
type AuthChanged struct {
	SignedIn bool
	Email    string
	Token    string
}

// message converts m to the typed value handed to client handlers.
func (m Message) message() any {
	switch m.Type {
	case Edit:
		if m.Edit != nil {
			return *m.Edit
		}
	case Tooltip:
		if m.Tooltip != nil {
			return *m.Tooltip
		}
	case TooltipHide:
		return TooltipHidden{}
	case Selection:
		return SelectionMade{Keys: m.Keys}
	case Notice:
		return NoticeShown{Text: m.Text}
	case Auth:
		return AuthChanged{SignedIn: m.SignedIn != nil && *m.SignedIn, Email: m.Email, Token: m.Token}
	case ModeChanged:
		if m.Mode != nil {
			return *m.Mode
		}
	}
	return nil
}

// Helpers for building viewer messages.

func ResizeMessage(width, height int) Message {
	return Message{Type: Resize, Width: width, Height: height}
}

func PointerMessage(t MessageType, x, y float64) Message {
	return Message{Type: t, X: x, Y: y}
}

func ModeMessage(m board.Mode) Message {
	return Message{Type: SetMode, Mode: &m}
}

func SubmitMessage(kind board.EditKind, t hexboard.Tile) Message {
	return Message{Type: SubmitTile, Kind: &kind, Tile: &t}
}

func SignInMessage(email, password string) Message {
	return Message{Type: SignIn, Email: email, Password: password}
}
