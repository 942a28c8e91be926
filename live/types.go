package live

import (
	"bytes"
	"fmt"
)

// MessageType names the kind of a text message.
type MessageType uint8

// Messages sent by viewers.
const (
	Resize MessageType = iota + 1
	PointerDown
	PointerMove
	PointerUp
	PointerLeave
	Click
	SetMode
	ToggleGlow
	ToggleBulk
	SubmitTile
	BulkLord
	BulkColor
	BulkClear
	BulkClose
	ClearEffects
	SignIn
	SignOut
)

// Messages sent by the server.
const (
	Edit MessageType = iota + 64
	Tooltip
	TooltipHide
	Selection
	Notice
	Auth
	ModeChanged
)

var messageTypes = map[MessageType]string{
	Resize:       "resize",
	PointerDown:  "pointer_down",
	PointerMove:  "pointer_move",
	PointerUp:    "pointer_up",
	PointerLeave: "pointer_leave",
	Click:        "click",
	SetMode:      "mode",
	ToggleGlow:   "toggle_glow",
	ToggleBulk:   "toggle_bulk",
	SubmitTile:   "submit_tile",
	BulkLord:     "bulk_lord",
	BulkColor:    "bulk_color",
	BulkClear:    "bulk_clear",
	BulkClose:    "bulk_close",
	ClearEffects: "clear_effects",
	SignIn:       "sign_in",
	SignOut:      "sign_out",

	Edit:        "edit",
	Tooltip:     "tooltip",
	TooltipHide: "tooltip_hide",
	Selection:   "selection",
	Notice:      "notice",
	Auth:        "auth",
	ModeChanged: "mode_changed",
}

func (mt MessageType) String() string {
	if s, ok := messageTypes[mt]; ok {
		return s
	}
	return fmt.Sprintf("invalid_type(%d)", mt)
}

func (mt MessageType) MarshalJSON() ([]byte, error) { return []byte("\"" + mt.String() + "\""), nil }

func (mt *MessageType) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, "\"")
	for t, s := range messageTypes {
		if bytes.Equal(data, []byte(s)) {
			*mt = t
			return nil
		}
	}
	return fmt.Errorf("messageType.UnmarshalJSON: invalid value '%s' for messageType", data)
}
