package board

import (
	"encoding/json"
	"fmt"
)

// Mode decides what a click on the board does.
type Mode uint8

const (
	// ModeEdit asks the viewer for the attributes of the clicked tile.
	ModeEdit Mode = iota
	// ModeGlow toggles the glow effect of the clicked tile.
	ModeGlow
	// ModeCapital asks the viewer for the capital stats of the clicked tile.
	ModeCapital
	// ModeBulk selects tiles by dragging a rectangle; clicks do nothing.
	ModeBulk
	// ModeClear resets the next clicked tile and returns to ModeEdit.
	ModeClear
)

var modeNames = map[Mode]string{
	ModeEdit:    "edit",
	ModeGlow:    "glow",
	ModeCapital: "capital",
	ModeBulk:    "bulk",
	ModeClear:   "clear",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("invalid_mode(%d)", m)
}

// ParseMode returns the mode named s.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("board.ParseMode: unknown mode %q", s)
}

func (m Mode) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", m.String())), nil
}

func (m *Mode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// EditKind is the set of attributes an edit request collects.
type EditKind uint8

const (
	EditAttributes EditKind = iota
	EditCapital
)

func (k EditKind) String() string {
	switch k {
	case EditAttributes:
		return "attributes"
	case EditCapital:
		return "capital"
	default:
		return fmt.Sprintf("invalid_edit(%d)", k)
	}
}

func (k EditKind) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", k.String())), nil
}

func (k *EditKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "attributes":
		*k = EditAttributes
	case "capital":
		*k = EditCapital
	default:
		return fmt.Errorf("board.EditKind: unknown kind %q", s)
	}
	return nil
}
