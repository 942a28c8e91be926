// Package hexboard holds the shared types of the hex map board:
// tiles, their coordinate keys, and the colors they are painted with.
package hexboard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a tile by its axial coordinates, formatted as "q,r".
// It is also the document id of the tile in the tile collection.
type Key string

// MakeKey returns the key for the tile at q,r.
func MakeKey(q, r int) Key {
	return Key(strconv.Itoa(q) + "," + strconv.Itoa(r))
}

// Coordinates parses k back into axial coordinates.
func (k Key) Coordinates() (q, r int, err error) {
	qs, rs, found := strings.Cut(string(k), ",")
	if !found {
		return 0, 0, fmt.Errorf("hexboard.Key.Coordinates: missing separator in %q", k)
	}
	q, err = strconv.Atoi(strings.TrimSpace(qs))
	if err != nil {
		return 0, 0, fmt.Errorf("hexboard.Key.Coordinates: q of %q: %w", k, err)
	}
	r, err = strconv.Atoi(strings.TrimSpace(rs))
	if err != nil {
		return 0, 0, fmt.Errorf("hexboard.Key.Coordinates: r of %q: %w", k, err)
	}
	return q, r, nil
}

func (k Key) String() string { return string(k) }

// Tile is the record stored for a single hex on the map.
// Fields that were added over time are optional;
// a zero value for any of them is a valid tile.
type Tile struct {
	Q int `json:"q"`
	R int `json:"r"`

	// Color is a CSS color, or Transparent for no fill.
	Color string `json:"color"`

	// Label is drawn in the center of the hex.
	// When empty the tile key is drawn instead.
	Label string `json:"label,omitempty"`

	Title string `json:"title"`
	Info  string `json:"info"`
	Image string `json:"image"`

	Lord      string `json:"lord"`
	LordInfo  string `json:"lordInfo"`
	LordVideo string `json:"lordVideo"`
	Heraldry  string `json:"heraldry,omitempty"`

	// Effect turns on the pulsing glow.
	Effect bool `json:"effect"`

	Capital *Capital `json:"capital,omitempty"`

	Version int `json:"version,omitempty"`
}

// Capital marks a tile as the seat of a house.
// Stats range from 0 to MaxCapitalStat.
type Capital struct {
	IsCapital   bool `json:"isCapital"`
	Military    int  `json:"military"`
	Economy     int  `json:"economy"`
	Agriculture int  `json:"agriculture"`
}

// NewTile returns an empty tile at q,r.
func NewTile(q, r int) Tile {
	return Tile{
		Q:       q,
		R:       r,
		Color:   Transparent,
		Version: TileSchemaVersion,
	}
}

// Key returns the key of t.
func (t Tile) Key() Key { return MakeKey(t.Q, t.R) }

// DisplayLabel is the text drawn on the hex.
func (t Tile) DisplayLabel() string {
	if t.Label != "" {
		return t.Label
	}
	return string(t.Key())
}

// HasContent reports whether t carries any descriptive content worth a tooltip.
func (t Tile) HasContent() bool {
	return t.Title != "" || t.Info != "" || t.Image != ""
}

// IsCapital reports whether the capital overlay should be drawn.
func (t Tile) IsCapital() bool {
	return t.Capital != nil && t.Capital.IsCapital
}

// IsEmpty reports whether t holds nothing but its coordinates.
func (t Tile) IsEmpty() bool {
	n := t.Normalize()
	if n.Capital != nil && *n.Capital == (Capital{}) {
		n.Capital = nil
	}
	return n == t.Cleared()
}

// Cleared returns the default tile at t's coordinates.
// Clearing overwrites a tile with this value rather than deleting its document.
func (t Tile) Cleared() Tile {
	return NewTile(t.Q, t.R)
}

// Normalize replaces missing or out of range values with safe defaults.
func (t Tile) Normalize() Tile {
	t.Color = strings.TrimSpace(t.Color)
	if t.Color == "" || IsTransparent(t.Color) {
		t.Color = Transparent
	}
	if t.Capital != nil {
		c := *t.Capital
		c.Military = clampStat(c.Military)
		c.Economy = clampStat(c.Economy)
		c.Agriculture = clampStat(c.Agriculture)
		t.Capital = &c
	}
	t.Version = TileSchemaVersion
	return t
}

func clampStat(v int) int {
	return max(0, min(MaxCapitalStat, v))
}

// DecodeTile decodes a tile document.
//
// Fields that are missing or of the wrong type fall back to defaults.
// The document id is used for coordinates when the body lacks them.
// An error is returned only when neither the body nor the id yield coordinates.
func DecodeTile(id string, data []byte) (Tile, error) {
	q, r, keyErr := Key(id).Coordinates()

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		if keyErr != nil {
			return Tile{}, fmt.Errorf("hexboard.DecodeTile: %q: %w", id, err)
		}
		return NewTile(q, r), nil
	}

	t := NewTile(q, r)
	var hasQ, hasR bool
	if v, ok := raw["q"]; ok {
		hasQ = json.Unmarshal(v, &t.Q) == nil
	}
	if v, ok := raw["r"]; ok {
		hasR = json.Unmarshal(v, &t.R) == nil
	}
	if keyErr != nil && (!hasQ || !hasR) {
		return Tile{}, fmt.Errorf("hexboard.DecodeTile: %q: no coordinates", id)
	}
	if keyErr == nil && (!hasQ || !hasR) {
		t.Q, t.R = q, r
	}

	decodeString := func(name string, dst *string) {
		if v, ok := raw[name]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil {
				*dst = s
			}
		}
	}
	decodeString("color", &t.Color)
	decodeString("label", &t.Label)
	decodeString("title", &t.Title)
	decodeString("info", &t.Info)
	decodeString("image", &t.Image)
	decodeString("lord", &t.Lord)
	decodeString("lordInfo", &t.LordInfo)
	decodeString("lordVideo", &t.LordVideo)
	decodeString("heraldry", &t.Heraldry)

	if v, ok := raw["effect"]; ok {
		var b bool
		if json.Unmarshal(v, &b) == nil {
			t.Effect = b
		}
	}
	if v, ok := raw["capital"]; ok {
		var c Capital
		if json.Unmarshal(v, &c) == nil {
			t.Capital = &c
		}
	}
	return t.Normalize(), nil
}

// Encode returns the document body for t.
func (t Tile) Encode() ([]byte, error) {
	b, err := json.Marshal(t.Normalize())
	if err != nil {
		return nil, fmt.Errorf("hexboard.Tile.Encode: %w", err)
	}
	return b, nil
}
