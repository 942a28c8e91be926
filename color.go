package hexboard

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/mazznoer/csscolorparser"
)

// IsTransparent reports whether s is one of the spellings of "no fill".
// Older tiles were saved with "rgba(0,0,0,0)".
func IsTransparent(s string) bool {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch s {
	case Transparent, "rgba(0,0,0,0)", "rgba(0,0,0,0.0)", "#0000", "#00000000":
		return true
	}
	return false
}

// ParseColor parses any CSS color an editor can type into a browser color field:
// named colors, hex forms, rgb(), hsl() and hwb() in comma or space syntax.
func ParseColor(s string) (color.NRGBA, error) {
	if IsTransparent(s) {
		return color.NRGBA{}, nil
	}
	c, err := csscolorparser.Parse(strings.TrimSpace(s))
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("hexboard.ParseColor: %q: %w", s, err)
	}
	r, g, b, a := c.RGBA255()
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}

// MustParseColor is like ParseColor but panics on error.
// It is meant for constant colors in package variables.
func MustParseColor(s string) color.NRGBA {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}
