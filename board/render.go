package board

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/Travis-Britz/hexboard"
	"github.com/Travis-Britz/hexboard/canvas"
	"github.com/Travis-Britz/hexboard/hexmap"
)

var (
	hoverStroke    = hexboard.MustParseColor("yellow")
	selectedStroke = hexboard.MustParseColor("#5dff7a")
	neutralStroke  = hexboard.MustParseColor("rgba(0,0,0,0.7)")
	glowColor      = hexboard.MustParseColor("#ffd77a")
	dragStroke     = hexboard.MustParseColor("#22fffd")
	labelColor     = color.Black

	// placeholderFill stands in for a background image that is missing or failed to load.
	placeholderFill = hexboard.MustParseColor("#d9ccab")

	crownFill     = hexboard.MustParseColor("gold")
	crownStroke   = hexboard.MustParseColor("#7a5c00")
	barBackground = hexboard.MustParseColor("rgba(0,0,0,0.5)")
	militaryBar   = hexboard.MustParseColor("#d9534f")
	economyBar    = hexboard.MustParseColor("#f0ad4e")
	farmingBar    = hexboard.MustParseColor("#5cb85c")
	borderStroke  = hexboard.MustParseColor("#3b2a14")
)

const (
	hoverWidth    = 4
	selectedWidth = 6
	neutralWidth  = 2
	labelSize     = 16
	labelDrop     = 5
	borderWidth   = 3
	dragWidth     = 3.5
)

var dragDash = []float64{8, 10}

// glowTick is the time for the glow to go from dimmest to brightest.
const glowTick = 900 * time.Millisecond

// GlowAlpha returns the opacity of glowing tiles at time ts.
// It follows a triangle wave from 0.45 up to 1 and back every two ticks.
func GlowAlpha(ts time.Duration) float64 {
	t := math.Mod(float64(ts)/float64(glowTick), 2)
	if t < 0 {
		t += 2
	}
	phase := t
	if t >= 1 {
		phase = 2 - t
	}
	return 0.45 + 0.55*phase
}

// Rect is a screen space rectangle with X1 <= X2 and Y1 <= Y2.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// NewRect returns the rectangle spanned by two corners in any order.
func NewRect(ax, ay, bx, by float64) Rect {
	return Rect{
		X1: min(ax, bx),
		Y1: min(ay, by),
		X2: max(ax, bx),
		Y2: max(ay, by),
	}
}

// Contains reports whether x,y lies inside r or on its edge.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

// Frame is everything needed to draw the board once.
type Frame struct {
	Tiles      []hexboard.Tile
	Layout     hexmap.Layout
	Hover      hexboard.Key
	Selected   map[hexboard.Key]bool
	Drag       *Rect
	Background image.Image
	Time       time.Duration

	// Borders outlines the realm of every house.
	Borders bool
}

// Draw paints f onto c and reports whether any tile glows.
// When it does, the caller should draw another frame soon to animate the glow.
func Draw(c canvas.Canvas, f Frame) (glowing bool) {
	w, h := c.Size()
	c.Clear()
	if f.Background != nil {
		c.DrawImage(f.Background, 0, 0, float64(w), float64(h))
	} else {
		c.SetFillColor(placeholderFill)
		c.FillRect(0, 0, float64(w), float64(h))
	}

	alpha := GlowAlpha(f.Time)
	for _, t := range f.Tiles {
		key := t.Key()
		drawTile(c, f.Layout, t, key == f.Hover, f.Selected[key], alpha)
		if t.Effect {
			glowing = true
		}
	}

	// overlays go above every tile body
	if f.Borders {
		for _, house := range Houses(f.Tiles) {
			drawBorders(c, f.Layout, house)
		}
	}
	for _, t := range f.Tiles {
		if t.IsCapital() {
			drawCapital(c, f.Layout, t)
		}
	}

	if f.Drag != nil {
		c.Save()
		c.SetStrokeColor(dragStroke)
		c.SetLineWidth(dragWidth)
		c.SetLineDash(dragDash)
		c.StrokeRect(f.Drag.X1, f.Drag.Y1, f.Drag.X2-f.Drag.X1, f.Drag.Y2-f.Drag.Y1)
		c.Restore()
	}
	return glowing
}

func drawTile(c canvas.Canvas, l hexmap.Layout, t hexboard.Tile, hovered, selected bool, alpha float64) {
	h := hexmap.Hex{Q: t.Q, R: t.R}
	x, y := l.Center(h)

	c.Save()
	defer c.Restore()
	if t.Effect {
		c.SetShadow(glowColor, 32+24*alpha)
		c.SetGlobalAlpha(alpha)
	}

	tracePolygon(c, l.Corners(h))
	switch {
	case hovered:
		c.SetStrokeColor(hoverStroke)
		c.SetLineWidth(hoverWidth)
	case selected:
		c.SetStrokeColor(selectedStroke)
		c.SetLineWidth(selectedWidth)
	default:
		c.SetStrokeColor(neutralStroke)
		c.SetLineWidth(neutralWidth)
	}
	c.Stroke()
	if fill, ok := fillColor(t.Color); ok {
		c.SetFillColor(fill)
		c.Fill()
	}

	c.SetShadow(nil, 0)
	c.SetGlobalAlpha(1)
	c.SetFillColor(labelColor)
	c.SetFontSize(labelSize)
	c.FillText(t.DisplayLabel(), x, y+labelDrop)
}

func tracePolygon(c canvas.Canvas, corners [6][2]float64) {
	c.BeginPath()
	for i, p := range corners {
		if i == 0 {
			c.MoveTo(p[0], p[1])
		} else {
			c.LineTo(p[0], p[1])
		}
	}
	c.ClosePath()
}

// fillColor parses a tile color.
// Unreadable colors are not filled, the same as transparent ones.
func fillColor(s string) (color.NRGBA, bool) {
	if s == "" || hexboard.IsTransparent(s) {
		return color.NRGBA{}, false
	}
	c, err := hexboard.ParseColor(s)
	if err != nil || c.A == 0 {
		return color.NRGBA{}, false
	}
	return c, true
}

// drawCapital draws a crown above the label and a bar for each capital stat below it.
func drawCapital(c canvas.Canvas, l hexmap.Layout, t hexboard.Tile) {
	x, y := l.Center(hexmap.Hex{Q: t.Q, R: t.R})
	size := l.HexSize

	c.Save()
	defer c.Restore()

	cy := y - 0.55*size
	w, h := 0.5*size, 0.25*size
	c.BeginPath()
	c.MoveTo(x-w/2, cy+h/2)
	c.LineTo(x-w/2, cy-h/2)
	c.LineTo(x-w/4, cy)
	c.LineTo(x, cy-h/2)
	c.LineTo(x+w/4, cy)
	c.LineTo(x+w/2, cy-h/2)
	c.LineTo(x+w/2, cy+h/2)
	c.ClosePath()
	c.SetFillColor(crownFill)
	c.Fill()
	c.SetStrokeColor(crownStroke)
	c.SetLineWidth(1)
	c.Stroke()

	stats := []struct {
		value int
		color color.NRGBA
	}{
		{t.Capital.Military, militaryBar},
		{t.Capital.Economy, economyBar},
		{t.Capital.Agriculture, farmingBar},
	}
	barW := 0.9 * size
	barH := max(2, 0.09*size)
	top := y + 0.35*size
	for i, stat := range stats {
		by := top + float64(i)*(barH+1)
		c.SetFillColor(barBackground)
		c.FillRect(x-barW/2, by, barW, barH)
		if stat.value > 0 {
			c.SetFillColor(stat.color)
			c.FillRect(x-barW/2, by, barW*float64(stat.value)/hexboard.MaxCapitalStat, barH)
		}
	}
}

// drawBorders strokes the outline of each realm of a house in the house color.
func drawBorders(c canvas.Canvas, l hexmap.Layout, house House) {
	stroke := borderStroke
	if fill, ok := fillColor(house.Color); ok {
		stroke = fill
		stroke.A = 0xff
	}

	c.Save()
	defer c.Restore()
	c.SetStrokeColor(stroke)
	c.SetLineWidth(borderWidth)
	for _, realm := range house.Realms {
		hexes := make([]hexmap.Hex, 0, len(realm))
		for _, key := range realm {
			q, r, err := key.Coordinates()
			if err != nil {
				continue
			}
			hexes = append(hexes, hexmap.Hex{Q: q, R: r})
		}
		outline := hexmap.Outline(hexes)
		if len(outline) == 0 {
			continue
		}
		c.BeginPath()
		for i, corner := range outline {
			x, y := corner.Point(l)
			if i == 0 {
				c.MoveTo(x, y)
			} else {
				c.LineTo(x, y)
			}
		}
		c.ClosePath()
		c.Stroke()
	}
}
