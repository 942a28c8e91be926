// Package canvas is a small immediate mode 2D drawing surface
// with the operations the board renderer needs:
// paths, stroke and fill, dashes, shadows, global alpha, images and text.
//
// Coordinates have 0,0 at the upper left and y grows downward.
package canvas

import (
	"image"
	"image/color"
)

// Canvas is a 2D drawing context.
//
// Drawing state (colors, line width, dash, shadow, alpha, font size)
// is saved and restored with Save and Restore.
// The current path is not part of the saved state.
type Canvas interface {
	Size() (width, height int)
	// Resize changes the surface size and clears it.
	Resize(width, height int)
	Clear()

	Save()
	Restore()

	SetStrokeColor(c color.Color)
	SetFillColor(c color.Color)
	SetLineWidth(w float64)
	// SetLineDash sets alternating dash and gap lengths.
	// An empty pattern draws solid lines.
	SetLineDash(pattern []float64)
	// SetShadow draws a blurred copy of each stroke or fill beneath it.
	// A blur of zero turns shadows off.
	SetShadow(c color.Color, blur float64)
	// SetGlobalAlpha scales the opacity of everything drawn afterward.
	SetGlobalAlpha(a float64)
	SetFontSize(px float64)

	BeginPath()
	MoveTo(x, y float64)
	LineTo(x, y float64)
	ClosePath()
	Stroke()
	Fill()

	StrokeRect(x, y, w, h float64)
	FillRect(x, y, w, h float64)
	DrawImage(img image.Image, x, y, w, h float64)
	// FillText draws text horizontally centered on x with its baseline at y.
	FillText(text string, x, y float64)
}

type state struct {
	stroke      color.NRGBA
	fill        color.NRGBA
	lineWidth   float64
	dash        []float64
	shadow      color.NRGBA
	shadowBlur  float64
	globalAlpha float64
	fontSize    float64
}

func defaultState() state {
	return state{
		stroke:      color.NRGBA{A: 0xff},
		fill:        color.NRGBA{A: 0xff},
		lineWidth:   1,
		globalAlpha: 1,
		fontSize:    10,
	}
}

func toNRGBA(c color.Color) color.NRGBA {
	if c == nil {
		return color.NRGBA{}
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

// withAlpha scales the alpha channel of c by a.
func withAlpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = uint8(float64(c.A)*max(0, min(1, a)) + 0.5)
	return c
}
