package hexmap

import "math"

// Grid is the logical shape of the map in hexes.
type Grid struct {
	Cols, Rows int
}

// Layout places a grid on a viewport.
// It is derived from the viewport size and never persisted.
type Layout struct {
	HexSize float64
	OffsetX float64
	OffsetY float64
}

// NewLayout fits grid inside a width by height viewport and centers it.
//
// The hex size is chosen by whichever of the two dimensions binds first,
// so the grid scales with the window instead of being drawn at a fixed size.
// The offsets shift the grid by one hex so that 0,0 lands inside the viewport.
// Zero or negative viewports produce MinHexSize rather than dividing by zero.
func NewLayout(width, height float64, grid Grid) Layout {
	cols := float64(max(grid.Cols, 1))
	rows := float64(max(grid.Rows, 1))

	widthBound := width / (cols + 0.5)
	heightBound := height / ((rows-1)*0.75 + 1)
	size := math.Min(widthBound/sqrt3, heightBound/1.5)
	if !(size >= MinHexSize) {
		// also catches NaN
		size = MinHexSize
	}

	l := Layout{HexSize: size}
	pixelWidth, pixelHeight := l.GridSize(grid)
	l.OffsetX = (width-pixelWidth)/2 + size
	l.OffsetY = (height-pixelHeight)/2 + size
	return l
}

// GridSize returns the pixel extent of grid at this layout's hex size.
func (l Layout) GridSize(grid Grid) (width, height float64) {
	cols := float64(max(grid.Cols, 1))
	rows := float64(max(grid.Rows, 1))
	width = l.HexSize * sqrt3 * (cols + 0.5)
	height = l.HexSize*1.5*(rows-1) + l.HexSize*2
	return width, height
}

// Center returns the pixel center of h.
func (l Layout) Center(h Hex) (x, y float64) {
	return ToPixel(h, l.HexSize, l.OffsetX, l.OffsetY)
}

// HexAt returns the hex under the pixel x,y.
func (l Layout) HexAt(x, y float64) Hex {
	return FromPixel(x, y, l.HexSize, l.OffsetX, l.OffsetY)
}

// Corners returns the vertices of h.
func (l Layout) Corners(h Hex) [6][2]float64 {
	x, y := l.Center(h)
	return Corners(x, y, l.HexSize)
}
