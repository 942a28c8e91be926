// Package hexmap converts between axial hex coordinates and pixels
// for a pointy-top hex grid with 0,0 at the upper left of the screen.
//
// https://www.redblobgames.com/grids/hexagons/
package hexmap

import (
	"math"
)

// MinHexSize is the smallest hex size a layout will produce.
// It keeps the pixel transforms away from division by zero.
const MinHexSize = 1.0

var sqrt3 = math.Sqrt(3)

// Hex is a tile position in axial coordinates.
// The third cube coordinate is derived by S.
type Hex struct {
	Q, R int
}

// S returns the derived cube coordinate so that Q+R+S == 0.
func (h Hex) S() int {
	return -h.Q - h.R
}

// Add returns h offset by d.
func (h Hex) Add(d Hex) Hex {
	return Hex{h.Q + d.Q, h.R + d.R}
}

// directions lists the neighbor offsets clockwise from the upper right.
// With hex corners numbered clockwise from the top,
// index i is the neighbor across the edge from corner i to corner i+1.
var directions = [6]Hex{
	{1, -1}, // upper right
	{1, 0},  // right
	{0, 1},  // lower right
	{-1, 1}, // lower left
	{-1, 0}, // left
	{0, -1}, // upper left
}

// Neighbors returns the six adjacent hexes clockwise from the upper right.
func (h Hex) Neighbors() [6]Hex {
	var n [6]Hex
	for i, d := range directions {
		n[i] = h.Add(d)
	}
	return n
}

// ToPixel returns the pixel center of h.
func ToPixel(h Hex, size, offsetX, offsetY float64) (x, y float64) {
	x = size*sqrt3*(float64(h.Q)+float64(h.R)/2) + offsetX
	y = size*1.5*float64(h.R) + offsetY
	return x, y
}

// FromPixel returns the hex containing the pixel x,y.
// A size that is not positive is treated as MinHexSize.
func FromPixel(x, y, size, offsetX, offsetY float64) Hex {
	if !(size > 0) {
		size = MinHexSize
	}
	px := x - offsetX
	py := y - offsetY
	qf := (sqrt3/3*px - py/3) / size
	rf := (2.0 / 3 * py) / size
	return Round(qf, rf)
}

// Round snaps fractional axial coordinates to the nearest hex.
//
// Each cube coordinate is rounded on its own,
// and then the one that moved the furthest is recomputed from the other two.
// When distances are equal, x wins over y and y wins over z.
// A click exactly on a shared edge therefore always resolves to the same hex.
func Round(qf, rf float64) Hex {
	x, z := qf, rf
	y := -x - z

	rx := roundHalfUp(x)
	ry := roundHalfUp(y)
	rz := roundHalfUp(z)

	dx := math.Abs(rx - x)
	dy := math.Abs(ry - y)
	dz := math.Abs(rz - z)

	switch {
	case dx > dy && dx > dz:
		rx = -ry - rz
	case dy >= dz:
		ry = -rx - rz
	default:
		rz = -rx - ry
	}
	return Hex{Q: int(rx), R: int(rz)}
}

// roundHalfUp rounds .5 toward positive infinity, unlike math.Round.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// Corners returns the six vertices of a pointy-top hex centered on x,y,
// starting at 30 degrees below the horizontal on the right and going clockwise on screen.
func Corners(x, y, size float64) [6][2]float64 {
	var c [6][2]float64
	for i := range c {
		angle := math.Pi / 180 * float64(60*i+30)
		c[i] = [2]float64{x + size*math.Cos(angle), y + size*math.Sin(angle)}
	}
	return c
}
