package hexmap

// Corner is a vertex of the hex grid.
//
// Every vertex is shared by three hexes,
// but exactly one of them has it as its top point
// and exactly one has it as its bottom point.
// Naming vertices by the top or bottom of a hex gives each one a single identity.
type Corner struct {
	Hex
	Top bool
}

// Point returns the pixel position of c under l.
func (c Corner) Point(l Layout) (x, y float64) {
	x, y = l.Center(c.Hex)
	if c.Top {
		return x, y - l.HexSize
	}
	return x, y + l.HexSize
}

// Outline returns the corners of the outer boundary of a contiguous region,
// walking clockwise on screen starting from the leftmost hex.
// The final corner does not repeat the first.
// Holes inside the region are not traced,
// and for a region made of separate islands only the island containing the leftmost hex is traced.
func Outline(hexes []Hex) []Corner {
	if len(hexes) == 0 {
		return nil
	}
	region := make(map[Hex]bool, len(hexes))
	leftmost := hexes[0]
	for _, h := range hexes {
		region[h] = true
		// twice the pixel x, in units of half a hex width
		if 2*h.Q+h.R < 2*leftmost.Q+leftmost.R {
			leftmost = h
		}
	}

	// To get the outline of a region we walk along the outside edges,
	// treating the vertices where three hexes meet as graph nodes
	// and the hex edges between them as graph edges.
	// Corners of a single hex are indexed clockwise 0-5 starting from the top.
	// The left face of the leftmost hex (corner 4 to corner 5) is always on the outside,
	// so the walk starts at corner 4 and its first move is up that face.
	start := walker{Hex: leftmost, corner: 4}
	path := []Corner{start.Corner()}
	for current := start.along(); current.Corner() != start.Corner(); {
		path = append(path, current.Corner())
		// At every node we first try to step onto the neighbor across the next edge.
		// If that neighbor is part of the region then the edge between us is interior
		// and the boundary continues along the neighbor instead.
		// Otherwise we stay on the current hex.
		if turn := current.turn(); region[turn.Hex] {
			current = turn
		} else {
			current = current.along()
		}
	}
	return path
}

// walker is a hex corner during an outline walk.
// Three different walkers may sit on the same vertex.
type walker struct {
	Hex
	corner int
}

// along moves to the next corner clockwise on the same hex.
func (w walker) along() walker {
	return walker{Hex: w.Hex, corner: (w.corner + 1) % 6}
}

// turn moves onto the hex across the edge from this corner to the next one.
// The shared vertex is corner+4 of that hex; the walk continues to corner+5.
func (w walker) turn() walker {
	return walker{Hex: w.Hex.Add(directions[w.corner]), corner: (w.corner + 5) % 6}
}

// Corner returns the unique vertex w sits on.
func (w walker) Corner() Corner {
	switch w.corner {
	case 0:
		return Corner{Hex: w.Hex, Top: true}
	case 1:
		return Corner{Hex: w.Hex.Add(Hex{1, -1}), Top: false}
	case 2:
		return Corner{Hex: w.Hex.Add(Hex{0, 1}), Top: true}
	case 3:
		return Corner{Hex: w.Hex, Top: false}
	case 4:
		return Corner{Hex: w.Hex.Add(Hex{-1, 1}), Top: true}
	default:
		return Corner{Hex: w.Hex.Add(Hex{0, -1}), Top: false}
	}
}
