package canvas

import (
	"log/slog"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

var labelFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// face returns the label face at px.
// Faces are not safe for concurrent use, so each canvas keeps its own.
func (c *Image) face(px float64) font.Face {
	if f, ok := c.faces[px]; ok {
		return f
	}
	var face font.Face = basicfont.Face7x13
	if f, err := labelFont(); err != nil {
		slog.Error("canvas: parse label font", "error", err)
	} else if of, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    px,
		DPI:     72,
		Hinting: font.HintingFull,
	}); err != nil {
		slog.Error("canvas: create label face", "size", px, "error", err)
	} else {
		face = of
	}
	c.faces[px] = face
	return face
}
