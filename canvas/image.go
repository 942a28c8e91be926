package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/transform"
	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Image is a Canvas that draws onto an in-memory RGBA image.
// It is not safe for concurrent use.
type Image struct {
	img *image.RGBA
	gc  *draw2dimg.GraphicContext

	st    state
	saved []state

	path   *draw2d.Path
	bounds bbox

	faces  map[float64]font.Face
	scaled scaledImage
}

type bbox struct {
	minX, minY, maxX, maxY float64
	empty                  bool
}

func (b *bbox) add(x, y float64) {
	if b.empty {
		*b = bbox{minX: x, minY: y, maxX: x, maxY: y}
		return
	}
	b.minX = math.Min(b.minX, x)
	b.minY = math.Min(b.minY, y)
	b.maxX = math.Max(b.maxX, x)
	b.maxY = math.Max(b.maxY, y)
}

// scaledImage caches the last image drawn by DrawImage at its drawn size.
// The board draws the same background at the same size on every frame.
type scaledImage struct {
	src  image.Image
	w, h int
	out  *image.RGBA
}

// NewImage returns a transparent canvas of the given size.
func NewImage(width, height int) *Image {
	c := &Image{faces: map[float64]font.Face{}}
	c.Resize(width, height)
	return c
}

// RGBA returns the backing image.
// It is overwritten by later drawing calls.
func (c *Image) RGBA() *image.RGBA {
	return c.img
}

// EncodePNG writes the current contents of c to w.
func (c *Image) EncodePNG(w io.Writer) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, c.img)
}

func (c *Image) Size() (width, height int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

func (c *Image) Resize(width, height int) {
	width = max(width, 1)
	height = max(height, 1)
	// draw2dimg behaves in unexpected ways when the image does not start at 0,0
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
	c.gc = draw2dimg.NewGraphicContext(c.img)
	c.st = defaultState()
	c.saved = nil
	c.BeginPath()
}

func (c *Image) Clear() {
	draw.Draw(c.img, c.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (c *Image) Save() {
	s := c.st
	s.dash = append([]float64(nil), c.st.dash...)
	c.saved = append(c.saved, s)
}

func (c *Image) Restore() {
	if len(c.saved) == 0 {
		return
	}
	c.st = c.saved[len(c.saved)-1]
	c.saved = c.saved[:len(c.saved)-1]
}

func (c *Image) SetStrokeColor(col color.Color) { c.st.stroke = toNRGBA(col) }
func (c *Image) SetFillColor(col color.Color)   { c.st.fill = toNRGBA(col) }
func (c *Image) SetLineWidth(w float64)         { c.st.lineWidth = w }
func (c *Image) SetFontSize(px float64)         { c.st.fontSize = px }

func (c *Image) SetLineDash(pattern []float64) {
	c.st.dash = append([]float64(nil), pattern...)
}

func (c *Image) SetShadow(col color.Color, blur float64) {
	c.st.shadow = toNRGBA(col)
	c.st.shadowBlur = max(0, blur)
}

func (c *Image) SetGlobalAlpha(a float64) {
	if math.IsNaN(a) {
		return
	}
	c.st.globalAlpha = max(0, min(1, a))
}

func (c *Image) BeginPath() {
	c.path = new(draw2d.Path)
	c.bounds = bbox{empty: true}
}

func (c *Image) MoveTo(x, y float64) {
	c.path.MoveTo(x, y)
	c.bounds.add(x, y)
}

func (c *Image) LineTo(x, y float64) {
	if c.path.IsEmpty() {
		c.MoveTo(x, y)
		return
	}
	c.path.LineTo(x, y)
	c.bounds.add(x, y)
}

func (c *Image) ClosePath() {
	if !c.path.IsEmpty() {
		c.path.Close()
	}
}

func (c *Image) Stroke() {
	if c.path.IsEmpty() || c.st.lineWidth <= 0 {
		return
	}
	col := withAlpha(c.st.stroke, c.st.globalAlpha)
	if col.A == 0 {
		return
	}
	paint := func(gc *draw2dimg.GraphicContext, col color.NRGBA) {
		gc.SetStrokeColor(col)
		gc.SetLineWidth(c.st.lineWidth)
		gc.SetLineDash(c.st.dash, 0)
		gc.Stroke(c.path.Copy())
	}
	c.shadowed(c.st.lineWidth/2, paint)
	paint(c.gc, col)
}

func (c *Image) Fill() {
	if c.path.IsEmpty() {
		return
	}
	col := withAlpha(c.st.fill, c.st.globalAlpha)
	if col.A == 0 {
		return
	}
	paint := func(gc *draw2dimg.GraphicContext, col color.NRGBA) {
		gc.SetFillColor(col)
		gc.Fill(c.path.Copy())
	}
	c.shadowed(0, paint)
	paint(c.gc, col)
}

// shadowed paints the current path in the shadow color onto a scratch layer
// covering only the path bounds, blurs it and composites it onto the canvas.
// pad is how far the painted shape reaches past the path points.
func (c *Image) shadowed(pad float64, paint func(*draw2dimg.GraphicContext, color.NRGBA)) {
	if c.st.shadowBlur <= 0 || c.bounds.empty {
		return
	}
	col := withAlpha(c.st.shadow, c.st.globalAlpha)
	if col.A == 0 {
		return
	}
	spread := c.st.shadowBlur + pad + 1
	r := image.Rect(
		int(math.Floor(c.bounds.minX-spread)),
		int(math.Floor(c.bounds.minY-spread)),
		int(math.Ceil(c.bounds.maxX+spread)),
		int(math.Ceil(c.bounds.maxY+spread)),
	).Intersect(c.img.Bounds())
	if r.Empty() {
		return
	}
	layer := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	gc := draw2dimg.NewGraphicContext(layer)
	gc.Translate(-float64(r.Min.X), -float64(r.Min.Y))
	paint(gc, col)
	// a canvas shadow blur is twice the standard deviation of the gaussian
	blurred := blur.Gaussian(layer, c.st.shadowBlur/2)
	draw.Draw(c.img, r, blurred, image.Point{}, draw.Over)
}

func (c *Image) rect(x, y, w, h float64, op func()) {
	path, bounds := c.path, c.bounds
	c.BeginPath()
	c.MoveTo(x, y)
	c.LineTo(x+w, y)
	c.LineTo(x+w, y+h)
	c.LineTo(x, y+h)
	c.ClosePath()
	op()
	c.path, c.bounds = path, bounds
}

func (c *Image) StrokeRect(x, y, w, h float64) { c.rect(x, y, w, h, c.Stroke) }
func (c *Image) FillRect(x, y, w, h float64)   { c.rect(x, y, w, h, c.Fill) }

// DrawImage scales img into the rectangle x,y,w,h.
func (c *Image) DrawImage(img image.Image, x, y, w, h float64) {
	if img == nil || w < 1 || h < 1 {
		return
	}
	iw, ih := int(math.Round(w)), int(math.Round(h))
	if c.scaled.src != img || c.scaled.w != iw || c.scaled.h != ih {
		c.scaled = scaledImage{
			src: img,
			w:   iw,
			h:   ih,
			out: transform.Resize(img, iw, ih, transform.Linear),
		}
	}
	at := image.Pt(int(math.Round(x)), int(math.Round(y)))
	dst := image.Rectangle{Min: at, Max: at.Add(image.Pt(iw, ih))}
	if c.st.globalAlpha >= 1 {
		draw.Draw(c.img, dst, c.scaled.out, image.Point{}, draw.Over)
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(c.st.globalAlpha*0xff + 0.5)})
	draw.DrawMask(c.img, dst, c.scaled.out, image.Point{}, mask, image.Point{}, draw.Over)
}

func (c *Image) FillText(text string, x, y float64) {
	if text == "" {
		return
	}
	col := withAlpha(c.st.fill, c.st.globalAlpha)
	if col.A == 0 {
		return
	}
	face := c.face(c.st.fontSize)
	width := font.MeasureString(face, text)
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(x*64) - width/2,
			Y: fixed.Int26_6(y * 64),
		},
	}
	d.DrawString(text)
}
