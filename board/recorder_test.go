package board

import (
	"image"
	"image/color"
	"slices"
)

// op is one drawing call seen by a recorder.
type op struct {
	name   string
	stroke color.NRGBA
	fill   color.NRGBA
	width  float64
	dash   []float64
	shadow color.NRGBA
	blur   float64
	alpha  float64
	text   string
	rect   [4]float64
	path   [][2]float64
}

type recorderState struct {
	stroke, fill, shadow color.NRGBA
	width, blur, alpha   float64
	dash                 []float64
}

// recorder is a canvas that remembers what was drawn instead of drawing it.
type recorder struct {
	w, h  int
	st    recorderState
	saved []recorderState
	path  [][2]float64
	ops   []op
}

func newRecorder(w, h int) *recorder {
	r := &recorder{w: w, h: h}
	r.st = recorderState{width: 1, alpha: 1}
	return r
}

func (r *recorder) record(name string) *op {
	r.ops = append(r.ops, op{
		name:   name,
		stroke: r.st.stroke,
		fill:   r.st.fill,
		width:  r.st.width,
		dash:   slices.Clone(r.st.dash),
		shadow: r.st.shadow,
		blur:   r.st.blur,
		alpha:  r.st.alpha,
		path:   slices.Clone(r.path),
	})
	return &r.ops[len(r.ops)-1]
}

// find returns the ops named name.
func (r *recorder) find(name string) []op {
	var found []op
	for _, o := range r.ops {
		if o.name == name {
			found = append(found, o)
		}
	}
	return found
}

func (r *recorder) Size() (int, int) { return r.w, r.h }
func (r *recorder) Resize(w, h int) {
	r.w, r.h = w, h
	r.st = recorderState{width: 1, alpha: 1}
	r.record("resize")
}
func (r *recorder) Clear() {
	r.ops = r.ops[:0]
	r.record("clear")
}
func (r *recorder) Save() { r.saved = append(r.saved, r.st) }
func (r *recorder) Restore() {
	if n := len(r.saved); n > 0 {
		r.st = r.saved[n-1]
		r.saved = r.saved[:n-1]
	}
}
func (r *recorder) SetStrokeColor(c color.Color) { r.st.stroke = nrgba(c) }
func (r *recorder) SetFillColor(c color.Color)   { r.st.fill = nrgba(c) }
func (r *recorder) SetLineWidth(w float64)       { r.st.width = w }
func (r *recorder) SetLineDash(d []float64)      { r.st.dash = slices.Clone(d) }
func (r *recorder) SetShadow(c color.Color, blur float64) {
	r.st.shadow = nrgba(c)
	r.st.blur = blur
}
func (r *recorder) SetGlobalAlpha(a float64) { r.st.alpha = a }
func (r *recorder) SetFontSize(float64)      {}
func (r *recorder) BeginPath()               { r.path = nil }
func (r *recorder) MoveTo(x, y float64)      { r.path = append(r.path, [2]float64{x, y}) }
func (r *recorder) LineTo(x, y float64)      { r.path = append(r.path, [2]float64{x, y}) }
func (r *recorder) ClosePath()               {}
func (r *recorder) Stroke()                  { r.record("stroke") }
func (r *recorder) Fill()                    { r.record("fill") }
func (r *recorder) StrokeRect(x, y, w, h float64) {
	r.record("strokeRect").rect = [4]float64{x, y, w, h}
}
func (r *recorder) FillRect(x, y, w, h float64) {
	r.record("fillRect").rect = [4]float64{x, y, w, h}
}
func (r *recorder) DrawImage(_ image.Image, x, y, w, h float64) {
	r.record("drawImage").rect = [4]float64{x, y, w, h}
}
func (r *recorder) FillText(text string, x, y float64) {
	o := r.record("fillText")
	o.text = text
	o.rect = [4]float64{x, y}
}

func nrgba(c color.Color) color.NRGBA {
	if c == nil {
		return color.NRGBA{}
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}
