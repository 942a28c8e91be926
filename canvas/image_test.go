package canvas_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Travis-Britz/hexboard/canvas"
)

var red = color.NRGBA{0xff, 0x00, 0x00, 0xff}

func TestFillRect(t *testing.T) {
	c := canvas.NewImage(100, 100)
	c.SetFillColor(red)
	c.FillRect(10, 10, 20, 20)

	if got := c.RGBA().RGBAAt(20, 20); got != (color.RGBA{0xff, 0, 0, 0xff}) {
		t.Errorf("expected red inside the rect; got %v", got)
	}
	if got := c.RGBA().RGBAAt(50, 50); got.A != 0 {
		t.Errorf("expected nothing outside the rect; got %v", got)
	}
}

func TestFillTransparent(t *testing.T) {
	c := canvas.NewImage(40, 40)
	c.SetFillColor(color.Transparent)
	c.SetShadow(color.White, 8)
	c.FillRect(0, 0, 40, 40)
	for x := 0; x < 40; x++ {
		if got := c.RGBA().RGBAAt(x, 20); got.A != 0 {
			t.Fatalf("expected a transparent fill to draw nothing; got %v at %d,20", got, x)
		}
	}
}

func TestGlobalAlpha(t *testing.T) {
	c := canvas.NewImage(40, 40)
	c.SetGlobalAlpha(0.5)
	c.SetFillColor(red)
	c.FillRect(0, 0, 40, 40)
	got := c.RGBA().RGBAAt(20, 20)
	if got.A < 120 || got.A > 136 {
		t.Errorf("expected about half alpha; got %v", got)
	}
}

func TestShadow(t *testing.T) {
	tt := map[string]struct {
		Blur     float64
		Expected bool
	}{
		"no shadow":   {Blur: 0, Expected: false},
		"with shadow": {Blur: 12, Expected: true},
	}
	for name, tc := range tt {
		c := canvas.NewImage(100, 100)
		c.SetShadow(color.NRGBA{0xff, 0xd7, 0x7a, 0xff}, tc.Blur)
		c.SetFillColor(red)
		c.FillRect(40, 40, 20, 20)

		// a few pixels left of the rect
		got := c.RGBA().RGBAAt(36, 50).A > 0
		if got != tc.Expected {
			t.Errorf("%s: expected shadow %v; got %v", name, tc.Expected, got)
		}
		if inside := c.RGBA().RGBAAt(50, 50); inside != (color.RGBA{0xff, 0, 0, 0xff}) {
			t.Errorf("%s: expected the shape drawn over its shadow; got %v", name, inside)
		}
	}
}

func TestStrokeKeepsPath(t *testing.T) {
	c := canvas.NewImage(60, 60)
	c.BeginPath()
	c.MoveTo(10, 10)
	c.LineTo(50, 10)
	c.LineTo(50, 50)
	c.LineTo(10, 50)
	c.ClosePath()
	c.SetStrokeColor(color.Black)
	c.SetLineWidth(2)
	c.Stroke()
	c.SetFillColor(red)
	c.Fill()

	if got := c.RGBA().RGBAAt(30, 30); got != (color.RGBA{0xff, 0, 0, 0xff}) {
		t.Errorf("expected the path to be filled after stroking; got %v", got)
	}
}

func TestSaveRestore(t *testing.T) {
	c := canvas.NewImage(20, 20)
	c.SetFillColor(red)
	c.Save()
	c.SetFillColor(color.Transparent)
	c.Restore()
	c.FillRect(0, 0, 20, 20)
	if got := c.RGBA().RGBAAt(10, 10); got.A == 0 {
		t.Errorf("expected the restored fill color to be used; got %v", got)
	}
	// unbalanced restores are ignored
	c.Restore()
	c.Restore()
}

func TestFillText(t *testing.T) {
	c := canvas.NewImage(120, 40)
	c.SetFillColor(color.Black)
	c.SetFontSize(16)
	c.FillText("12,-3", 60, 25)

	var left, right int = 120, 0
	for x := 0; x < 120; x++ {
		for y := 0; y < 40; y++ {
			if c.RGBA().RGBAAt(x, y).A > 0 {
				left = min(left, x)
				right = max(right, x)
			}
		}
	}
	if right == 0 {
		t.Fatal("expected text to be drawn")
	}
	center := (left + right) / 2
	if center < 55 || center > 65 {
		t.Errorf("expected text centered on 60; got %d (%d to %d)", center, left, right)
	}
}

func TestDrawImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			src.Set(x, y, color.White)
		}
	}
	c := canvas.NewImage(50, 30)
	c.DrawImage(src, 0, 0, 50, 30)
	for _, p := range []image.Point{{0, 0}, {25, 15}, {49, 29}} {
		if got := c.RGBA().RGBAAt(p.X, p.Y); got.A == 0 {
			t.Errorf("expected the image scaled to cover %v; got %v", p, got)
		}
	}
	// nil images are ignored
	c.DrawImage(nil, 0, 0, 50, 30)
}

func TestResize(t *testing.T) {
	c := canvas.NewImage(10, 10)
	c.Resize(300, 200)
	if w, h := c.Size(); w != 300 || h != 200 {
		t.Errorf("expected 300x200; got %dx%d", w, h)
	}
	c.Resize(0, -5)
	if w, h := c.Size(); w != 1 || h != 1 {
		t.Errorf("expected a 1x1 minimum; got %dx%d", w, h)
	}
}

func TestLoadImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	dir := t.TempDir()
	name := filepath.Join(dir, "bg.png")
	f, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err := canvas.LoadImage(context.Background(), nil, name)
	if err != nil {
		t.Fatal(err)
	}
	if got.Bounds().Dx() != 3 || got.Bounds().Dy() != 2 {
		t.Errorf("expected 3x2; got %v", got.Bounds())
	}

	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()
	got, err = canvas.LoadImage(context.Background(), srv.Client(), srv.URL+"/bg.png")
	if err != nil {
		t.Fatal(err)
	}
	if got.Bounds().Dx() != 3 {
		t.Errorf("expected 3 wide; got %v", got.Bounds())
	}

	if _, err := canvas.LoadImage(context.Background(), srv.Client(), srv.URL+"/missing.png"); err == nil {
		t.Errorf("expected an error for a missing image")
	}
}
