package render

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"

	"sketchboard/internal/sketch"
)

func isWhite(c color.RGBA) bool {
	return c.R == 0xff && c.G == 0xff && c.B == 0xff && c.A == 0xff
}

func assertUniformWhite(t *testing.T, img *image.RGBA) {
	t.Helper()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if c := img.RGBAAt(x, y); !isWhite(c) {
				t.Fatalf("pixel (%d,%d) = %+v, want white", x, y, c)
			}
		}
	}
}

func hline(tool sketch.Tool, color string, y float64) sketch.Stroke {
	return sketch.Stroke{
		Points: []sketch.Point{{X: 10, Y: y}, {X: 50, Y: y}, {X: 90, Y: y}},
		Color:  color,
		Width:  5,
		Tool:   tool,
	}
}

func TestEmptyStateIsUniformWhite(t *testing.T) {
	img := Render(Frame{Width: 37, Height: 23})
	if img.Bounds().Dx() != 37 || img.Bounds().Dy() != 23 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	assertUniformWhite(t, img)
}

func TestPenStrokeIsDrawn(t *testing.T) {
	state := sketch.NewState(hline(sketch.ToolPen, "#000000", 20))
	img := Render(Frame{Width: 100, Height: 60, State: state})
	if c := img.RGBAAt(50, 20); c.R != 0 || c.G != 0 || c.B != 0 || c.A != 0xff {
		t.Fatalf("stroke centre = %+v, want black", c)
	}
	if c := img.RGBAAt(50, 50); !isWhite(c) {
		t.Fatalf("far pixel = %+v, want white", c)
	}
}

func TestSinglePointStrokeIsNotDrawn(t *testing.T) {
	tap := sketch.Stroke{Points: []sketch.Point{{X: 5, Y: 5}}, Color: "#000000", Width: 9, Tool: sketch.ToolPen}
	img := Render(Frame{Width: 10, Height: 10, State: sketch.NewState(tap)})
	assertUniformWhite(t, img)
}

func TestEraserPaintsWhite(t *testing.T) {
	state := sketch.NewState(
		hline(sketch.ToolPen, "#ff0000", 20),
		hline(sketch.ToolEraser, "#ff0000", 20),
	)
	img := Render(Frame{Width: 100, Height: 40, State: state})
	if c := img.RGBAAt(50, 20); !isWhite(c) {
		t.Fatalf("erased pixel = %+v, want white", c)
	}
}

func TestEraserPaintsWhiteOverBackground(t *testing.T) {
	bg := image.NewUniform(color.RGBA{R: 0, G: 0, B: 0xff, A: 0xff})
	bgImg := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			bgImg.Set(x, y, bg.C)
		}
	}
	state := sketch.NewState(hline(sketch.ToolEraser, "", 20))
	img := Render(Frame{Width: 100, Height: 40, State: state, Background: bgImg})

	if c := img.RGBAAt(50, 20); !isWhite(c) {
		t.Fatalf("eraser over background = %+v, want white", c)
	}
	if c := img.RGBAAt(50, 35); c.B < 200 || c.R > 50 {
		t.Fatalf("background not drawn: %+v", c)
	}
}

func TestLiveStrokeDrawnLast(t *testing.T) {
	committed := sketch.NewState(hline(sketch.ToolPen, "#000000", 20))
	live := hline(sketch.ToolPen, "#00ff00", 20)
	img := Render(Frame{Width: 100, Height: 40, State: committed, Live: &live})
	if c := img.RGBAAt(50, 20); c.G != 0xff || c.R != 0 {
		t.Fatalf("live stroke not on top: %+v", c)
	}
}

func TestEraserCursorOverlay(t *testing.T) {
	cursor := sketch.Point{X: 50, Y: 50}
	img := Render(Frame{Width: 100, Height: 100, Tool: sketch.ToolEraser, ToolWidth: 5, Cursor: &cursor})

	// The dashed circle starts at angle zero, radius = 5 * 2.
	found := false
	for y := 49; y <= 51 && !found; y++ {
		for x := 59; x <= 61; x++ {
			if !isWhite(img.RGBAAt(x, y)) {
				found = true
				break
			}
		}
	}
	if !found {
		t.Fatalf("expected the cursor circle near (60,50)")
	}
	if !isWhite(img.RGBAAt(50, 50)) {
		t.Fatalf("cursor circle must not be filled")
	}

	assertUniformWhite(t, Render(Frame{Width: 100, Height: 100, Tool: sketch.ToolEraser, ToolWidth: 5}))
	assertUniformWhite(t, Render(Frame{Width: 100, Height: 100, Tool: sketch.ToolPen, ToolWidth: 5, Cursor: &cursor}))
}

func TestRenderIsIdempotent(t *testing.T) {
	state := sketch.NewState(
		hline(sketch.ToolPen, "#336699", 10),
		hline(sketch.ToolEraser, "", 12),
		sketch.Stroke{Points: []sketch.Point{{X: 5, Y: 5}, {X: 80, Y: 35}, {X: 20, Y: 30}}, Color: "#aa0000", Width: 3, Tool: sketch.ToolPen},
	)
	f := Frame{Width: 100, Height: 40, State: state}
	a := Render(f)
	b := Render(f)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatalf("replaying the same state produced different pixels")
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	img := Render(Frame{Width: 12, Height: 8, State: sketch.NewState(hline(sketch.ToolPen, "#000", 4))})
	url, err := DataURL(img)
	if err != nil {
		t.Fatalf("DataURL: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("unexpected prefix: %.30s", url)
	}
	back, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("DecodeDataURL: %v", err)
	}
	if back.Bounds() != img.Bounds() {
		t.Fatalf("bounds %v, want %v", back.Bounds(), img.Bounds())
	}

	bare := strings.TrimPrefix(url, "data:image/png;base64,")
	if _, err := DecodeDataURL(bare); err != nil {
		t.Fatalf("bare base64 should decode: %v", err)
	}
}

func TestDecodeDataURLRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "data:text/plain;base64,aGVsbG8=", "data:image/png,raw", "!!!"} {
		if _, err := DecodeDataURL(in); err == nil {
			t.Fatalf("DecodeDataURL(%q) should fail", in)
		}
	}
}

func TestThumbnailKeepsAspect(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 200))
	th := Thumbnail(src, 100, 100)
	if th.Bounds().Dx() != 100 || th.Bounds().Dy() != 50 {
		t.Fatalf("thumbnail bounds = %v", th.Bounds())
	}
	small := Thumbnail(image.NewRGBA(image.Rect(0, 0, 20, 10)), 100, 100)
	if small.Bounds().Dx() != 20 || small.Bounds().Dy() != 10 {
		t.Fatalf("small image resized: %v", small.Bounds())
	}
	url, err := ThumbnailDataURL(src, 40, 40)
	if err != nil || !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("ThumbnailDataURL = %.30s, %v", url, err)
	}
}
