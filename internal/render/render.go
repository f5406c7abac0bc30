// Package render rasterizes canvas states. Every frame is replayed from
// scratch: white fill, optional background, then every stroke in order.
package render

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"sketchboard/internal/sketch"
)

// Eraser cursor affordance.
const (
	cursorDash = 5.0
	cursorLine = 1.0
)

var cursorColor = color.NRGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}

// Frame is everything needed to produce one image.
type Frame struct {
	Width, Height int
	State         sketch.State
	// Live is the uncommitted stroke, drawn on top of State.
	Live       *sketch.Stroke
	Background image.Image
	// Cursor is the last known pointer position, nil when unknown.
	Cursor    *sketch.Point
	Tool      sketch.Tool
	ToolWidth float64
}

// Render draws f into a new image of exactly f.Width x f.Height pixels.
func Render(f Frame) *image.RGBA {
	w, h := f.Width, f.Height
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	dc := gg.NewContextForRGBA(dst)
	dc.SetColor(color.White)
	dc.Clear()

	if f.Background != nil {
		drawBackground(dst, f.Background)
	}

	for i := 0; i < f.State.Len(); i++ {
		drawStroke(dc, f.State.At(i))
	}
	if f.Live != nil {
		drawStroke(dc, *f.Live)
	}

	if f.Tool == sketch.ToolEraser && f.Cursor != nil {
		drawEraserCursor(dc, *f.Cursor, f.ToolWidth*sketch.EraserScale)
	}
	return dst
}

// drawBackground stretches bg over the whole surface.
func drawBackground(dst *image.RGBA, bg image.Image) {
	if bg.Bounds().Empty() {
		return
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), bg, bg.Bounds(), xdraw.Over, nil)
}

func drawStroke(dc *gg.Context, st sketch.Stroke) {
	if !st.Visible() {
		return
	}
	// The eraser paints the page color; it does not cut through to alpha.
	c := sketch.White
	if st.Tool != sketch.ToolEraser {
		c = sketch.ColorOrBlack(st.Color)
	}
	dc.SetColor(c)
	dc.SetLineWidth(st.Width)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	dc.MoveTo(st.Points[0].X, st.Points[0].Y)
	for _, p := range st.Points[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()
}

func drawEraserCursor(dc *gg.Context, at sketch.Point, radius float64) {
	if radius <= 0 {
		return
	}
	dc.Push()
	defer dc.Pop()
	dc.SetColor(cursorColor)
	dc.SetLineWidth(cursorLine)
	dc.SetDash(cursorDash, cursorDash)
	dc.DrawCircle(at.X, at.Y, radius)
	dc.Stroke()
}
