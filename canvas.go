package main

import (
	"image"
	"image/color"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sketchboard/internal/recorder"
	"sketchboard/internal/sketch"
)

// Every terminal cell shows two vertical pixels: the upper one as the
// foreground of a half block, the lower one as its background.
const halfBlock = "▀"

// canvasSize is the drawing area in cells. The status line is excluded.
func (m model) canvasSize() (int, int) {
	cols := m.width
	rows := m.height - statusLines
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

func (m model) viewport() recorder.Viewport {
	cols, rows := m.canvasSize()
	w, h := m.surface.Size()
	return recorder.Viewport{
		DisplayWidth:  float64(cols),
		DisplayHeight: float64(rows * 2),
		BackingWidth:  float64(w),
		BackingHeight: float64(h),
	}
}

// cellPoint maps cell (x, y) onto the backing store, aiming at the middle
// of the cell.
func (m model) cellPoint(x, y int) sketch.Point {
	return m.viewport().Map(float64(x)+0.5, float64(y*2)+1)
}

func (m model) inCanvas(x, y int) bool {
	cols, rows := m.canvasSize()
	return x >= 0 && y >= 0 && x < cols && y < rows
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	inside := m.inCanvas(msg.X, msg.Y)
	// A gesture always ends on release, even when a key switched modes
	// while the button was held.
	if msg.Action == tea.MouseActionRelease {
		if !m.mouseDown {
			return m, nil
		}
		m.mouseDown = false
		if inside && m.mode == ModeNormal && !m.help {
			m.surface.PointerMove(m.cellPoint(msg.X, msg.Y))
		}
		m.surface.PointerUp()
		return m, nil
	}
	if m.mode != ModeNormal || m.help {
		return m, nil
	}

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			if !inside || m.busy {
				return m, nil
			}
			p := m.cellPoint(msg.X, msg.Y)
			m.surface.PointerEnter(p)
			m.surface.PointerDown(p)
			m.mouseDown = true
			m.errorMessage = ""
			m.successMessage = ""
		case tea.MouseButtonWheelUp:
			m.changeWidth(brushStep)
		case tea.MouseButtonWheelDown:
			m.changeWidth(-brushStep)
		}
	case tea.MouseActionMotion:
		if !inside {
			m.surface.PointerLeave()
			return m, nil
		}
		m.surface.PointerMove(m.cellPoint(msg.X, msg.Y))
	}
	return m, nil
}

func (m model) canvasView() []string {
	cols, rows := m.canvasSize()
	return renderCells(m.surface.Frame(), cols, rows)
}

// renderCells turns img into rows lines of cols half-block cells.
func renderCells(img *image.RGBA, cols, rows int) []string {
	px := downsample(img, cols, rows*2)
	lines := make([]string, rows)
	for y := 0; y < rows; y++ {
		var line strings.Builder
		var top, bottom string
		run := 0
		flush := func() {
			if run == 0 {
				return
			}
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom))
			line.WriteString(style.Render(strings.Repeat(halfBlock, run)))
			run = 0
		}
		for x := 0; x < cols; x++ {
			t := sketch.HexColor(px.RGBAAt(x, 2*y))
			b := sketch.HexColor(px.RGBAAt(x, 2*y+1))
			if run > 0 && (t != top || b != bottom) {
				flush()
			}
			top, bottom = t, b
			run++
		}
		flush()
		lines[y] = line.String()
	}
	return lines
}

// downsample shrinks src to w x h. Each target pixel takes the source pixel
// of its block that carries the most ink, so thin strokes stay visible.
func downsample(src *image.RGBA, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == 0 || sh == 0 {
		return dst
	}
	for ty := 0; ty < h; ty++ {
		y0 := b.Min.Y + ty*sh/h
		y1 := b.Min.Y + (ty+1)*sh/h
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for tx := 0; tx < w; tx++ {
			x0 := b.Min.X + tx*sw/w
			x1 := b.Min.X + (tx+1)*sw/w
			if x1 <= x0 {
				x1 = x0 + 1
			}
			best := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
			bestInk := -1
			for y := y0; y < y1 && y < b.Max.Y; y++ {
				for x := x0; x < x1 && x < b.Max.X; x++ {
					i := src.PixOffset(x, y)
					r, g, bl := src.Pix[i], src.Pix[i+1], src.Pix[i+2]
					if ink := 765 - int(r) - int(g) - int(bl); ink > bestInk {
						bestInk = ink
						best = color.RGBA{R: r, G: g, B: bl, A: 0xff}
					}
				}
			}
			dst.SetRGBA(tx, ty, best)
		}
	}
	return dst
}

// swatch is a two-cell block of c for the status line.
func swatch(c string) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(c)).Render("  ")
}
