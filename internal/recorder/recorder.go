// Package recorder turns pointer input into strokes while a gesture is in
// progress. It owns no history; finished strokes are handed back to the
// caller.
package recorder

import "sketchboard/internal/sketch"

// ToolConfig is the brush a new stroke is seeded with.
type ToolConfig struct {
	Tool  sketch.Tool
	Color string
	Width float64
}

func DefaultToolConfig() ToolConfig {
	return ToolConfig{Tool: sketch.ToolPen, Color: sketch.DefaultColor, Width: sketch.DefaultWidth}
}

// EffectiveWidth is the stroke width actually recorded for this tool.
func (c ToolConfig) EffectiveWidth() float64 {
	if c.Tool == sketch.ToolEraser {
		return c.Width * sketch.EraserScale
	}
	return c.Width
}

// Viewport maps client coordinates onto the canvas backing store. Display
// is the on-screen size, Backing the pixel resolution strokes are kept in.
type Viewport struct {
	OffsetX, OffsetY            float64
	DisplayWidth, DisplayHeight float64
	BackingWidth, BackingHeight float64
}

// Map converts a client position into device space. A degenerate display
// size maps 1:1.
func (v Viewport) Map(clientX, clientY float64) sketch.Point {
	sx, sy := 1.0, 1.0
	if v.DisplayWidth > 0 && v.BackingWidth > 0 {
		sx = v.BackingWidth / v.DisplayWidth
	}
	if v.DisplayHeight > 0 && v.BackingHeight > 0 {
		sy = v.BackingHeight / v.DisplayHeight
	}
	return sketch.Point{
		X: (clientX - v.OffsetX) * sx,
		Y: (clientY - v.OffsetY) * sy,
	}
}

// Recorder is either idle or recording one stroke.
type Recorder struct {
	config ToolConfig
	active *sketch.Stroke
	cursor *sketch.Point
}

func New(cfg ToolConfig) *Recorder {
	return &Recorder{config: cfg}
}

func (r *Recorder) Config() ToolConfig { return r.config }

// SetConfig changes the brush for the next gesture. A stroke already in
// progress keeps the brush it started with.
func (r *Recorder) SetConfig(cfg ToolConfig) { r.config = cfg }

func (r *Recorder) Recording() bool { return r.active != nil }

// Begin starts a stroke at p. A stroke that was still open is dropped.
func (r *Recorder) Begin(p sketch.Point) {
	r.active = &sketch.Stroke{
		Points: []sketch.Point{p},
		Color:  r.config.Color,
		Width:  r.config.EffectiveWidth(),
		Tool:   r.config.Tool,
	}
}

// Extend appends p to the open stroke. It reports whether the live frame
// changed and needs a redraw.
func (r *Recorder) Extend(p sketch.Point) bool {
	if r.active == nil {
		return false
	}
	r.active.Points = append(r.active.Points, p)
	return true
}

// End closes the open stroke and returns it.
func (r *Recorder) End() (sketch.Stroke, bool) {
	if r.active == nil {
		return sketch.Stroke{}, false
	}
	st := *r.active
	r.active = nil
	if len(st.Points) == 0 {
		return sketch.Stroke{}, false
	}
	return st, true
}

// Cancel drops the open stroke without finishing it.
func (r *Recorder) Cancel() { r.active = nil }

// Live returns a copy of the open stroke for previewing.
func (r *Recorder) Live() (sketch.Stroke, bool) {
	if r.active == nil {
		return sketch.Stroke{}, false
	}
	return r.active.Clone(), true
}

// Track records the last known pointer position.
func (r *Recorder) Track(p sketch.Point) {
	r.cursor = &p
}

// Leave forgets the pointer position. An open stroke stays open and keeps
// accepting points if the device continues to send them.
func (r *Recorder) Leave() { r.cursor = nil }

func (r *Recorder) Cursor() (sketch.Point, bool) {
	if r.cursor == nil {
		return sketch.Point{}, false
	}
	return *r.cursor, true
}
