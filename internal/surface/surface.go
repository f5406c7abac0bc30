// Package surface is the owner of one open sketch: it feeds pointer input to
// the recorder, commits finished strokes to the history stack, renders
// frames and runs the save/load pipeline against a version store.
package surface

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"sketchboard/internal/history"
	"sketchboard/internal/recorder"
	"sketchboard/internal/render"
	"sketchboard/internal/sketch"
	"sketchboard/internal/version"
)

const (
	DefaultWidth           = 1200
	DefaultHeight          = 800
	DefaultThumbnailWidth  = 240
	DefaultThumbnailHeight = 160
)

type Options struct {
	Width, Height                   int
	ThumbnailWidth, ThumbnailHeight int
	Logger                          *slog.Logger
}

// Surface is driven from a single goroutine. Save and Load are split into
// an I/O half that may run elsewhere and an apply half that must not.
type Surface struct {
	width, height  int
	thumbW, thumbH int

	rec   *recorder.Recorder
	hist  *history.Stack
	store version.Store
	ident version.Identity
	log   *slog.Logger

	background image.Image
	current    *version.Version
	unsaved    bool

	onChange func(sketch.State)
}

// New wires a surface from its collaborators. store may be nil for a
// surface that never saves.
func New(hist *history.Stack, rec *recorder.Recorder, store version.Store, ident version.Identity, opts Options) *Surface {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.ThumbnailWidth <= 0 {
		opts.ThumbnailWidth = DefaultThumbnailWidth
	}
	if opts.ThumbnailHeight <= 0 {
		opts.ThumbnailHeight = DefaultThumbnailHeight
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Surface{
		width:  opts.Width,
		height: opts.Height,
		thumbW: opts.ThumbnailWidth,
		thumbH: opts.ThumbnailHeight,
		rec:    rec,
		hist:   hist,
		store:  store,
		ident:  ident,
		log:    opts.Logger.With(slog.String("component", "surface")),
	}
}

// OnDrawingChange registers fn to receive the full state after every
// committed stroke.
func (s *Surface) OnDrawingChange(fn func(sketch.State)) { s.onChange = fn }

func (s *Surface) Size() (int, int) { return s.width, s.height }

// Resize changes the backing resolution. Committed strokes keep their
// coordinates and the background is stretched to the new size.
func (s *Surface) Resize(w, h int) {
	if w > 0 {
		s.width = w
	}
	if h > 0 {
		s.height = h
	}
}

// Pointer input. Mouse movement keeps the cursor position current; touch
// input never sets it.

func (s *Surface) PointerDown(p sketch.Point) { s.rec.Begin(p) }

func (s *Surface) PointerMove(p sketch.Point) bool {
	s.rec.Track(p)
	s.rec.Extend(p)
	return true
}

func (s *Surface) PointerUp() bool { return s.commit() }

func (s *Surface) PointerEnter(p sketch.Point) { s.rec.Track(p) }

func (s *Surface) PointerLeave() { s.rec.Leave() }

func (s *Surface) TouchStart(p sketch.Point) { s.rec.Begin(p) }

func (s *Surface) TouchMove(p sketch.Point) bool { return s.rec.Extend(p) }

func (s *Surface) TouchEnd() bool { return s.commit() }

func (s *Surface) Recording() bool { return s.rec.Recording() }

func (s *Surface) commit() bool {
	st, ok := s.rec.End()
	if !ok {
		return false
	}
	next := s.hist.Current().With(st)
	s.hist.Push(next)
	s.unsaved = true
	s.log.Debug("stroke committed", slog.Int("points", len(st.Points)), slog.String("tool", string(st.Tool)), slog.Int("strokes", next.Len()))
	if s.onChange != nil {
		s.onChange(next)
	}
	return true
}

// Tool configuration.

func (s *Surface) ToolConfig() recorder.ToolConfig { return s.rec.Config() }

func (s *Surface) SetTool(t sketch.Tool) {
	cfg := s.rec.Config()
	cfg.Tool = t
	s.rec.SetConfig(cfg)
}

func (s *Surface) SetColor(c string) {
	cfg := s.rec.Config()
	cfg.Color = c
	s.rec.SetConfig(cfg)
}

func (s *Surface) SetWidth(w float64) {
	if w <= 0 {
		return
	}
	cfg := s.rec.Config()
	cfg.Width = w
	s.rec.SetConfig(cfg)
}

// History.

func (s *Surface) Undo() bool {
	_, ok := s.hist.Undo()
	return ok
}

func (s *Surface) Redo() bool {
	_, ok := s.hist.Redo()
	return ok
}

func (s *Surface) CanUndo() bool       { return s.hist.CanUndo() }
func (s *Surface) CanRedo() bool       { return s.hist.CanRedo() }
func (s *Surface) State() sketch.State { return s.hist.Current() }

// Document state.

func (s *Surface) HasUnsavedChanges() bool { return s.unsaved }

// Current returns the open version, if any.
func (s *Surface) Current() (version.Version, bool) {
	if s.current == nil {
		return version.Version{}, false
	}
	return *s.current, true
}

func (s *Surface) HasBackground() bool { return s.background != nil }

// NewSketch drops the open version and starts from an empty canvas. A
// stroke still being drawn is discarded.
func (s *Surface) NewSketch() {
	s.rec.Cancel()
	s.hist.Reset(sketch.State{}, 0)
	s.background = nil
	s.current = nil
	s.unsaved = false
	s.log.Info("new sketch")
}

// Detach forgets the open version when it is versionID, keeping the strokes
// and background on screen. The next save creates a new version.
func (s *Surface) Detach(versionID string) bool {
	if s.current == nil || s.current.ID != versionID {
		return false
	}
	s.current = nil
	s.unsaved = true
	s.log.Info("open version removed, keeping its drawing", slog.String("id", versionID))
	return true
}

// Rendering.

// Frame renders what the user sees: committed strokes, the live stroke
// and the eraser cursor.
func (s *Surface) Frame() *image.RGBA {
	f := s.baseFrame()
	if live, ok := s.rec.Live(); ok {
		f.Live = &live
	}
	if p, ok := s.rec.Cursor(); ok {
		f.Cursor = &p
	}
	return render.Render(f)
}

// Snapshot renders only what gets persisted: background plus committed
// strokes.
func (s *Surface) Snapshot() *image.RGBA {
	return render.Render(s.baseFrame())
}

func (s *Surface) baseFrame() render.Frame {
	cfg := s.rec.Config()
	return render.Frame{
		Width:      s.width,
		Height:     s.height,
		State:      s.hist.Current(),
		Background: s.background,
		Tool:       cfg.Tool,
		ToolWidth:  cfg.Width,
	}
}

// Saving.

// DefaultName is the name suggested for a new version when existing
// versions are already stored.
func DefaultName(existing int) string {
	return fmt.Sprintf("Sketch %d", existing+1)
}

// SaveRequest is a rasterized snapshot waiting to be persisted.
type SaveRequest struct {
	// VersionID is empty when a new version will be created.
	VersionID string
	Name      string
	Data      string
	Thumbnail string
	// State is the history entry that was rasterized.
	State sketch.State
}

// PrepareSave rasterizes the current state. name is used for new versions;
// an open version keeps its own name unless name is non-empty.
func (s *Surface) PrepareSave(name string) (SaveRequest, error) {
	img := s.Snapshot()
	data, err := render.DataURL(img)
	if err != nil {
		return SaveRequest{}, err
	}
	thumb, err := render.ThumbnailDataURL(img, s.thumbW, s.thumbH)
	if err != nil {
		return SaveRequest{}, err
	}
	req := SaveRequest{Name: strings.TrimSpace(name), Data: data, Thumbnail: thumb, State: s.hist.Current()}
	if s.current != nil {
		req.VersionID = s.current.ID
		if req.Name == "" {
			req.Name = s.current.Name
		}
	}
	return req, nil
}

// Persist performs the store call for req. It touches no surface state and
// may run off the UI goroutine.
func (s *Surface) Persist(ctx context.Context, req SaveRequest) (version.Version, error) {
	if s.store == nil {
		return version.Version{}, fmt.Errorf("surface: no version store configured")
	}
	if req.VersionID != "" {
		name := req.Name
		return s.store.Update(ctx, s.ident, req.VersionID, version.Patch{
			Name:      &name,
			Thumbnail: &req.Thumbnail,
			Data:      &req.Data,
		})
	}
	return s.store.Create(ctx, s.ident, req.Name, req.Thumbnail, req.Data)
}

// ApplySaved records a successful save of req. The background is left
// alone: the saved image already contains the committed strokes, and
// stacking it under them would make undo ineffective. Strokes committed or
// undone while the save was in flight keep the sketch marked unsaved.
func (s *Surface) ApplySaved(req SaveRequest, v version.Version) {
	s.current = &v
	s.unsaved = !s.hist.Current().Same(req.State)
	s.log.Info("sketch saved", slog.String("id", v.ID), slog.String("name", v.Name), slog.Bool("unsaved", s.unsaved))
}

// Save runs the whole pipeline synchronously. On failure nothing changes
// and the unsaved flag stays set.
func (s *Surface) Save(ctx context.Context, name string) (version.Version, error) {
	req, err := s.PrepareSave(name)
	if err != nil {
		return version.Version{}, err
	}
	v, err := s.Persist(ctx, req)
	if err != nil {
		s.log.Warn("save failed", slog.Any("err", err))
		return version.Version{}, err
	}
	s.ApplySaved(req, v)
	return v, nil
}

// Loading.

// Loaded is a fetched version with its image decoded.
type Loaded struct {
	Version    version.Version
	Background image.Image
}

// Decode turns a version into something ApplyLoad accepts.
func Decode(v version.Version) (Loaded, error) {
	bg, err := render.DecodeDataURL(v.Data)
	if err != nil {
		return Loaded{}, fmt.Errorf("surface: load %s: %w", v.ID, err)
	}
	return Loaded{Version: v, Background: bg}, nil
}

// Fetch retrieves and decodes versionID. Like Persist it is safe to run off
// the UI goroutine.
func (s *Surface) Fetch(ctx context.Context, versionID string) (Loaded, error) {
	if s.store == nil {
		return Loaded{}, fmt.Errorf("surface: no version store configured")
	}
	v, err := s.store.Get(ctx, s.ident, versionID)
	if err != nil {
		return Loaded{}, err
	}
	return Decode(v)
}

// ApplyLoad makes l the open document: its image becomes the background
// and the history restarts with the loaded image as the undo floor.
func (s *Surface) ApplyLoad(l Loaded) {
	s.rec.Cancel()
	v := l.Version
	s.current = &v
	s.background = l.Background
	s.hist.Reset(sketch.State{}, 0)
	s.unsaved = false
	s.log.Info("sketch loaded", slog.String("id", v.ID), slog.String("name", v.Name))
}

// Load fetches and opens versionID. On failure the open document is kept.
func (s *Surface) Load(ctx context.Context, versionID string) error {
	l, err := s.Fetch(ctx, versionID)
	if err != nil {
		s.log.Warn("load failed", slog.String("id", versionID), slog.Any("err", err))
		return err
	}
	s.ApplyLoad(l)
	return nil
}
