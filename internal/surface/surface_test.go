package surface

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"sketchboard/internal/history"
	"sketchboard/internal/recorder"
	"sketchboard/internal/render"
	"sketchboard/internal/sketch"
	"sketchboard/internal/version"
)

type memStore struct {
	versions map[string]version.Version
	fail     error
	creates  int
	updates  int
}

func newMemStore() *memStore {
	return &memStore{versions: map[string]version.Version{}}
}

func (m *memStore) Create(_ context.Context, id version.Identity, name, thumbnail, data string) (version.Version, error) {
	if m.fail != nil {
		return version.Version{}, m.fail
	}
	v, err := version.New(id.UserID, name, thumbnail, data, time.Now())
	if err != nil {
		return version.Version{}, err
	}
	m.versions[v.ID] = v
	m.creates++
	return v, nil
}

func (m *memStore) Get(_ context.Context, _ version.Identity, versionID string) (version.Version, error) {
	if m.fail != nil {
		return version.Version{}, m.fail
	}
	v, ok := m.versions[versionID]
	if !ok {
		return version.Version{}, version.ErrNotFound
	}
	return v, nil
}

func (m *memStore) List(context.Context, version.Identity) ([]version.Version, error) {
	out := make([]version.Version, 0, len(m.versions))
	for _, v := range m.versions {
		out = append(out, v)
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, _ version.Identity, versionID string, p version.Patch) (version.Version, error) {
	if m.fail != nil {
		return version.Version{}, m.fail
	}
	v, ok := m.versions[versionID]
	if !ok {
		return version.Version{}, version.ErrNotFound
	}
	v = v.Apply(p, time.Now())
	m.versions[versionID] = v
	m.updates++
	return v, nil
}

func (m *memStore) Delete(_ context.Context, _ version.Identity, versionID string) error {
	delete(m.versions, versionID)
	return nil
}

func newSurface(store version.Store) *Surface {
	return New(
		history.New(sketch.State{}),
		recorder.New(recorder.DefaultToolConfig()),
		store,
		version.Identity{UserID: "u1", Token: "tok"},
		Options{Width: 100, Height: 60, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))},
	)
}

func drawLine(s *Surface, y float64) {
	s.PointerDown(sketch.Point{X: 10, Y: y})
	s.PointerMove(sketch.Point{X: 50, Y: y})
	s.PointerMove(sketch.Point{X: 90, Y: y})
	s.PointerUp()
}

func TestStrokeCommitsToHistory(t *testing.T) {
	s := newSurface(nil)
	var seen []int
	s.OnDrawingChange(func(st sketch.State) { seen = append(seen, st.Len()) })

	drawLine(s, 20)
	drawLine(s, 40)

	if s.State().Len() != 2 {
		t.Fatalf("strokes = %d, want 2", s.State().Len())
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("change notifications = %v", seen)
	}
	if !s.HasUnsavedChanges() {
		t.Fatalf("drawing must mark the sketch unsaved")
	}
	if s.PointerUp() {
		t.Fatalf("pointer up without a gesture must not commit")
	}
}

func TestEraserStrokeIsRecordedDoubleWidth(t *testing.T) {
	s := newSurface(nil)
	s.SetTool(sketch.ToolEraser)
	s.SetWidth(7)
	drawLine(s, 20)

	st := s.State().At(0)
	if st.Tool != sketch.ToolEraser || st.Width != 14 {
		t.Fatalf("eraser stroke = %+v", st)
	}
}

func TestBranchingScenario(t *testing.T) {
	s := newSurface(nil)
	drawLine(s, 10) // A
	drawLine(s, 20) // B
	if !s.Undo() {
		t.Fatalf("undo should succeed")
	}
	if s.State().Len() != 1 {
		t.Fatalf("after undo strokes = %d", s.State().Len())
	}
	drawLine(s, 30) // C
	if s.CanRedo() {
		t.Fatalf("a new stroke must discard the redo tail")
	}
	if got := s.State().At(1).Points[0].Y; got != 30 {
		t.Fatalf("second stroke y = %v, want C", got)
	}
	s.Undo()
	s.Undo()
	if s.State().Len() != 0 || s.CanUndo() {
		t.Fatalf("expected empty state at the floor")
	}
	if s.Undo() {
		t.Fatalf("undo at the floor must be a no-op")
	}
}

func TestTouchDoesNotShowCursor(t *testing.T) {
	s := newSurface(nil)
	s.SetTool(sketch.ToolEraser)
	s.TouchStart(sketch.Point{X: 10, Y: 10})
	s.TouchMove(sketch.Point{X: 20, Y: 10})
	if _, ok := s.rec.Cursor(); ok {
		t.Fatalf("touch input must not set a cursor")
	}
	if !s.TouchEnd() {
		t.Fatalf("touch stroke should commit")
	}

	s.PointerEnter(sketch.Point{X: 5, Y: 5})
	if _, ok := s.rec.Cursor(); !ok {
		t.Fatalf("mouse enter should set the cursor")
	}
	s.PointerLeave()
	if _, ok := s.rec.Cursor(); ok {
		t.Fatalf("leave should clear the cursor")
	}
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	store := newMemStore()
	s := newSurface(store)
	drawLine(s, 20)

	v, err := s.Save(context.Background(), "first")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.HasUnsavedChanges() {
		t.Fatalf("successful save must clear the unsaved flag")
	}
	if !strings.HasPrefix(v.Data, "data:image/png;base64,") || !strings.HasPrefix(v.Thumbnail, "data:image/png;base64,") {
		t.Fatalf("payloads are not png data urls")
	}
	img, err := render.DecodeDataURL(v.Data)
	if err != nil {
		t.Fatalf("decode saved data: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 60 {
		t.Fatalf("saved image bounds = %v", img.Bounds())
	}
	if s.State().Len() != 1 || s.HasBackground() {
		t.Fatalf("save must leave history and background alone")
	}

	drawLine(s, 40)
	v2, err := s.Save(context.Background(), "")
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if v2.ID != v.ID || v2.Name != "first" {
		t.Fatalf("second save should update %s, got %+v", v.ID, v2.Summary())
	}
	if store.creates != 1 || store.updates != 1 {
		t.Fatalf("creates=%d updates=%d", store.creates, store.updates)
	}
}

func TestFailedSaveKeepsUnsavedFlag(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("offline")
	s := newSurface(store)
	drawLine(s, 20)

	if _, err := s.Save(context.Background(), "x"); err == nil {
		t.Fatalf("expected save error")
	}
	if !s.HasUnsavedChanges() {
		t.Fatalf("failed save must keep the unsaved flag")
	}
	if _, ok := s.Current(); ok {
		t.Fatalf("failed save must not open a version")
	}
}

func TestStrokeDuringSaveKeepsUnsaved(t *testing.T) {
	store := newMemStore()
	s := newSurface(store)
	drawLine(s, 20)

	req, err := s.PrepareSave("first")
	if err != nil {
		t.Fatalf("PrepareSave: %v", err)
	}
	drawLine(s, 40)
	v, err := s.Persist(context.Background(), req)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	s.ApplySaved(req, v)
	if !s.HasUnsavedChanges() {
		t.Fatalf("stroke committed during the save was marked saved")
	}
	if cur, ok := s.Current(); !ok || cur.ID != v.ID {
		t.Fatalf("saved version not opened")
	}

	req, _ = s.PrepareSave("")
	s.Undo()
	v, _ = s.Persist(context.Background(), req)
	s.ApplySaved(req, v)
	if !s.HasUnsavedChanges() {
		t.Fatalf("undo during the save was marked saved")
	}
}

func TestDetachKeepsDrawing(t *testing.T) {
	s := newSurface(newMemStore())
	drawLine(s, 20)
	v, err := s.Save(context.Background(), "gone")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.Detach("other") {
		t.Fatalf("detached for a different id")
	}
	if !s.Detach(v.ID) {
		t.Fatalf("Detach(%s) = false", v.ID)
	}
	if _, ok := s.Current(); ok || !s.HasUnsavedChanges() || s.State().Len() != 1 {
		t.Fatalf("detach should keep strokes and mark them unsaved")
	}
	v2, err := s.Save(context.Background(), "again")
	if err != nil || v2.ID == v.ID {
		t.Fatalf("save after detach should create a new version: %v", err)
	}
}

func TestLoadDiscardsOpenStroke(t *testing.T) {
	store := newMemStore()
	data := blueDataURL(t, 100, 60)
	v, _ := store.Create(context.Background(), version.Identity{UserID: "u1"}, "bg", data, data)
	s := newSurface(store)

	s.PointerDown(sketch.Point{X: 10, Y: 10})
	s.PointerMove(sketch.Point{X: 20, Y: 10})
	if err := s.Load(context.Background(), v.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Recording() || s.PointerUp() || s.State().Len() != 0 {
		t.Fatalf("stroke begun before the load reached the loaded sketch")
	}
}

func blueDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{B: 0xff, A: 0xff})
		}
	}
	url, err := render.DataURL(img)
	if err != nil {
		t.Fatalf("DataURL: %v", err)
	}
	return url
}

func TestLoadScenario(t *testing.T) {
	store := newMemStore()
	data := blueDataURL(t, 100, 60)
	v, err := store.Create(context.Background(), version.Identity{UserID: "u1"}, "bg", data, data)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := newSurface(store)
	drawLine(s, 10)
	drawLine(s, 20)
	if err := s.Load(context.Background(), v.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.State().Len() != 0 || s.CanUndo() || s.CanRedo() {
		t.Fatalf("load must reset history")
	}
	if s.HasUnsavedChanges() {
		t.Fatalf("load must clear the unsaved flag")
	}

	drawLine(s, 30)
	if !s.Undo() {
		t.Fatalf("undo after load should succeed")
	}
	if s.State().Len() != 0 {
		t.Fatalf("undo should return to the empty state")
	}
	frame := s.Frame()
	if c := frame.RGBAAt(50, 30); c.B < 200 || c.R > 50 {
		t.Fatalf("background should still be shown, got %+v", c)
	}
	if s.Undo() {
		t.Fatalf("undo below the loaded image must be a no-op")
	}
}

func TestFailedLoadLeavesStateUnchanged(t *testing.T) {
	store := newMemStore()
	s := newSurface(store)
	drawLine(s, 10)

	if err := s.Load(context.Background(), "missing"); !errors.Is(err, version.ErrNotFound) {
		t.Fatalf("Load err = %v", err)
	}
	bad, _ := store.Create(context.Background(), version.Identity{UserID: "u1"}, "bad", "t", "not an image")
	if err := s.Load(context.Background(), bad.ID); err == nil {
		t.Fatalf("expected decode error")
	}
	if s.State().Len() != 1 || !s.HasUnsavedChanges() || s.HasBackground() {
		t.Fatalf("failed load changed the surface")
	}
}

func TestNewSketchClearsEverything(t *testing.T) {
	store := newMemStore()
	s := newSurface(store)
	data := blueDataURL(t, 10, 10)
	v, _ := store.Create(context.Background(), version.Identity{UserID: "u1"}, "bg", data, data)
	if err := s.Load(context.Background(), v.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}
	drawLine(s, 10)

	s.NewSketch()
	if s.State().Len() != 0 || s.HasBackground() || s.HasUnsavedChanges() {
		t.Fatalf("new sketch left state behind")
	}
	if _, ok := s.Current(); ok {
		t.Fatalf("new sketch must close the open version")
	}
}

func TestUndoDoesNotTouchUnsavedFlag(t *testing.T) {
	s := newSurface(newMemStore())
	drawLine(s, 10)
	if _, err := s.Save(context.Background(), "a"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Undo()
	if s.HasUnsavedChanges() {
		t.Fatalf("undo should not mark the sketch unsaved")
	}
}

func TestDefaultName(t *testing.T) {
	if got := DefaultName(0); got != "Sketch 1" {
		t.Fatalf("DefaultName(0) = %q", got)
	}
	if got := DefaultName(4); got != "Sketch 5" {
		t.Fatalf("DefaultName(4) = %q", got)
	}
}
