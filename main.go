package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sketchboard/internal/config"
	"sketchboard/internal/history"
	"sketchboard/internal/recorder"
	"sketchboard/internal/sketch"
	"sketchboard/internal/surface"
	"sketchboard/internal/version"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sketchboard: %v\n", err)
		os.Exit(1)
	}
}

// initialModel wires the surface to the configured store. A store that
// cannot be reached leaves the surface usable for drawing and exporting.
func initialModel(ctx context.Context, cfg config.Config, log *slog.Logger) (model, func()) {
	m := model{
		ctx:       ctx,
		log:       log,
		config:    cfg,
		mode:      ModeNormal,
		keys:      defaultKeyMap(),
		nameInput: newNameInput(),
		gallery:   newGallery(),
	}

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Warn("version store unavailable", slog.Any("err", err))
		m.errorMessage = "Offline: saving is disabled"
		b = &backend{close: func() {}}
	}
	m.store = b.store
	m.ident = b.ident
	m.events = b.events

	tc := recorder.DefaultToolConfig()
	if tool, err := sketch.ParseTool(cfg.Canvas.Tool); err == nil {
		tc.Tool = tool
	}
	if cfg.Canvas.Color != "" {
		tc.Color = cfg.Canvas.Color
	}
	if cfg.Canvas.BrushWidth > 0 {
		tc.Width = cfg.Canvas.BrushWidth
	}
	rec := recorder.New(tc)
	var opts []history.Option
	if cfg.Canvas.HistoryLimit > 0 {
		opts = append(opts, history.WithLimit(cfg.Canvas.HistoryLimit))
	}
	m.surface = surface.New(history.New(sketch.State{}, opts...), rec, b.store, b.ident, surface.Options{
		Width:           cfg.Canvas.Width,
		Height:          cfg.Canvas.Height,
		ThumbnailWidth:  cfg.Canvas.ThumbnailWidth,
		ThumbnailHeight: cfg.Canvas.ThumbnailHeight,
		Logger:          log,
	})
	m.surface.OnDrawingChange(func(st sketch.State) {
		log.Debug("drawing changed", slog.Int("strokes", st.Len()))
	})
	for i, c := range sketch.Palette {
		if strings.EqualFold(c, cfg.Canvas.Color) {
			m.colorIndex = i
		}
	}
	return m, b.close
}

func newNameInput() textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "sketch name"
	in.CharLimit = 80
	in.Width = 40
	return in
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.listCmd(), m.waitForEvent())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.gallery.SetSize(m.canvasSize())
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case savedMsg:
		m.busy = false
		if msg.err != nil {
			m.fail(errorText("save", msg.err), msg.err)
			if errors.Is(msg.err, version.ErrNotFound) && m.detach(msg.req.VersionID) {
				m.errorMessage += "; save again to create a new one"
			}
			return m, nil
		}
		m.surface.ApplySaved(msg.req, msg.version)
		m.upsertVersion(msg.version)
		m.succeed(fmt.Sprintf("Saved %q", msg.version.Name))
		return m, nil

	case loadedMsg:
		m.busy = false
		if msg.err != nil {
			m.fail(errorText("load", msg.err), msg.err)
			return m, nil
		}
		m.surface.ApplyLoad(msg.loaded)
		m.syncGallery()
		m.mode = ModeNormal
		m.succeed(fmt.Sprintf("Loaded %q", msg.loaded.Version.Name))
		return m, nil

	case listMsg:
		if msg.err != nil {
			m.fail("Failed to list sketches", msg.err)
			return m, nil
		}
		m.versions = msg.versions
		sortVersions(m.versions)
		m.syncGallery()
		return m, nil

	case deletedMsg:
		if msg.err != nil {
			m.fail(errorText("delete", msg.err), msg.err)
			return m, nil
		}
		m.removeVersion(msg.id)
		if m.detach(msg.id) {
			m.succeed("Sketch deleted, the drawing is kept unsaved")
			return m, nil
		}
		m.succeed("Sketch deleted")
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.fail("Export failed: "+msg.err.Error(), msg.err)
			return m, nil
		}
		m.succeed("Exported " + msg.path)
		return m, nil

	case eventMsg:
		switch msg.event.Type {
		case version.EventCreated, version.EventUpdated:
			m.upsertVersion(msg.event.Version)
		case version.EventDeleted:
			m.removeVersion(msg.event.Version.ID)
			if m.detach(msg.event.Version.ID) {
				m.fail("The open sketch was deleted elsewhere; save to keep it", nil)
			}
		}
		return m, m.waitForEvent()

	case feedClosedMsg:
		m.events = nil
		m.log.Info("version feed closed")
		return m, nil
	}

	// Cursor blinks and filter results.
	var cmd tea.Cmd
	switch m.mode {
	case ModeNameInput:
		m.nameInput, cmd = m.nameInput.Update(msg)
	case ModeGallery:
		m.gallery, cmd = m.gallery.Update(msg)
	}
	return m, cmd
}

// detach keeps the drawing of a version that no longer exists so the next
// save creates a new one.
func (m *model) detach(id string) bool {
	if !m.surface.Detach(id) {
		return false
	}
	m.syncGallery()
	return true
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.help {
		switch {
		case key.Matches(msg, m.keys.help), key.Matches(msg, m.keys.back):
			m.help = false
			m.helpScroll = 0
		case key.Matches(msg, m.keys.scrollDown):
			if m.helpScroll < len(m.keys.helpLines())-1 {
				m.helpScroll++
			}
		case key.Matches(msg, m.keys.scrollUp):
			if m.helpScroll > 0 {
				m.helpScroll--
			}
		}
		return m, nil
	}

	switch m.mode {
	case ModeConfirm:
		return m.handleConfirmKey(msg)
	case ModeNameInput:
		return m.handleNameKey(msg)
	case ModeGallery:
		return m.handleGalleryKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		if m.surface.HasUnsavedChanges() && m.config.UI.Confirmations {
			m.confirmAction = ConfirmQuit
			m.mode = ModeConfirm
			return m, nil
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help = true
	case key.Matches(msg, m.keys.clear):
		m.errorMessage = ""
		m.successMessage = ""
	case key.Matches(msg, m.keys.pen):
		m.surface.SetTool(sketch.ToolPen)
	case key.Matches(msg, m.keys.eraser):
		m.surface.SetTool(sketch.ToolEraser)
	case key.Matches(msg, m.keys.color):
		m.selectColor(int(msg.String()[0] - '1'))
	case key.Matches(msg, m.keys.wider):
		m.changeWidth(brushStep)
	case key.Matches(msg, m.keys.thinner):
		m.changeWidth(-brushStep)
	case key.Matches(msg, m.keys.undo):
		if !m.busy {
			m.undo()
		}
	case key.Matches(msg, m.keys.redo):
		if !m.busy {
			m.redo()
		}
	case key.Matches(msg, m.keys.save):
		if m.busy {
			return m, nil
		}
		if _, open := m.surface.Current(); open {
			cmd := m.startSave("")
			return m, cmd
		}
		m.nameInput.SetValue(surface.DefaultName(len(m.versions)))
		m.nameInput.CursorEnd()
		m.mode = ModeNameInput
		return m, m.nameInput.Focus()
	case key.Matches(msg, m.keys.newDoc):
		if m.busy {
			return m, nil
		}
		if m.surface.HasUnsavedChanges() && m.config.UI.Confirmations {
			m.confirmAction = ConfirmNewSketch
			m.mode = ModeConfirm
			return m, nil
		}
		m.newSketch()
	case key.Matches(msg, m.keys.gallery):
		m.mode = ModeGallery
		m.gallery.ResetFilter()
		m.gallery.Select(0)
		return m, m.listCmd()
	case key.Matches(msg, m.keys.export):
		m.confirmAction = ConfirmChooseExportType
		m.mode = ModeConfirm
	case key.Matches(msg, m.keys.copyID):
		if v, ok := m.surface.Current(); ok {
			m.copyToClipboard(v.ID, "version id")
		} else {
			m.fail("Save the sketch first", nil)
		}
	}
	return m, nil
}

func (m model) handleNameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		name := strings.TrimSpace(m.nameInput.Value())
		if name == "" {
			m.fail("Name is required", nil)
			return m, nil
		}
		m.nameInput.Blur()
		m.mode = ModeNormal
		cmd := m.startSave(name)
		return m, cmd
	case tea.KeyEsc:
		m.nameInput.Blur()
		m.nameInput.Reset()
		m.mode = ModeNormal
		return m, nil
	}
	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

func (m model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmAction == ConfirmChooseExportType {
		m.mode = ModeNormal
		switch {
		case key.Matches(msg, m.keys.exportPNG):
			return m, m.exportCmd(ExportPNG)
		case key.Matches(msg, m.keys.exportPDF):
			return m, m.exportCmd(ExportPDF)
		case key.Matches(msg, m.keys.exportGallery):
			return m, m.exportCmd(ExportGallery)
		}
		return m, nil
	}

	back := ModeNormal
	if m.confirmAction == ConfirmLoadVersion || m.confirmAction == ConfirmDeleteVersion {
		back = ModeGallery
	}
	switch {
	case key.Matches(msg, m.keys.yes):
		m.mode = back
		switch m.confirmAction {
		case ConfirmQuit:
			return m, tea.Quit
		case ConfirmNewSketch:
			m.newSketch()
		case ConfirmLoadVersion:
			cmd := m.startLoad(m.confirmVersionID)
			return m, cmd
		case ConfirmDeleteVersion:
			return m, m.deleteCmd(m.confirmVersionID)
		}
	case key.Matches(msg, m.keys.no):
		m.mode = back
	}
	return m, nil
}

func (m *model) newSketch() {
	m.surface.NewSketch()
	m.syncGallery()
	m.succeed("New sketch")
}

// startSave rasterizes on the UI goroutine and persists in a command.
// Drawing is blocked until the result arrives.
func (m *model) startSave(name string) tea.Cmd {
	req, err := m.surface.PrepareSave(name)
	if err != nil {
		m.fail("Failed to save sketch", err)
		return nil
	}
	m.busy = true
	m.succeed("Saving...")
	ctx, s := m.ctx, m.surface
	return func() tea.Msg {
		v, err := s.Persist(ctx, req)
		return savedMsg{req: req, version: v, err: err}
	}
}

func (m *model) startLoad(id string) tea.Cmd {
	m.busy = true
	m.succeed("Loading...")
	ctx, s := m.ctx, m.surface
	return func() tea.Msg {
		l, err := s.Fetch(ctx, id)
		return loadedMsg{loaded: l, err: err}
	}
}

func (m model) deleteCmd(id string) tea.Cmd {
	if m.store == nil {
		return nil
	}
	ctx, store, ident := m.ctx, m.store, m.ident
	return func() tea.Msg {
		return deletedMsg{id: id, err: store.Delete(ctx, ident, id)}
	}
}

func (m model) listCmd() tea.Cmd {
	if m.store == nil {
		return nil
	}
	ctx, store, ident := m.ctx, m.store, m.ident
	return func() tea.Msg {
		vs, err := store.List(ctx, ident)
		return listMsg{versions: vs, err: err}
	}
}

func (m model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

func (m model) View() string {
	if m.help {
		return m.helpView()
	}

	var result strings.Builder
	if m.showsGallery() {
		result.WriteString(m.galleryView())
	} else {
		result.WriteString(strings.Join(m.canvasView(), "\n"))
	}
	result.WriteString("\n")
	result.WriteString(lipgloss.NewStyle().MaxWidth(max(m.width, 1)).Render(m.statusLine()))
	return result.String()
}

func (m model) showsGallery() bool {
	if m.mode == ModeGallery {
		return true
	}
	return m.mode == ModeConfirm &&
		(m.confirmAction == ConfirmLoadVersion || m.confirmAction == ConfirmDeleteVersion)
}

func (m model) statusLine() string {
	var status string
	switch m.mode {
	case ModeNameInput:
		status = fmt.Sprintf("Mode: SAVE | Name: %s | Enter=save, Esc=cancel", m.nameInput.View())
	case ModeConfirm:
		var message string
		switch m.confirmAction {
		case ConfirmQuit:
			message = "Quit? Unsaved changes will be lost. (y/n)"
		case ConfirmNewSketch:
			message = "Start a new sketch? Unsaved changes will be lost. (y/n)"
		case ConfirmLoadVersion:
			message = "Open this version? Unsaved changes will be lost. (y/n)"
		case ConfirmDeleteVersion:
			message = "Delete this version? (y/n)"
		case ConfirmChooseExportType:
			message = "Export as (p)ng, p(d)f or (g)allery? Any other key cancels"
		}
		status = fmt.Sprintf("Mode: CONFIRM | %s", message)
	case ModeGallery:
		status = fmt.Sprintf("Mode: GALLERY | %d sketches | ↑/↓=navigate, /=filter, Enter=open, d=delete, y=copy id, r=refresh, Esc=back", len(m.versions))
	default:
		cfg := m.surface.ToolConfig()
		name := m.documentName()
		if m.surface.HasUnsavedChanges() {
			name += "*"
		}
		status = fmt.Sprintf("Mode: %s | Tool: %s %s %gpx | Sketch: %s | History: %s",
			m.modeString(), cfg.Tool, swatch(cfg.Color), cfg.Width, name, m.historyString())
	}
	if m.mode != ModeConfirm {
		if m.successMessage != "" {
			status += " | " + m.successMessage
		}
		if m.errorMessage != "" {
			status += " | ERROR: " + m.errorMessage
		} else if m.successMessage == "" && m.mode == ModeNormal {
			status += " | ? for help | q to quit"
		}
	}
	return status
}

func (m model) modeString() string {
	switch m.mode {
	case ModeNormal:
		if m.surface.Recording() {
			return "DRAWING"
		}
		return "DRAW"
	case ModeNameInput:
		return "SAVE"
	case ModeGallery:
		return "GALLERY"
	case ModeConfirm:
		return "CONFIRM"
	default:
		return "UNKNOWN"
	}
}

func (m model) helpView() string {
	lines := m.keys.helpLines()
	visibleHeight := m.height - 1
	if visibleHeight < 1 {
		visibleHeight = 1
	}
	startLine := m.helpScroll
	if startLine > len(lines)-visibleHeight {
		startLine = max(len(lines)-visibleHeight, 0)
	}
	endLine := min(startLine+visibleHeight, len(lines))

	result := strings.Join(lines[startLine:endLine], "\n")
	result += "\n" + fmt.Sprintf("Help (%d-%d of %d lines) | j/k to scroll, Esc to close",
		startLine+1, endLine, len(lines))
	return result
}
