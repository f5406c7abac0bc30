package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sketchboard/internal/export"
	"sketchboard/internal/render"
	"sketchboard/internal/surface"
	"sketchboard/internal/version"
)

// documentName names the open sketch, or the name it would be saved under.
func (m model) documentName() string {
	if v, ok := m.surface.Current(); ok {
		return v.Name
	}
	return surface.DefaultName(len(m.versions))
}

func (m model) exportCmd(kind ExportType) tea.Cmd {
	name := m.documentName()
	switch kind {
	case ExportPNG:
		img := m.surface.Snapshot()
		path := m.config.ExportPath(export.FileName(name, ".png"))
		return func() tea.Msg {
			return exportedMsg{path: path, err: writePNG(path, img)}
		}
	case ExportPDF:
		img := m.surface.Snapshot()
		v, _ := m.surface.Current()
		v.Name = name
		if v.CreatedAt.IsZero() {
			v.CreatedAt = time.Now()
		}
		path := m.config.ExportPath(export.FileName(name, ".pdf"))
		return func() tea.Msg {
			data, err := render.DataURL(img)
			if err != nil {
				return exportedMsg{err: err}
			}
			v.Data = data
			return exportedMsg{path: path, err: writePDF(path, v)}
		}
	case ExportGallery:
		ctx, store, ident := m.ctx, m.store, m.ident
		cols := m.config.Export.GalleryColumns
		path := m.config.ExportPath("gallery.png")
		return func() tea.Msg {
			if store == nil {
				return exportedMsg{err: fmt.Errorf("no version store configured")}
			}
			vs, err := store.List(ctx, ident)
			if err != nil {
				return exportedMsg{err: err}
			}
			return exportedMsg{path: path, err: writeGallery(path, vs, cols)}
		}
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	data, err := render.PNGBytes(img, png.DefaultCompression)
	if err != nil {
		return err
	}
	return export.WriteFile(path, data, 0o644)
}

func writePDF(path string, v version.Version) error {
	var buf bytes.Buffer
	if err := export.PDF(&buf, v); err != nil {
		return err
	}
	return export.WriteFile(path, buf.Bytes(), 0o644)
}

func writeGallery(path string, vs []version.Version, cols int) error {
	if len(vs) == 0 {
		return fmt.Errorf("no saved sketches to export")
	}
	img, err := export.Gallery(vs, export.GalleryOptions{Columns: cols})
	if err != nil {
		return err
	}
	return writePNG(path, img)
}
