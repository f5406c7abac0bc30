package main

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/atotto/clipboard"

	"sketchboard/internal/sketch"
	"sketchboard/internal/version"
)

func (m *model) changeWidth(delta float64) {
	w := m.surface.ToolConfig().Width + delta
	if w < minBrushWidth {
		w = minBrushWidth
	}
	if w > maxBrushWidth {
		w = maxBrushWidth
	}
	m.surface.SetWidth(w)
}

func (m *model) selectColor(i int) {
	if i < 0 || i >= len(sketch.Palette) || i >= numColors {
		return
	}
	m.colorIndex = i
	m.surface.SetColor(sketch.Palette[i])
	if m.surface.ToolConfig().Tool == sketch.ToolEraser {
		m.surface.SetTool(sketch.ToolPen)
	}
}

func (m *model) copyToClipboard(text, what string) {
	if err := clipboard.WriteAll(text); err != nil {
		m.fail("Clipboard unavailable", err)
		return
	}
	m.succeed("Copied " + what)
}

func (m *model) succeed(msg string) {
	m.successMessage = msg
	m.errorMessage = ""
}

// fail shows msg and logs err with it.
func (m *model) fail(msg string, err error) {
	m.errorMessage = msg
	m.successMessage = ""
	if err != nil {
		m.log.Warn(msg, slog.Any("err", err))
	}
}

// errorText is the user facing text for a store error.
func errorText(action string, err error) string {
	switch {
	case errors.Is(err, version.ErrNotFound):
		return "Sketch version not found"
	case errors.Is(err, version.ErrForbidden):
		return "Unauthorized to update this sketch"
	case errors.Is(err, version.ErrInvalid):
		return "Missing required fields: name, thumbnail, data"
	default:
		return "Failed to " + action + " sketch"
	}
}

// upsertVersion merges v into the listing, newest first. Metadata-only
// versions keep the images already held.
func (m *model) upsertVersion(v version.Version) {
	for i, have := range m.versions {
		if have.ID != v.ID {
			continue
		}
		if v.Thumbnail == "" {
			v.Thumbnail = have.Thumbnail
		}
		if v.Data == "" {
			v.Data = have.Data
		}
		m.versions[i] = v
		m.syncGallery()
		return
	}
	m.versions = append(m.versions, v)
	sortVersions(m.versions)
	m.syncGallery()
}

func (m *model) removeVersion(id string) {
	out := m.versions[:0]
	for _, v := range m.versions {
		if v.ID != id {
			out = append(out, v)
		}
	}
	m.versions = out
	m.syncGallery()
}

func sortVersions(vs []version.Version) {
	sort.SliceStable(vs, func(i, j int) bool {
		return vs[i].CreatedAt.After(vs[j].CreatedAt)
	})
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
