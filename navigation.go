package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"sketchboard/internal/version"
)

// versionItem is one row of the saved-version list.
type versionItem struct {
	v    version.Version
	open bool
}

func (i versionItem) Title() string {
	if i.open {
		return i.v.Name + " (open)"
	}
	return i.v.Name
}

func (i versionItem) Description() string {
	return fmt.Sprintf("%s  %s", i.v.UpdatedAt.Local().Format("2006-01-02 15:04"), i.v.ID)
}

func (i versionItem) FilterValue() string { return i.v.Name }

func newGallery() list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Saved sketches"
	l.SetShowHelp(false)
	l.SetStatusBarItemName("sketch", "sketches")
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	return l
}

// syncGallery rebuilds the list rows from the listing and the open version.
func (m *model) syncGallery() {
	current, open := m.surface.Current()
	items := make([]list.Item, len(m.versions))
	for i, v := range m.versions {
		items[i] = versionItem{v: v, open: open && v.ID == current.ID}
	}
	m.gallery.SetItems(items)
	if n := len(m.gallery.VisibleItems()); n > 0 && m.gallery.Index() >= n {
		m.gallery.Select(n - 1)
	}
}

func (m model) handleGalleryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While filtering, and while esc clears an applied filter, the list owns
	// the keyboard.
	filtering := m.gallery.FilterState() == list.Filtering ||
		(m.gallery.FilterState() == list.FilterApplied && msg.Type == tea.KeyEsc)
	if filtering {
		var cmd tea.Cmd
		m.gallery, cmd = m.gallery.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.back):
		m.mode = ModeNormal
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		return m, m.listCmd()
	case key.Matches(msg, m.keys.open):
		v, ok := m.selectedVersion()
		if !ok || m.busy {
			return m, nil
		}
		if m.surface.HasUnsavedChanges() && m.config.UI.Confirmations {
			m.confirmVersionID = v.ID
			m.confirmAction = ConfirmLoadVersion
			m.mode = ModeConfirm
			return m, nil
		}
		cmd := m.startLoad(v.ID)
		return m, cmd
	case key.Matches(msg, m.keys.remove):
		v, ok := m.selectedVersion()
		if !ok {
			return m, nil
		}
		m.confirmVersionID = v.ID
		if !m.config.UI.Confirmations {
			return m, m.deleteCmd(v.ID)
		}
		m.confirmAction = ConfirmDeleteVersion
		m.mode = ModeConfirm
		return m, nil
	case key.Matches(msg, m.keys.copyID):
		if v, ok := m.selectedVersion(); ok {
			m.copyToClipboard(v.ID, "version id")
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.gallery, cmd = m.gallery.Update(msg)
	return m, cmd
}

func (m model) selectedVersion() (version.Version, bool) {
	item, ok := m.gallery.SelectedItem().(versionItem)
	if !ok {
		return version.Version{}, false
	}
	return item.v, true
}

func (m model) galleryView() string {
	if len(m.versions) == 0 {
		return "Saved sketches\n\n(No saved sketches yet)"
	}
	return m.gallery.View()
}
