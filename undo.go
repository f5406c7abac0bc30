package main

// Undo and redo never cross the floor set by the last load, so a loaded
// sketch cannot be undone away.

func (m *model) undo() {
	if !m.surface.Undo() {
		return
	}
	m.successMessage = ""
	m.errorMessage = ""
}

func (m *model) redo() {
	if !m.surface.Redo() {
		return
	}
	m.successMessage = ""
	m.errorMessage = ""
}

func (m model) historyString() string {
	switch {
	case m.surface.CanUndo() && m.surface.CanRedo():
		return "undo/redo"
	case m.surface.CanUndo():
		return "undo"
	case m.surface.CanRedo():
		return "redo"
	default:
		return "-"
	}
}
