package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	quit    key.Binding
	help    key.Binding
	clear   key.Binding
	pen     key.Binding
	eraser  key.Binding
	color   key.Binding
	wider   key.Binding
	thinner key.Binding
	undo    key.Binding
	redo    key.Binding
	save    key.Binding
	newDoc  key.Binding
	gallery key.Binding
	export  key.Binding
	copyID  key.Binding

	// Gallery.
	back    key.Binding
	open    key.Binding
	remove  key.Binding
	refresh key.Binding

	// Prompts.
	yes           key.Binding
	no            key.Binding
	exportPNG     key.Binding
	exportPDF     key.Binding
	exportGallery key.Binding
	scrollUp      key.Binding
	scrollDown    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q/Ctrl+C", "Quit")),
		help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "Toggle this help screen")),
		clear:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "Clear messages / go back")),
		pen:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "Pen")),
		eraser:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "Eraser (twice the brush width)")),
		color:   key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8"), key.WithHelp("1-8", "Pick a palette color")),
		wider:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "Wider brush")),
		thinner: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "Thinner brush")),
		undo:    key.NewBinding(key.WithKeys("u", "ctrl+z"), key.WithHelp("u/Ctrl+Z", "Undo last stroke")),
		redo:    key.NewBinding(key.WithKeys("r", "U", "ctrl+y"), key.WithHelp("r/U/Ctrl+Y", "Redo")),
		save:    key.NewBinding(key.WithKeys("s", "ctrl+s"), key.WithHelp("s/Ctrl+S", "Save (asks for a name the first time)")),
		newDoc:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "New sketch")),
		gallery: key.NewBinding(key.WithKeys("g", "o"), key.WithHelp("g/o", "Browse saved versions")),
		export:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "Export as PNG, PDF or a gallery of all versions")),
		copyID:  key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "Copy the version id to the clipboard")),

		back:    key.NewBinding(key.WithKeys("esc", "q", "g"), key.WithHelp("Esc", "Back to drawing")),
		open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "Open the selected version")),
		remove:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "Delete the selected version")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "Refresh the list")),

		yes:           key.NewBinding(key.WithKeys("y", "Y")),
		no:            key.NewBinding(key.WithKeys("n", "N", "esc")),
		exportPNG:     key.NewBinding(key.WithKeys("p")),
		exportPDF:     key.NewBinding(key.WithKeys("d")),
		exportGallery: key.NewBinding(key.WithKeys("g")),
		scrollUp:      key.NewBinding(key.WithKeys("k", "up")),
		scrollDown:    key.NewBinding(key.WithKeys("j", "down")),
	}
}

// helpLines renders the help screen from the bindings so the two cannot
// drift apart.
func (k keyMap) helpLines() []string {
	sections := []struct {
		title    string
		bindings []key.Binding
		notes    []string
	}{
		{"Drawing", []key.Binding{k.pen, k.eraser, k.color, k.wider, k.thinner}, []string{"Left mouse draws, the mouse wheel changes the brush width"}},
		{"History", []key.Binding{k.undo, k.redo}, []string{"Undo stops at the version that was opened last"}},
		{"Versions", []key.Binding{k.save, k.newDoc, k.gallery, k.copyID}, nil},
		{"Gallery", []key.Binding{k.open, k.remove, k.copyID, k.refresh, k.back}, []string{"/ filters the list"}},
		{"Export", []key.Binding{k.export}, nil},
		{"General", []key.Binding{k.clear, k.help, k.quit}, nil},
	}
	lines := []string{"Sketchboard Help", "================"}
	for _, s := range sections {
		lines = append(lines, "", s.title+":")
		for _, b := range s.bindings {
			h := b.Help()
			lines = append(lines, fmt.Sprintf("  %-16s %s", h.Key, h.Desc))
		}
		for _, n := range s.notes {
			lines = append(lines, fmt.Sprintf("  %-16s %s", "", n))
		}
	}
	return lines
}
