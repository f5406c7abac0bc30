package main

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"

	"sketchboard/internal/config"
	"sketchboard/internal/surface"
	"sketchboard/internal/version"
)

type model struct {
	ctx    context.Context
	log    *slog.Logger
	config config.Config

	width      int
	height     int
	mode       Mode
	help       bool
	helpScroll int
	keys       keyMap

	surface *surface.Surface
	store   version.Store
	ident   version.Identity
	events  <-chan version.Event

	// mouseDown is set between a left press and its release.
	mouseDown bool
	// busy blocks drawing while a save or load is in flight.
	busy bool

	nameInput        textinput.Model
	gallery          list.Model
	versions         []version.Version
	confirmAction    ConfirmAction
	confirmVersionID string
	colorIndex       int

	errorMessage   string
	successMessage string
}

type savedMsg struct {
	req     surface.SaveRequest
	version version.Version
	err     error
}

type loadedMsg struct {
	loaded surface.Loaded
	err    error
}

type listMsg struct {
	versions []version.Version
	err      error
}

type deletedMsg struct {
	id  string
	err error
}

type exportedMsg struct {
	path string
	err  error
}

type eventMsg struct {
	event version.Event
}

// feedClosedMsg is sent once the change feed ends.
type feedClosedMsg struct{}
