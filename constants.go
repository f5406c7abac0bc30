package main

type Mode int

const (
	ModeNormal Mode = iota
	ModeNameInput
	ModeGallery
	ModeConfirm
)

type ConfirmAction int

const (
	ConfirmQuit ConfirmAction = iota
	ConfirmNewSketch
	ConfirmLoadVersion
	ConfirmDeleteVersion
	ConfirmChooseExportType
)

type ExportType int

const (
	ExportPNG ExportType = iota
	ExportPDF
	ExportGallery
)

const (
	minBrushWidth = 1.0
	maxBrushWidth = 50.0
	brushStep     = 1.0
	statusLines   = 1
	numColors     = 8
)
