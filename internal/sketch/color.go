package sketch

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

const (
	DefaultColor = "#000000"
	DefaultWidth = 5.0
)

var (
	Black = color.NRGBA{A: 0xff}
	White = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Palette is the fixed set of colors offered by the pickers.
var Palette = []string{
	"#000000",
	"#e03131",
	"#2f9e44",
	"#1971c2",
	"#f08c00",
	"#9c36b5",
	"#0c8599",
	"#868e96",
}

// ParseColor reads "#rrggbb" or "#rgb".
func ParseColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("sketch: invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("sketch: invalid color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// ColorOrBlack is ParseColor with a black fallback for bad input.
func ColorOrBlack(s string) color.NRGBA {
	c, err := ParseColor(s)
	if err != nil {
		return Black
	}
	return c
}

// HexColor formats c as "#rrggbb", ignoring alpha.
func HexColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}
