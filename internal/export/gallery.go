package export

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"sketchboard/internal/render"
	"sketchboard/internal/version"
)

// GalleryOptions lays out a contact sheet. Zero values pick defaults.
type GalleryOptions struct {
	Columns   int
	CellWidth int
	// CellHeight is the thumbnail area, the caption goes below it.
	CellHeight int
	Padding    int
	FontSize   float64
}

func (o GalleryOptions) withDefaults() GalleryOptions {
	if o.Columns <= 0 {
		o.Columns = 4
	}
	if o.CellWidth <= 0 {
		o.CellWidth = 240
	}
	if o.CellHeight <= 0 {
		o.CellHeight = 160
	}
	if o.Padding <= 0 {
		o.Padding = 12
	}
	if o.FontSize <= 0 {
		o.FontSize = 12
	}
	return o
}

var (
	monoOnce sync.Once
	monoFont *truetype.Font
	monoErr  error
)

func fontFace(size float64) (font.Face, error) {
	monoOnce.Do(func() {
		monoFont, monoErr = truetype.Parse(gomono.TTF)
	})
	if monoErr != nil {
		return nil, fmt.Errorf("failed to parse font: %v", monoErr)
	}
	return truetype.NewFace(monoFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

// Gallery draws the thumbnails of versions in a grid, each captioned with
// its name. Versions whose thumbnail cannot be decoded get a grey box.
func Gallery(versions []version.Version, opts GalleryOptions) (*image.RGBA, error) {
	opts = opts.withDefaults()
	face, err := fontFace(opts.FontSize)
	if err != nil {
		return nil, err
	}
	captionH := int(opts.FontSize*1.6) + 4

	cols := opts.Columns
	if len(versions) < cols {
		cols = max(len(versions), 1)
	}
	rows := max((len(versions)+cols-1)/cols, 1)
	cellW := opts.CellWidth + opts.Padding
	cellH := opts.CellHeight + captionH + opts.Padding
	width := cols*cellW + opts.Padding
	height := rows*cellH + opts.Padding

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	dc := gg.NewContextForRGBA(img)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFontFace(face)

	for i, v := range versions {
		x := float64(opts.Padding + (i%cols)*cellW)
		y := float64(opts.Padding + (i/cols)*cellH)
		drawCell(dc, v, x, y, opts)

		dc.SetColor(color.Black)
		caption := truncate(dc, v.Name, float64(opts.CellWidth))
		dc.DrawStringAnchored(caption, x+float64(opts.CellWidth)/2, y+float64(opts.CellHeight)+float64(captionH)/2, 0.5, 0.5)
	}
	return img, nil
}

func drawCell(dc *gg.Context, v version.Version, x, y float64, opts GalleryOptions) {
	w, h := float64(opts.CellWidth), float64(opts.CellHeight)
	thumb, err := render.DecodeDataURL(v.Thumbnail)
	if err != nil {
		dc.SetColor(color.Gray{Y: 0xdd})
		dc.DrawRectangle(x, y, w, h)
		dc.Fill()
	} else {
		fit := render.Thumbnail(thumb, opts.CellWidth, opts.CellHeight)
		b := fit.Bounds()
		dc.DrawImage(fit, int(x)+(opts.CellWidth-b.Dx())/2, int(y)+(opts.CellHeight-b.Dy())/2)
	}
	dc.SetColor(color.Gray{Y: 0x99})
	dc.SetLineWidth(1)
	dc.DrawRectangle(x+0.5, y+0.5, w-1, h-1)
	dc.Stroke()
}

// truncate shortens s with an ellipsis until it fits in maxW.
func truncate(dc *gg.Context, s string, maxW float64) string {
	if w, _ := dc.MeasureString(s); w <= maxW {
		return s
	}
	r := []rune(s)
	for len(r) > 0 {
		r = r[:len(r)-1]
		candidate := string(r) + "..."
		if w, _ := dc.MeasureString(candidate); w <= maxW {
			return candidate
		}
	}
	return ""
}
