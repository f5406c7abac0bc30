package export

import (
	"bytes"
	"fmt"
	"image/png"
	"io"

	"github.com/jung-kurt/gofpdf"

	"sketchboard/internal/render"
	"sketchboard/internal/version"
)

const pdfMargin = 10.0

// PDF writes v as a single A4 landscape page: the name as a heading and
// the full resolution image scaled to fit below it.
func PDF(w io.Writer, v version.Version) error {
	raw, err := render.DataURLBytes(v.Data)
	if err != nil {
		return fmt.Errorf("export: pdf %s: %w", v.ID, err)
	}
	img, err := render.DecodeDataURL(v.Data)
	if err != nil {
		return fmt.Errorf("export: pdf %s: %w", v.ID, err)
	}
	// Re-encode anything that is not PNG so gofpdf sees one format.
	if !bytes.HasPrefix(raw, []byte("\x89PNG")) {
		if raw, err = render.PNGBytes(img, png.DefaultCompression); err != nil {
			return err
		}
	}

	p := gofpdf.New("L", "mm", "A4", "")
	p.SetTitle(v.Name, true)
	p.AddPage()
	p.SetFont("Helvetica", "B", 16)
	tr := p.UnicodeTranslatorFromDescriptor("")
	p.CellFormat(0, 10, tr(v.Name), "", 1, "L", false, 0, "")
	p.SetFont("Helvetica", "", 9)
	p.CellFormat(0, 6, v.UpdatedAt.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")

	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	p.RegisterImageOptionsReader(v.ID, opts, bytes.NewReader(raw))

	pageW, pageH := p.GetPageSize()
	top := p.GetY() + 2
	boxW, boxH := pageW-2*pdfMargin, pageH-top-pdfMargin
	b := img.Bounds()
	iw, ih := float64(b.Dx()), float64(b.Dy())
	scale := boxW / iw
	if s := boxH / ih; s < scale {
		scale = s
	}
	drawW, drawH := iw*scale, ih*scale
	x := pdfMargin + (boxW-drawW)/2
	p.ImageOptions(v.ID, x, top, drawW, drawH, false, opts, 0, "")

	if err := p.Output(w); err != nil {
		return fmt.Errorf("export: pdf %s: %w", v.ID, err)
	}
	return nil
}
