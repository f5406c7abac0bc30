package export

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sketchboard/internal/render"
	"sketchboard/internal/version"
)

func solid(t *testing.T, w, h int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	url, err := render.DataURL(img)
	if err != nil {
		t.Fatalf("DataURL: %v", err)
	}
	return url
}

func TestWriteFileReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.png")
	if err := WriteFile(path, []byte("one"), 0); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := WriteFile(path, []byte("two"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "two" {
		t.Fatalf("content = %q, %v", got, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
	if err := WriteFile("  ", nil, 0); err == nil {
		t.Fatalf("empty path should fail")
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"Sketch 1":      "Sketch_1.png",
		"../etc/passwd": "etc_passwd.png",
		"   ":           "sketch.png",
		"café au lait":  "caf_au_lait.png",
	}
	for in, want := range cases {
		if got := FileName(in, ".png"); got != want {
			t.Fatalf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPDF(t *testing.T) {
	v := version.Version{ID: "sketch_1_abc", Name: "My sketch", Data: solid(t, 120, 80, color.RGBA{R: 0xff, A: 0xff}), UpdatedAt: time.Unix(0, 0)}
	var buf bytes.Buffer
	if err := PDF(&buf, v); err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a pdf: %.10q", buf.String())
	}

	v.Data = "garbage"
	if err := PDF(&bytes.Buffer{}, v); err == nil {
		t.Fatalf("expected an error for undecodable data")
	}
}

func TestGalleryLayout(t *testing.T) {
	thumb := solid(t, 40, 20, color.RGBA{B: 0xff, A: 0xff})
	versions := []version.Version{
		{ID: "a", Name: "first", Thumbnail: thumb},
		{ID: "b", Name: strings.Repeat("very long name ", 10), Thumbnail: thumb},
		{ID: "c", Name: "broken", Thumbnail: "nope"},
	}
	opts := GalleryOptions{Columns: 2, CellWidth: 100, CellHeight: 50, Padding: 10}
	img, err := Gallery(versions, opts)
	if err != nil {
		t.Fatalf("Gallery: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 2*110+10 {
		t.Fatalf("width = %d", b.Dx())
	}
	if b.Dy() <= 2*(50+10) {
		t.Fatalf("height = %d, expected two rows plus captions", b.Dy())
	}
	// Centre of the first cell holds the blue thumbnail.
	if c := img.RGBAAt(10+50, 10+25); c.B < 200 || c.R > 50 {
		t.Fatalf("thumbnail pixel = %+v", c)
	}

	empty, err := Gallery(nil, GalleryOptions{})
	if err != nil || empty.Bounds().Empty() {
		t.Fatalf("empty gallery = %v, %v", empty.Bounds(), err)
	}
}
