package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	xdraw "golang.org/x/image/draw"
)

const pngPrefix = "data:image/png;base64,"

var ErrNotDataURL = errors.New("render: not an image data URL")

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// PNGBytes encodes img with the given compression level.
func PNGBytes(img image.Image, level png.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL returns img as a "data:image/png;base64,..." string.
func DataURL(img image.Image) (string, error) {
	raw, err := PNGBytes(img, png.DefaultCompression)
	if err != nil {
		return "", err
	}
	return pngPrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// ThumbnailDataURL downsizes img to fit maxW x maxH and encodes it with the
// cheapest settings. It is the low quality preview stored next to the data.
func ThumbnailDataURL(img image.Image, maxW, maxH int) (string, error) {
	thumb := Thumbnail(img, maxW, maxH)
	raw, err := PNGBytes(thumb, png.BestSpeed)
	if err != nil {
		return "", err
	}
	return pngPrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// Thumbnail scales img to fit inside maxW x maxH keeping its aspect ratio.
// Images already small enough are copied as is.
func Thumbnail(img image.Image, maxW, maxH int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxW > 0 && w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if maxH > 0 && h > maxH {
		w = w * maxH / h
		h = maxH
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// DecodeDataURL decodes a base64 image data URL. Bare base64 without the
// "data:" header is accepted too.
func DecodeDataURL(s string) (image.Image, error) {
	raw, err := DataURLBytes(s)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("render: decode image: %w", err)
	}
	return img, nil
}

// DataURLBytes returns the raw bytes carried by a base64 data URL.
func DataURLBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrNotDataURL
	}
	payload := s
	if strings.HasPrefix(s, "data:") {
		header, body, ok := strings.Cut(s, ",")
		if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
			return nil, ErrNotDataURL
		}
		payload = body
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("render: decode base64: %w", err)
	}
	return raw, nil
}
