package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gen2brain/go-fitz"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var pdfMagic = []byte("%PDF-")

// decode turns encoded bytes into an asset for the given mode. Sources
// whose declared size exceeds maxPixels are rejected before any pixel
// buffer is allocated.
func decode(ref string, data []byte, mode Mode, pdfDPI float64, maxPixels int) (*Asset, error) {
	if bytes.HasPrefix(data, pdfMagic) {
		img, err := renderPDF(data, pdfDPI, maxPixels)
		if err != nil {
			return nil, err
		}
		a := &Asset{Ref: ref, Mode: mode, Format: "pdf", Image: img}
		if mode == Raw {
			a.Bytes = data
		}
		return a, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	a := &Asset{Ref: ref, Mode: mode, Format: format}
	switch mode {
	case Raw:
		a.Image = img
		a.Bytes = data
		if format == "gif" {
			anim, err := gif.DecodeAll(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("decode gif frames: %w", err)
			}
			a.Animation = anim
		}
	default:
		a.Image = normalize(img)
	}
	return a, nil
}

// normalize redraws any decoded image into an 8-bit sRGB RGBA raster with
// a zero origin. CMYK, YCbCr, 16-bit and paletted sources all end up in the
// one layout the compositor samples from.
func normalize(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func checkPixels(w, h, maxPixels int) error {
	if maxPixels > 0 && int64(w)*int64(h) > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, w, h, maxPixels)
	}
	return nil
}

// renderPDF rasterizes the first page of a PDF document.
func renderPDF(data []byte, dpi float64, maxPixels int) (*image.RGBA, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	// Bound is in points (1/72 inch).
	bound, err := doc.Bound(0)
	if err != nil {
		return nil, fmt.Errorf("pdf page size: %w", err)
	}
	scale := dpi / 72
	if err := checkPixels(int(float64(bound.Dx())*scale), int(float64(bound.Dy())*scale), maxPixels); err != nil {
		return nil, err
	}
	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("render pdf page: %w", err)
	}
	return normalize(img), nil
}
