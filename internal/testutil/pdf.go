// Package testutil builds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/go-pdf/fpdf"
)

// PDFPage describes one page of a synthetic PDF.
type PDFPage struct {
	Paragraphs []string
	Images     int
}

// JPEG returns a small solid-colour JPEG.
func JPEG(c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

// BuildPDF renders pages with Helvetica text and embedded JPEG images.
func BuildPDF(pages ...PDFPage) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	doc.RegisterImageOptionsReader("fig", opts, bytes.NewReader(JPEG(color.RGBA{R: 200, G: 40, B: 40, A: 255})))

	for _, p := range pages {
		doc.AddPage()
		doc.SetFont("Helvetica", "", 12)
		for i, para := range p.Paragraphs {
			if i > 0 {
				doc.Ln(12)
			}
			doc.MultiCell(0, 6, para, "", "L", false)
		}
		for i := 0; i < p.Images; i++ {
			doc.ImageOptions("fig", 20, float64(120+i*50), 40, 40, false, opts, 0, "")
		}
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
