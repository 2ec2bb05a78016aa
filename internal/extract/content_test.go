package extract

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"citegraph/internal/models"
	"citegraph/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestSplitParagraphs(t *testing.T) {
	text := "First paragraph\ncontinues here.\n\n  \n\nSecond one.\n\n\x00\n\nThird."
	require.Equal(t, []string{"First paragraph\ncontinues here.", "Second one.", "Third."}, SplitParagraphs(text))
	require.Empty(t, SplitParagraphs("  \n\n "))
}

func TestExtractRejectsGarbage(t *testing.T) {
	_, err := New(nil).Extract([]byte("definitely not a pdf"), "p1")
	var xerr *ExtractionError
	require.True(t, errors.As(err, &xerr))
	require.Equal(t, "p1", xerr.PaperID)
}

func TestNormalizeCMYKToRGBPNG(t *testing.T) {
	cmyk := image.NewCMYK(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			cmyk.Set(x, y, color.CMYK{C: 0, M: 255, Y: 255, K: 0})
		}
	}
	var src bytes.Buffer
	require.NoError(t, png.Encode(&src, toRGBA(cmyk)))

	out, err := normalizeImage(rawImage{fileType: "png", cs: "DeviceCMYK", comp: 4, data: src.Bytes()})
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	r, g, b, _ := decoded.At(1, 1).RGBA()
	require.Greater(t, r, uint32(0xF000))
	require.Less(t, g, uint32(0x1000))
	require.Less(t, b, uint32(0x1000))
}

func TestNormalizePassesRGBJPEGThrough(t *testing.T) {
	jpg := testutil.JPEG(color.RGBA{G: 255, A: 255})
	out, err := normalizeImage(rawImage{fileType: "jpg", cs: "DeviceRGB", comp: 3, data: jpg})
	require.NoError(t, err)
	require.Equal(t, jpg, out)

	_, err = normalizeImage(rawImage{fileType: "jpg", cs: "DeviceRGB", comp: 3, data: []byte("broken")})
	require.Error(t, err)
}

func TestExtractSyntheticPaper(t *testing.T) {
	pdfBytes, err := testutil.BuildPDF(
		testutil.PDFPage{Paragraphs: []string{"We build on arXiv:2001.00001 for attention."}},
		testutil.PDFPage{Images: 1},
	)
	require.NoError(t, err)

	doc, err := New(nil).Extract(pdfBytes, "2101.00002")
	require.NoError(t, err)
	require.Equal(t, 2, doc.Pages)
	require.Equal(t, 1, doc.Count(models.ChunkText))
	require.Equal(t, 1, doc.Count(models.ChunkImage))

	require.Equal(t, models.ChunkText, doc.Chunks[0].Type)
	require.Equal(t, 1, doc.Chunks[0].PageNumber)
	require.Contains(t, doc.Chunks[0].Text, "2001.00001")

	require.Equal(t, models.ChunkImage, doc.Chunks[1].Type)
	require.Equal(t, 2, doc.Chunks[1].PageNumber)
	require.NotEmpty(t, doc.Chunks[1].Image)

	require.Equal(t, []string{"2001.00001"}, ExtractReferences(doc.FullText))
}
