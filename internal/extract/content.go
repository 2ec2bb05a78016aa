package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"regexp"
	"sort"
	"strings"

	"citegraph/internal/logger"
	"citegraph/internal/models"
	"citegraph/internal/util"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/tiff"
)

func init() {
	api.DisableConfigDir()
}

// ExtractionError means the byte stream could not be read as a PDF.
type ExtractionError struct {
	PaperID string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: unparseable pdf: %v", e.PaperID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type Document struct {
	Pages    int
	FullText string
	Chunks   []models.Chunk
}

func (d Document) Count(t models.ChunkType) int {
	n := 0
	for _, c := range d.Chunks {
		if c.Type == t {
			n++
		}
	}
	return n
}

type Extractor struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{log: log}
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n+`)

// Extract turns raw PDF bytes into page-ordered chunks. Within a page text
// paragraphs come first, then images in object order.
func (e *Extractor) Extract(pdfBytes []byte, paperID string) (Document, error) {
	pages, err := pageTexts(pdfBytes)
	if err != nil {
		return Document{}, &ExtractionError{PaperID: paperID, Err: err}
	}

	images, err := pageImages(pdfBytes)
	if err != nil {
		e.log.Warn("image extraction failed, continuing with text only", "paper_id", paperID, "error", err)
		images = nil
	}

	doc := Document{Pages: len(pages)}
	var full strings.Builder
	textOrd, imageOrd := 0, 0
	for i, text := range pages {
		pageNo := i + 1
		full.WriteString(text)
		full.WriteString("\n")
		for _, para := range SplitParagraphs(text) {
			doc.Chunks = append(doc.Chunks, models.Chunk{
				PaperID:    paperID,
				Type:       models.ChunkText,
				PageNumber: pageNo,
				Ordinal:    textOrd,
				Text:       para,
			})
			textOrd++
		}
		for _, raw := range images[pageNo] {
			b, err := normalizeImage(raw)
			if err != nil {
				e.log.Warn("skipping undecodable image", "paper_id", paperID, "page", pageNo, "error", err)
				continue
			}
			doc.Chunks = append(doc.Chunks, models.Chunk{
				PaperID:    paperID,
				Type:       models.ChunkImage,
				PageNumber: pageNo,
				Ordinal:    imageOrd,
				Image:      b,
			})
			imageOrd++
		}
	}
	doc.FullText = full.String()
	return doc, nil
}

// SplitParagraphs splits page text on blank lines and drops empty paragraphs.
func SplitParagraphs(text string) []string {
	parts := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = util.CleanText(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func pageTexts(b []byte) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts = nil
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, err
	}
	n := r.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	texts = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d text: %w", i, err)
		}
		texts = append(texts, s)
	}
	return texts, nil
}

type rawImage struct {
	objNr    int
	fileType string
	cs       string
	comp     int
	data     []byte
}

func pageImages(b []byte) (out map[int][]rawImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pages, err := api.ExtractImagesRaw(bytes.NewReader(b), nil, conf)
	if err != nil {
		return nil, err
	}

	out = map[int][]rawImage{}
	for _, page := range pages {
		for objNr, img := range page {
			if img.Reader == nil {
				continue
			}
			data, err := io.ReadAll(img.Reader)
			if err != nil || len(data) == 0 {
				continue
			}
			out[img.PageNr] = append(out[img.PageNr], rawImage{
				objNr:    objNr,
				fileType: img.FileType,
				cs:       img.Cs,
				comp:     img.Comp,
				data:     data,
			})
		}
	}
	for pageNr := range out {
		imgs := out[pageNr]
		sort.Slice(imgs, func(i, j int) bool { return imgs[i].objNr < imgs[j].objNr })
	}
	return out, nil
}

func needsRGB(img rawImage) bool {
	return strings.Contains(strings.ToUpper(img.cs), "CMYK") || img.comp >= 4
}

// normalizeImage returns bytes an image embedder can consume: JPEG and PNG
// pass through unless they need colour conversion, everything else is
// re-encoded as RGB PNG.
func normalizeImage(img rawImage) ([]byte, error) {
	switch img.fileType {
	case "jpg", "jpeg", "png":
		if !needsRGB(img) {
			if _, _, err := image.DecodeConfig(bytes.NewReader(img.data)); err != nil {
				return nil, err
			}
			return img.data, nil
		}
	}

	var (
		decoded image.Image
		err     error
	)
	switch img.fileType {
	case "tif", "tiff":
		decoded, err = tiff.Decode(bytes.NewReader(img.data))
	case "jpg", "jpeg":
		decoded, err = jpeg.Decode(bytes.NewReader(img.data))
	default:
		decoded, _, err = image.Decode(bytes.NewReader(img.data))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", img.fileType, err)
	}
	return encodeRGB(decoded)
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func encodeRGB(src image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, toRGBA(src)); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
