package thumbnail

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// pdfRenderDPI renders page one at twice the PDF point density (72 dpi), so
// small text survives the downscale to the preview box.
const pdfRenderDPI = 144

// fromPDF renders the first page to a pixel buffer, resizes it to fit the
// PDF bounding box, and encodes it as PNG.
func (g *Generator) fromPDF(data []byte) ([]byte, string, string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, "", "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	page, err := doc.ImageDPI(0, pdfRenderDPI)
	if err != nil {
		return nil, "", "", fmt.Errorf("render pdf page: %w", err)
	}

	thumb := imaging.Fit(page, pdfBox, pdfBox, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, "", "", fmt.Errorf("encode pdf thumbnail: %w", err)
	}
	return buf.Bytes(), ".png", "image/png", nil
}
