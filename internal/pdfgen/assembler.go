package pdfgen

import (
	"bytes"
	"fmt"

	"github.com/signintech/gopdf"

	"ms-bookworks/internal/logger"
)

// PageSource loads final page images by reference.
type PageSource interface {
	Load(ref string) ([]byte, error)
	Exists(ref string) bool
}

// Assembler combines composited page images into one multi-page PDF. Every
// page keeps its source pixel grid: the PDF page is sized so the image maps
// 1:1 at its own DPI, no rescaling or cropping.
type Assembler struct {
	Source PageSource
	Logger *logger.Logger
}

func NewAssembler(source PageSource, log *logger.Logger) *Assembler {
	return &Assembler{Source: source, Logger: log}
}

// PageSizePt converts pixel dimensions at a DPI into PDF points.
func PageSizePt(widthPx, heightPx int, dpi float64) (float64, float64) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return float64(widthPx) / dpi * 72, float64(heightPx) / dpi * 72
}

// Assemble renders the ordered page refs into a single document. A missing
// page aborts the whole assembly; a partial book must never ship.
func (a *Assembler) Assemble(orderID string, pageRefs []string) ([]byte, error) {
	if len(pageRefs) == 0 {
		return nil, fmt.Errorf("order %s has no pages to assemble", orderID)
	}

	for i, ref := range pageRefs {
		if ref == "" || !a.Source.Exists(ref) {
			return nil, fmt.Errorf("order %s page %d image %q is missing", orderID, i, ref)
		}
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{Unit: gopdf.UnitPT, PageSize: *gopdf.PageSizeA4})

	for i, ref := range pageRefs {
		data, err := a.Source.Load(ref)
		if err != nil {
			return nil, fmt.Errorf("order %s page %d: %w", orderID, i, err)
		}

		widthPx, heightPx, dpi, err := Dimensions(data)
		if err != nil {
			return nil, fmt.Errorf("order %s page %d: unreadable image: %w", orderID, i, err)
		}

		wPt, hPt := PageSizePt(widthPx, heightPx, dpi)
		pdf.AddPageWithOption(gopdf.PageOption{PageSize: &gopdf.Rect{W: wPt, H: hPt}})

		holder, err := gopdf.ImageHolderByBytes(data)
		if err != nil {
			return nil, fmt.Errorf("order %s page %d: %w", orderID, i, err)
		}
		if err := pdf.ImageByHolder(holder, 0, 0, &gopdf.Rect{W: wPt, H: hPt}); err != nil {
			return nil, fmt.Errorf("order %s page %d: failed to place image: %w", orderID, i, err)
		}

		if a.Logger != nil {
			a.Logger.Debug("PDF", fmt.Sprintf("order %s page %d: %dx%dpx @ %.0fdpi -> %.1fx%.1fpt",
				orderID, i, widthPx, heightPx, dpi, wPt, hPt))
		}
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("order %s: failed to write pdf: %w", orderID, err)
	}
	return buf.Bytes(), nil
}
