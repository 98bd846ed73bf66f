// Package artifact renders collected report items into a PDF document.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-pdf/fpdf"

	"transrelay/pkg/collect"
)

// PDF renders one item per block: images scaled to the page width, text
// as wrapped paragraphs, captions under their image.
type PDF struct {
	PageSize string
	Title    string
	// FontPath optionally names a UTF-8 TrueType font. Without one the
	// core Helvetica font is used and text is mapped to cp1252.
	FontPath string
}

const (
	lineHeight = 6.0
	gap        = 4.0
)

// Render implements collect.Renderer.
func (p *PDF) Render(ctx context.Context, name string, items []collect.Item) ([]byte, error) {
	size := p.PageSize
	if size == "" {
		size = "A4"
	}
	pdf := fpdf.New("P", "mm", size, "")
	pdf.SetCreator("transrelay", true)
	pdf.SetTitle(name, true)
	pdf.SetAutoPageBreak(true, 15)

	family, tr := "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
	if p.FontPath != "" {
		pdf.AddUTF8Font("body", "", p.FontPath)
		family, tr = "body", func(s string) string { return s }
	}

	pdf.AddPage()
	pdf.SetFont(family, "", 16)
	title := p.Title
	if title == "" {
		title = name
	}
	pdf.MultiCell(0, 9, tr(title), "", "L", false)
	pdf.Ln(gap)
	pdf.SetFont(family, "", 11)

	pageW, pageH := pdf.GetPageSize()
	left, _, right, bottom := pdf.GetMargins()
	usableW := pageW - left - right

	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch it.Kind {
		case collect.Image:
			imgType, err := imageType(it.Payload)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			imgName := fmt.Sprintf("item-%d", i)
			opts := fpdf.ImageOptions{ImageType: imgType, ReadDpi: true}
			info := pdf.RegisterImageOptionsReader(imgName, opts, bytes.NewReader(it.Payload))
			if info == nil || !pdf.Ok() {
				return nil, fmt.Errorf("item %d: %w", i, pdf.Error())
			}
			w, h := usableW, usableW*info.Height()/info.Width()
			if maxH := pageH - 2*bottom - 20; h > maxH {
				w, h = w*maxH/h, maxH
			}
			if pdf.GetY()+h > pageH-bottom {
				pdf.AddPage()
			}
			pdf.ImageOptions(imgName, left+(usableW-w)/2, pdf.GetY(), w, h, true, opts, 0, "")
			if c := strings.TrimSpace(it.Caption); c != "" {
				pdf.SetFont(family, "", 9)
				pdf.MultiCell(0, 5, tr(c), "", "C", false)
				pdf.SetFont(family, "", 11)
			}
		case collect.Text:
			pdf.MultiCell(0, lineHeight, tr(string(it.Payload)), "", "L", false)
		}
		pdf.Ln(gap)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func imageType(b []byte) (string, error) {
	switch http.DetectContentType(b) {
	case "image/jpeg":
		return "JPG", nil
	case "image/png":
		return "PNG", nil
	case "image/gif":
		return "GIF", nil
	default:
		return "", fmt.Errorf("unsupported image format")
	}
}
