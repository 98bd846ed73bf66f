package artifact

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"transrelay/pkg/collect"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, 10, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestRenderProducesPDF(t *testing.T) {
	p := &PDF{}
	doc, err := p.Render(context.Background(), "weekly", []collect.Item{
		{Kind: collect.Text, Payload: []byte("First note")},
		{Kind: collect.Image, Payload: pngBytes(t), Caption: "chart"},
		{Kind: collect.Text, Payload: []byte("Last note")},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", doc[:min(len(doc), 16)])
	}
}

func TestRenderRejectsUnknownImage(t *testing.T) {
	p := &PDF{}
	_, err := p.Render(context.Background(), "x", []collect.Item{{Kind: collect.Image, Payload: []byte("not an image")}})
	if err == nil {
		t.Fatalf("expected error for unknown image bytes")
	}
}

func TestRenderHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &PDF{}
	if _, err := p.Render(ctx, "x", []collect.Item{{Kind: collect.Text, Payload: []byte("a")}}); err == nil {
		t.Fatalf("expected context error")
	}
}
