package render

import (
	"image/color"
	"testing"

	"coral/internal/commitq"
	"coral/internal/core"
)

func TestPixelsApplyWritesOpaqueColors(t *testing.T) {
	p := NewPixels(core.Size{W: 3, H: 2}, color.Black)
	p.MarkClean()
	n := p.Apply([]commitq.Item{
		{Pos: core.Position{X: 2, Y: 1}, Color: core.Color{R: 10, G: 20, B: 30}},
		{Pos: core.Position{X: 9, Y: 9}, Color: core.Color{R: 1}},
	})
	if n != 2 {
		t.Fatalf("applied %d, want 2", n)
	}
	if !p.Dirty() {
		t.Fatalf("expected buffer to be dirty after apply")
	}
	base := 4 * (1*3 + 2)
	got := p.Bytes()[base : base+4]
	want := []byte{10, 20, 30, 0xff}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pixel = %v, want %v", got, want)
		}
	}
	if p.Bytes()[3] != 0xff || p.Bytes()[0] != 0 {
		t.Fatalf("background pixel = %v, want opaque black", p.Bytes()[:4])
	}
}

func TestPixelsFillUsesBackgroundForEmptyCells(t *testing.T) {
	bg := color.RGBA{R: 5, G: 6, B: 7, A: 8}
	p := NewPixels(core.Size{W: 2, H: 1}, bg)
	canvas := core.NewCanvas(2, 1)
	canvas.Set(core.Position{X: 1, Y: 0}, core.Color{R: 200, G: 100, B: 50})

	p.Fill(canvas.Cells())
	want := []byte{5, 6, 7, 8, 200, 100, 50, 0xff}
	for i, b := range p.Bytes() {
		if b != want[i] {
			t.Fatalf("byte %d = %d, want %d (%v)", i, b, want[i], p.Bytes())
		}
	}

	p.Fill(make([]core.Color, 7))
	if p.Bytes()[4] != 200 {
		t.Fatalf("mismatched snapshot should be ignored")
	}
}

func TestPixelsImageSharesBuffer(t *testing.T) {
	p := NewPixels(core.Size{W: 4, H: 4}, color.Transparent)
	p.Put(core.Position{X: 3, Y: 2}, core.Color{G: 77})
	img := p.Image()
	if got := img.RGBAAt(3, 2); got.G != 77 || got.A != 0xff {
		t.Fatalf("RGBAAt = %+v", got)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
}
