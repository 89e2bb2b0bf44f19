// Package testutil provides shared test helpers for asset stores and image fixtures.
package testutil

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/png"
	"testing"

	"github.com/starford/cardsmith/internal/storage"
)

// TestStore creates a temporary asset directory with a storage.Provider.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// SolidImage returns a w×h image filled with c.
func SolidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// PNGBytes encodes a solid w×h PNG.
func PNGBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, SolidImage(w, h, c)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// GIFBytes encodes an animated GIF with one solid frame per colour and the
// given per-frame delay in centiseconds.
func GIFBytes(t *testing.T, w, h, delay int, colors ...color.Color) []byte {
	t.Helper()
	g := &gif.GIF{LoopCount: 0}
	for _, c := range colors {
		pal := color.Palette{c}
		frame := image.NewPaletted(image.Rect(0, 0, w, h), pal)
		g.Image = append(g.Image, frame)
		g.Delay = append(g.Delay, delay)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// DataURI wraps data in a base64 data URI.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
