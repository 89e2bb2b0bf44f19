package render

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
)

type weight int

const (
	regular weight = iota
	medium
	bold
)

var (
	fontsOnce sync.Once
	fontsErr  error
	fonts     map[weight]*truetype.Font
)

// loadFonts parses the embedded Go fonts once.
func loadFonts() error {
	fontsOnce.Do(func() {
		src := map[weight][]byte{
			regular: goregular.TTF,
			medium:  gomedium.TTF,
			bold:    gobold.TTF,
		}
		parsed := make(map[weight]*truetype.Font, len(src))
		for w, ttf := range src {
			f, err := truetype.Parse(ttf)
			if err != nil {
				fontsErr = fmt.Errorf("render: parse font: %w", err)
				return
			}
			parsed[w] = f
		}
		fonts = parsed
	})
	return fontsErr
}

type faceKey struct {
	weight weight
	size   float64
}

// faceSet caches faces for one rasterization. truetype faces keep glyph
// caches and must not be shared between goroutines.
type faceSet struct {
	scale float64
	faces map[faceKey]font.Face
}

func newFaceSet(scale float64) *faceSet {
	return &faceSet{scale: scale, faces: make(map[faceKey]font.Face)}
}

// face returns the face for a logical point size.
func (s *faceSet) face(w weight, size float64) font.Face {
	k := faceKey{weight: w, size: size}
	if f, ok := s.faces[k]; ok {
		return f
	}
	f := truetype.NewFace(fonts[w], &truetype.Options{
		Size:    size * s.scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	s.faces[k] = f
	return f
}

func (s *faceSet) close() {
	for _, f := range s.faces {
		_ = f.Close()
	}
}

func measure(f font.Face, text string) float64 {
	return float64(font.MeasureString(f, text)) / 64
}

func ascent(f font.Face) float64 {
	return float64(f.Metrics().Ascent) / 64
}
