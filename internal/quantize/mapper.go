package quantize

import (
	"image"
	"image/color"
)

// Mapper assigns pixels to their nearest palette entry. It memoises lookups
// and is not safe for concurrent use.
type Mapper struct {
	palette color.Palette
	rgb     [][3]int32
	cache   map[uint32]uint8
}

// NewMapper returns a Mapper for p. p must hold between 1 and 256 colours.
func NewMapper(p color.Palette) *Mapper {
	m := &Mapper{
		palette: p,
		rgb:     make([][3]int32, len(p)),
		cache:   make(map[uint32]uint8, 4096),
	}
	for i, c := range p {
		r, g, b, _ := c.RGBA()
		m.rgb[i] = [3]int32{int32(r >> 8), int32(g >> 8), int32(b >> 8)}
	}
	return m
}

// Nearest returns the index of the palette colour closest to (r, g, b).
func (m *Mapper) Nearest(r, g, b uint8) uint8 {
	key := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	if idx, ok := m.cache[key]; ok {
		return idx
	}
	best, bestDist := 0, int32(-1)
	for i, c := range m.rgb {
		dr, dg, db := c[0]-int32(r), c[1]-int32(g), c[2]-int32(b)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	m.cache[key] = uint8(best)
	return uint8(best)
}

// Paletted maps every pixel of src to an index into the mapper's palette.
func (m *Mapper) Paletted(src image.Image) *image.Paletted {
	bounds := src.Bounds()
	dst := image.NewPaletted(bounds, m.palette)
	rgba, fast := src.(*image.RGBA)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var c color.RGBA
			if fast {
				c = rgba.RGBAAt(x, y)
			} else {
				c = color.RGBAModel.Convert(src.At(x, y)).(color.RGBA)
			}
			dst.SetColorIndex(x, y, m.Nearest(c.R, c.G, c.B))
		}
	}
	return dst
}
