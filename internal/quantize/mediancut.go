// Package quantize reduces full-colour frames to a bounded palette.
package quantize

import (
	"image"
	"image/color"
	"sort"
)

const (
	bits    = 5
	shift   = 8 - bits
	buckets = 1 << (3 * bits)
)

type entry struct {
	key   [3]uint8 // reduced channel values
	count uint64
	sum   [3]uint64 // full precision channel sums
}

type box []entry

func (b box) weight() uint64 {
	var n uint64
	for _, e := range b {
		n += e.count
	}
	return n
}

// widest returns the channel with the largest reduced-value spread and that spread.
func (b box) widest() (int, int) {
	lo := [3]uint8{255, 255, 255}
	var hi [3]uint8
	for _, e := range b {
		for c := 0; c < 3; c++ {
			if e.key[c] < lo[c] {
				lo[c] = e.key[c]
			}
			if e.key[c] > hi[c] {
				hi[c] = e.key[c]
			}
		}
	}
	ch, spread := 0, -1
	for c := 0; c < 3; c++ {
		if d := int(hi[c]) - int(lo[c]); d > spread {
			ch, spread = c, d
		}
	}
	return ch, spread
}

func (b box) mean() color.RGBA {
	var n uint64
	var s [3]uint64
	for _, e := range b {
		n += e.count
		for c := 0; c < 3; c++ {
			s[c] += e.sum[c]
		}
	}
	if n == 0 {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: uint8(s[0] / n), G: uint8(s[1] / n), B: uint8(s[2] / n), A: 0xff}
}

// MedianCut is a draw.Quantizer that splits colour space boxes at the
// weighted median of their widest channel. Alpha is ignored: frames are
// expected to be matted onto an opaque colour first.
type MedianCut struct{}

// Quantize appends up to cap(p)-len(p) colours representative of m to p.
func (MedianCut) Quantize(p color.Palette, m image.Image) color.Palette {
	want := cap(p) - len(p)
	if want <= 0 {
		return p
	}
	entries := histogram(m)
	if len(entries) == 0 {
		return p
	}

	boxes := []box{entries}
	for len(boxes) < want {
		idx, ch, best := -1, 0, 0
		for i, b := range boxes {
			if len(b) < 2 {
				continue
			}
			c, spread := b.widest()
			if spread > best || idx < 0 {
				idx, ch, best = i, c, spread
			}
		}
		if idx < 0 {
			break
		}
		lower, upper := split(boxes[idx], ch)
		boxes[idx] = lower
		boxes = append(boxes, upper)
	}

	for _, b := range boxes {
		p = append(p, b.mean())
	}
	return p
}

// split orders b along channel ch and cuts it at the weighted median. Both
// halves are non-empty.
func split(b box, ch int) (box, box) {
	sort.Slice(b, func(i, j int) bool { return b[i].key[ch] < b[j].key[ch] })
	half := b.weight() / 2
	var acc uint64
	cut := 1
	for i, e := range b {
		acc += e.count
		if acc >= half {
			cut = i + 1
			break
		}
	}
	if cut >= len(b) {
		cut = len(b) - 1
	}
	return b[:cut], b[cut:]
}

func histogram(m image.Image) box {
	counts := make([]entry, buckets)
	add := func(r, g, b uint8) {
		k := int(r>>shift)<<(2*bits) | int(g>>shift)<<bits | int(b>>shift)
		e := &counts[k]
		e.count++
		e.sum[0] += uint64(r)
		e.sum[1] += uint64(g)
		e.sum[2] += uint64(b)
	}

	bounds := m.Bounds()
	if rgba, ok := m.(*image.RGBA); ok {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			off := rgba.PixOffset(bounds.Min.X, y)
			row := rgba.Pix[off : off+4*bounds.Dx()]
			for i := 0; i+3 < len(row); i += 4 {
				add(row[i], row[i+1], row[i+2])
			}
		}
	} else {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := color.RGBAModel.Convert(m.At(x, y)).(color.RGBA)
				add(c.R, c.G, c.B)
			}
		}
	}

	var out box
	for k := range counts {
		if counts[k].count == 0 {
			continue
		}
		e := counts[k]
		e.key = [3]uint8{uint8(k >> (2 * bits)), uint8(k >> bits & (1<<bits - 1)), uint8(k & (1<<bits - 1))}
		out = append(out, e)
	}
	return out
}
