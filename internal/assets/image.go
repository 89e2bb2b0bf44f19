// Package assets resolves opaque image sources (data URIs, uploaded asset
// names, remote URLs) into decoded, possibly animated, images.
package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"time"

	// Registered decoders for image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// defaultGIFDelay replaces zero or near-zero GIF frame delays, matching what
// browsers do for such files.
const defaultGIFDelay = 100 * time.Millisecond

// Image is a decoded source. Still images have exactly one frame.
type Image struct {
	Frames []image.Image
	Delays []time.Duration
	total  time.Duration
}

// Animated reports whether the image has more than one frame.
func (i *Image) Animated() bool { return len(i.Frames) > 1 }

// Frame returns the frame shown at elapsed time, looping forever.
func (i *Image) Frame(elapsed time.Duration) image.Image {
	if len(i.Frames) == 1 || i.total <= 0 || elapsed <= 0 {
		return i.Frames[0]
	}
	t := elapsed % i.total
	for idx, d := range i.Delays {
		if t < d {
			return i.Frames[idx]
		}
		t -= d
	}
	return i.Frames[len(i.Frames)-1]
}

// Still wraps a single decoded image.
func Still(img image.Image) *Image {
	return &Image{Frames: []image.Image{img}, Delays: []time.Duration{0}}
}

// Decode decodes PNG, JPEG, WebP or GIF data. GIFs keep every frame,
// composited to full-size snapshots.
func Decode(data []byte) (*Image, error) {
	if bytes.HasPrefix(data, []byte("GIF8")) {
		return decodeGIF(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("assets: decode: %w", err)
	}
	return Still(img), nil
}

func decodeGIF(data []byte) (*Image, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("assets: decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("assets: decode gif: no frames")
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewRGBA(bounds)
	out := &Image{}
	for i, frame := range g.Image {
		var restore *image.RGBA
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			restore = image.NewRGBA(bounds)
			draw.Draw(restore, bounds, canvas, bounds.Min, draw.Src)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		snap := image.NewRGBA(bounds)
		draw.Draw(snap, bounds, canvas, bounds.Min, draw.Src)

		delay := defaultGIFDelay
		if i < len(g.Delay) && g.Delay[i] > 1 {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		out.Frames = append(out.Frames, snap)
		out.Delays = append(out.Delays, delay)
		out.total += delay

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = restore
		}
	}
	if len(out.Frames) == 1 {
		out.total = 0
	}
	return out, nil
}
