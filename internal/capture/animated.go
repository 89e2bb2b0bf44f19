package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"log/slog"
	"time"

	"github.com/starford/cardsmith/internal/apperr"
	"github.com/starford/cardsmith/internal/quantize"
	"github.com/starford/cardsmith/internal/render"
)

// PaletteMode selects how GIF palettes are built.
type PaletteMode string

const (
	// PerFramePalette quantizes every frame independently.
	PerFramePalette PaletteMode = "per_frame"
	// SharedPalette quantizes the first frame and reuses its palette, which
	// avoids colour flicker between frames.
	SharedPalette PaletteMode = "shared"
)

// Animated defaults: a one second loop at ten frames per second.
const (
	DefaultFrames     = 10
	DefaultFrameDelay = 100 * time.Millisecond
	DefaultMaxColors  = 256
)

// DefaultMatte is the editor page background.
var DefaultMatte = color.RGBA{R: 0xf3, G: 0xf4, B: 0xf6, A: 0xff}

// AnimatedOptions controls an animated capture.
type AnimatedOptions struct {
	Frames     int
	FrameDelay time.Duration
	// Matte replaces transparency; GIF keeps a single transparent index, so
	// anti-aliased edges are matted onto a solid colour instead.
	Matte     color.Color
	MaxColors int
	Palette   PaletteMode
}

// DefaultAnimatedOptions returns the reference settings.
func DefaultAnimatedOptions() AnimatedOptions {
	return AnimatedOptions{
		Frames:     DefaultFrames,
		FrameDelay: DefaultFrameDelay,
		Matte:      DefaultMatte,
		MaxColors:  DefaultMaxColors,
		Palette:    PerFramePalette,
	}
}

func (o AnimatedOptions) normalize() (AnimatedOptions, error) {
	if o.Frames < 1 {
		return o, fmt.Errorf("capture: %w: frames must be >= 1, got %d", apperr.ErrInvalid, o.Frames)
	}
	if o.FrameDelay < 0 {
		return o, fmt.Errorf("capture: %w: negative frame delay", apperr.ErrInvalid)
	}
	if o.Matte == nil {
		o.Matte = DefaultMatte
	}
	if o.MaxColors <= 0 || o.MaxColors > 256 {
		o.MaxColors = DefaultMaxColors
	}
	if o.Palette == "" {
		o.Palette = PerFramePalette
	}
	return o, nil
}

// Centiseconds converts a frame delay to GIF units (1/100 s), rounding to
// the nearest unit with a minimum of one.
func Centiseconds(d time.Duration) int {
	cs := int((d + 5*time.Millisecond) / (10 * time.Millisecond))
	if cs < 1 {
		cs = 1
	}
	return cs
}

// Animated captures opts.Frames frames of s, opts.FrameDelay apart, and
// encodes them as an infinitely looping GIF. Any failure aborts the whole
// export.
func (c *Capturer) Animated(ctx context.Context, s render.Surface, opts AnimatedOptions) ([]byte, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if err := c.prepare(ctx, s); err != nil {
		return nil, err
	}

	anim := &gif.GIF{LoopCount: 0}
	delay := Centiseconds(opts.FrameDelay)
	var shared *quantize.Mapper

	for i := 0; i < opts.Frames; i++ {
		frame, err := s.Rasterize(ctx, render.RasterOptions{
			Scale:   c.scale,
			Matte:   opts.Matte,
			Elapsed: time.Duration(i) * opts.FrameDelay,
		})
		if err != nil {
			return nil, captureErr(fmt.Sprintf("frame %d", i), err)
		}

		mapper := shared
		if mapper == nil {
			palette := quantize.MedianCut{}.Quantize(make(color.Palette, 0, opts.MaxColors), frame)
			if len(palette) == 0 {
				return nil, encodeErr(fmt.Sprintf("frame %d", i), fmt.Errorf("empty palette"))
			}
			mapper = quantize.NewMapper(palette)
			if opts.Palette == SharedPalette {
				shared = mapper
			}
		}

		indexed := mapper.Paletted(frame)
		if i > 0 && indexed.Bounds() != anim.Image[0].Bounds() {
			return nil, captureErr(fmt.Sprintf("frame %d", i), fmt.Errorf("surface size changed from %v to %v", anim.Image[0].Bounds(), indexed.Bounds()))
		}
		anim.Image = append(anim.Image, indexed)
		anim.Delay = append(anim.Delay, delay)
		anim.Disposal = append(anim.Disposal, gif.DisposalNone)

		c.logger.Debug("capture: frame captured",
			slog.Int("frame", i),
			slog.Int("colors", len(indexed.Palette)))

		if i < opts.Frames-1 {
			if err := c.sleep(ctx, opts.FrameDelay); err != nil {
				return nil, captureErr("frame delay", err)
			}
		}
	}

	anim.Config = image.Config{
		Width:  anim.Image[0].Bounds().Dx(),
		Height: anim.Image[0].Bounds().Dy(),
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, encodeErr("gif", err)
	}
	return buf.Bytes(), nil
}
