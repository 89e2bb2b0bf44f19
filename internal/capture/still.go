package capture

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"log/slog"
	"time"

	"github.com/starford/cardsmith/internal/render"
)

// StillOptions controls a still capture.
type StillOptions struct {
	// Matte fills the area outside the card's rounded corners. nil keeps it
	// transparent.
	Matte color.Color
	// Elapsed picks the animation time for animated images. Exports leave it
	// zero; the editor preview can scrub through an animation.
	Elapsed time.Duration
}

// Still captures s once and encodes it as PNG.
func (c *Capturer) Still(ctx context.Context, s render.Surface, opts StillOptions) ([]byte, error) {
	if err := c.prepare(ctx, s); err != nil {
		return nil, err
	}

	img, err := s.Rasterize(ctx, render.RasterOptions{Scale: c.scale, Matte: opts.Matte, Elapsed: opts.Elapsed})
	if err != nil {
		return nil, captureErr("rasterize", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, encodeErr("png", err)
	}
	c.logger.Debug("capture: still encoded",
		slog.Int("width", img.Bounds().Dx()),
		slog.Int("height", img.Bounds().Dy()),
		slog.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
