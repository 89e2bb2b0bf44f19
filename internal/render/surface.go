// Package render draws a card onto a raster canvas. It is the rendering
// surface the capture pipeline reads pixels from.
package render

import (
	"context"
	"image"
	"image/color"
	"time"
)

// Surface is a mounted visual that can be rasterized on demand.
type Surface interface {
	// Ready blocks until fonts and images needed for a faithful capture are
	// loaded.
	Ready(ctx context.Context) error
	// Size returns the logical (1x) size in pixels.
	Size() (width, height int)
	// Rasterize draws the current state into a new image.
	Rasterize(ctx context.Context, opts RasterOptions) (*image.RGBA, error)
}

// RasterOptions controls a single rasterization.
type RasterOptions struct {
	// Scale is the device pixel multiplier. Values <= 0 mean 1.
	Scale float64
	// Matte fills the canvas before drawing. nil leaves it transparent.
	Matte color.Color
	// Elapsed selects the frame of animated images.
	Elapsed time.Duration
}

func (o RasterOptions) scale() float64 {
	if o.Scale <= 0 {
		return 1
	}
	return o.Scale
}
