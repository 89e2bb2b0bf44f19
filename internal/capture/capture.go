// Package capture rasterizes a mounted surface into export artifacts: a
// supersampled PNG or a looping palette-indexed GIF.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/cardsmith/internal/apperr"
	"github.com/starford/cardsmith/internal/render"
)

// Defaults.
const (
	DefaultScale       = 3.0
	DefaultSettleDelay = 150 * time.Millisecond
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real-time Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Capturer runs capture pipelines. It holds no per-export state and is safe
// for concurrent use, although callers serialise exports.
type Capturer struct {
	scale  float64
	settle time.Duration
	sleep  Sleeper
	logger *slog.Logger
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithScale sets the supersampling multiplier.
func WithScale(s float64) Option {
	return func(c *Capturer) { c.scale = s }
}

// WithSettleDelay sets the pause between Ready and the first capture.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Capturer) { c.settle = d }
}

// WithSleeper replaces the wait implementation.
func WithSleeper(s Sleeper) Option {
	return func(c *Capturer) { c.sleep = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Capturer) { c.logger = l }
}

// New creates a Capturer.
func New(opts ...Option) *Capturer {
	c := &Capturer{
		scale:  DefaultScale,
		settle: DefaultSettleDelay,
		sleep:  SleepContext,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.scale <= 0 {
		c.scale = DefaultScale
	}
	return c
}

// Scale returns the supersampling multiplier.
func (c *Capturer) Scale() float64 { return c.scale }

// prepare waits for the surface to load and settle.
func (c *Capturer) prepare(ctx context.Context, s render.Surface) error {
	if err := s.Ready(ctx); err != nil {
		return captureErr("ready", err)
	}
	if err := c.sleep(ctx, c.settle); err != nil {
		return captureErr("settle", err)
	}
	return nil
}

// captureErr wraps err so that it always matches apperr.ErrCapture.
func captureErr(step string, err error) error {
	if errors.Is(err, apperr.ErrCapture) {
		return fmt.Errorf("capture: %s: %w", step, err)
	}
	return fmt.Errorf("capture: %s: %w: %w", step, apperr.ErrCapture, err)
}

func encodeErr(step string, err error) error {
	return fmt.Errorf("capture: %s: %w: %w", step, apperr.ErrEncode, err)
}
