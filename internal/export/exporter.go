// Package export orchestrates the still and animated exports of the mounted
// card: naming, mutual exclusion and status notifications.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/cardsmith/internal/apperr"
	"github.com/starford/cardsmith/internal/capture"
	"github.com/starford/cardsmith/internal/models"
	"github.com/starford/cardsmith/internal/render"
)

// Kind identifies an export format.
type Kind string

const (
	KindStill    Kind = "png"
	KindAnimated Kind = "gif"
)

// MIMEType returns the content type of artifacts of this kind.
func (k Kind) MIMEType() string {
	if k == KindAnimated {
		return "image/gif"
	}
	return "image/png"
}

// Event kinds passed to Notifier.
const (
	EventStarted  = "started"
	EventFinished = "finished"
	EventFailed   = "failed"
)

// Source returns the currently mounted surface and its card. A nil surface
// means nothing is mounted.
type Source interface {
	Surface() (render.Surface, models.Card)
}

// Notifier receives export lifecycle events.
type Notifier interface {
	PublishExportEvent(kind string, format string, detail string)
}

// Exporter runs at most one export at a time across both kinds.
type Exporter struct {
	capturer *capture.Capturer
	source   Source
	notifier Notifier
	logger   *slog.Logger
	fallback string
	still    capture.StillOptions
	animated capture.AnimatedOptions

	running atomic.Bool
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithNotifier sets the lifecycle event sink.
func WithNotifier(n Notifier) Option {
	return func(e *Exporter) { e.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// WithFallbackStem sets the file stem used for unusable display names.
func WithFallbackStem(stem string) Option {
	return func(e *Exporter) { e.fallback = stem }
}

// WithStillOptions sets the still capture options.
func WithStillOptions(o capture.StillOptions) Option {
	return func(e *Exporter) { e.still = o }
}

// WithAnimatedOptions sets the default animated capture options.
func WithAnimatedOptions(o capture.AnimatedOptions) Option {
	return func(e *Exporter) { e.animated = o }
}

// New creates an Exporter.
func New(c *capture.Capturer, src Source, opts ...Option) *Exporter {
	e := &Exporter{
		capturer: c,
		source:   src,
		logger:   slog.Default(),
		fallback: DefaultStem,
		animated: capture.DefaultAnimatedOptions(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AnimatedOptions returns the configured animated defaults.
func (e *Exporter) AnimatedOptions() capture.AnimatedOptions { return e.animated }

// Busy reports whether an export is running.
func (e *Exporter) Busy() bool { return e.running.Load() }

// Still exports the mounted card as PNG. It returns (nil, nil) when nothing
// is mounted and apperr.ErrBusy when another export is running.
func (e *Exporter) Still(ctx context.Context) (*models.Artifact, error) {
	return e.run(ctx, KindStill, func(s render.Surface) ([]byte, int, error) {
		data, err := e.capturer.Still(ctx, s, e.still)
		return data, 1, err
	})
}

// Animated exports the mounted card as GIF using the configured defaults.
func (e *Exporter) Animated(ctx context.Context) (*models.Artifact, error) {
	return e.AnimatedWith(ctx, e.animated)
}

// AnimatedWith exports the mounted card as GIF using opts.
func (e *Exporter) AnimatedWith(ctx context.Context, opts capture.AnimatedOptions) (*models.Artifact, error) {
	return e.run(ctx, KindAnimated, func(s render.Surface) ([]byte, int, error) {
		data, err := e.capturer.Animated(ctx, s, opts)
		return data, opts.Frames, err
	})
}

func (e *Exporter) run(ctx context.Context, kind Kind, pipeline func(render.Surface) ([]byte, int, error)) (*models.Artifact, error) {
	surface, card := e.source.Surface()
	if surface == nil {
		e.logger.Debug("export: nothing mounted", slog.String("format", string(kind)))
		return nil, nil
	}
	if !e.running.CompareAndSwap(false, true) {
		return nil, apperr.ErrBusy
	}
	defer e.running.Store(false)

	name := FileStem(card.DisplayName, e.fallback) + "." + string(kind)
	e.notify(EventStarted, kind, name)
	start := time.Now()

	data, frames, err := pipeline(surface)
	if err != nil {
		e.logger.Error("export failed",
			slog.String("format", string(kind)),
			slog.String("error", err.Error()))
		e.notify(EventFailed, kind, UserMessage(err))
		return nil, fmt.Errorf("export %s: %w", kind, err)
	}

	e.logger.Info("export finished",
		slog.String("format", string(kind)),
		slog.String("name", name),
		slog.Int("bytes", len(data)),
		slog.Duration("took", time.Since(start)))
	e.notify(EventFinished, kind, name)

	return &models.Artifact{
		Name:     name,
		MIMEType: kind.MIMEType(),
		Data:     data,
		Frames:   frames,
	}, nil
}

func (e *Exporter) notify(event string, kind Kind, detail string) {
	if e.notifier != nil {
		e.notifier.PublishExportEvent(event, string(kind), detail)
	}
}

// UserMessage turns an export error into a message fit for the editor.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, apperr.ErrBusy):
		return "An export is already running. Wait for it to finish and try again."
	case errors.Is(err, apperr.ErrCapture):
		return "Couldn't capture the card. An image may block reading its pixels; " +
			"upload the image instead of linking a remote URL, then try again."
	default:
		return "Export failed. Please try again."
	}
}
