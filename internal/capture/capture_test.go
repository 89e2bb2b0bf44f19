package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/starford/cardsmith/internal/apperr"
	"github.com/starford/cardsmith/internal/models"
	"github.com/starford/cardsmith/internal/render"
	"github.com/starford/cardsmith/internal/testutil"
)

// fakeSurface paints a solid colour that changes with Elapsed.
type fakeSurface struct {
	w, h     int
	readyErr error
	failAt   int // frame index whose Rasterize fails; -1 disables

	mu    sync.Mutex
	calls []render.RasterOptions
}

func newFake() *fakeSurface { return &fakeSurface{w: 20, h: 10, failAt: -1} }

func (f *fakeSurface) Ready(context.Context) error { return f.readyErr }
func (f *fakeSurface) Size() (int, int)            { return f.w, f.h }

func (f *fakeSurface) Rasterize(_ context.Context, opts render.RasterOptions) (*image.RGBA, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, opts)
	f.mu.Unlock()
	if n == f.failAt {
		return nil, errors.New("boom")
	}
	s := int(opts.Scale)
	shade := uint8(opts.Elapsed / time.Millisecond)
	return testutil.SolidImage(f.w*s, f.h*s, color.RGBA{R: shade, G: 0x40, B: 0x80, A: 0xff}), nil
}

// recordSleeper returns instantly and records every requested wait.
type recordSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newCapturer(rec *recordSleeper, opts ...Option) *Capturer {
	return New(append([]Option{WithSleeper(rec.sleep), WithSettleDelay(150 * time.Millisecond)}, opts...)...)
}

func TestStill_EncodesPNGAtScale(t *testing.T) {
	rec := &recordSleeper{}
	fake := newFake()
	data, err := newCapturer(rec).Still(context.Background(), fake, StillOptions{})
	if err != nil {
		t.Fatalf("Still: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 60 || b.Dy() != 30 {
		t.Errorf("bounds = %v, want 60x30", b)
	}
	if len(rec.delays) != 1 || rec.delays[0] != 150*time.Millisecond {
		t.Errorf("sleeps = %v, want one settle delay", rec.delays)
	}
	if fake.calls[0].Matte != nil {
		t.Error("still capture should be transparent by default")
	}
}

func TestStill_ReadyFailureIsCaptureError(t *testing.T) {
	fake := newFake()
	fake.readyErr = errors.New("tainted")
	_, err := newCapturer(&recordSleeper{}).Still(context.Background(), fake, StillOptions{})
	if !errors.Is(err, apperr.ErrCapture) {
		t.Fatalf("err = %v, want ErrCapture", err)
	}
	if len(fake.calls) != 0 {
		t.Error("rasterize should not run after a failed Ready")
	}
}

func TestAnimated_FrameCountDelayAndLoop(t *testing.T) {
	for _, frames := range []int{2, 3, 10} {
		rec := &recordSleeper{}
		fake := newFake()
		opts := DefaultAnimatedOptions()
		opts.Frames = frames

		data, err := newCapturer(rec, WithScale(1)).Animated(context.Background(), fake, opts)
		if err != nil {
			t.Fatalf("Animated(%d): %v", frames, err)
		}
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(g.Image) != frames {
			t.Errorf("frames = %d, want %d", len(g.Image), frames)
		}
		for i, d := range g.Delay {
			if d != 10 {
				t.Errorf("delay[%d] = %d, want 10", i, d)
			}
		}
		if g.LoopCount != 0 {
			t.Errorf("loop count = %d, want 0 (infinite)", g.LoopCount)
		}
		if len(rec.delays) != frames {
			t.Errorf("sleeps = %d, want settle + %d frame delays", len(rec.delays), frames-1)
		}
		for i, c := range fake.calls {
			if c.Elapsed != time.Duration(i)*DefaultFrameDelay {
				t.Errorf("frame %d elapsed = %v", i, c.Elapsed)
			}
			if c.Matte == nil {
				t.Errorf("frame %d captured without matte", i)
			}
		}
	}
}

func TestAnimated_FailureAbortsWithoutArtifact(t *testing.T) {
	fake := newFake()
	fake.failAt = 4
	data, err := newCapturer(&recordSleeper{}, WithScale(1)).Animated(context.Background(), fake, DefaultAnimatedOptions())
	if !errors.Is(err, apperr.ErrCapture) {
		t.Fatalf("err = %v, want ErrCapture", err)
	}
	if data != nil {
		t.Error("partial artifact returned")
	}
	if len(fake.calls) != 5 {
		t.Errorf("rasterize calls = %d, want 5", len(fake.calls))
	}
}

func TestAnimated_SharedPalette(t *testing.T) {
	opts := DefaultAnimatedOptions()
	opts.Frames = 3
	opts.Palette = SharedPalette
	data, err := newCapturer(&recordSleeper{}, WithScale(1)).Animated(context.Background(), newFake(), opts)
	if err != nil {
		t.Fatal(err)
	}
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	first := g.Image[0].Palette
	for i, img := range g.Image[1:] {
		if len(img.Palette) != len(first) {
			t.Fatalf("frame %d palette len = %d, want %d", i+1, len(img.Palette), len(first))
		}
		for j := range first {
			if img.Palette[j] != first[j] {
				t.Errorf("frame %d palette differs at %d", i+1, j)
			}
		}
	}
}

func TestAnimated_InvalidFrames(t *testing.T) {
	opts := DefaultAnimatedOptions()
	opts.Frames = 0
	_, err := newCapturer(&recordSleeper{}).Animated(context.Background(), newFake(), opts)
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestAnimated_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	sleeper := func(ctx context.Context, _ time.Duration) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return ctx.Err()
	}
	_, err := New(WithSleeper(sleeper), WithScale(1)).Animated(ctx, newFake(), DefaultAnimatedOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCentiseconds(t *testing.T) {
	cases := map[time.Duration]int{
		100 * time.Millisecond: 10,
		0:                      1,
		4 * time.Millisecond:   1,
		15 * time.Millisecond:  2,
		33 * time.Millisecond:  3,
		time.Second:            100,
	}
	for in, want := range cases {
		if got := Centiseconds(in); got != want {
			t.Errorf("Centiseconds(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestAnimated_RealCard(t *testing.T) {
	view := render.NewCardView(models.DefaultCard(), nil, nil)
	opts := DefaultAnimatedOptions()
	opts.Frames = 2

	data, err := newCapturer(&recordSleeper{}, WithScale(1)).Animated(context.Background(), view, opts)
	if err != nil {
		t.Fatalf("Animated: %v", err)
	}
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	w, _ := view.Size()
	if g.Config.Width != w || len(g.Image) != 2 {
		t.Errorf("config width = %d frames = %d", g.Config.Width, len(g.Image))
	}
}
