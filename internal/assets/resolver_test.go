package assets

import (
	"context"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/cardsmith/internal/testutil"
)

var red = color.RGBA{R: 255, A: 255}

func TestResolve_DataURI(t *testing.T) {
	r := NewResolver(nil)
	src := testutil.DataURI("image/png", testutil.PNGBytes(t, 4, 3, red))

	img, err := r.Resolve(context.Background(), src)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if img.Animated() {
		t.Error("png should not be animated")
	}
	if b := img.Frame(0).Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("bounds = %v", b)
	}
}

func TestResolve_BadDataURI(t *testing.T) {
	r := NewResolver(nil)
	for _, src := range []string{
		"data:image/png;base64",
		"data:image/png,plain",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png;base64,!!!",
	} {
		if _, err := r.Resolve(context.Background(), src); err == nil {
			t.Errorf("expected error for %q", src)
		}
	}
}

func TestResolve_StoredAsset(t *testing.T) {
	_, store := testutil.TestStore(t)
	if err := store.Write("avatar.png", testutil.PNGBytes(t, 2, 2, red)); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(store)
	for _, src := range []string{"/assets/avatar.png", "assets/avatar.png", "avatar.png"} {
		if _, err := r.Resolve(context.Background(), src); err != nil {
			t.Errorf("Resolve(%q): %v", src, err)
		}
	}
	if _, err := r.Resolve(context.Background(), "/assets/missing.png"); err == nil {
		t.Error("expected error for missing asset")
	}
}

func TestResolve_RemotePolicies(t *testing.T) {
	var hits atomic.Int32
	pic := testutil.PNGBytes(t, 2, 2, red)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pic)
	}))
	defer srv.Close()
	url := srv.URL + "/pic.png"

	fetch := NewResolver(nil, WithHostCheck(nil))
	if _, err := fetch.Resolve(context.Background(), url); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := fetch.Resolve(context.Background(), url); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1 (cached)", hits.Load())
	}

	omit := NewResolver(nil, WithRemotePolicy(PolicyOmit))
	if _, err := omit.Resolve(context.Background(), url); !errors.Is(err, ErrOmitted) {
		t.Errorf("omit err = %v", err)
	}

	taint := NewResolver(nil, WithRemotePolicy(PolicyTaint))
	if _, err := taint.Resolve(context.Background(), url); !errors.Is(err, ErrTainted) {
		t.Errorf("taint err = %v", err)
	}

	blocked := NewResolver(nil)
	if _, err := blocked.Resolve(context.Background(), url); err == nil {
		t.Error("loopback fetch should be blocked by default")
	}
}

func TestResolve_MaxBytes(t *testing.T) {
	r := NewResolver(nil, WithMaxBytes(10))
	src := testutil.DataURI("image/png", testutil.PNGBytes(t, 8, 8, red))
	if _, err := r.Resolve(context.Background(), src); err == nil {
		t.Error("expected size error")
	}
}

func TestPreload_OmitsFailuresKeepsTaint(t *testing.T) {
	good := testutil.DataURI("image/png", testutil.PNGBytes(t, 2, 2, red))

	r := NewResolver(nil, WithRemotePolicy(PolicyOmit))
	got, err := r.Preload(context.Background(), []string{good, good, "/assets/nope.png", "https://example.com/a.png", ""})
	if err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if len(got) != 1 || got[good] == nil {
		t.Errorf("got %d images, want only the data URI", len(got))
	}

	taint := NewResolver(nil, WithRemotePolicy(PolicyTaint))
	if _, err := taint.Preload(context.Background(), []string{good, "https://example.com/a.png"}); !errors.Is(err, ErrTainted) {
		t.Errorf("taint preload err = %v", err)
	}
}

func TestPreload_SlowRemoteIsOmitted(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	good := testutil.DataURI("image/png", testutil.PNGBytes(t, 2, 2, red))
	r := NewResolver(nil, WithHostCheck(nil), WithFetchTimeout(50*time.Millisecond))
	got, err := r.Preload(context.Background(), []string{good, srv.URL + "/slow.png"})
	if err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if len(got) != 1 || got[good] == nil {
		t.Errorf("got %d images, want only the data URI", len(got))
	}
}

func TestPreload_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r := NewResolver(nil, WithHostCheck(nil))
	if _, err := r.Preload(ctx, []string{srv.URL + "/slow.png"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestDecode_AnimatedGIF(t *testing.T) {
	blue := color.RGBA{B: 255, A: 255}
	img, err := Decode(testutil.GIFBytes(t, 4, 4, 10, red, blue))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !img.Animated() || len(img.Frames) != 2 {
		t.Fatalf("frames = %d", len(img.Frames))
	}
	at := func(d time.Duration) color.RGBA {
		return color.RGBAModel.Convert(img.Frame(d).At(1, 1)).(color.RGBA)
	}
	if at(0) != red {
		t.Errorf("frame at 0 = %v", at(0))
	}
	if at(150*time.Millisecond) != blue {
		t.Errorf("frame at 150ms = %v", at(150*time.Millisecond))
	}
	if at(210*time.Millisecond) != red {
		t.Errorf("frame at 210ms should loop back, got %v", at(210*time.Millisecond))
	}
}

func TestReset(t *testing.T) {
	_, store := testutil.TestStore(t)
	_ = store.Write("a.png", testutil.PNGBytes(t, 1, 1, red))
	r := NewResolver(store)
	if _, err := r.Resolve(context.Background(), "a.png"); err != nil {
		t.Fatal(err)
	}
	_ = store.Delete("a.png")
	if _, err := r.Resolve(context.Background(), "a.png"); err != nil {
		t.Errorf("cached resolve failed: %v", err)
	}
	r.Reset()
	if _, err := r.Resolve(context.Background(), "a.png"); err == nil {
		t.Error("expected error after reset")
	}
}

func TestDownload(t *testing.T) {
	pic := testutil.PNGBytes(t, 2, 2, red)
	r := NewResolver(nil, WithRemotePolicy(PolicyTaint))

	got, err := r.Download(context.Background(), testutil.DataURI("image/png", pic))
	if err != nil {
		t.Fatalf("Download data URI: %v", err)
	}
	if len(got) != len(pic) {
		t.Errorf("len = %d, want %d", len(got), len(pic))
	}

	if _, err := r.Download(context.Background(), "/assets/a.png"); err == nil {
		t.Error("expected error for stored asset path")
	}
	small := NewResolver(nil, WithMaxBytes(8))
	if _, err := small.Download(context.Background(), testutil.DataURI("image/png", pic)); err == nil {
		t.Error("expected size error")
	}
}
