package render

import (
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/starford/cardsmith/internal/apperr"
	"github.com/starford/cardsmith/internal/assets"
	"github.com/starford/cardsmith/internal/models"
	"github.com/starford/cardsmith/internal/testutil"
)

func TestCardView_SizeAndScale(t *testing.T) {
	v := NewCardView(models.DefaultCard(), nil, nil)
	if err := v.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	w, h := v.Size()
	if w != int(cardWidth) || h <= int(avatarSize) {
		t.Fatalf("size = %dx%d", w, h)
	}

	img, err := v.Rasterize(context.Background(), RasterOptions{Scale: 3})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if got := img.Bounds().Dx(); got != 3*w {
		t.Errorf("width at 3x = %d, want %d", got, 3*w)
	}
	if got := img.Bounds().Dy(); got < 3*h-6 || got > 3*h+6 {
		t.Errorf("height at 3x = %d, want about %d", got, 3*h)
	}
}

func TestCardView_CornersTransparentUnlessMatted(t *testing.T) {
	v := NewCardView(models.DefaultCard(), nil, nil)

	img, err := v.Rasterize(context.Background(), RasterOptions{Scale: 1})
	if err != nil {
		t.Fatal(err)
	}
	if a := img.RGBAAt(0, 0).A; a != 0 {
		t.Errorf("corner alpha = %d, want 0", a)
	}
	mid := img.Bounds().Size().Div(2)
	if a := img.RGBAAt(mid.X, mid.Y).A; a != 0xff {
		t.Errorf("centre alpha = %d, want 255", a)
	}

	matte := color.RGBA{R: 0xf3, G: 0xf4, B: 0xf6, A: 0xff}
	img, err = v.Rasterize(context.Background(), RasterOptions{Scale: 1, Matte: matte})
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(0, 0); got != matte {
		t.Errorf("matted corner = %v, want %v", got, matte)
	}
}

func TestCardView_TaintedSourceFailsReady(t *testing.T) {
	card := models.DefaultCard()
	card.Avatar = "https://example.com/avatar.png"
	r := assets.NewResolver(nil, assets.WithRemotePolicy(assets.PolicyTaint))

	err := NewCardView(card, r, nil).Ready(context.Background())
	if !errors.Is(err, apperr.ErrCapture) {
		t.Fatalf("Ready err = %v, want ErrCapture", err)
	}
}

func TestCardView_AnimatedTrophyAdvances(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	card := models.DefaultCard()
	card.Trophies = []string{testutil.DataURI("image/gif", testutil.GIFBytes(t, 8, 8, 10, red, blue))}

	v := NewCardView(card, assets.NewResolver(nil), nil)
	if err := v.Ready(context.Background()); err != nil {
		t.Fatal(err)
	}
	faces := newFaceSet(1)
	defer faces.close()
	pt := v.layout(faces, 1).trophies[0]
	x, y := pt.X+int(trophySize/2), pt.Y+int(trophySize/2)

	first, err := v.Rasterize(context.Background(), RasterOptions{Scale: 1})
	if err != nil {
		t.Fatal(err)
	}
	second, err := v.Rasterize(context.Background(), RasterOptions{Scale: 1, Elapsed: 100 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if first.RGBAAt(x, y) != red {
		t.Errorf("frame 0 pixel = %v, want red", first.RGBAAt(x, y))
	}
	if second.RGBAAt(x, y) != blue {
		t.Errorf("frame 1 pixel = %v, want blue", second.RGBAAt(x, y))
	}
}

func TestCardView_MissingImagesOmitted(t *testing.T) {
	card := models.DefaultCard()
	card.Avatar = "/assets/missing.png"
	card.Trophies = []string{"/assets/also-missing.png"}
	_, store := testutil.TestStore(t)

	v := NewCardView(card, assets.NewResolver(store), nil)
	if err := v.Ready(context.Background()); err != nil {
		t.Fatalf("Ready should omit missing images: %v", err)
	}
	if _, err := v.Rasterize(context.Background(), RasterOptions{Scale: 1}); err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
}

func TestCardView_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewCardView(models.DefaultCard(), nil, nil).Rasterize(ctx, RasterOptions{}); err == nil {
		t.Error("expected context error")
	}
}

func TestInitialOf(t *testing.T) {
	cases := map[string]string{"ada": "A", "  @bob": "B", "": "", "élan": "É"}
	for in, want := range cases {
		if got := initialOf(in); got != want {
			t.Errorf("initialOf(%q) = %q, want %q", in, got, want)
		}
	}
}
