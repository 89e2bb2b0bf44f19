package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/starford/cardsmith/internal/apperr"
	"github.com/starford/cardsmith/internal/assets"
	"github.com/starford/cardsmith/internal/markup"
	"github.com/starford/cardsmith/internal/models"
)

// Logical card geometry.
const (
	cardWidth    = 600.0
	padding      = 28.0
	cornerRadius = 28.0
	avatarSize   = 64.0
	nameSize     = 22.0
	bodySize     = 20.0
	lineHeight   = 29.0
	trophySize   = 40.0
	trophyGap    = 10.0
	footerSize   = 16.0
)

var (
	inkColor        = color.RGBA{R: 0x0f, G: 0x14, B: 0x19, A: 0xff}
	mutedColor      = color.RGBA{R: 0x53, G: 0x64, B: 0x71, A: 0xff}
	accentColor     = color.RGBA{R: 0x1d, G: 0x9b, B: 0xf0, A: 0xff}
	markerColor     = color.RGBA{R: 0xff, G: 0xe0, B: 0x66, A: 0xff}
	heartColor      = color.RGBA{R: 0xf9, G: 0x18, B: 0x80, A: 0xff}
	dividerColor    = color.RGBA{R: 0xe6, G: 0xe9, B: 0xec, A: 0xff}
	placeholderFill = color.RGBA{R: 0xcf, G: 0xd9, B: 0xde, A: 0xff}
	gradientTop     = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	gradientBottom  = color.RGBA{R: 0xf7, G: 0xf9, B: 0xfa, A: 0xff}
	panelColor      = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xdc}
)

// CardView renders a models.Card. It implements Surface.
type CardView struct {
	card     models.Card
	runs     []models.TextRun
	resolver *assets.Resolver
	logger   *slog.Logger

	mu     sync.Mutex
	images map[string]*assets.Image
}

// NewCardView mounts card. resolver may be nil, in which case every image
// source is omitted.
func NewCardView(card models.Card, resolver *assets.Resolver, logger *slog.Logger) *CardView {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardView{
		card:     card,
		runs:     markup.Parse(card.Message),
		resolver: resolver,
		logger:   logger,
		images:   map[string]*assets.Image{},
	}
}

// Card returns the mounted card.
func (v *CardView) Card() models.Card { return v.card }

// Runs returns the parsed message.
func (v *CardView) Runs() []models.TextRun { return v.runs }

// Ready loads fonts and resolves every image source. Sources that fail to
// load are omitted; a tainted source fails with apperr.ErrCapture.
func (v *CardView) Ready(ctx context.Context) error {
	if err := loadFonts(); err != nil {
		return err
	}
	if v.resolver == nil {
		return nil
	}
	imgs, err := v.resolver.Preload(ctx, v.card.Sources())
	if err != nil {
		if errors.Is(err, assets.ErrTainted) {
			return fmt.Errorf("%w: %w", apperr.ErrCapture, err)
		}
		return fmt.Errorf("render: preload: %w", err)
	}
	v.mu.Lock()
	v.images = imgs
	v.mu.Unlock()
	return nil
}

// Size returns the 1x card size.
func (v *CardView) Size() (int, int) {
	if err := loadFonts(); err != nil {
		return 0, 0
	}
	faces := newFaceSet(1)
	defer faces.close()
	l := v.layout(faces, 1)
	return int(math.Ceil(l.width)), int(math.Ceil(l.height))
}

// Rasterize draws the card at opts.Scale.
func (v *CardView) Rasterize(ctx context.Context, opts RasterOptions) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := loadFonts(); err != nil {
		return nil, err
	}
	s := opts.scale()
	faces := newFaceSet(s)
	defer faces.close()

	l := v.layout(faces, s)
	w, h := int(math.Ceil(l.width)), int(math.Ceil(l.height))
	dc := gg.NewContext(w, h)
	if opts.Matte != nil {
		dc.SetColor(opts.Matte)
		dc.Clear()
	}

	v.mu.Lock()
	imgs := v.images
	v.mu.Unlock()

	p := &painter{dc: dc, s: s, faces: faces, images: imgs, elapsed: opts.Elapsed}
	p.card(v.card, l)

	rgba, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("render: unexpected canvas type %T", dc.Image())
	}
	return rgba, nil
}

// cardLayout holds scaled positions computed before drawing.
type cardLayout struct {
	width, height float64
	nameX, nameY  float64
	nameW         float64
	bodyY         float64
	lines         []line
	trophies      []image.Point
	footerY       float64
}

func (v *CardView) layout(faces *faceSet, s float64) cardLayout {
	l := cardLayout{width: cardWidth * s}
	inner := (cardWidth - 2*padding) * s

	l.nameX = (padding + avatarSize + 16) * s
	l.nameY = (padding + avatarSize/2) * s
	l.nameW = measure(faces.face(bold, nameSize), v.card.DisplayName)

	y := (padding + avatarSize + 20) * s
	l.bodyY = y
	tokens := tokenize(v.runs)
	if len(tokens) > 0 {
		l.lines = wrap(tokens, inner, func(st models.Style) font.Face {
			return styleFace(faces, st)
		})
		y += float64(len(l.lines)) * lineHeight * s
	}

	if n := len(v.card.Trophies); n > 0 {
		y += 16 * s
		perRow := int((inner + trophyGap*s) / ((trophySize + trophyGap) * s))
		if perRow < 1 {
			perRow = 1
		}
		for i := 0; i < n; i++ {
			col, row := i%perRow, i/perRow
			l.trophies = append(l.trophies, image.Pt(
				int((padding+float64(col)*(trophySize+trophyGap))*s),
				int(y+float64(row)*(trophySize+trophyGap)*s),
			))
		}
		rows := (n + perRow - 1) / perRow
		y += (float64(rows)*(trophySize+trophyGap) - trophyGap) * s
	}

	y += 20 * s
	l.footerY = y
	y += (1 + 16 + 24 + padding) * s
	l.height = y
	return l
}

func styleFace(faces *faceSet, st models.Style) font.Face {
	if st == models.StyleHighlightB {
		return faces.face(bold, bodySize)
	}
	return faces.face(regular, bodySize)
}

type painter struct {
	dc      *gg.Context
	s       float64
	faces   *faceSet
	images  map[string]*assets.Image
	elapsed time.Duration
}

func (p *painter) px(v float64) float64 { return v * p.s }

// frame returns the current frame for src, or nil when it was omitted.
func (p *painter) frame(src string) image.Image {
	if src == "" {
		return nil
	}
	img, ok := p.images[src]
	if !ok {
		return nil
	}
	return img.Frame(p.elapsed)
}

func (p *painter) card(c models.Card, l cardLayout) {
	p.background(c, l)
	p.avatar(c)
	p.header(c, l)
	p.body(l)
	p.trophies(c, l)
	p.footer(c, l)
}

// background fills the rounded card shape. Only this step is clipped: the
// remaining content stays inside the padding. gg's Pop keeps the clip mask,
// so clips are cleared with ResetClip.
func (p *painter) background(c models.Card, l cardLayout) {
	dc := p.dc
	defer dc.ResetClip()
	dc.DrawRoundedRectangle(0, 0, l.width, l.height, p.px(cornerRadius))
	dc.Clip()

	if bg := p.frame(c.Background); bg != nil {
		fitted := imaging.Fill(bg, int(l.width), int(l.height), imaging.Center, imaging.Lanczos)
		dc.DrawImage(fitted, 0, 0)
		dc.DrawRoundedRectangle(p.px(12), p.px(12), l.width-p.px(24), l.height-p.px(24), p.px(cornerRadius-8))
		dc.SetColor(panelColor)
		dc.Fill()
	} else {
		grad := gg.NewLinearGradient(0, 0, 0, l.height)
		grad.AddColorStop(0, gradientTop)
		grad.AddColorStop(1, gradientBottom)
		dc.SetFillStyle(grad)
		dc.DrawRectangle(0, 0, l.width, l.height)
		dc.Fill()
	}
}

func (p *painter) avatar(c models.Card) {
	dc := p.dc
	size := int(p.px(avatarSize))
	x, y := p.px(padding), p.px(padding)
	r := p.px(avatarSize / 2)

	dc.DrawCircle(x+r, y+r, r)
	dc.Clip()
	defer dc.ResetClip()
	if img := p.frame(c.Avatar); img != nil {
		fitted := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
		dc.DrawImage(fitted, int(x), int(y))
	} else {
		dc.SetColor(placeholderFill)
		dc.DrawRectangle(x, y, float64(size), float64(size))
		dc.Fill()
		if initial := initialOf(c.DisplayName); initial != "" {
			dc.SetFontFace(p.faces.face(bold, avatarSize*0.42))
			dc.SetColor(color.White)
			dc.DrawStringAnchored(initial, x+r, y+r, 0.5, 0.35)
		}
	}
}

func (p *painter) header(c models.Card, l cardLayout) {
	dc := p.dc
	face := p.faces.face(bold, nameSize)
	dc.SetFontFace(face)
	dc.SetColor(inkColor)
	dc.DrawString(c.DisplayName, l.nameX, l.nameY+ascent(face)/2.6)

	if c.Verified {
		r := p.px(10)
		cx := l.nameX + l.nameW + p.px(8) + r
		p.badge(cx, l.nameY, r)
	}
}

// badge draws the verified mark: a filled circle with a check.
func (p *painter) badge(cx, cy, r float64) {
	dc := p.dc
	dc.SetColor(accentColor)
	dc.DrawCircle(cx, cy, r)
	dc.Fill()

	dc.SetColor(color.White)
	dc.SetLineWidth(r * 0.24)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.MoveTo(cx-r*0.45, cy+r*0.02)
	dc.LineTo(cx-r*0.1, cy+r*0.36)
	dc.LineTo(cx+r*0.48, cy-r*0.32)
	dc.Stroke()
}

func (p *painter) body(l cardLayout) {
	dc := p.dc
	left := p.px(padding)
	for i, ln := range l.lines {
		baseline := l.bodyY + float64(i)*p.px(lineHeight) + p.px(bodySize)
		for _, it := range ln {
			face := styleFace(p.faces, it.style)
			if it.style == models.StyleHighlightA && it.w > 0 {
				asc := ascent(face)
				dc.SetColor(markerColor)
				dc.DrawRoundedRectangle(left+it.x-p.px(2), baseline-asc-p.px(2), it.w+p.px(4), asc+p.px(8), p.px(4))
				dc.Fill()
			}
			if it.space {
				continue
			}
			dc.SetFontFace(face)
			if it.style == models.StyleHighlightB {
				dc.SetColor(accentColor)
			} else {
				dc.SetColor(inkColor)
			}
			dc.DrawString(it.text, left+it.x, baseline)
		}
	}
}

func (p *painter) trophies(c models.Card, l cardLayout) {
	size := int(p.px(trophySize))
	for i, pt := range l.trophies {
		img := p.frame(c.Trophies[i])
		if img == nil {
			continue
		}
		fitted := contain(img, size)
		b := fitted.Bounds()
		p.dc.DrawImage(fitted, pt.X+(size-b.Dx())/2, pt.Y+(size-b.Dy())/2)
	}
}

func (p *painter) footer(c models.Card, l cardLayout) {
	dc := p.dc
	left, right := p.px(padding), l.width-p.px(padding)
	dc.SetColor(dividerColor)
	dc.SetLineWidth(math.Max(1, p.px(1)))
	dc.DrawLine(left, l.footerY, right, l.footerY)
	dc.Stroke()

	cy := l.footerY + p.px(1+16+12)
	face := p.faces.face(medium, footerSize)
	dc.SetFontFace(face)

	p.heart(left+p.px(10), cy, p.px(10))
	dc.SetColor(mutedColor)
	dc.DrawStringAnchored(c.Likes, left+p.px(28), cy, 0, 0.35)

	bubbleX := left + p.px(140)
	p.bubble(bubbleX+p.px(10), cy, p.px(10))
	dc.SetColor(mutedColor)
	dc.DrawStringAnchored(c.Comments, bubbleX+p.px(28), cy, 0, 0.35)
}

func (p *painter) heart(cx, cy, r float64) {
	dc := p.dc
	dc.SetColor(heartColor)
	dc.MoveTo(cx, cy+r*0.85)
	dc.CubicTo(cx-r*1.3, cy-r*0.05, cx-r*0.7, cy-r*1.05, cx, cy-r*0.4)
	dc.CubicTo(cx+r*0.7, cy-r*1.05, cx+r*1.3, cy-r*0.05, cx, cy+r*0.85)
	dc.ClosePath()
	dc.Fill()
}

func (p *painter) bubble(cx, cy, r float64) {
	dc := p.dc
	dc.SetColor(mutedColor)
	dc.SetLineWidth(r * 0.18)
	dc.DrawRoundedRectangle(cx-r, cy-r*0.8, 2*r, r*1.4, r*0.45)
	dc.Stroke()
	dc.MoveTo(cx-r*0.4, cy+r*0.6)
	dc.LineTo(cx-r*0.7, cy+r*1.05)
	dc.LineTo(cx+r*0.05, cy+r*0.6)
	dc.Stroke()
}

// contain scales img up or down so that it fits a size×size box.
func contain(img image.Image, size int) image.Image {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return img
	}
	if b.Dx() >= b.Dy() {
		return imaging.Resize(img, size, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, size, imaging.Lanczos)
}

func initialOf(name string) string {
	name = strings.TrimSpace(name)
	for len(name) > 0 {
		r, size := utf8.DecodeRuneInString(name)
		if r != utf8.RuneError && r != '@' {
			return strings.ToUpper(string(r))
		}
		name = name[size:]
	}
	return ""
}
