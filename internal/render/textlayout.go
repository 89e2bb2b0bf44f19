package render

import (
	"strings"
	"unicode"

	"golang.org/x/image/font"

	"github.com/starford/cardsmith/internal/models"
)

type tokenKind int

const (
	word tokenKind = iota
	space
	newline
)

type token struct {
	text  string
	style models.Style
	kind  tokenKind
}

// placed is a measured piece of text positioned on a line.
type placed struct {
	text  string
	style models.Style
	x, w  float64
	space bool
}

type line []placed

// tokenize splits runs into words, whitespace and hard line breaks while
// keeping each piece's style.
func tokenize(runs []models.TextRun) []token {
	var out []token
	for _, r := range runs {
		var buf strings.Builder
		kind := word
		flush := func() {
			if buf.Len() > 0 {
				out = append(out, token{text: buf.String(), style: r.Style, kind: kind})
				buf.Reset()
			}
		}
		for _, c := range r.Content {
			switch {
			case c == '\n':
				flush()
				out = append(out, token{style: r.Style, kind: newline})
			case unicode.IsSpace(c):
				if kind != space {
					flush()
					kind = space
				}
				buf.WriteRune(' ')
			default:
				if kind != word {
					flush()
					kind = word
				}
				buf.WriteRune(c)
			}
		}
		flush()
	}
	return out
}

// wrap lays tokens out greedily into lines no wider than maxW. faceFor
// returns the face used for a style.
func wrap(tokens []token, maxW float64, faceFor func(models.Style) font.Face) []line {
	var (
		lines   []line
		cur     line
		x       float64
		wrapped bool
	)
	breakLine := func(soft bool) {
		lines = append(lines, cur)
		cur, x, wrapped = nil, 0, soft
	}

	for _, tok := range tokens {
		switch tok.kind {
		case newline:
			breakLine(false)
			continue
		case space:
			if x == 0 && wrapped {
				continue
			}
		}

		f := faceFor(tok.style)
		w := measure(f, tok.text)
		if tok.kind == word && x > 0 && x+w > maxW {
			breakLine(true)
		}
		if tok.kind == word && w > maxW {
			for _, chunk := range splitToFit(tok.text, maxW-x, maxW, f) {
				cw := measure(f, chunk)
				if x > 0 && x+cw > maxW {
					breakLine(true)
				}
				cur = append(cur, placed{text: chunk, style: tok.style, x: x, w: cw})
				x += cw
			}
			continue
		}
		cur = append(cur, placed{text: tok.text, style: tok.style, x: x, w: w, space: tok.kind == space})
		x += w
	}
	if len(cur) > 0 || len(lines) == 0 {
		lines = append(lines, cur)
	}
	return lines
}

// splitToFit cuts an over-long word into chunks: the first fits in first,
// the rest in each.
func splitToFit(text string, first, each float64, f font.Face) []string {
	var (
		out   []string
		buf   strings.Builder
		limit = first
	)
	if limit <= 0 {
		limit = each
	}
	for _, r := range text {
		next := buf.String() + string(r)
		if buf.Len() > 0 && measure(f, next) > limit {
			out = append(out, buf.String())
			buf.Reset()
			limit = each
		}
		buf.WriteRune(r)
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}
