package render

import (
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/starford/cardsmith/internal/markup"
	"github.com/starford/cardsmith/internal/models"
)

// basicfont advances 7px per glyph, which keeps widths predictable.
func fixedFace(models.Style) font.Face { return basicfont.Face7x13 }

func lineText(l line) string {
	var s string
	for _, p := range l {
		s += p.text
	}
	return s
}

func TestTokenize_KeepsStyles(t *testing.T) {
	toks := tokenize(markup.Parse("hi {big deal}\nok"))
	var kinds []tokenKind
	for _, tk := range toks {
		kinds = append(kinds, tk.kind)
	}
	want := []tokenKind{word, space, word, space, word, newline, word}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}
	if toks[2].style != models.StyleHighlightA || toks[2].text != "big" {
		t.Errorf("token 2 = %+v", toks[2])
	}
}

func TestWrap_Greedy(t *testing.T) {
	lines := wrap(tokenize(markup.Parse("aaa bbb ccc")), 49, fixedFace)
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if got := lineText(lines[1]); got != "ccc" {
		t.Errorf("second line = %q", got)
	}
	if lines[1][0].x != 0 {
		t.Errorf("wrapped line starts at x=%v", lines[1][0].x)
	}
}

func TestWrap_HardBreaksAndLongWords(t *testing.T) {
	if n := len(wrap(tokenize(markup.Parse("a\nb")), 100, fixedFace)); n != 2 {
		t.Errorf("hard break lines = %d, want 2", n)
	}
	lines := wrap(tokenize(markup.Parse("abcdefghij")), 28, fixedFace)
	if len(lines) != 3 {
		t.Fatalf("long word lines = %d, want 3", len(lines))
	}
	for i, want := range []string{"abcd", "efgh", "ij"} {
		if got := lineText(lines[i]); got != want {
			t.Errorf("line %d = %q, want %q", i, got, want)
		}
	}
}

func TestWrap_DropsLeadingSpaceOnSoftWrap(t *testing.T) {
	lines := wrap(tokenize(markup.Parse("aaaa    bbbb")), 28, fixedFace)
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if got := lineText(lines[1]); got != "bbbb" {
		t.Errorf("second line = %q", got)
	}
}
