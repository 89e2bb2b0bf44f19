// Package markup parses the card message mini-language: {text} marks a
// highlight-A run and [text] marks a highlight-B run. Delimiters do not nest
// and an unterminated span absorbs the rest of the input.
package markup

import (
	"strings"

	"github.com/starford/cardsmith/internal/models"
)

type state int

const (
	plain state = iota
	insideA
	insideB
)

// Parse splits text into ordered runs. Empty plain buffers are never emitted;
// an explicit empty span such as "{}" yields a zero-length highlight run.
func Parse(text string) []models.TextRun {
	var (
		runs []models.TextRun
		buf  strings.Builder
		st   = plain
	)

	emit := func(style models.Style) {
		runs = append(runs, models.TextRun{Content: buf.String(), Style: style})
		buf.Reset()
	}
	flushPlain := func() {
		if buf.Len() > 0 {
			emit(models.StylePlain)
		}
	}

	// Delimiters are ASCII, so scanning bytes never splits a UTF-8
	// sequence and invalid bytes pass through untouched.
	for i := 0; i < len(text); i++ {
		r := text[i]
		switch st {
		case plain:
			switch r {
			case '{':
				flushPlain()
				st = insideA
			case '[':
				flushPlain()
				st = insideB
			default:
				buf.WriteByte(r)
			}
		case insideA:
			if r == '}' {
				emit(models.StyleHighlightA)
				st = plain
				continue
			}
			buf.WriteByte(r)
		case insideB:
			if r == ']' {
				emit(models.StyleHighlightB)
				st = plain
				continue
			}
			buf.WriteByte(r)
		}
	}

	switch st {
	case insideA:
		emit(models.StyleHighlightA)
	case insideB:
		emit(models.StyleHighlightB)
	default:
		flushPlain()
	}
	return runs
}

// Plain returns the concatenated content of runs.
func Plain(runs []models.TextRun) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Content)
	}
	return b.String()
}
