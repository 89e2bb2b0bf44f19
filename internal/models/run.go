package models

import "fmt"

// Style is the emphasis category of a text run.
type Style int

const (
	StylePlain Style = iota
	StyleHighlightA
	StyleHighlightB
)

var styleNames = map[Style]string{
	StylePlain:      "plain",
	StyleHighlightA: "highlight_a",
	StyleHighlightB: "highlight_b",
}

func (s Style) String() string {
	if n, ok := styleNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Style) MarshalText() ([]byte, error) {
	n, ok := styleNames[s]
	if !ok {
		return nil, fmt.Errorf("models: unknown style %d", int(s))
	}
	return []byte(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Style) UnmarshalText(b []byte) error {
	for k, v := range styleNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("models: unknown style %q", b)
}

// TextRun is a contiguous piece of message text sharing one style.
type TextRun struct {
	Content string `json:"content"`
	Style   Style  `json:"style"`
}

// Artifact is an encoded export ready to be handed to the user.
type Artifact struct {
	Name     string
	MIMEType string
	Data     []byte
	Frames   int
}
