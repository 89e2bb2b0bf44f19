// Package models defines the domain types for cardsmith.
package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Card limits.
const (
	MaxDisplayNameRunes = 64
	MaxMessageRunes     = 2000
	MaxLabelRunes       = 16
	MaxTrophies         = 12
)

// Card is the editable card state. Image fields hold opaque sources: a data
// URI, an uploaded asset path (/assets/<name>) or a remote URL.
type Card struct {
	DisplayName string   `yaml:"display_name" json:"display_name"`
	Avatar      string   `yaml:"avatar" json:"avatar"`
	Background  string   `yaml:"background" json:"background"`
	Message     string   `yaml:"message" json:"message"`
	Likes       string   `yaml:"likes" json:"likes"`
	Comments    string   `yaml:"comments" json:"comments"`
	Verified    bool     `yaml:"verified" json:"verified"`
	Trophies    []string `yaml:"trophies" json:"trophies"`
}

// DefaultCard returns the card a fresh session starts with.
func DefaultCard() Card {
	return Card{
		DisplayName: "Ada Lovelace",
		Message:     "Shipped {the engine} today. [#launch]",
		Likes:       "1.2K",
		Comments:    "348",
		Verified:    true,
		Trophies:    []string{},
	}
}

// Validate checks field lengths. Content is otherwise free-form.
func (c *Card) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DisplayName, validation.RuneLength(0, MaxDisplayNameRunes)),
		validation.Field(&c.Message, validation.RuneLength(0, MaxMessageRunes)),
		validation.Field(&c.Likes, validation.RuneLength(0, MaxLabelRunes)),
		validation.Field(&c.Comments, validation.RuneLength(0, MaxLabelRunes)),
		validation.Field(&c.Trophies, validation.Length(0, MaxTrophies)),
	)
}

// Sources returns every image source referenced by the card, in draw order.
// Empty sources are skipped; duplicates are kept.
func (c *Card) Sources() []string {
	out := make([]string, 0, len(c.Trophies)+2)
	for _, s := range append([]string{c.Background, c.Avatar}, c.Trophies...) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
