// Package session holds the editable card for the life of the process and
// mounts it as a render surface.
package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/cardsmith/internal/apperr"
	"github.com/starford/cardsmith/internal/assets"
	"github.com/starford/cardsmith/internal/checksum"
	"github.com/starford/cardsmith/internal/markup"
	"github.com/starford/cardsmith/internal/models"
	"github.com/starford/cardsmith/internal/render"
	pkgconfig "github.com/starford/cardsmith/pkg/config"
)

// Session is the in-memory card state. Nothing is written back to disk.
type Session struct {
	resolver *assets.Resolver
	logger   *slog.Logger

	mu       sync.RWMutex
	card     models.Card
	revision string
	view     *render.CardView
}

// New creates a session holding models.DefaultCard.
func New(resolver *assets.Resolver, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	card := models.DefaultCard()
	return &Session{
		resolver: resolver,
		logger:   logger,
		card:     card,
		revision: revisionOf(card),
	}
}

// Card returns a copy of the current card and its revision.
func (s *Session) Card() (models.Card, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCard(s.card), s.revision
}

// Runs returns the parsed message of the current card.
func (s *Session) Runs() []models.TextRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return markup.Parse(s.card.Message)
}

// Update replaces the card. When ifMatch is non-empty it must equal the
// current revision, otherwise apperr.ErrConflict is returned.
func (s *Session) Update(card models.Card, ifMatch string) (string, error) {
	if card.Trophies == nil {
		card.Trophies = []string{}
	}
	if err := card.Validate(); err != nil {
		return "", fmt.Errorf("session: %w: %w", apperr.ErrInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ifMatch != "" && ifMatch != s.revision {
		return "", apperr.ErrConflict
	}
	rev := revisionOf(card)
	if rev == s.revision {
		return rev, nil
	}
	s.card = cloneCard(card)
	s.revision = rev
	s.view = nil
	if s.resolver != nil {
		s.resolver.Reset()
	}
	s.logger.Debug("session: card updated", slog.String("revision", rev))
	return rev, nil
}

// LoadFile reads a YAML card file and makes it the current card.
func (s *Session) LoadFile(path string) (string, error) {
	card := models.DefaultCard()
	if err := pkgconfig.Load(path, &card); err != nil {
		return "", fmt.Errorf("session: load card: %w", err)
	}
	return s.Update(card, "")
}

// Surface returns the mounted card view, building it on first use after
// each change. It implements export.Source.
func (s *Session) Surface() (render.Surface, models.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		s.view = render.NewCardView(cloneCard(s.card), s.resolver, s.logger)
	}
	return s.view, cloneCard(s.card)
}

func revisionOf(card models.Card) string {
	// A Card always encodes; the error is unreachable.
	rev, _ := checksum.JSON(card)
	return rev
}

func cloneCard(c models.Card) models.Card {
	c.Trophies = append([]string{}, c.Trophies...)
	return c
}
