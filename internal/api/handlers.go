package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/starford/cardsmith/internal/apperr"
	"github.com/starford/cardsmith/internal/capture"
	"github.com/starford/cardsmith/internal/export"
	"github.com/starford/cardsmith/internal/markup"
	"github.com/starford/cardsmith/internal/models"
	"github.com/starford/cardsmith/internal/session"
	"github.com/starford/cardsmith/internal/storage"
)

// DefaultMaxUploadBytes caps asset uploads.
const DefaultMaxUploadBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	session   *session.Session
	store     storage.Provider
	exporter  *export.Exporter
	preview   *capture.Capturer
	maxUpload int64
}

// NewHandler creates a new Handler. maxUpload <= 0 selects DefaultMaxUploadBytes.
func NewHandler(sess *session.Session, store storage.Provider, exporter *export.Exporter, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handler{
		session:   sess,
		store:     store,
		exporter:  exporter,
		preview:   capture.New(capture.WithScale(1), capture.WithSettleDelay(0)),
		maxUpload: maxUpload,
	}
}

func (h *Handler) cardResponse(w http.ResponseWriter, status int) {
	card, rev := h.session.Card()
	w.Header().Set("ETag", strconv.Quote(rev))
	writeJSON(w, status, CardResponse{
		Card:     card,
		Revision: rev,
		Runs:     markup.Parse(card.Message),
	})
}

// GetCard handles GET /api/card.
//
//	@Summary		Get the current card
//	@Tags			card
//	@Produce		json
//	@Success		200	{object}	CardResponse
//	@Security		BearerAuth
//	@Router			/card [get]
func (h *Handler) GetCard(w http.ResponseWriter, _ *http.Request) {
	h.cardResponse(w, http.StatusOK)
}

// UpdateCard handles PUT /api/card.
//
//	@Summary		Replace the card with optimistic concurrency
//	@Tags			card
//	@Accept			json
//	@Produce		json
//	@Param			If-Match	header	string		false	"Revision from a previous GET"
//	@Param			body		body	models.Card	true	"New card"
//	@Success		200		{object}	CardResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/card [put]
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	var card models.Card
	if !decodeJSON(w, r, &card) {
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	if _, err := h.session.Update(card, ifMatch); err != nil {
		switch {
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("revision mismatch"))
		case errors.Is(err, apperr.ErrInvalid):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		default:
			slog.Error("update card failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.cardResponse(w, http.StatusOK)
}

// CardRuns handles GET /api/card/runs.
//
//	@Summary		Parsed runs of the current message
//	@Tags			card
//	@Produce		json
//	@Success		200	{object}	ParseResponse
//	@Security		BearerAuth
//	@Router			/card/runs [get]
func (h *Handler) CardRuns(w http.ResponseWriter, _ *http.Request) {
	runs := h.session.Runs()
	writeJSON(w, http.StatusOK, ParseResponse{Runs: runs, Plain: markup.Plain(runs)})
}

// ParseMarkup handles POST /api/markup/parse.
//
//	@Summary		Parse message markup without touching the card
//	@Tags			markup
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ParseRequest	true	"Text to parse"
//	@Success		200		{object}	ParseResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/markup/parse [post]
func (h *Handler) ParseMarkup(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	runs := markup.Parse(req.Text)
	writeJSON(w, http.StatusOK, ParseResponse{Runs: runs, Plain: markup.Plain(runs)})
}

// Preview handles GET /api/card/preview.png.
//
//	@Summary		Render the current card at 1x
//	@Tags			card
//	@Produce		png
//	@Param			elapsed_ms	query	int	false	"Animation time for animated images"
//	@Success		200
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/card/preview.png [get]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	surface, _ := h.session.Surface()
	if surface == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	ms, _ := strconv.Atoi(r.URL.Query().Get("elapsed_ms"))
	data, err := h.preview.Still(r.Context(), surface, capture.StillOptions{Elapsed: time.Duration(ms) * time.Millisecond})
	if err != nil {
		if errors.Is(err, apperr.ErrCapture) {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(export.UserMessage(err)))
			return
		}
		slog.Error("preview failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = w.Write(data)
}
