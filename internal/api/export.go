package api

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/starford/cardsmith/internal/apperr"
	"github.com/starford/cardsmith/internal/export"
	"github.com/starford/cardsmith/internal/models"
)

// Animated export request limits.
const (
	maxFrames       = 100
	maxFrameDelayMs = 10_000
)

// ExportStill handles POST /api/export/still.
//
//	@Summary		Export the card as a 3x PNG
//	@Tags			export
//	@Produce		png
//	@Success		200	"PNG attachment"
//	@Success		204	"Nothing mounted"
//	@Failure		409	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export/still [post]
func (h *Handler) ExportStill(w http.ResponseWriter, r *http.Request) {
	// The export keeps running if the client goes away; the busy gate is
	// released only when it finishes.
	art, err := h.exporter.Still(context.WithoutCancel(r.Context()))
	writeArtifact(w, art, err)
}

// ExportAnimated handles POST /api/export/animated.
//
//	@Summary		Export the card as a looping GIF
//	@Tags			export
//	@Produce		gif
//	@Param			frames			query	int	false	"Frame count (default 10)"
//	@Param			frame_delay_ms	query	int	false	"Delay between frames (default 100)"
//	@Success		200	"GIF attachment"
//	@Success		204	"Nothing mounted"
//	@Failure		400	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export/animated [post]
func (h *Handler) ExportAnimated(w http.ResponseWriter, r *http.Request) {
	opts := h.exporter.AnimatedOptions()
	q := r.URL.Query()
	if v := q.Get("frames"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxFrames {
			writeJSON(w, http.StatusBadRequest, errorBody("frames must be between 1 and 100"))
			return
		}
		opts.Frames = n
	}
	if v := q.Get("frame_delay_ms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxFrameDelayMs {
			writeJSON(w, http.StatusBadRequest, errorBody("frame_delay_ms must be between 0 and 10000"))
			return
		}
		opts.FrameDelay = time.Duration(n) * time.Millisecond
	}

	art, err := h.exporter.AnimatedWith(context.WithoutCancel(r.Context()), opts)
	writeArtifact(w, art, err)
}

func writeArtifact(w http.ResponseWriter, art *models.Artifact, err error) {
	switch {
	case err == nil && art == nil:
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, apperr.ErrBusy):
		writeJSON(w, http.StatusConflict, errorBody(export.UserMessage(err)))
		return
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	case errors.Is(err, apperr.ErrCapture):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(export.UserMessage(err)))
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorBody(export.UserMessage(err)))
		return
	}

	w.Header().Set("Content-Type", art.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.Header().Set("X-Frame-Count", strconv.Itoa(art.Frames))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}
