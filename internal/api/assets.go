package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/cardsmith/internal/apperr"
	"github.com/starford/cardsmith/internal/assets"
	"github.com/starford/cardsmith/internal/storage"
)

// UploadAsset handles POST /api/assets (multipart/form-data, field "file").
//
//	@Summary		Upload an image asset
//	@Tags			assets
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"PNG, JPEG, GIF or WebP image"
//	@Success		201		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Failure		415		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets [post]
func (h *Handler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	// Allow some slack for the multipart envelope.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	if int64(len(data)) > h.maxUpload {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("file too large"))
		return
	}

	ext, ok := storage.SniffExtension(data)
	if !ok {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody("only PNG, JPEG, GIF and WebP images are accepted"))
		return
	}
	if _, err := assets.Decode(data); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("image could not be decoded"))
		return
	}

	name := uuid.NewString() + ext
	if err := h.store.Write(name, data); err != nil {
		slog.Error("asset write failed", slog.String("name", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to store file"))
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Name:   name,
		Source: assets.AssetPrefix + name,
		Size:   int64(len(data)),
	})
}

// ListAssets handles GET /api/assets.
//
//	@Summary		List uploaded assets
//	@Tags			assets
//	@Produce		json
//	@Success		200	{object}	AssetListResponse
//	@Security		BearerAuth
//	@Router			/assets [get]
func (h *Handler) ListAssets(w http.ResponseWriter, _ *http.Request) {
	items, err := h.store.List()
	if err != nil {
		slog.Error("list assets failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, AssetListResponse{Assets: items})
}

// ServeAsset handles GET /api/assets/{name}.
func (h *Handler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := h.store.Read(name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "invalid asset name", http.StatusBadRequest)
		return
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(data)
}

// DeleteAsset handles DELETE /api/assets/{name}.
//
//	@Summary		Delete an uploaded asset
//	@Tags			assets
//	@Param			name	path	string	true	"Asset name"
//	@Success		204		"Asset deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets/{name} [delete]
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "name"))
	if err := h.store.Delete(name); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete asset failed", slog.String("name", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorBody("invalid asset name"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
