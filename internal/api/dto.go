package api

import (
	"github.com/starford/cardsmith/internal/models"
	"github.com/starford/cardsmith/internal/storage"
)

// CardResponse is the current card with its revision and parsed message.
type CardResponse struct {
	Card     models.Card      `json:"card" validate:"required"`
	Revision string           `json:"revision" example:"9f86d081884c7d65" validate:"required"`
	Runs     []models.TextRun `json:"runs" validate:"required"`
}

// ParseRequest is the request body for POST /markup/parse.
type ParseRequest struct {
	Text string `json:"text" example:"Hello {world} [#tag]"`
}

// ParseResponse carries the parsed runs and their plain concatenation.
type ParseResponse struct {
	Runs  []models.TextRun `json:"runs" validate:"required"`
	Plain string           `json:"plain" validate:"required"`
}

// UploadResponse describes a stored asset.
type UploadResponse struct {
	Name   string `json:"name" example:"0b8c3f8e-2f0a-4a53-9d4e-5d1f0e9b0a11.png" validate:"required"`
	Source string `json:"source" example:"/assets/0b8c3f8e-2f0a-4a53-9d4e-5d1f0e9b0a11.png" validate:"required"`
	Size   int64  `json:"size" example:"20480" validate:"required"`
}

// AssetListResponse wraps stored assets.
type AssetListResponse struct {
	Assets []storage.Asset `json:"assets" validate:"required"`
}
