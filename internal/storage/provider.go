// Package storage defines the asset file-system abstraction used for
// uploaded avatar, background and trophy images.
package storage

import (
	"net/http"
	"time"
)

// Asset describes a stored image file.
type Asset struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for asset file operations. Names are flat file
// names relative to the asset root.
type Provider interface {
	// List returns every image asset under the root.
	List() ([]Asset, error)
	// Read returns the raw bytes of the named asset.
	Read(name string) ([]byte, error)
	// Write atomically writes content under name.
	Write(name string, content []byte) error
	// Delete removes the named asset.
	Delete(name string) error
}

// ImageExtensions lists the file extensions accepted as assets.
var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// sniffedExt maps detected content types to stored file extensions.
var sniffedExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// SniffExtension returns the file extension matching the content of data,
// or false if it is not a supported image type.
func SniffExtension(data []byte) (string, bool) {
	ext, ok := sniffedExt[http.DetectContentType(data)]
	return ext, ok
}
