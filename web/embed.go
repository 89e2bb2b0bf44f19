// Package web embeds the single-page card editor.
package web

import (
	"embed"
	"io/fs"
)

//go:embed index.html
var files embed.FS

// FS returns the editor assets.
func FS() fs.FS {
	return files
}
