package cosclient

import (
	"mime"
	"path/filepath"
)

// guessContentType maps a filename extension to the Content-Type stored on
// the object. Unknown extensions upload without one and COS serves them as
// application/octet-stream.
func guessContentType(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}
