// Package web provides embedded static assets for the mip preview viewer.
package web

import (
	"embed"
	"io/fs"
)

//go:embed viewer/*
var viewerFS embed.FS

// ViewerFS returns a filesystem rooted at the viewer/ directory.
// This strips the "viewer" prefix so files are served from root.
func ViewerFS() (fs.FS, error) {
	return fs.Sub(viewerFS, "viewer")
}
