//go:build ui

package ui

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var distFS embed.FS

// DistFS exposes the built frontend rooted at dist/. Only available
// when the binary is built with the ui tag after a frontend build.
func DistFS() (fs.FS, error) {
	return fs.Sub(distFS, "dist")
}
