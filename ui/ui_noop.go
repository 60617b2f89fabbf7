//go:build !ui

package ui

import "io/fs"

// DistFS reports no frontend in builds without the ui tag; the server
// leaves the SPA routes unmounted when it gets a nil filesystem.
func DistFS() (fs.FS, error) {
	return nil, nil
}
