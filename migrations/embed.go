// Package migrations carries the schema migration files inside the
// binary so deployment needs no sql files on disk.
package migrations

import "embed"

// FS holds every .sql file in this directory, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
