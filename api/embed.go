// Package api ships the OpenAPI document so the server can serve it at
// /openapi.yaml without a file on disk.
package api

import _ "embed"

// OpenAPISpec is the raw OpenAPI 3.1 YAML document.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
