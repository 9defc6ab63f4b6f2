// Package web embeds the HTML templates and the API description into the
// binary.
package web

import "embed"

// Templates holds templates/*.html. base.html is the layout; every other
// file defines a "content" block rendered inside it.
//
//go:embed templates/*.html
var Templates embed.FS

// OpenAPI is the OpenAPI 3 description of /api, served at GET /api/.
//
//go:embed openapi.json
var OpenAPI []byte
