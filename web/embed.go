// Package web carries the storefront's templates and static assets compiled
// into the binary, so a deployment is a single file plus its database.
package web

import "embed"

// TemplatesFS holds every page template, including the printable report.
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and any other fixed assets.
//go:embed static/*
var StaticFS embed.FS
