package web

import "embed"

// TemplatesFS holds the server-rendered pages and htmx fragments.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the htmx glue script.
//
//go:embed static/*
var StaticFS embed.FS
