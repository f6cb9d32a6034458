package web

import "embed"

// StaticFS holds the embedded static assets (page script and stylesheet).
//
//go:embed static/*
var StaticFS embed.FS

// contentFS holds markdown rendered into pages.
//
//go:embed content/*.md
var contentFS embed.FS
