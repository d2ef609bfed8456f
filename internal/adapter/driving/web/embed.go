// Package web serves the embedded browser shell. The shell is a thin
// renderer: every decision (availability, routing, confirmation arming)
// comes from the JSON API, and the shell only displays state and forwards
// input.
package web

import "embed"

// StaticFS holds the embedded shell assets (HTML, CSS, JS).
//
//go:embed static/*
var StaticFS embed.FS
