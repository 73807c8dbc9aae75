// Package dashboard provides the embedded web UI assets for Pulsewatch.
//
// The dashboard renders the status document served at /api/status and
// refreshes whenever the SSE stream at /api/sse announces a new pulse.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
//	assets/
//	  index.html    - dashboard page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
