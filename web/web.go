package web

import "embed"

// Templates holds the dashboard page served at /.
//
//go:embed templates/dashboard.html
var Templates embed.FS
