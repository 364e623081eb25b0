// Package templates embeds the portal's HTML pages.
package templates

import "embed"

//go:embed *.html
var FS embed.FS
