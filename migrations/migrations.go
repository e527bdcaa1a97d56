// Package migrations embeds versioned schema scripts applied on startup.
package migrations

import "embed"

// FS holds scripts named <version>_<description>.up.sql
//
//go:embed *.sql
var FS embed.FS
