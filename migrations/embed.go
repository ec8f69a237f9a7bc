// Package migrations holds the goose-format schema files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
