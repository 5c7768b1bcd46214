package migrations

import "embed"

// Migrations holds goose SQL migrations of the credential store.
//
//go:embed *.sql
var Migrations embed.FS
