// Package migrations embeds the goose SQL migrations so commands and the
// integration test harness apply the same schema without a checkout.
//
// Usage:
//
//	goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
