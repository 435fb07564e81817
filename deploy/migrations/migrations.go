// Package migrations embeds the SQL schema applied by the daemon at
// startup. Files are named NNNN_description.sql and run in order.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
