// Package mysql provides repositories backed by MySQL. It owns the
// connection pool settings, runs the embedded schema migrations, and
// exposes strongly typed queries for loads, directory entities,
// accounts, documents, and billing records.
package mysql
