// Package db holds the GORM repositories for game records, finished game
// histories and user accounts. Postgres is used in production and SQLite for
// local runs and tests.
package db
