// Package history keeps a record of finished detection sessions in SQLite.
package history
