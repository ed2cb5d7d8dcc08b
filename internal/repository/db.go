package repository

import (
	"database/sql"
)

// SQLExecutor is the subset of *sql.DB the repository needs. Every write is a
// single guarded statement, so no transaction wrapper is required.
type SQLExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

var _ SQLExecutor = (*sql.DB)(nil)
