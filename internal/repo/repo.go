package repo

import (
	"database/sql"
	"errors"
)

// Repo is a thin data-access layer over the sqlite database. Every query that
// reads or writes owner-scoped rows carries the owner id in its WHERE clause;
// a row that exists but belongs to someone else is indistinguishable from a
// row that does not exist.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
