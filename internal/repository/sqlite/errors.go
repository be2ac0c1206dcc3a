package sqlite

import (
	"database/sql"
	"errors"

	"github.com/kirinyoku/slotbook/internal/repository"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		// unique, primary key and check violations all carry the primary
		// SQLITE_CONSTRAINT code in the low byte
		case sqlite3.SQLITE_CONSTRAINT:
			return repository.ErrConflict
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return repository.ErrConflict
		}
	}

	return err
}
