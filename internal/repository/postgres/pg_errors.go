package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kirinyoku/slotbook/internal/repository"
)

func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	return false
}

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		switch pge.Code {
		// unique_violation (bookings_slot_uq, seat references), check_violation
		// (seats_taken <= seat_capacity)
		case "23505", "23514":
			return repository.ErrConflict
		// foreign_key_violation: the referenced user, schedule or event type
		// is gone
		case "23503":
			return repository.ErrNotFound
		}
	}

	if IsRetryable(err) {
		return repository.ErrConflict
	}

	return err
}
