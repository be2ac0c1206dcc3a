package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
)

type UserRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *UserRepo) With(db DB) *UserRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *UserRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetUsers retrieves users by their IDs.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - ids: user IDs; the result follows this order.
//
// Returns:
//   - []domain.User: the users when all are found.
//   - error: repository.ErrNotFound if any of the users does not exist.
func (r *UserRepo) GetUsers(ctx context.Context, ids []int64) ([]domain.User, error) {
	const op = "postgres.UserRepo.GetUsers"

	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.handle().Query(ctx,
		`SELECT id, email, name, time_zone, locale, default_schedule_id
		 FROM users WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	byID := make(map[int64]domain.User, len(ids))
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.TimeZone, &u.Locale, &u.DefaultScheduleID); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%s: user %d:%w", op, id, repository.ErrNotFound)
		}
		out = append(out, u)
	}

	return out, nil
}

// CreateUser inserts a user and sets its ID.
//
// Returns:
//   - error: repository.ErrConflict if the email is already registered.
func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	const op = "postgres.UserRepo.CreateUser"

	err := r.handle().QueryRow(ctx,
		`INSERT INTO users(email, name, time_zone, locale, default_schedule_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		u.Email, u.Name, u.TimeZone, u.Locale, u.DefaultScheduleID,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
