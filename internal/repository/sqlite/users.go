package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
)

type UserRepo struct {
	pool *sql.DB
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

func (r *UserRepo) GetUsers(ctx context.Context, ids []int64) ([]domain.User, error) {
	const op = "sqlite.UserRepo.GetUsers"

	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.handle().QueryContext(ctx,
		`SELECT id, email, name, time_zone, locale, default_schedule_id
		 FROM users WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}
	defer rows.Close()

	byID := make(map[int64]domain.User, len(ids))
	for rows.Next() {
		var (
			u        domain.User
			schedule sql.NullInt64
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.TimeZone, &u.Locale, &schedule); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		u.DefaultScheduleID = int64Ptr(schedule)
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

func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	const op = "sqlite.UserRepo.CreateUser"

	res, err := r.handle().ExecContext(ctx,
		`INSERT INTO users(email, name, time_zone, locale, default_schedule_id)
		 VALUES (?, ?, ?, ?, ?)`,
		u.Email, u.Name, u.TimeZone, u.Locale, nullInt64(u.DefaultScheduleID),
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if u.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
