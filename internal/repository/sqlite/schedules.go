package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
)

type ScheduleRepo struct {
	pool *sql.DB
	db   DB
}

func (r *ScheduleRepo) With(db DB) *ScheduleRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ScheduleRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetAvailability resolves the schedule in precedence order: the explicit
// schedule, the user's default schedule, then the user's oldest schedule.
func (r *ScheduleRepo) GetAvailability(ctx context.Context, q repository.AvailabilityQuery) (*domain.Schedule, error) {
	const op = "sqlite.ScheduleRepo.GetAvailability"

	db := r.handle()

	var s domain.Schedule
	var err error
	if q.ScheduleID != nil {
		err = db.QueryRowContext(ctx,
			`SELECT id, user_id, name, time_zone FROM schedules WHERE id = ?`,
			*q.ScheduleID,
		).Scan(&s.ID, &s.UserID, &s.Name, &s.TimeZone)
	} else {
		err = db.QueryRowContext(ctx,
			`SELECT s.id, s.user_id, s.name, s.time_zone
			 FROM schedules s
			 JOIN users u ON u.id = s.user_id
			 WHERE s.user_id = ?
			 ORDER BY CASE WHEN s.id = u.default_schedule_id THEN 0 ELSE 1 END, s.id
			 LIMIT 1`,
			q.UserID,
		).Scan(&s.ID, &s.UserID, &s.Name, &s.TimeZone)
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	rows, err := db.QueryContext(ctx,
		`SELECT days, date, start_minute, end_minute
		 FROM availability WHERE schedule_id = ? ORDER BY id`,
		s.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rule domain.AvailabilityRule
			mask int
			date sql.NullString
		)
		if err := rows.Scan(&mask, &date, &rule.StartMinute, &rule.EndMinute); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		rule.Days = domain.WeekdaysFromMask(mask)
		rule.Date = date.String
		s.Availability = append(s.Availability, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &s, nil
}

// CreateSchedule stores the schedule and its rules, and makes it the user's
// default when the user has none yet.
func (r *ScheduleRepo) CreateSchedule(ctx context.Context, s *domain.Schedule) error {
	const op = "sqlite.ScheduleRepo.CreateSchedule"

	if r.db == nil {
		tx, err := r.pool.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		defer tx.Rollback()

		if err := r.With(tx).CreateSchedule(ctx, s); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return nil
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO schedules(user_id, name, time_zone) VALUES (?, ?, ?)`,
		s.UserID, s.Name, s.TimeZone,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	for _, rule := range s.Availability {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO availability(schedule_id, days, date, start_minute, end_minute)
			 VALUES (?, ?, ?, ?, ?)`,
			s.ID, domain.WeekdayMask(rule.Days), nullString(rule.Date), rule.StartMinute, rule.EndMinute,
		); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE users SET default_schedule_id = ?
		 WHERE id = ? AND default_schedule_id IS NULL`,
		s.ID, s.UserID,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
