package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
)

type ScheduleRepo struct {
	pool *pgxpool.Pool
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

// GetAvailability retrieves the schedule governing a user's time.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - q: the user, and optionally an explicit schedule that wins over the
//     user's default schedule.
//
// Returns:
//   - *domain.Schedule: the schedule with all of its rules.
//   - error: repository.ErrNotFound if the user has no schedule.
func (r *ScheduleRepo) GetAvailability(ctx context.Context, q repository.AvailabilityQuery) (*domain.Schedule, error) {
	const op = "postgres.ScheduleRepo.GetAvailability"

	db := r.handle()

	var row pgx.Row
	if q.ScheduleID != nil {
		row = db.QueryRow(ctx,
			`SELECT id, user_id, name, time_zone FROM schedules WHERE id = $1`,
			*q.ScheduleID,
		)
	} else {
		row = db.QueryRow(ctx,
			`SELECT s.id, s.user_id, s.name, s.time_zone
			 FROM schedules s
			 JOIN users u ON u.id = s.user_id
			 WHERE s.user_id = $1
			 ORDER BY (s.id = u.default_schedule_id) DESC, s.id
			 LIMIT 1`,
			q.UserID,
		)
	}

	var s domain.Schedule
	if err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.TimeZone); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	rows, err := db.Query(ctx,
		`SELECT days, COALESCE(date, ''), start_minute, end_minute
		 FROM availability WHERE schedule_id = $1 ORDER BY id`,
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
		)
		if err := rows.Scan(&mask, &rule.Date, &rule.StartMinute, &rule.EndMinute); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		rule.Days = domain.WeekdaysFromMask(mask)
		s.Availability = append(s.Availability, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &s, nil
}

// CreateSchedule inserts a schedule with its rules and makes it the owner's
// default schedule if the owner has none.
func (r *ScheduleRepo) CreateSchedule(ctx context.Context, s *domain.Schedule) error {
	const op = "postgres.ScheduleRepo.CreateSchedule"

	if r.db != nil {
		if err := r.createScheduleCore(ctx, r.db, s); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer tx.Rollback(ctx)

	if err := r.createScheduleCore(ctx, tx, s); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (r *ScheduleRepo) createScheduleCore(ctx context.Context, db DB, s *domain.Schedule) error {
	if err := db.QueryRow(ctx,
		`INSERT INTO schedules(user_id, name, time_zone) VALUES ($1, $2, $3) RETURNING id`,
		s.UserID, s.Name, s.TimeZone,
	).Scan(&s.ID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, rule := range s.Availability {
		var date *string
		if rule.Date != "" {
			date = &rule.Date
		}
		batch.Queue(
			`INSERT INTO availability(schedule_id, days, date, start_minute, end_minute)
			 VALUES ($1, $2, $3, $4, $5)`,
			s.ID, domain.WeekdayMask(rule.Days), date, rule.StartMinute, rule.EndMinute,
		)
	}
	batch.Queue(
		`UPDATE users SET default_schedule_id = $1
		 WHERE id = $2 AND default_schedule_id IS NULL`,
		s.ID, s.UserID,
	)

	return db.SendBatch(ctx, batch).Close()
}
