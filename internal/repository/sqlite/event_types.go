package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirinyoku/slotbook/internal/domain"
)

type EventTypeRepo struct {
	pool *sql.DB
	db   DB
}

func (r *EventTypeRepo) With(db DB) *EventTypeRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EventTypeRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetEventType loads an event type with its hosts in configured order.
func (r *EventTypeRepo) GetEventType(ctx context.Context, id int64) (*domain.EventType, error) {
	const op = "sqlite.EventTypeRepo.GetEventType"

	db := r.handle()

	var (
		et                          domain.EventType
		durations, bLimits, dLimits string
		thresholdAmount             sql.NullInt64
		thresholdUnit               sql.NullString
		seats, schedule             sql.NullInt64
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, owner_id, slug, title, scheduling_type, length_minutes,
		        multiple_durations, requires_confirmation, threshold_amount, threshold_unit,
		        seats_per_time_slot, schedule_id, booking_limits, duration_limits,
		        reschedule_same_host
		 FROM event_types WHERE id = ?`,
		id,
	).Scan(
		&et.ID, &et.OwnerID, &et.Slug, &et.Title, &et.SchedulingType, &et.LengthMinutes,
		&durations, &et.RequiresConfirmation, &thresholdAmount, &thresholdUnit,
		&seats, &schedule, &bLimits, &dLimits,
		&et.RescheduleWithSameRoundRobinHost,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if thresholdAmount.Valid {
		et.ConfirmationThreshold = &domain.ConfirmationThreshold{
			Amount: int(thresholdAmount.Int64),
			Unit:   domain.ThresholdUnit(thresholdUnit.String),
		}
	}
	et.SeatsPerTimeSlot = intPtr(seats)
	et.ScheduleID = int64Ptr(schedule)

	if err := json.Unmarshal([]byte(durations), &et.MultipleDurations); err != nil {
		return nil, fmt.Errorf("%s: multiple_durations: %w", op, err)
	}
	if err := json.Unmarshal([]byte(bLimits), &et.BookingLimits); err != nil {
		return nil, fmt.Errorf("%s: booking_limits: %w", op, err)
	}
	if err := json.Unmarshal([]byte(dLimits), &et.DurationLimits); err != nil {
		return nil, fmt.Errorf("%s: duration_limits: %w", op, err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT user_id, is_fixed, priority, weight
		 FROM event_type_hosts WHERE event_type_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			h                domain.HostRef
			priority, weight sql.NullInt64
		)
		if err := rows.Scan(&h.UserID, &h.IsFixed, &priority, &weight); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		h.Priority = intPtr(priority)
		h.Weight = intPtr(weight)
		et.Hosts = append(et.Hosts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &et, nil
}

func (r *EventTypeRepo) CreateEventType(ctx context.Context, et *domain.EventType) error {
	const op = "sqlite.EventTypeRepo.CreateEventType"

	if r.db == nil {
		tx, err := r.pool.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		defer tx.Rollback()

		if err := r.With(tx).CreateEventType(ctx, et); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return nil
	}

	durations, err := json.Marshal(orEmpty(et.MultipleDurations))
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	bLimits, err := json.Marshal(limitsOrEmpty(et.BookingLimits))
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	dLimits, err := json.Marshal(limitsOrEmpty(et.DurationLimits))
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	var (
		thresholdAmount sql.NullInt64
		thresholdUnit   sql.NullString
	)
	if t := et.ConfirmationThreshold; t != nil {
		thresholdAmount = sql.NullInt64{Int64: int64(t.Amount), Valid: true}
		thresholdUnit = nullString(string(t.Unit))
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO event_types(owner_id, slug, title, scheduling_type, length_minutes,
		        multiple_durations, requires_confirmation, threshold_amount, threshold_unit,
		        seats_per_time_slot, schedule_id, booking_limits, duration_limits,
		        reschedule_same_host)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		et.OwnerID, et.Slug, et.Title, string(et.SchedulingType), et.LengthMinutes,
		string(durations), et.RequiresConfirmation, thresholdAmount, thresholdUnit,
		nullInt(et.SeatsPerTimeSlot), nullInt64(et.ScheduleID), string(bLimits), string(dLimits),
		et.RescheduleWithSameRoundRobinHost,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}
	if et.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	for i, h := range et.Hosts {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO event_type_hosts(event_type_id, user_id, position, is_fixed, priority, weight)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			et.ID, h.UserID, i, h.IsFixed, nullInt(h.Priority), nullInt(h.Weight),
		); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
	}

	return nil
}

func orEmpty(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func limitsOrEmpty[M ~map[domain.LimitPeriod]int](m M) M {
	if m == nil {
		return M{}
	}
	return m
}
