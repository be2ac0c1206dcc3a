package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/slotbook/internal/domain"
)

type EventTypeRepo struct {
	pool *pgxpool.Pool
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

// GetEventType retrieves an event type by its ID.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - id: unique identifier of the event type to retrieve.
//
// Returns:
//   - *domain.EventType: the event type with hosts in configured order.
//   - error: repository.ErrNotFound if the event type is not found.
func (r *EventTypeRepo) GetEventType(ctx context.Context, id int64) (*domain.EventType, error) {
	const op = "postgres.EventTypeRepo.GetEventType"

	db := r.handle()

	var (
		et              domain.EventType
		schedulingType  string
		thresholdAmount *int
		thresholdUnit   *string
	)
	err := db.QueryRow(ctx,
		`SELECT id, owner_id, slug, title, scheduling_type, length_minutes,
		        multiple_durations, requires_confirmation, threshold_amount, threshold_unit,
		        seats_per_time_slot, schedule_id, booking_limits, duration_limits,
		        reschedule_same_host
		 FROM event_types WHERE id = $1`,
		id,
	).Scan(
		&et.ID, &et.OwnerID, &et.Slug, &et.Title, &schedulingType, &et.LengthMinutes,
		&et.MultipleDurations, &et.RequiresConfirmation, &thresholdAmount, &thresholdUnit,
		&et.SeatsPerTimeSlot, &et.ScheduleID, &et.BookingLimits, &et.DurationLimits,
		&et.RescheduleWithSameRoundRobinHost,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	et.SchedulingType = domain.SchedulingType(schedulingType)
	if thresholdAmount != nil {
		et.ConfirmationThreshold = &domain.ConfirmationThreshold{Amount: *thresholdAmount}
		if thresholdUnit != nil {
			et.ConfirmationThreshold.Unit = domain.ThresholdUnit(*thresholdUnit)
		}
	}

	rows, err := db.Query(ctx,
		`SELECT user_id, is_fixed, priority, weight
		 FROM event_type_hosts WHERE event_type_id = $1 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	for rows.Next() {
		var h domain.HostRef
		if err := rows.Scan(&h.UserID, &h.IsFixed, &h.Priority, &h.Weight); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		et.Hosts = append(et.Hosts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &et, nil
}

// CreateEventType inserts an event type with its hosts and sets its ID.
//
// Returns:
//   - error: repository.ErrConflict if the slug is taken.
func (r *EventTypeRepo) CreateEventType(ctx context.Context, et *domain.EventType) error {
	const op = "postgres.EventTypeRepo.CreateEventType"

	if r.db != nil {
		if err := r.createCore(ctx, r.db, et); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer tx.Rollback(ctx)

	if err := r.createCore(ctx, tx, et); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (r *EventTypeRepo) createCore(ctx context.Context, db DB, et *domain.EventType) error {
	var (
		thresholdAmount *int
		thresholdUnit   *string
	)
	if t := et.ConfirmationThreshold; t != nil {
		unit := string(t.Unit)
		thresholdAmount, thresholdUnit = &t.Amount, &unit
	}

	durations := et.MultipleDurations
	if durations == nil {
		durations = []int{}
	}
	bookingLimits := et.BookingLimits
	if bookingLimits == nil {
		bookingLimits = domain.BookingLimits{}
	}
	durationLimits := et.DurationLimits
	if durationLimits == nil {
		durationLimits = domain.DurationLimits{}
	}

	if err := db.QueryRow(ctx,
		`INSERT INTO event_types(owner_id, slug, title, scheduling_type, length_minutes,
		        multiple_durations, requires_confirmation, threshold_amount, threshold_unit,
		        seats_per_time_slot, schedule_id, booking_limits, duration_limits,
		        reschedule_same_host)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		et.OwnerID, et.Slug, et.Title, string(et.SchedulingType), et.LengthMinutes,
		durations, et.RequiresConfirmation, thresholdAmount, thresholdUnit,
		et.SeatsPerTimeSlot, et.ScheduleID, map[domain.LimitPeriod]int(bookingLimits),
		map[domain.LimitPeriod]int(durationLimits), et.RescheduleWithSameRoundRobinHost,
	).Scan(&et.ID); err != nil {
		return err
	}

	if len(et.Hosts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, h := range et.Hosts {
		batch.Queue(
			`INSERT INTO event_type_hosts(event_type_id, user_id, position, is_fixed, priority, weight)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			et.ID, h.UserID, i, h.IsFixed, h.Priority, h.Weight,
		)
	}

	return db.SendBatch(ctx, batch).Close()
}
