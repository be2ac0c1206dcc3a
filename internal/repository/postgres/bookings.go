package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
)

const bookingColumns = `b.id, b.uid, b.event_type_id, b.title, b.status, b.start_time, b.end_time,
	b.organizer_id, b.seat_capacity, b.seats_taken, b.ical_uid, COALESCE(b.ical_sequence, 0),
	COALESCE(b.rescheduled_from_uid, ''), COALESCE(b.rescheduled_to_uid, ''),
	COALESCE(b.cancellation_reason, ''), b.created_at`

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var (
		b      domain.Booking
		status string
	)
	err := row.Scan(
		&b.ID, &b.UID, &b.EventTypeID, &b.Title, &status, &b.StartTime, &b.EndTime,
		&b.OrganizerID, &b.SeatCapacity, &b.SeatsTaken, &b.ICalUID, &b.ICalSequence,
		&b.RescheduledFromUID, &b.RescheduledToUID, &b.CancellationReason, &b.CreatedAt,
	)
	if err != nil {
		return domain.Booking{}, err
	}

	b.Status = domain.BookingStatus(status)
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()

	return b, nil
}

func (r *BookingRepo) queryBookings(ctx context.Context, sql string, args ...any) ([]domain.Booking, error) {
	rows, err := r.handle().Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}

	return out, rows.Err()
}

// FindOverlapping lists blocking bookings that intersect a window.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - q: the host, by organizer id or attendee email, the window and an
//     optional booking uid to ignore.
//
// Returns:
//   - []domain.Booking: ACCEPTED and PENDING bookings overlapping q.Window.
//   - error: if the query fails.
func (r *BookingRepo) FindOverlapping(ctx context.Context, q repository.OverlapQuery) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.FindOverlapping"

	out, err := r.queryBookings(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings b
		 WHERE b.status IN ('ACCEPTED', 'PENDING')
		   AND b.start_time < $1 AND b.end_time > $2
		   AND b.uid <> $3
		   AND (b.organizer_id = $4 OR EXISTS (
		        SELECT 1 FROM attendees a
		        WHERE a.booking_id = b.id AND lower(a.email) = lower($5)))
		 ORDER BY b.start_time`,
		q.Window.End, q.Window.Start, q.ExcludeUID, q.UserID, q.Email,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

// CountInPeriod sums a host's bookings of an event type that start in
// [q.From, q.To).
func (r *BookingRepo) CountInPeriod(ctx context.Context, q repository.PeriodQuery) (repository.PeriodUsage, error) {
	const op = "postgres.BookingRepo.CountInPeriod"

	var usage repository.PeriodUsage
	err := r.handle().QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(EXTRACT(EPOCH FROM (b.end_time - b.start_time)) / 60), 0)::int
		 FROM bookings b
		 WHERE b.status IN ('ACCEPTED', 'PENDING')
		   AND b.event_type_id = $1
		   AND b.start_time >= $2 AND b.start_time < $3
		   AND b.uid <> $4
		   AND (b.organizer_id = $5 OR EXISTS (
		        SELECT 1 FROM attendees a
		        WHERE a.booking_id = b.id AND a.is_host AND lower(a.email) = lower($6)))`,
		q.EventTypeID, q.From, q.To, q.ExcludeUID, q.UserID, q.Email,
	).Scan(&usage.Count, &usage.Minutes)
	if err != nil {
		return repository.PeriodUsage{}, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return usage, nil
}

func (r *BookingRepo) CountRecent(ctx context.Context, q repository.RecentQuery) (map[int64]int, error) {
	const op = "postgres.BookingRepo.CountRecent"

	out := make(map[int64]int, len(q.UserIDs))
	if len(q.UserIDs) == 0 {
		return out, nil
	}

	rows, err := r.handle().Query(ctx,
		`SELECT organizer_id, COUNT(*)
		 FROM bookings
		 WHERE event_type_id = $1
		   AND status IN ('ACCEPTED', 'PENDING')
		   AND created_at >= $2
		   AND uid <> $3
		   AND organizer_id = ANY($4)
		 GROUP BY organizer_id`,
		q.EventTypeID, q.Since, q.ExcludeUID, q.UserIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

// FindSeatedSlot retrieves the accepted seated booking backing a slot.
//
// Returns:
//   - *domain.Booking: the booking with its attendees.
//   - error: repository.ErrNotFound if no seat has been taken in the slot.
func (r *BookingRepo) FindSeatedSlot(
	ctx context.Context,
	eventTypeID int64,
	start time.Time,
	excludeUID string,
) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.FindSeatedSlot"

	b, err := scanBooking(r.handle().QueryRow(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings b
		 WHERE b.event_type_id = $1 AND b.start_time = $2
		   AND b.status = 'ACCEPTED' AND b.seat_capacity IS NOT NULL
		   AND b.uid <> $3
		 ORDER BY b.id
		 LIMIT 1`,
		eventTypeID, start, excludeUID,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if err := r.loadChildren(ctx, &b); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &b, nil
}

func (r *BookingRepo) GetByUID(ctx context.Context, uid string) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.GetByUID"

	b, err := scanBooking(r.handle().QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.uid = $1`, uid,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if err := r.loadChildren(ctx, &b); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &b, nil
}

func (r *BookingRepo) GetBySeatReference(ctx context.Context, seatUID string) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.GetBySeatReference"

	b, err := scanBooking(r.handle().QueryRow(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings b
		 JOIN attendees a ON a.booking_id = b.id
		 WHERE a.seat_reference_uid = $1`,
		seatUID,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if err := r.loadChildren(ctx, &b); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &b, nil
}

func (r *BookingRepo) loadChildren(ctx context.Context, b *domain.Booking) error {
	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, email, name, time_zone, locale, COALESCE(phone_number, ''),
		        COALESCE(seat_reference_uid, ''), is_host
		 FROM attendees WHERE booking_id = $1 ORDER BY id`,
		b.ID,
	)
	if err != nil {
		return err
	}

	attendees, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Attendee, error) {
		var a domain.Attendee
		err := row.Scan(&a.ID, &a.Email, &a.Name, &a.TimeZone, &a.Locale, &a.PhoneNumber,
			&a.SeatReferenceUID, &a.IsHost)
		return a, err
	})
	if err != nil {
		return err
	}
	b.Attendees = attendees

	rows, err = db.Query(ctx,
		`SELECT type, uid, COALESCE(meeting_url, '')
		 FROM booking_references WHERE booking_id = $1 ORDER BY id`,
		b.ID,
	)
	if err != nil {
		return err
	}

	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.BookingReference, error) {
		var ref domain.BookingReference
		err := row.Scan(&ref.Type, &ref.UID, &ref.MeetingURL)
		return ref, err
	})
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		b.References = refs
	}

	return nil
}

// Create persists a booking with its attendees and references.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - b: the booking; ID and CreatedAt are set on success.
//
// Returns:
//   - error: repository.ErrConflict if a non-cancelled booking already holds
//     the (event type, organizer, start time) slot or the uid is taken.
func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Create"

	if r.db != nil {
		if err := r.createCore(ctx, r.db, b); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer tx.Rollback(ctx)

	if err := r.createCore(ctx, tx, b); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (r *BookingRepo) createCore(ctx context.Context, db DB, b *domain.Booking) error {
	var fromUID *string
	if b.RescheduledFromUID != "" {
		fromUID = &b.RescheduledFromUID
	}

	if err := db.QueryRow(ctx,
		`INSERT INTO bookings(uid, event_type_id, title, status, start_time, end_time,
		        organizer_id, seat_capacity, seats_taken, ical_uid, ical_sequence,
		        rescheduled_from_uid)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at`,
		b.UID, b.EventTypeID, b.Title, string(b.Status), b.StartTime, b.EndTime,
		b.OrganizerID, b.SeatCapacity, b.SeatsTaken, b.ICalUID, b.ICalSequence,
		fromUID,
	).Scan(&b.ID, &b.CreatedAt); err != nil {
		return err
	}

	if err := insertAttendees(ctx, db, b.ID, b.Attendees); err != nil {
		return err
	}

	if len(b.References) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, ref := range b.References {
		queueReference(batch, b.ID, ref)
	}

	return db.SendBatch(ctx, batch).Close()
}

func insertAttendees(ctx context.Context, db DB, bookingID int64, attendees []domain.Attendee) error {
	for i := range attendees {
		a := &attendees[i]
		if err := db.QueryRow(ctx,
			`INSERT INTO attendees(booking_id, email, name, time_zone, locale, phone_number,
			        seat_reference_uid, is_host)
			 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
			 RETURNING id`,
			bookingID, a.Email, a.Name, a.TimeZone, a.Locale, a.PhoneNumber,
			a.SeatReferenceUID, a.IsHost,
		).Scan(&a.ID); err != nil {
			return err
		}
	}

	return nil
}

func queueReference(batch *pgx.Batch, bookingID int64, ref domain.BookingReference) {
	batch.Queue(
		`INSERT INTO booking_references(booking_id, type, uid, meeting_url)
		 VALUES ($1, $2, $3, NULLIF($4, ''))`,
		bookingID, ref.Type, ref.UID, ref.MeetingURL,
	)
}

// Cancel transitions a booking to CANCELLED.
//
// Returns:
//   - error: repository.ErrNotFound if no non-cancelled booking has the uid.
func (r *BookingRepo) Cancel(ctx context.Context, uid string, c repository.Cancellation) error {
	const op = "postgres.BookingRepo.Cancel"

	tag, err := r.handle().Exec(ctx,
		`UPDATE bookings
		 SET status = 'CANCELLED',
		     cancellation_reason = NULLIF($2, ''),
		     rescheduled_to_uid = NULLIF($3, '')
		 WHERE uid = $1 AND status <> 'CANCELLED'`,
		uid, c.Reason, c.RescheduledToUID,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// AttachSeats adds attendees to a seated booking.
//
// Returns:
//   - error: repository.ErrNoSeatsLeft if the conditional seat update lost.
func (r *BookingRepo) AttachSeats(ctx context.Context, bookingID int64, attendees []domain.Attendee) error {
	const op = "postgres.BookingRepo.AttachSeats"

	db := r.handle()

	if err := takeSeats(ctx, db, bookingID, len(attendees)); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := insertAttendees(ctx, db, bookingID, attendees); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (r *BookingRepo) MoveSeats(ctx context.Context, fromID, toID int64) error {
	const op = "postgres.BookingRepo.MoveSeats"

	db := r.handle()

	var n int
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM attendees WHERE booking_id = $1 AND NOT is_host`, fromID,
	).Scan(&n); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if err := takeSeats(ctx, db, toID, n); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`UPDATE attendees SET booking_id = $1 WHERE booking_id = $2 AND NOT is_host`, toID, fromID)
	batch.Queue(`UPDATE bookings SET seats_taken = 0 WHERE id = $1`, fromID)
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func takeSeats(ctx context.Context, db DB, bookingID int64, n int) error {
	tag, err := db.Exec(ctx,
		`UPDATE bookings
		 SET seats_taken = seats_taken + $2
		 WHERE id = $1 AND status = 'ACCEPTED'
		   AND seat_capacity IS NOT NULL
		   AND seats_taken + $2 <= seat_capacity`,
		bookingID, n,
	)
	if err != nil {
		return translateDBErr(err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNoSeatsLeft
	}

	return nil
}

func (r *BookingRepo) AddReference(ctx context.Context, bookingID int64, ref domain.BookingReference) error {
	const op = "postgres.BookingRepo.AddReference"

	batch := &pgx.Batch{}
	queueReference(batch, bookingID, ref)
	if err := r.handle().SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
