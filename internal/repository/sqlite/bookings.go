package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
)

const bookingColumns = `b.id, b.uid, b.event_type_id, b.title, b.status, b.start_time, b.end_time,
	b.organizer_id, b.seat_capacity, b.seats_taken, b.ical_uid, b.ical_sequence,
	b.rescheduled_from_uid, b.rescheduled_to_uid, b.cancellation_reason, b.created_at`

type BookingRepo struct {
	pool *sql.DB
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (domain.Booking, error) {
	var (
		b                      domain.Booking
		start, end, created    int64
		capacity, sequence     sql.NullInt64
		fromUID, toUID, reason sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.UID, &b.EventTypeID, &b.Title, &b.Status, &start, &end,
		&b.OrganizerID, &capacity, &b.SeatsTaken, &b.ICalUID, &sequence,
		&fromUID, &toUID, &reason, &created,
	)
	if err != nil {
		return domain.Booking{}, err
	}

	b.StartTime = fromMillis(start)
	b.EndTime = fromMillis(end)
	b.CreatedAt = fromMillis(created)
	b.SeatCapacity = intPtr(capacity)
	b.ICalSequence = int(sequence.Int64)
	b.RescheduledFromUID = fromUID.String
	b.RescheduledToUID = toUID.String
	b.CancellationReason = reason.String

	return b, nil
}

func (r *BookingRepo) queryBookings(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := r.handle().QueryContext(ctx, query, args...)
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

// FindOverlapping returns blocking bookings intersecting the window where the
// user is the organizer or the email is an attendee.
func (r *BookingRepo) FindOverlapping(ctx context.Context, q repository.OverlapQuery) ([]domain.Booking, error) {
	const op = "sqlite.BookingRepo.FindOverlapping"

	out, err := r.queryBookings(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings b
		 WHERE b.status IN ('ACCEPTED', 'PENDING')
		   AND b.start_time < ? AND b.end_time > ?
		   AND b.uid <> ?
		   AND (b.organizer_id = ? OR EXISTS (
		        SELECT 1 FROM attendees a
		        WHERE a.booking_id = b.id AND a.email = ? COLLATE NOCASE))
		 ORDER BY b.start_time`,
		toMillis(q.Window.End), toMillis(q.Window.Start), q.ExcludeUID, q.UserID, q.Email,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

func (r *BookingRepo) CountInPeriod(ctx context.Context, q repository.PeriodQuery) (repository.PeriodUsage, error) {
	const op = "sqlite.BookingRepo.CountInPeriod"

	var usage repository.PeriodUsage
	err := r.handle().QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM((b.end_time - b.start_time) / 60000), 0)
		 FROM bookings b
		 WHERE b.status IN ('ACCEPTED', 'PENDING')
		   AND b.event_type_id = ?
		   AND b.start_time >= ? AND b.start_time < ?
		   AND b.uid <> ?
		   AND (b.organizer_id = ? OR EXISTS (
		        SELECT 1 FROM attendees a
		        WHERE a.booking_id = b.id AND a.is_host = 1 AND a.email = ? COLLATE NOCASE))`,
		q.EventTypeID, toMillis(q.From), toMillis(q.To), q.ExcludeUID, q.UserID, q.Email,
	).Scan(&usage.Count, &usage.Minutes)
	if err != nil {
		return repository.PeriodUsage{}, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return usage, nil
}

func (r *BookingRepo) CountRecent(ctx context.Context, q repository.RecentQuery) (map[int64]int, error) {
	const op = "sqlite.BookingRepo.CountRecent"

	out := make(map[int64]int, len(q.UserIDs))
	if len(q.UserIDs) == 0 {
		return out, nil
	}

	args := append([]any{q.EventTypeID, toMillis(q.Since), q.ExcludeUID}, int64Args(q.UserIDs)...)
	rows, err := r.handle().QueryContext(ctx,
		`SELECT organizer_id, COUNT(*)
		 FROM bookings
		 WHERE event_type_id = ?
		   AND status IN ('ACCEPTED', 'PENDING')
		   AND created_at >= ?
		   AND uid <> ?
		   AND organizer_id IN (`+placeholders(len(q.UserIDs))+`)
		 GROUP BY organizer_id`,
		args...,
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

// FindSeatedSlot returns the accepted seated booking backing the slot, with
// its attendees.
func (r *BookingRepo) FindSeatedSlot(
	ctx context.Context,
	eventTypeID int64,
	start time.Time,
	excludeUID string,
) (*domain.Booking, error) {
	const op = "sqlite.BookingRepo.FindSeatedSlot"

	b, err := scanBooking(r.handle().QueryRowContext(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings b
		 WHERE b.event_type_id = ? AND b.start_time = ?
		   AND b.status = 'ACCEPTED' AND b.seat_capacity IS NOT NULL
		   AND b.uid <> ?
		 ORDER BY b.id
		 LIMIT 1`,
		eventTypeID, toMillis(start), excludeUID,
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
	const op = "sqlite.BookingRepo.GetByUID"

	b, err := scanBooking(r.handle().QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.uid = ?`, uid,
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
	const op = "sqlite.BookingRepo.GetBySeatReference"

	b, err := scanBooking(r.handle().QueryRowContext(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings b
		 JOIN attendees a ON a.booking_id = b.id
		 WHERE a.seat_reference_uid = ?`,
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

	rows, err := db.QueryContext(ctx,
		`SELECT id, email, name, time_zone, locale, phone_number, seat_reference_uid, is_host
		 FROM attendees WHERE booking_id = ? ORDER BY id`,
		b.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	b.Attendees = nil
	for rows.Next() {
		var (
			a           domain.Attendee
			phone, seat sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.TimeZone, &a.Locale, &phone, &seat, &a.IsHost); err != nil {
			return err
		}
		a.PhoneNumber = phone.String
		a.SeatReferenceUID = seat.String
		b.Attendees = append(b.Attendees, a)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	refs, err := db.QueryContext(ctx,
		`SELECT type, uid, meeting_url FROM booking_references WHERE booking_id = ? ORDER BY id`,
		b.ID,
	)
	if err != nil {
		return err
	}
	defer refs.Close()

	b.References = nil
	for refs.Next() {
		var (
			ref domain.BookingReference
			url sql.NullString
		)
		if err := refs.Scan(&ref.Type, &ref.UID, &url); err != nil {
			return err
		}
		ref.MeetingURL = url.String
		b.References = append(b.References, ref)
	}

	return refs.Err()
}

// Create inserts the booking with its attendees and references. The
// (event type, organizer, start) uniqueness of non-cancelled bookings
// surfaces as repository.ErrConflict.
func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	const op = "sqlite.BookingRepo.Create"

	if r.db == nil {
		tx, err := r.pool.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		defer tx.Rollback()

		if err := r.With(tx).Create(ctx, b); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return nil
	}

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings(uid, event_type_id, title, status, start_time, end_time,
		        organizer_id, seat_capacity, seats_taken, ical_uid, ical_sequence,
		        rescheduled_from_uid, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UID, b.EventTypeID, b.Title, string(b.Status), toMillis(b.StartTime), toMillis(b.EndTime),
		b.OrganizerID, nullInt(b.SeatCapacity), b.SeatsTaken, b.ICalUID, b.ICalSequence,
		nullString(b.RescheduledFromUID), toMillis(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	for i := range b.Attendees {
		if err := r.insertAttendee(ctx, b.ID, &b.Attendees[i]); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
	}

	for _, ref := range b.References {
		if err := r.AddReference(ctx, b.ID, ref); err != nil {
			return err
		}
	}

	return nil
}

func (r *BookingRepo) insertAttendee(ctx context.Context, bookingID int64, a *domain.Attendee) error {
	res, err := r.handle().ExecContext(ctx,
		`INSERT INTO attendees(booking_id, email, name, time_zone, locale, phone_number,
		        seat_reference_uid, is_host)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		bookingID, a.Email, a.Name, a.TimeZone, a.Locale, nullString(a.PhoneNumber),
		nullString(a.SeatReferenceUID), a.IsHost,
	)
	if err != nil {
		return err
	}

	a.ID, err = res.LastInsertId()
	return err
}

func (r *BookingRepo) Cancel(ctx context.Context, uid string, c repository.Cancellation) error {
	const op = "sqlite.BookingRepo.Cancel"

	res, err := r.handle().ExecContext(ctx,
		`UPDATE bookings
		 SET status = 'CANCELLED', cancellation_reason = ?, rescheduled_to_uid = ?
		 WHERE uid = ? AND status <> 'CANCELLED'`,
		nullString(c.Reason), nullString(c.RescheduledToUID), uid,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *BookingRepo) AttachSeats(ctx context.Context, bookingID int64, attendees []domain.Attendee) error {
	const op = "sqlite.BookingRepo.AttachSeats"

	if err := r.takeSeats(ctx, bookingID, len(attendees)); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	for i := range attendees {
		if err := r.insertAttendee(ctx, bookingID, &attendees[i]); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
	}

	return nil
}

func (r *BookingRepo) MoveSeats(ctx context.Context, fromID, toID int64) error {
	const op = "sqlite.BookingRepo.MoveSeats"

	db := r.handle()

	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendees WHERE booking_id = ? AND is_host = 0`, fromID,
	).Scan(&n); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if err := r.takeSeats(ctx, toID, n); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if _, err := db.ExecContext(ctx,
		`UPDATE attendees SET booking_id = ? WHERE booking_id = ? AND is_host = 0`,
		toID, fromID,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if _, err := db.ExecContext(ctx,
		`UPDATE bookings SET seats_taken = 0 WHERE id = ?`, fromID,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (r *BookingRepo) takeSeats(ctx context.Context, bookingID int64, n int) error {
	res, err := r.handle().ExecContext(ctx,
		`UPDATE bookings
		 SET seats_taken = seats_taken + ?
		 WHERE id = ? AND status = 'ACCEPTED'
		   AND seat_capacity IS NOT NULL
		   AND seats_taken + ? <= seat_capacity`,
		n, bookingID, n,
	)
	if err != nil {
		return translateDBErr(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNoSeatsLeft
	}

	return nil
}

func (r *BookingRepo) AddReference(ctx context.Context, bookingID int64, ref domain.BookingReference) error {
	const op = "sqlite.BookingRepo.AddReference"

	if _, err := r.handle().ExecContext(ctx,
		`INSERT INTO booking_references(booking_id, type, uid, meeting_url) VALUES (?, ?, ?, ?)`,
		bookingID, ref.Type, ref.UID, nullString(ref.MeetingURL),
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
