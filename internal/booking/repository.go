package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrBookingNotFound                   = errors.New("booking not found")
	ErrBookingNotFoundOrAlreadyCancelled = errors.New("booking not found or already cancelled")
	ErrDateNotBookable                   = errors.New("date is not open for booking")
	ErrUnknownSlot                       = errors.New("unknown time slot for date")
	ErrSlotFull                          = errors.New("time slot is full")
)

const bookingColumns = `id, date, time_slot, appointment_type, name, email, phone, status, user_id, pass_id, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Reserve inserts a booking with the capacity check inside the same
// transaction. The calendar row is locked first, so two concurrent
// reservations for the last spot cannot both pass the count.
func (r *repository) Reserve(ctx context.Context, b *Booking) (*Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var entry struct {
		Date        time.Time      `db:"date"`
		TimeSlots   pq.StringArray `db:"time_slots"`
		IsActive    bool           `db:"is_active"`
		MaxBookings int            `db:"max_bookings"`
	}
	err = tx.QueryRowxContext(ctx,
		`SELECT date, time_slots, is_active, max_bookings
		 FROM available_dates
		 WHERE date = $1
		 FOR UPDATE`,
		b.Date,
	).StructScan(&entry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDateNotBookable
		}
		return nil, err
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !entry.IsActive || entry.Date.Before(today) {
		return nil, ErrDateNotBookable
	}

	slotKnown := false
	for _, s := range entry.TimeSlots {
		if s == b.TimeSlot {
			slotKnown = true
			break
		}
	}
	if !slotKnown {
		return nil, ErrUnknownSlot
	}

	var booked int
	err = tx.GetContext(ctx, &booked,
		`SELECT COUNT(*)
		 FROM bookings
		 WHERE date = $1 AND time_slot = $2 AND status != 'cancelled'`,
		b.Date, b.TimeSlot,
	)
	if err != nil {
		return nil, err
	}

	if booked >= entry.MaxBookings {
		return nil, ErrSlotFull
	}

	var created Booking
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO bookings (date, time_slot, appointment_type, name, email, phone, status, user_id, pass_id)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8)
		 RETURNING `+bookingColumns,
		b.Date, b.TimeSlot, b.AppointmentType, b.Name, b.Email, b.Phone, b.UserID, b.PassID,
	).StructScan(&created)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

// Cancel soft-cancels. The row is preserved so the history of the slot
// stays intact; availability counts only non-cancelled rows.
func (r *repository) Cancel(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'cancelled' WHERE id = $1 AND status != 'cancelled'`,
		id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrBookingNotFoundOrAlreadyCancelled
	}

	return nil
}

func (r *repository) Confirm(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'confirmed' WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrBookingNotFound
	}

	return nil
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var bookings []Booking
	err := r.db.SelectContext(ctx, &bookings, query, userID)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *repository) ListByDate(ctx context.Context, date time.Time) ([]BookingWithClient, error) {
	query := `
		SELECT
			b.id, b.date, b.time_slot, b.appointment_type, b.name, b.email, b.phone,
			b.status, b.user_id, b.pass_id, b.created_at,
			u.name AS client_name,
			u.email AS client_email
		FROM bookings b
		LEFT JOIN users u ON b.user_id = u.id
		WHERE b.date = $1
		ORDER BY b.time_slot ASC, b.created_at ASC
	`

	var bookings []BookingWithClient
	err := r.db.SelectContext(ctx, &bookings, query, date)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *repository) ListBySlot(ctx context.Context, date time.Time, slot string) ([]BookingWithClient, error) {
	query := `
		SELECT
			b.id, b.date, b.time_slot, b.appointment_type, b.name, b.email, b.phone,
			b.status, b.user_id, b.pass_id, b.created_at,
			u.name AS client_name,
			u.email AS client_email
		FROM bookings b
		LEFT JOIN users u ON b.user_id = u.id
		WHERE b.date = $1 AND b.time_slot = $2
		ORDER BY b.created_at ASC
	`

	var bookings []BookingWithClient
	err := r.db.SelectContext(ctx, &bookings, query, date, slot)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}

// FindUnsettled returns pass bookings created before cutoff whose
// deduction never landed. These are the orphans of the two-step
// reserve-then-deduct sequence.
func (r *repository) FindUnsettled(ctx context.Context, cutoff time.Time) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.status != 'cancelled'
		  AND b.pass_id IS NOT NULL
		  AND b.created_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM deductions d
			WHERE d.booking_id = b.id AND d.reversed_at IS NULL
		  )
		ORDER BY b.created_at ASC
	`

	var bookings []Booking
	err := r.db.SelectContext(ctx, &bookings, query, cutoff)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}
