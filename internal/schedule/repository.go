package schedule

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrDateNotFound  = errors.New("available date not found")
	ErrDuplicateDate = errors.New("date already exists")
)

const dateColumns = `id, date, time_slots, is_active, max_bookings, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, date time.Time, slots []string, maxBookings int) (*AvailableDate, error) {
	query := `
		INSERT INTO available_dates (date, time_slots, is_active, max_bookings)
		VALUES ($1, $2, TRUE, $3)
		RETURNING ` + dateColumns

	var d AvailableDate
	err := r.db.GetContext(ctx, &d, query, date, pq.StringArray(slots), maxBookings)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateDate
		}
		return nil, err
	}

	return &d, nil
}

// InsertIfAbsent inserts a calendar date unless one already exists.
// Existing dates are skipped, never overwritten.
func (r *repository) InsertIfAbsent(ctx context.Context, date time.Time, slots []string, maxBookings int) (bool, error) {
	query := `
		INSERT INTO available_dates (date, time_slots, is_active, max_bookings)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (date) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, date, pq.StringArray(slots), maxBookings)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (r *repository) GetByDate(ctx context.Context, date time.Time) (*AvailableDate, error) {
	var d AvailableDate
	err := r.db.GetContext(ctx, &d, `SELECT `+dateColumns+` FROM available_dates WHERE date = $1`, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDateNotFound
		}
		return nil, err
	}

	return &d, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*AvailableDate, error) {
	var d AvailableDate
	err := r.db.GetContext(ctx, &d, `SELECT `+dateColumns+` FROM available_dates WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDateNotFound
		}
		return nil, err
	}

	return &d, nil
}

func (r *repository) ListUpcoming(ctx context.Context) ([]AvailableDate, error) {
	query := `
		SELECT ` + dateColumns + `
		FROM available_dates
		WHERE is_active = TRUE AND date >= CURRENT_DATE
		ORDER BY date ASC
	`

	var dates []AvailableDate
	err := r.db.SelectContext(ctx, &dates, query)
	if err != nil {
		return nil, err
	}

	return dates, nil
}

func (r *repository) ListAll(ctx context.Context) ([]AvailableDate, error) {
	query := `
		SELECT ` + dateColumns + `
		FROM available_dates
		ORDER BY date ASC
	`

	var dates []AvailableDate
	err := r.db.SelectContext(ctx, &dates, query)
	if err != nil {
		return nil, err
	}

	return dates, nil
}

func (r *repository) Update(ctx context.Context, id int, slots []string, maxBookings *int, isActive *bool) (*AvailableDate, error) {
	query := `
		UPDATE available_dates
		SET time_slots = COALESCE($1, time_slots),
		    max_bookings = COALESCE($2, max_bookings),
		    is_active = COALESCE($3, is_active)
		WHERE id = $4
		RETURNING ` + dateColumns

	var slotsArg interface{}
	if slots != nil {
		slotsArg = pq.StringArray(slots)
	}

	var d AvailableDate
	err := r.db.GetContext(ctx, &d, query, slotsArg, maxBookings, isActive, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDateNotFound
		}
		return nil, err
	}

	return &d, nil
}

func (r *repository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM available_dates WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrDateNotFound
	}

	return nil
}

func (r *repository) CountBookings(ctx context.Context, date time.Time, slot string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE date = $1 AND time_slot = $2 AND status != 'cancelled'
	`

	var count int
	err := r.db.GetContext(ctx, &count, query, date, slot)
	if err != nil {
		return 0, err
	}

	return count, nil
}
