package booking

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBookingMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "postgres")
	repo := NewRepository(sqlxDB)

	return repo, mock, func() { db.Close() }
}

func bookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "date", "time_slot", "appointment_type", "name", "email", "phone",
		"status", "user_id", "pass_id", "created_at",
	})
}

var (
	lockDateQuery = regexp.QuoteMeta(`SELECT date, time_slots, is_active, max_bookings FROM available_dates WHERE date = $1 FOR UPDATE`)
	countQuery    = regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings WHERE date = $1 AND time_slot = $2 AND status != 'cancelled'`)
	insertQuery   = regexp.QuoteMeta(`INSERT INTO bookings (date, time_slot, appointment_type, name, email, phone, status, user_id, pass_id) VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8) RETURNING ` + bookingColumns)
)

func TestReserve(t *testing.T) {
	repo, mock, cleanup := setupBookingMock(t)
	defer cleanup()

	day := time.Now().UTC().AddDate(0, 0, 3)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	userID, passID := 7, 42

	mock.ExpectBegin()
	mock.ExpectQuery(lockDateQuery).
		WithArgs(day).
		WillReturnRows(sqlmock.NewRows([]string{"date", "time_slots", "is_active", "max_bookings"}).
			AddRow(day, "{morning,evening}", true, 8))
	mock.ExpectQuery(countQuery).
		WithArgs(day, "morning").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(insertQuery).
		WithArgs(day, "morning", "group_class", "Jane Doe", "jane@example.com", "", userID, passID).
		WillReturnRows(bookingRows().
			AddRow(1, day, "morning", "group_class", "Jane Doe", "jane@example.com", "", "pending", userID, passID, time.Now()))
	mock.ExpectCommit()

	created, err := repo.Reserve(context.Background(), &Booking{
		Date:            day,
		TimeSlot:        "morning",
		AppointmentType: "group_class",
		Name:            "Jane Doe",
		Email:           "jane@example.com",
		UserID:          &userID,
		PassID:          &passID,
	})

	assert.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, StatusPending, created.Status)
	require.NotNil(t, created.PassID)
	assert.Equal(t, passID, *created.PassID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_SlotFull(t *testing.T) {
	repo, mock, cleanup := setupBookingMock(t)
	defer cleanup()

	day := time.Now().UTC().AddDate(0, 0, 3)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(lockDateQuery).
		WithArgs(day).
		WillReturnRows(sqlmock.NewRows([]string{"date", "time_slots", "is_active", "max_bookings"}).
			AddRow(day, "{morning}", true, 8))
	mock.ExpectQuery(countQuery).
		WithArgs(day, "morning").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), &Booking{
		Date: day, TimeSlot: "morning", AppointmentType: "group_class",
		Name: "Jane Doe", Email: "jane@example.com",
	})

	assert.ErrorIs(t, err, ErrSlotFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_DateNotOpen(t *testing.T) {
	repo, mock, cleanup := setupBookingMock(t)
	defer cleanup()

	day := time.Now().UTC().AddDate(0, 0, 3)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	t.Run("no calendar row", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockDateQuery).
			WithArgs(day).
			WillReturnRows(sqlmock.NewRows([]string{"date", "time_slots", "is_active", "max_bookings"}))
		mock.ExpectRollback()

		_, err := repo.Reserve(context.Background(), &Booking{Date: day, TimeSlot: "morning"})
		assert.ErrorIs(t, err, ErrDateNotBookable)
	})

	t.Run("inactive", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockDateQuery).
			WithArgs(day).
			WillReturnRows(sqlmock.NewRows([]string{"date", "time_slots", "is_active", "max_bookings"}).
				AddRow(day, "{morning}", false, 8))
		mock.ExpectRollback()

		_, err := repo.Reserve(context.Background(), &Booking{Date: day, TimeSlot: "morning"})
		assert.ErrorIs(t, err, ErrDateNotBookable)
	})

	t.Run("past date", func(t *testing.T) {
		past := time.Now().UTC().AddDate(0, 0, -1)
		past = time.Date(past.Year(), past.Month(), past.Day(), 0, 0, 0, 0, time.UTC)

		mock.ExpectBegin()
		mock.ExpectQuery(lockDateQuery).
			WithArgs(past).
			WillReturnRows(sqlmock.NewRows([]string{"date", "time_slots", "is_active", "max_bookings"}).
				AddRow(past, "{morning}", true, 8))
		mock.ExpectRollback()

		_, err := repo.Reserve(context.Background(), &Booking{Date: past, TimeSlot: "morning"})
		assert.ErrorIs(t, err, ErrDateNotBookable)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_UnknownSlot(t *testing.T) {
	repo, mock, cleanup := setupBookingMock(t)
	defer cleanup()

	day := time.Now().UTC().AddDate(0, 0, 3)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(lockDateQuery).
		WithArgs(day).
		WillReturnRows(sqlmock.NewRows([]string{"date", "time_slots", "is_active", "max_bookings"}).
			AddRow(day, "{morning,evening}", true, 8))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), &Booking{Date: day, TimeSlot: "midnight"})

	assert.ErrorIs(t, err, ErrUnknownSlot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingByID(t *testing.T) {
	repo, mock, cleanup := setupBookingMock(t)
	defer cleanup()

	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`)).
		WithArgs(1).
		WillReturnRows(bookingRows().
			AddRow(1, day, "morning", "group_class", "Jane Doe", "jane@example.com", "", "confirmed", nil, nil, time.Now()))

	b, err := repo.GetByID(context.Background(), 1)

	assert.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Nil(t, b.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingByID_NotFound(t *testing.T) {
	repo, mock, cleanup := setupBookingMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`)).
		WithArgs(999).
		WillReturnRows(bookingRows())

	_, err := repo.GetByID(context.Background(), 999)

	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCancelBookingRepo(t *testing.T) {
	repo, mock, cleanup := setupBookingMock(t)
	defer cleanup()

	cancelQuery := regexp.QuoteMeta(`UPDATE bookings SET status = 'cancelled' WHERE id = $1 AND status != 'cancelled'`)

	t.Run("cancels once", func(t *testing.T) {
		mock.ExpectExec(cancelQuery).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Cancel(context.Background(), 1))
	})

	t.Run("second cancel is a no-op", func(t *testing.T) {
		mock.ExpectExec(cancelQuery).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Cancel(context.Background(), 1)
		assert.ErrorIs(t, err, ErrBookingNotFoundOrAlreadyCancelled)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmBookingRepo(t *testing.T) {
	repo, mock, cleanup := setupBookingMock(t)
	defer cleanup()

	confirmQuery := regexp.QuoteMeta(`UPDATE bookings SET status = 'confirmed' WHERE id = $1 AND status = 'pending'`)

	t.Run("confirms pending", func(t *testing.T) {
		mock.ExpectExec(confirmQuery).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Confirm(context.Background(), 1))
	})

	t.Run("only pending rows match", func(t *testing.T) {
		mock.ExpectExec(confirmQuery).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Confirm(context.Background(), 1)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBookingsByUser(t *testing.T) {
	repo, mock, cleanup := setupBookingMock(t)
	defer cleanup()

	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	userID := 7

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`)).
		WithArgs(userID).
		WillReturnRows(bookingRows().
			AddRow(2, day, "evening", "group_class", "Jane Doe", "jane@example.com", "", "pending", userID, 42, time.Now()).
			AddRow(1, day, "morning", "group_class", "Jane Doe", "jane@example.com", "", "cancelled", userID, nil, time.Now().Add(-time.Hour)))

	bookings, err := repo.ListByUser(context.Background(), userID)

	assert.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, 2, bookings[0].ID)
	assert.Equal(t, StatusCancelled, bookings[1].Status)
}

func TestListBySlotJoinsClient(t *testing.T) {
	repo, mock, cleanup := setupBookingMock(t)
	defer cleanup()

	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT b.id, b.date, b.time_slot, b.appointment_type, b.name, b.email, b.phone, b.status, b.user_id, b.pass_id, b.created_at, u.name AS client_name, u.email AS client_email FROM bookings b LEFT JOIN users u ON b.user_id = u.id WHERE b.date = $1 AND b.time_slot = $2 ORDER BY b.created_at ASC`)).
		WithArgs(day, "morning").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "date", "time_slot", "appointment_type", "name", "email", "phone",
			"status", "user_id", "pass_id", "created_at", "client_name", "client_email",
		}).
			AddRow(1, day, "morning", "group_class", "Jane Doe", "jane@example.com", "", "confirmed", 7, 42, time.Now(), "Jane Doe", "jane@example.com").
			AddRow(2, day, "morning", "intro_session", "Walk In", "walkin@example.com", "", "confirmed", nil, nil, time.Now(), nil, nil))

	bookings, err := repo.ListBySlot(context.Background(), day, "morning")

	assert.NoError(t, err)
	require.Len(t, bookings, 2)
	require.NotNil(t, bookings[0].ClientName)
	assert.Equal(t, "Jane Doe", *bookings[0].ClientName)
	assert.Nil(t, bookings[1].ClientName)
}

func TestFindUnsettled(t *testing.T) {
	repo, mock, cleanup := setupBookingMock(t)
	defer cleanup()

	cutoff := time.Now().UTC().Add(-5 * time.Minute)
	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+bookingColumns+` FROM bookings b WHERE b.status != 'cancelled' AND b.pass_id IS NOT NULL AND b.created_at < $1 AND NOT EXISTS ( SELECT 1 FROM deductions d WHERE d.booking_id = b.id AND d.reversed_at IS NULL ) ORDER BY b.created_at ASC`)).
		WithArgs(cutoff).
		WillReturnRows(bookingRows().
			AddRow(3, day, "morning", "group_class", "Jane Doe", "jane@example.com", "", "pending", 7, 42, cutoff.Add(-time.Minute)))

	orphans, err := repo.FindUnsettled(context.Background(), cutoff)

	assert.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, 3, orphans[0].ID)
	require.NotNil(t, orphans[0].PassID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
