package integration_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studiopass/internal/booking"
	"studiopass/internal/pass"
)

func TestBookWithPass_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	cleanDatabase(t, db)

	ledger := pass.NewService(pass.NewRepository(db), nil)
	service := booking.NewService(booking.NewRepository(db), ledger, nil, nil)
	ctx := context.Background()

	userID := createTestUser(t, db, "book@test.com", "Book User")
	p, err := ledger.Grant(ctx, userID, pass.GrantRequest{Type: pass.TypeBundle, TotalSessions: 10})
	require.NoError(t, err)

	day := seedDate(t, db, 3, 10, "{morning,evening}")

	resp, err := service.Book(ctx, &userID, booking.BookRequest{
		AppointmentType: "group_class",
		Date:            day.Format("2006-01-02"),
		TimeSlot:        "morning",
		PassID:          p.ID,
		Name:            "Book User",
		Email:           "book@test.com",
	})
	require.NoError(t, err)
	require.Equal(t, "pass", resp.PaidWith)
	require.Equal(t, 9, *resp.RemainingSessions)

	// Cancelling returns the session to the pass.
	cancel, err := service.Cancel(ctx, userID, resp.Booking.ID)
	require.NoError(t, err)
	require.True(t, cancel.Refunded)
	require.Equal(t, 10, cancel.Refund.RemainingSessions)

	var status string
	require.NoError(t, db.Get(&status, `SELECT status FROM bookings WHERE id = $1`, resp.Booking.ID))
	require.Equal(t, "cancelled", status)
}

// TestSlotCapacityConcurrent_Integration hammers one slot with more
// reservations than it can hold. The row lock inside Reserve must let
// exactly max_bookings of them through.
func TestSlotCapacityConcurrent_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	cleanDatabase(t, db)

	service := booking.NewService(booking.NewRepository(db), pass.NewService(pass.NewRepository(db), nil), nil, nil)

	const capacity = 3
	const attempts = 10
	day := seedDate(t, db, 3, capacity, "{morning}")

	errs := make([]error, attempts)
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Book(context.Background(), nil, booking.BookRequest{
				AppointmentType: "intro_session",
				Date:            day.Format("2006-01-02"),
				TimeSlot:        "morning",
				Name:            fmt.Sprintf("Client %d", i),
				Email:           fmt.Sprintf("client%d@test.com", i),
			})
		}(i)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, booking.ErrSlotFull):
			conflicts++
		default:
			t.Fatalf("unexpected booking error: %v", err)
		}
	}
	require.Equal(t, capacity, successes)
	require.Equal(t, attempts-capacity, conflicts)
}

func TestDeclinedDeductionRollsBack_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	cleanDatabase(t, db)

	ledger := pass.NewService(pass.NewRepository(db), nil)
	service := booking.NewService(booking.NewRepository(db), ledger, nil, nil)
	ctx := context.Background()

	userID := createTestUser(t, db, "drained@test.com", "Drained User")
	p, err := ledger.Grant(ctx, userID, pass.GrantRequest{Type: pass.TypeBundle, TotalSessions: 1})
	require.NoError(t, err)

	// Drain the pass directly so the booking's deduction is declined.
	_, err = db.Exec(`UPDATE passes SET remaining_sessions = 0, status = 'used' WHERE id = $1`, p.ID)
	require.NoError(t, err)

	day := seedDate(t, db, 3, 10, "{morning}")

	_, err = service.Book(ctx, &userID, booking.BookRequest{
		AppointmentType: "group_class",
		Date:            day.Format("2006-01-02"),
		TimeSlot:        "morning",
		PassID:          p.ID,
		Name:            "Drained User",
		Email:           "drained@test.com",
	})

	var declined *booking.DeductionDeclinedError
	require.ErrorAs(t, err, &declined)

	// The compensating cancel freed the spot again.
	var count int
	require.NoError(t, db.Get(&count,
		`SELECT COUNT(*) FROM bookings WHERE date = $1 AND time_slot = 'morning' AND status != 'cancelled'`, day))
	require.Equal(t, 0, count)
}

func TestReconcileOrphans_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	cleanDatabase(t, db)

	ledger := pass.NewService(pass.NewRepository(db), nil)
	service := booking.NewService(booking.NewRepository(db), ledger, nil, nil)
	ctx := context.Background()

	userID := createTestUser(t, db, "orphan@test.com", "Orphan User")
	p, err := ledger.Grant(ctx, userID, pass.GrantRequest{Type: pass.TypeBundle, TotalSessions: 10})
	require.NoError(t, err)

	day := seedDate(t, db, 3, 10, "{morning}")

	// A pass booking with no deduction, backdated past the grace window.
	var orphanID int
	err = db.QueryRow(`
		INSERT INTO bookings (date, time_slot, appointment_type, name, email, phone, status, user_id, pass_id, created_at)
		VALUES ($1, 'morning', 'group_class', 'Orphan User', 'orphan@test.com', '', 'pending', $2, $3, NOW() - INTERVAL '1 hour')
		RETURNING id
	`, day, userID, p.ID).Scan(&orphanID)
	require.NoError(t, err)

	reconciled, err := service.ReconcileOrphans(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, reconciled)

	var status string
	require.NoError(t, db.Get(&status, `SELECT status FROM bookings WHERE id = $1`, orphanID))
	require.Equal(t, "cancelled", status)

	// The sweep is idempotent.
	reconciled, err = service.ReconcileOrphans(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 0, reconciled)
}
