package booking

import (
	"context"
	"errors"
	"time"

	"studiopass/internal/logger"
	"studiopass/internal/metrics"
	"studiopass/internal/pass"
)

var (
	ErrUnknownCategory  = errors.New("unknown appointment type")
	ErrExternalCategory = errors.New("appointment type is scheduled externally")
	ErrPassRequired     = errors.New("appointment type requires a pass")
	ErrNotOwner         = errors.New("can only cancel own bookings")
	ErrInvalidDate      = errors.New("invalid date")
)

// DeductionDeclinedError carries the ledger's reason when the deduct
// step of the saga reports failure. The booking has already been rolled
// back by the time the caller sees it.
type DeductionDeclinedError struct {
	Message string
}

func (e *DeductionDeclinedError) Error() string {
	return e.Message
}

type mailSender interface {
	SendBookingConfirmation(ctx context.Context, to, name, category, details string) error
	SendCancellation(ctx context.Context, to, name, category, details string) error
}

type changeNotifier interface {
	Publish(ctx context.Context, table, op string, payload interface{})
}

type Service interface {
	Book(ctx context.Context, userID *int, req BookRequest) (*BookResponse, error)
	Cancel(ctx context.Context, userID, bookingID int) (*CancelResponse, error)
	AdminCancel(ctx context.Context, bookingID int) (*CancelResponse, error)
	Confirm(ctx context.Context, bookingID int) error
	ListMy(ctx context.Context, userID int) ([]Booking, error)
	ListByDate(ctx context.Context, date string) ([]BookingWithClient, error)
	ListBySlot(ctx context.Context, date, slot string) ([]BookingWithClient, error)
	ReconcileOrphans(ctx context.Context, grace time.Duration) (int, error)
}

type service struct {
	repo     Repository
	ledger   pass.Service
	mail     mailSender
	notifier changeNotifier
}

func NewService(repo Repository, ledger pass.Service, mail mailSender, notifier changeNotifier) Service {
	return &service{
		repo:     repo,
		ledger:   ledger,
		mail:     mail,
		notifier: notifier,
	}
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// Book runs the reserve-then-deduct saga. The reservation itself is a
// single reserve-or-fail transaction; when a pass is consumed, the
// deduction is a second transaction, and a declined or failed deduction
// triggers a compensating cancel of the reservation.
func (s *service) Book(ctx context.Context, userID *int, req BookRequest) (*BookResponse, error) {
	category, ok := FindCategory(req.AppointmentType)
	if !ok {
		return nil, ErrUnknownCategory
	}
	if !category.NeedsCalendar {
		return nil, ErrExternalCategory
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	b := &Booking{
		Date:            date,
		TimeSlot:        req.TimeSlot,
		AppointmentType: req.AppointmentType,
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		UserID:          userID,
	}

	if category.ConsumesPass {
		if userID == nil || req.PassID == 0 {
			return nil, ErrPassRequired
		}
		passID := req.PassID
		b.PassID = &passID
	}

	created, err := s.repo.Reserve(ctx, b)
	if err != nil {
		if errors.Is(err, ErrSlotFull) {
			metrics.RecordBookingConflict()
		}
		return nil, err
	}

	resp := &BookResponse{Booking: created, PaidWith: "none"}

	if category.ConsumesPass {
		result, err := s.ledger.Deduct(ctx, *userID, req.PassID, created.ID)
		if err != nil {
			s.compensate(ctx, created.ID)
			return nil, err
		}
		if !result.Success {
			s.compensate(ctx, created.ID)
			return nil, &DeductionDeclinedError{Message: result.Message}
		}

		resp.PaidWith = "pass"
		resp.PassID = &result.PassID
		resp.RemainingSessions = &result.RemainingSessions
		resp.PassType = result.PassType
	}

	metrics.RecordBooking(req.AppointmentType, resp.PaidWith)
	s.publish(ctx, "insert", created)

	if s.mail != nil {
		details := req.Date + " " + req.TimeSlot
		if err := s.mail.SendBookingConfirmation(ctx, created.Email, created.Name, category.Label, details); err != nil {
			logger.Errorf("failed to queue confirmation email for booking %d: %v", created.ID, err)
		}
	}

	return resp, nil
}

// compensate rolls back a reservation after a failed deduction. A
// failure here leaves an orphan for the reconciliation sweep.
func (s *service) compensate(ctx context.Context, bookingID int) {
	if err := s.repo.Cancel(ctx, bookingID); err != nil {
		logger.Errorf("compensating cancel failed for booking %d: %v", bookingID, err)
	}
}

func (s *service) Cancel(ctx context.Context, userID, bookingID int) (*CancelResponse, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if b.UserID == nil || *b.UserID != userID {
		return nil, ErrNotOwner
	}

	return s.cancel(ctx, b)
}

func (s *service) AdminCancel(ctx context.Context, bookingID int) (*CancelResponse, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	return s.cancel(ctx, b)
}

// cancel refunds first, then cancels: the deduction linkage must still
// exist when the refund looks it up.
func (s *service) cancel(ctx context.Context, b *Booking) (*CancelResponse, error) {
	resp := &CancelResponse{Message: "booking cancelled"}

	if b.PassID != nil {
		refund, err := s.ledger.Refund(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		resp.Refunded = refund.Success
		resp.Refund = refund
	}

	if err := s.repo.Cancel(ctx, b.ID); err != nil {
		return nil, err
	}

	metrics.RecordBookingCancellation()
	s.publish(ctx, "update", map[string]interface{}{"id": b.ID, "status": StatusCancelled})

	if s.mail != nil && b.Email != "" {
		category, _ := FindCategory(b.AppointmentType)
		details := b.Date.Format("2006-01-02") + " " + b.TimeSlot
		if err := s.mail.SendCancellation(ctx, b.Email, b.Name, category.Label, details); err != nil {
			logger.Errorf("failed to queue cancellation email for booking %d: %v", b.ID, err)
		}
	}

	return resp, nil
}

func (s *service) Confirm(ctx context.Context, bookingID int) error {
	if err := s.repo.Confirm(ctx, bookingID); err != nil {
		return err
	}

	s.publish(ctx, "update", map[string]interface{}{"id": bookingID, "status": StatusConfirmed})
	return nil
}

func (s *service) ListMy(ctx context.Context, userID int) ([]Booking, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) ListByDate(ctx context.Context, date string) ([]BookingWithClient, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByDate(ctx, d)
}

func (s *service) ListBySlot(ctx context.Context, date, slot string) ([]BookingWithClient, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBySlot(ctx, d, slot)
}

// ReconcileOrphans rolls back pass bookings whose deduction never
// landed. Orphans are always cancelled, never completed, so a pass is
// only ever charged by an explicit booking request.
func (s *service) ReconcileOrphans(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := time.Now().Add(-grace)

	orphans, err := s.repo.FindUnsettled(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, b := range orphans {
		if err := s.repo.Cancel(ctx, b.ID); err != nil {
			logger.Errorf("reconcile: failed to cancel orphaned booking %d: %v", b.ID, err)
			continue
		}
		metrics.RecordReconciledBooking()
		s.publish(ctx, "update", map[string]interface{}{"id": b.ID, "status": StatusCancelled})
		logger.Infof("reconcile: rolled back orphaned booking %d", b.ID)
		reconciled++
	}

	return reconciled, nil
}

func (s *service) publish(ctx context.Context, op string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, "bookings", op, payload)
}
