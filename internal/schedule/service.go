package schedule

import (
	"context"
	"errors"
	"strings"
	"time"

	"studiopass/internal/logger"
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidWeekday  = errors.New("invalid weekday")
	ErrDateUnavailable = errors.New("date is not open for booking")
	ErrUnknownSlot     = errors.New("unknown time slot for date")
)

type changeNotifier interface {
	Publish(ctx context.Context, table, op string, payload interface{})
}

type Service interface {
	CreateDate(ctx context.Context, req CreateDateRequest) (*AvailableDate, error)
	UpdateDate(ctx context.Context, id int, req UpdateDateRequest) (*AvailableDate, error)
	DeleteDate(ctx context.Context, id int) error
	ListOpenDates(ctx context.Context) ([]AvailableDate, error)
	ListAllDates(ctx context.Context) ([]AvailableDate, error)
	GenerateRecurring(ctx context.Context, req GenerateRecurringRequest) (*GenerateRecurringResponse, error)
	SlotAvailability(ctx context.Context, date, slot string) (*SlotAvailability, error)
	DateAvailability(ctx context.Context, date string) ([]SlotAvailability, error)
}

type service struct {
	repo     Repository
	notifier changeNotifier
}

func NewService(repo Repository, notifier changeNotifier) Service {
	return &service{
		repo:     repo,
		notifier: notifier,
	}
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *service) CreateDate(ctx context.Context, req CreateDateRequest) (*AvailableDate, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	d, err := s.repo.Create(ctx, date, req.TimeSlots, req.MaxBookings)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "insert", d)
	return d, nil
}

func (s *service) UpdateDate(ctx context.Context, id int, req UpdateDateRequest) (*AvailableDate, error) {
	if req.MaxBookings != nil && *req.MaxBookings < 1 {
		return nil, ErrInvalidDate
	}

	d, err := s.repo.Update(ctx, id, req.TimeSlots, req.MaxBookings, req.IsActive)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "update", d)
	return d, nil
}

func (s *service) DeleteDate(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, "update", map[string]int{"deleted_date_id": id})
	return nil
}

func (s *service) ListOpenDates(ctx context.Context) ([]AvailableDate, error) {
	return s.repo.ListUpcoming(ctx)
}

func (s *service) ListAllDates(ctx context.Context) ([]AvailableDate, error) {
	return s.repo.ListAll(ctx)
}

// GenerateRecurring expands a day-of-week set over [start, start+months],
// inserting one calendar entry per matching day. Dates that already
// exist are skipped, never overwritten.
func (s *service) GenerateRecurring(ctx context.Context, req GenerateRecurringRequest) (*GenerateRecurringResponse, error) {
	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, err
	}

	wanted := make(map[time.Weekday]bool, len(req.Weekdays))
	for _, name := range req.Weekdays {
		wd, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return nil, ErrInvalidWeekday
		}
		wanted[wd] = true
	}

	end := start.AddDate(0, req.Months, 0)
	resp := &GenerateRecurringResponse{Created: []string{}}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !wanted[d.Weekday()] {
			continue
		}

		inserted, err := s.repo.InsertIfAbsent(ctx, d, req.TimeSlots, req.MaxBookings)
		if err != nil {
			return nil, err
		}
		if inserted {
			resp.Created = append(resp.Created, d.Format(DateFormat))
		} else {
			resp.Skipped++
		}
	}

	logger.Infof("recurring generation created %d dates, skipped %d", len(resp.Created), resp.Skipped)
	if len(resp.Created) > 0 {
		s.publish(ctx, "insert", resp)
	}

	return resp, nil
}

// SlotAvailability derives the open spots for one (date, slot) pair from
// the calendar entry and the live booking count. No caching: the count
// is re-read on every call.
func (s *service) SlotAvailability(ctx context.Context, date, slot string) (*SlotAvailability, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}

	entry, err := s.repo.GetByDate(ctx, day)
	if err != nil {
		if errors.Is(err, ErrDateNotFound) {
			return nil, ErrDateUnavailable
		}
		return nil, err
	}

	if !entry.IsActive || day.Before(today()) {
		return nil, ErrDateUnavailable
	}
	if !entry.HasSlot(slot) {
		return nil, ErrUnknownSlot
	}

	booked, err := s.repo.CountBookings(ctx, day, slot)
	if err != nil {
		return nil, err
	}

	remaining := entry.MaxBookings - booked
	if remaining < 0 {
		remaining = 0
	}

	return &SlotAvailability{
		Date:        date,
		TimeSlot:    slot,
		MaxBookings: entry.MaxBookings,
		BookedCount: booked,
		Remaining:   remaining,
		IsFull:      remaining == 0,
	}, nil
}

func (s *service) DateAvailability(ctx context.Context, date string) ([]SlotAvailability, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}

	entry, err := s.repo.GetByDate(ctx, day)
	if err != nil {
		if errors.Is(err, ErrDateNotFound) {
			return nil, ErrDateUnavailable
		}
		return nil, err
	}

	if !entry.IsActive || day.Before(today()) {
		return nil, ErrDateUnavailable
	}

	result := make([]SlotAvailability, 0, len(entry.TimeSlots))
	for _, slot := range entry.TimeSlots {
		booked, err := s.repo.CountBookings(ctx, day, slot)
		if err != nil {
			return nil, err
		}

		remaining := entry.MaxBookings - booked
		if remaining < 0 {
			remaining = 0
		}

		result = append(result, SlotAvailability{
			Date:        date,
			TimeSlot:    slot,
			MaxBookings: entry.MaxBookings,
			BookedCount: booked,
			Remaining:   remaining,
			IsFull:      remaining == 0,
		})
	}

	return result, nil
}

func (s *service) publish(ctx context.Context, op string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, "available_dates", op, payload)
}
