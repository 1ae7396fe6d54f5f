package schedule

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, date time.Time, slots []string, maxBookings int) (*AvailableDate, error)
	InsertIfAbsent(ctx context.Context, date time.Time, slots []string, maxBookings int) (bool, error)
	GetByDate(ctx context.Context, date time.Time) (*AvailableDate, error)
	GetByID(ctx context.Context, id int) (*AvailableDate, error)
	ListUpcoming(ctx context.Context) ([]AvailableDate, error)
	ListAll(ctx context.Context) ([]AvailableDate, error)
	Update(ctx context.Context, id int, slots []string, maxBookings *int, isActive *bool) (*AvailableDate, error)
	Delete(ctx context.Context, id int) error
	CountBookings(ctx context.Context, date time.Time, slot string) (int, error)
}
