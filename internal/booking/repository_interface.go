package booking

import (
	"context"
	"time"
)

type Repository interface {
	Reserve(ctx context.Context, b *Booking) (*Booking, error)
	GetByID(ctx context.Context, id int) (*Booking, error)
	Cancel(ctx context.Context, id int) error
	Confirm(ctx context.Context, id int) error
	ListByUser(ctx context.Context, userID int) ([]Booking, error)
	ListByDate(ctx context.Context, date time.Time) ([]BookingWithClient, error)
	ListBySlot(ctx context.Context, date time.Time, slot string) ([]BookingWithClient, error)
	FindUnsettled(ctx context.Context, cutoff time.Time) ([]Booking, error)
}
