package pass

import (
	"context"
	"time"
)

type Repository interface {
	Grant(ctx context.Context, userID int, ptype Type, totalSessions int, expiresAt *time.Time) (*Pass, error)
	GrantTrialIfEligible(ctx context.Context, userID int) (*TrialGrantResult, error)
	GetByID(ctx context.Context, id int) (*Pass, error)
	ListByUser(ctx context.Context, userID int) ([]Pass, error)
	ListActiveByUser(ctx context.Context, userID int) ([]Pass, error)
	Deduct(ctx context.Context, userID, passID int, bookingID *int, note string) (*DeductResult, error)
	Refund(ctx context.Context, bookingID int) (*RefundResult, error)
	AdjustRemaining(ctx context.Context, passID, newRemaining int, note string) (*Pass, error)
	Delete(ctx context.Context, passID int) error
	ListDeductionsByPass(ctx context.Context, passID int) ([]Deduction, error)
}
