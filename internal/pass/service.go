package pass

import (
	"context"
	"errors"
	"time"

	"studiopass/internal/logger"
	"studiopass/internal/metrics"
)

var (
	ErrInvalidGrant = errors.New("invalid pass grant")
)

type changeNotifier interface {
	Publish(ctx context.Context, table, op string, payload interface{})
}

type Service interface {
	GrantTrial(ctx context.Context, userID int) (*TrialGrantResult, error)
	Grant(ctx context.Context, userID int, req GrantRequest) (*Pass, error)
	ListOwn(ctx context.Context, userID int, activeOnly bool) ([]Pass, error)
	EligiblePasses(ctx context.Context, userID int) ([]Pass, error)
	Deduct(ctx context.Context, userID, passID, bookingID int) (*DeductResult, error)
	Refund(ctx context.Context, bookingID int) (*RefundResult, error)
	ManualAdjust(ctx context.Context, passID int, req AdjustRequest) (*Pass, error)
	Delete(ctx context.Context, passID int) error
	DeductionHistory(ctx context.Context, passID int) ([]Deduction, error)
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

func (s *service) GrantTrial(ctx context.Context, userID int) (*TrialGrantResult, error) {
	result, err := s.repo.GrantTrialIfEligible(ctx, userID)
	if err != nil {
		return nil, err
	}

	if result.Success {
		metrics.RecordTrialGrant("granted")
		s.publish(ctx, "passes", "insert", result)
	} else {
		metrics.RecordTrialGrant("rejected")
	}

	return result, nil
}

func (s *service) Grant(ctx context.Context, userID int, req GrantRequest) (*Pass, error) {
	total := req.TotalSessions
	expiresAt := req.ExpiresAt

	switch req.Type {
	case TypeTrial:
		// Trial grants go through the eligibility-gated path only.
		return nil, ErrInvalidGrant
	case TypeBundle:
		if total < 1 || total >= UnlimitedThreshold {
			return nil, ErrInvalidGrant
		}
	case TypeMonthlyUnlimited:
		total = UnlimitedSessions
		if expiresAt == nil {
			t := time.Now().AddDate(0, 1, 0)
			expiresAt = &t
		}
	case TypeYearlyUnlimited:
		total = UnlimitedSessions
		if expiresAt == nil {
			t := time.Now().AddDate(1, 0, 0)
			expiresAt = &t
		}
	default:
		return nil, ErrInvalidGrant
	}

	p, err := s.repo.Grant(ctx, userID, req.Type, total, expiresAt)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "passes", "insert", p)
	return p, nil
}

func (s *service) ListOwn(ctx context.Context, userID int, activeOnly bool) ([]Pass, error) {
	if activeOnly {
		return s.repo.ListActiveByUser(ctx, userID)
	}
	return s.repo.ListByUser(ctx, userID)
}

// EligiblePasses returns the passes a client may book against right now.
// When more than one comes back, the caller must make the client pick
// one explicitly; the ledger never chooses on its own.
func (s *service) EligiblePasses(ctx context.Context, userID int) ([]Pass, error) {
	passes, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	eligible := passes[:0]
	for _, p := range passes {
		if p.Usable(now) {
			eligible = append(eligible, p)
		}
	}

	return eligible, nil
}

func (s *service) Deduct(ctx context.Context, userID, passID, bookingID int) (*DeductResult, error) {
	result, err := s.repo.Deduct(ctx, userID, passID, &bookingID, "booking deduction")
	if err != nil {
		return nil, err
	}

	if result.Success {
		metrics.RecordDeduction(string(result.PassType))
		s.publish(ctx, "passes", "update", result)
	}

	return result, nil
}

func (s *service) Refund(ctx context.Context, bookingID int) (*RefundResult, error) {
	result, err := s.repo.Refund(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if result.Success {
		metrics.RecordRefund()
		s.publish(ctx, "passes", "update", result)
	}

	return result, nil
}

func (s *service) ManualAdjust(ctx context.Context, passID int, req AdjustRequest) (*Pass, error) {
	if req.RemainingSessions == nil {
		return nil, ErrInvalidGrant
	}

	note := req.Note
	if note == "" {
		note = "manual override"
	} else {
		note = "manual override: " + note
	}

	p, err := s.repo.AdjustRemaining(ctx, passID, *req.RemainingSessions, note)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "passes", "update", p)
	return p, nil
}

func (s *service) Delete(ctx context.Context, passID int) error {
	if err := s.repo.Delete(ctx, passID); err != nil {
		return err
	}

	s.publish(ctx, "passes", "update", map[string]int{"deleted_pass_id": passID})
	return nil
}

func (s *service) DeductionHistory(ctx context.Context, passID int) ([]Deduction, error) {
	return s.repo.ListDeductionsByPass(ctx, passID)
}

func (s *service) publish(ctx context.Context, table, op string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, table, op, payload)
	logger.Debugf("published %s event for %s", op, table)
}
