package pass

import "time"

type Type string
type Status string

const (
	TypeTrial            Type = "trial"
	TypeBundle           Type = "bundle"
	TypeMonthlyUnlimited Type = "monthly_unlimited"
	TypeYearlyUnlimited  Type = "yearly_unlimited"

	StatusActive  Status = "active"
	StatusUsed    Status = "used"
	StatusExpired Status = "expired"
)

// UnlimitedThreshold marks the sentinel session count: a pass whose
// total_sessions is at or above it is treated as unbounded and its
// remaining balance is never materially changed.
const UnlimitedThreshold = 900

// UnlimitedSessions is the sentinel written for unlimited pass types.
const UnlimitedSessions = 999

type Pass struct {
	ID                int        `db:"id" json:"id"`
	UserID            int        `db:"user_id" json:"user_id"`
	Type              Type       `db:"type" json:"type"`
	TotalSessions     int        `db:"total_sessions" json:"total_sessions"`
	RemainingSessions int        `db:"remaining_sessions" json:"remaining_sessions"`
	Status            Status     `db:"status" json:"status"`
	ExpiresAt         *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	PurchasedAt       time.Time  `db:"purchased_at" json:"purchased_at"`
}

func (p *Pass) Unlimited() bool {
	return p.TotalSessions >= UnlimitedThreshold
}

// Usable reports whether the pass can cover one more session right now.
func (p *Pass) Usable(now time.Time) bool {
	if p.Status != StatusActive {
		return false
	}
	if p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
		return false
	}
	return p.Unlimited() || p.RemainingSessions > 0
}

// Deduction is the audit record of a single ledger decrement. Rows are
// never updated except to set reversed_at on refund.
type Deduction struct {
	ID             int        `db:"id" json:"id"`
	UserID         int        `db:"user_id" json:"user_id"`
	PassID         int        `db:"pass_id" json:"pass_id"`
	BookingID      *int       `db:"booking_id" json:"booking_id,omitempty"`
	RemainingAfter int        `db:"remaining_after" json:"remaining_after"`
	PassType       Type       `db:"pass_type" json:"pass_type"`
	Note           string     `db:"note" json:"note"`
	ReversedAt     *time.Time `db:"reversed_at" json:"reversed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// DeductResult mirrors the return shape of the deduct procedure.
type DeductResult struct {
	Success           bool   `json:"success"`
	PassID            int    `json:"pass_id,omitempty"`
	RemainingSessions int    `json:"remaining_sessions"`
	PassType          Type   `json:"pass_type,omitempty"`
	Message           string `json:"message,omitempty"`
}

type RefundResult struct {
	Success           bool   `json:"success"`
	PassID            int    `json:"pass_id,omitempty"`
	RemainingSessions int    `json:"remaining_sessions"`
	Message           string `json:"message,omitempty"`
}

type TrialGrantResult struct {
	Success bool   `json:"success"`
	PassID  int    `json:"pass_id,omitempty"`
	Message string `json:"message,omitempty"`
}

type GrantRequest struct {
	Type          Type       `json:"type" binding:"required"`
	TotalSessions int        `json:"total_sessions"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type AdjustRequest struct {
	RemainingSessions *int   `json:"remaining_sessions" binding:"required"`
	Note              string `json:"note"`
}
