package pass

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrPassNotFound = errors.New("pass not found")
)

const passColumns = `id, user_id, type, total_sessions, remaining_sessions, status, expires_at, purchased_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Grant(ctx context.Context, userID int, ptype Type, totalSessions int, expiresAt *time.Time) (*Pass, error) {
	query := `
		INSERT INTO passes (user_id, type, total_sessions, remaining_sessions, status, expires_at)
		VALUES ($1, $2, $3, $3, 'active', $4)
		RETURNING ` + passColumns

	var p Pass
	err := r.db.GetContext(ctx, &p, query, userID, ptype, totalSessions, expiresAt)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// GrantTrialIfEligible creates the one-per-client trial pass. The
// eligibility check and the insert run as a single statement, and the
// partial unique index on (user_id) for trial passes makes concurrent
// grants yield exactly one success.
func (r *repository) GrantTrialIfEligible(ctx context.Context, userID int) (*TrialGrantResult, error) {
	query := `
		INSERT INTO passes (user_id, type, total_sessions, remaining_sessions, status)
		SELECT $1, 'trial', 1, 1, 'active'
		WHERE NOT EXISTS (
			SELECT 1 FROM passes
			WHERE user_id = $1 AND type = 'trial' AND status IN ('active', 'used')
		)
		RETURNING id
	`

	var passID int
	err := r.db.GetContext(ctx, &passID, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &TrialGrantResult{Success: false, Message: "trial pass already granted"}, nil
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// Lost the race against a concurrent grant.
			return &TrialGrantResult{Success: false, Message: "trial pass already granted"}, nil
		}
		return nil, err
	}

	return &TrialGrantResult{Success: true, PassID: passID}, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Pass, error) {
	var p Pass
	err := r.db.GetContext(ctx, &p, `SELECT `+passColumns+` FROM passes WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPassNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]Pass, error) {
	query := `
		SELECT ` + passColumns + `
		FROM passes
		WHERE user_id = $1
		ORDER BY purchased_at DESC
	`

	var passes []Pass
	err := r.db.SelectContext(ctx, &passes, query, userID)
	if err != nil {
		return nil, err
	}

	return passes, nil
}

func (r *repository) ListActiveByUser(ctx context.Context, userID int) ([]Pass, error) {
	query := `
		SELECT ` + passColumns + `
		FROM passes
		WHERE user_id = $1
		  AND status = 'active'
		  AND (remaining_sessions > 0 OR total_sessions >= $2)
		  AND (expires_at IS NULL OR expires_at >= NOW())
		ORDER BY purchased_at ASC
	`

	var passes []Pass
	err := r.db.SelectContext(ctx, &passes, query, userID, UnlimitedThreshold)
	if err != nil {
		return nil, err
	}

	return passes, nil
}

// Deduct consumes one session from the given pass and writes the audit
// row in the same transaction. On any eligibility failure it returns a
// result with Success=false and no mutation.
func (r *repository) Deduct(ctx context.Context, userID, passID int, bookingID *int, note string) (*DeductResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var p Pass
	err = tx.QueryRowxContext(ctx,
		`SELECT `+passColumns+`
		 FROM passes
		 WHERE id = $1 AND user_id = $2
		 FOR UPDATE`,
		passID, userID,
	).StructScan(&p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &DeductResult{Success: false, Message: "no eligible pass found"}, nil
		}
		return nil, err
	}

	if p.Status != StatusActive {
		return &DeductResult{Success: false, Message: "pass is not active"}, nil
	}
	if p.ExpiresAt != nil && p.ExpiresAt.Before(time.Now()) {
		return &DeductResult{Success: false, Message: "pass has expired"}, nil
	}

	remaining := p.RemainingSessions
	status := p.Status
	if !p.Unlimited() {
		if remaining <= 0 {
			return &DeductResult{Success: false, Message: "no sessions left on this pass"}, nil
		}
		remaining--
		if remaining == 0 {
			status = StatusUsed
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE passes SET remaining_sessions = $1, status = $2 WHERE id = $3`,
			remaining, status, p.ID,
		)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO deductions (user_id, pass_id, booking_id, remaining_after, pass_type, note)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, p.ID, bookingID, remaining, p.Type, note,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &DeductResult{
		Success:           true,
		PassID:            p.ID,
		RemainingSessions: remaining,
		PassType:          p.Type,
	}, nil
}

// Refund reverses the single unreversed deduction tied to a booking.
// Calling it for a booking with no prior deduction returns a failed
// result and mutates nothing.
func (r *repository) Refund(ctx context.Context, bookingID int) (*RefundResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var d Deduction
	err = tx.QueryRowxContext(ctx,
		`SELECT id, user_id, pass_id, booking_id, remaining_after, pass_type, note, reversed_at, created_at
		 FROM deductions
		 WHERE booking_id = $1 AND reversed_at IS NULL
		 ORDER BY created_at DESC
		 LIMIT 1
		 FOR UPDATE`,
		bookingID,
	).StructScan(&d)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &RefundResult{Success: false, Message: "no deduction found for booking"}, nil
		}
		return nil, err
	}

	var p Pass
	err = tx.QueryRowxContext(ctx,
		`SELECT `+passColumns+` FROM passes WHERE id = $1 FOR UPDATE`,
		d.PassID,
	).StructScan(&p)
	if err != nil {
		return nil, err
	}

	remaining := p.RemainingSessions
	if !p.Unlimited() {
		remaining = p.RemainingSessions + 1
		if remaining > p.TotalSessions {
			remaining = p.TotalSessions
		}

		status := p.Status
		if status == StatusUsed {
			status = StatusActive
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE passes SET remaining_sessions = $1, status = $2 WHERE id = $3`,
			remaining, status, p.ID,
		)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE deductions SET reversed_at = NOW() WHERE id = $1`,
		d.ID,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &RefundResult{
		Success:           true,
		PassID:            p.ID,
		RemainingSessions: remaining,
	}, nil
}

// AdjustRemaining is the admin override. It goes through the same audit
// path as Deduct: the change is recorded as a deduction row with a
// manual-override note rather than mutating the pass silently.
func (r *repository) AdjustRemaining(ctx context.Context, passID, newRemaining int, note string) (*Pass, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var p Pass
	err = tx.QueryRowxContext(ctx,
		`SELECT `+passColumns+` FROM passes WHERE id = $1 FOR UPDATE`,
		passID,
	).StructScan(&p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPassNotFound
		}
		return nil, err
	}

	if newRemaining < 0 {
		newRemaining = 0
	}
	if !p.Unlimited() && newRemaining > p.TotalSessions {
		newRemaining = p.TotalSessions
	}

	status := StatusActive
	if newRemaining == 0 && !p.Unlimited() {
		status = StatusUsed
	}

	err = tx.QueryRowxContext(ctx,
		`UPDATE passes SET remaining_sessions = $1, status = $2 WHERE id = $3
		 RETURNING `+passColumns,
		newRemaining, status, p.ID,
	).StructScan(&p)
	if err != nil {
		return nil, err
	}

	if note == "" {
		note = "manual override"
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO deductions (user_id, pass_id, booking_id, remaining_after, pass_type, note)
		 VALUES ($1, $2, NULL, $3, $4, $5)`,
		p.UserID, p.ID, newRemaining, p.Type, note,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Delete removes a pass and its deduction history. Deductions go first
// so the history never outlives its pass.
func (r *repository) Delete(ctx context.Context, passID int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM deductions WHERE pass_id = $1`, passID)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM passes WHERE id = $1`, passID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrPassNotFound
	}

	return tx.Commit()
}

func (r *repository) ListDeductionsByPass(ctx context.Context, passID int) ([]Deduction, error) {
	query := `
		SELECT id, user_id, pass_id, booking_id, remaining_after, pass_type, note, reversed_at, created_at
		FROM deductions
		WHERE pass_id = $1
		ORDER BY created_at DESC
	`

	var deductions []Deduction
	err := r.db.SelectContext(ctx, &deductions, query, passID)
	if err != nil {
		return nil, err
	}

	return deductions, nil
}
