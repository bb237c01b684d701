// Package ledger derives withdrawable balances from commission events and
// payout requests. Balances are never stored.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"settlement-engine/internal/common/database"
	apperrors "settlement-engine/internal/common/errors"
	"settlement-engine/internal/models"

	"github.com/google/uuid"
)

// Failed and cancelled requests release their amount; every other status
// reserves or consumes it.
const availableQuery = `
	SELECT
		COALESCE((SELECT SUM(amount) FROM earnings_events WHERE referrer_id = $1), 0)
		- COALESCE((SELECT SUM(amount_requested) FROM payout_requests
			WHERE account_id = $1 AND status NOT IN ('failed', 'cancelled')), 0)`

const summaryQuery = `
	SELECT
		COALESCE((SELECT SUM(amount) FROM earnings_events WHERE referrer_id = $1), 0),
		COALESCE((SELECT SUM(amount_requested) FROM payout_requests
			WHERE account_id = $1 AND status IN ('pending', 'processing')), 0),
		COALESCE((SELECT SUM(amount_requested) FROM payout_requests
			WHERE account_id = $1 AND status = 'completed'), 0)`

const insertEarning = `
	INSERT INTO earnings_events (id, referrer_id, referred_account_id, amount, occurred_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING`

type Ledger struct {
	db  database.Queryer
	now func() time.Time
}

func New(db database.Queryer) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Available returns the withdrawable balance. Pass the payout transaction as
// q to read the balance under the same lock as the request insert; a nil q
// reads outside any transaction.
func (l *Ledger) Available(ctx context.Context, q database.Queryer, accountID string) (models.Cents, error) {
	if q == nil {
		q = l.db
	}

	var available int64
	if err := q.QueryRowContext(ctx, availableQuery, accountID).Scan(&available); err != nil {
		return 0, queryError("available earnings", err)
	}
	return models.Cents(available), nil
}

// Summary breaks the balance down into earned, reserved and paid out.
func (l *Ledger) Summary(ctx context.Context, accountID string) (*models.EarningsSummary, error) {
	var earned, reserved, paid int64
	if err := l.db.QueryRowContext(ctx, summaryQuery, accountID).Scan(&earned, &reserved, &paid); err != nil {
		return nil, queryError("earnings summary", err)
	}

	return &models.EarningsSummary{
		AccountID:   accountID,
		TotalEarned: models.Cents(earned),
		Reserved:    models.Cents(reserved),
		PaidOut:     models.Cents(paid),
		Available:   models.Cents(earned - reserved - paid),
	}, nil
}

// RecordEarning appends a commission event. Re-recording an event with the
// same id is a no-op, so a retried job cannot double-credit.
func (l *Ledger) RecordEarning(ctx context.Context, ev models.EarningsEvent) (*models.EarningsEvent, error) {
	if strings.TrimSpace(ev.ReferrerID) == "" {
		return nil, apperrors.NewEarningInvalidError("referrerId is required")
	}
	if ev.Amount <= 0 {
		return nil, apperrors.NewEarningInvalidError("amount must be positive")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = l.now().UTC()
	}

	var referred sql.NullString
	if ev.ReferredAccountID != "" {
		referred = sql.NullString{String: ev.ReferredAccountID, Valid: true}
	}

	if _, err := l.db.ExecContext(ctx, insertEarning,
		ev.ID, ev.ReferrerID, referred, int64(ev.Amount), ev.OccurredAt,
	); err != nil {
		return nil, queryError("record earning", err)
	}
	return &ev, nil
}

func queryError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewQueryTimeoutError(op, err)
	}
	// let the payout manager see serialization failures unwrapped
	if database.IsConflict(err) {
		return err
	}
	return apperrors.NewQueryExecutionFailedError(op, err)
}
