// Package subscription reads the current billing subscription of an account.
package subscription

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"settlement-engine/internal/common/database"
	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/common/metrics"
	"settlement-engine/internal/entitlement/pricing"
	"settlement-engine/internal/models"
)

const selectCurrentSubscription = `
	SELECT price_id, status, current_period_end
	FROM subscriptions
	WHERE account_id = $1
	ORDER BY created_at DESC
	LIMIT 1`

// Reader fetches subscription snapshots. A failed read degrades to "no
// subscription" so that entitlement computation is never blocked on billing.
type Reader struct {
	db      database.Queryer
	prices  *pricing.Table
	timeout time.Duration
	logger  logger.Logger
	now     func() time.Time
}

func NewReader(db database.Queryer, prices *pricing.Table, timeout time.Duration, log logger.Logger) *Reader {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Reader{
		db:      db,
		prices:  prices,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "subscription-reader"}),
		now:     time.Now,
	}
}

// Read returns the account's current subscription, or nil when there is
// none or it could not be read.
func (r *Reader) Read(ctx context.Context, accountID string) *models.SubscriptionSnapshot {
	if accountID == "" {
		return nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var (
		priceID   sql.NullString
		status    string
		periodEnd sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, selectCurrentSubscription, accountID).Scan(&priceID, &status, &periodEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		metrics.SubscriptionReadFailures.Inc()
		r.logger.Warn("subscription read failed, treating as no subscription", map[string]interface{}{
			"accountId": accountID,
			"error":     err.Error(),
		})
		return nil
	}

	snap := &models.SubscriptionSnapshot{
		AccountID: accountID,
		Status:    status,
		FetchedAt: r.now(),
	}
	if priceID.Valid && priceID.String != "" {
		id := priceID.String
		snap.PriceID = &id
		snap.ProductLabel = r.prices.Label(id)
	}
	if periodEnd.Valid {
		end := periodEnd.Int64
		snap.CurrentPeriodEnd = &end
	}
	return snap
}
