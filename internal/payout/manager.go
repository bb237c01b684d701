// Package payout governs payout requests drawn against the earnings ledger:
// validation, atomic creation, the status state machine and its audit trail.
package payout

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"settlement-engine/internal/common/config"
	"settlement-engine/internal/common/database"
	apperrors "settlement-engine/internal/common/errors"
	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/common/metrics"
	"settlement-engine/internal/models"
	"settlement-engine/internal/payout/ledger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Settings are the payout program constants.
type Settings struct {
	MinimumPayout models.Cents
	TransferFee   models.Cents
}

func SettingsFromConfig(cfg config.PayoutConfig) Settings {
	return Settings{
		MinimumPayout: cfg.MinimumPayout(),
		TransferFee:   cfg.Fee(),
	}
}

// AuditSink receives every committed payout event.
type AuditSink interface {
	IndexEvent(ctx context.Context, ev models.PayoutEvent, req *models.PayoutRequest) error
}

// Notifier is told about committed status changes.
type Notifier interface {
	PayoutChanged(ctx context.Context, req *models.PayoutRequest, ev models.PayoutEvent) error
}

type Manager struct {
	db       *sql.DB
	ledger   *ledger.Ledger
	settings Settings
	audit    AuditSink
	notifier Notifier
	tracer   trace.Tracer
	logger   logger.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Manager)

func WithAuditSink(a AuditSink) Option { return func(m *Manager) { m.audit = a } }

func WithNotifier(n Notifier) Option { return func(m *Manager) { m.notifier = n } }

func WithTracer(t trace.Tracer) Option { return func(m *Manager) { m.tracer = t } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithIDGenerator(gen func() string) Option { return func(m *Manager) { m.newID = gen } }

func NewManager(db *sql.DB, l *ledger.Ledger, settings Settings, log logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	m := &Manager{
		db:       db,
		ledger:   l,
		settings: settings,
		tracer:   otel.Tracer("settlement-engine/payout"),
		logger:   log.WithFields(map[string]interface{}{"component": "payout-manager"}),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Settings() Settings { return m.settings }

// Ledger exposes the balance reader the manager validates against.
func (m *Manager) Ledger() *ledger.Ledger { return m.ledger }

// RequestPayout validates amount and creates a pending request. The
// exclusivity check, amount bounds, balance check and insert run in one
// transaction under a per-account advisory lock; a serialization conflict
// re-runs the whole transaction once.
func (m *Manager) RequestPayout(ctx context.Context, accountID, amount string) (*models.PayoutRequest, error) {
	ctx, span := m.tracer.Start(ctx, "payout.request",
		trace.WithAttributes(attribute.String("account.id", accountID)))
	defer span.End()

	req, err := m.requestPayout(ctx, accountID, amount)
	if err != nil {
		metrics.PayoutRequests.WithLabelValues(resultLabel(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	metrics.PayoutRequests.WithLabelValues("created").Inc()
	return req, nil
}

func (m *Manager) requestPayout(ctx context.Context, accountID, raw string) (*models.PayoutRequest, error) {
	if accountID == "" {
		return nil, apperrors.NewValidationFailedError("accountId is required")
	}

	amount, err := models.ParseAmount(raw)
	if err != nil {
		return nil, apperrors.NewPayoutAmountInvalidError(raw)
	}

	for attempt := 1; ; attempt++ {
		req, ev, err := m.createRequest(ctx, accountID, amount)
		if err == nil {
			m.afterCommit(ctx, req, ev)
			m.logger.Info("payout requested", map[string]interface{}{
				"payoutId":  req.ID,
				"accountId": accountID,
				"amount":    req.AmountRequested.String(),
				"net":       req.AmountNet.String(),
			})
			return req, nil
		}
		if !database.IsConflict(err) {
			return nil, m.dbError("request payout", err)
		}
		if attempt >= 2 {
			return nil, apperrors.NewLedgerConflictError(err)
		}
		m.logger.Warn("ledger conflict, retrying payout request", map[string]interface{}{
			"accountId": accountID,
			"error":     err.Error(),
		})
	}
}

const (
	lockAccount = `SELECT pg_advisory_xact_lock(hashtext($1))`

	selectOpenRequest = `
		SELECT id FROM payout_requests
		WHERE account_id = $1 AND status IN ('pending', 'processing')
		LIMIT 1`

	insertRequest = `
		INSERT INTO payout_requests
			(id, account_id, amount_requested, fee_amount, amount_net, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertEvent = `
		INSERT INTO payout_request_events
			(id, payout_id, account_id, from_status, to_status, reason, actor, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

func (m *Manager) createRequest(ctx context.Context, accountID string, amount models.Cents) (*models.PayoutRequest, models.PayoutEvent, error) {
	now := m.now().UTC()
	req := &models.PayoutRequest{
		ID:              m.newID(),
		AccountID:       accountID,
		AmountRequested: amount,
		FeeAmount:       m.settings.TransferFee,
		AmountNet:       amount - m.settings.TransferFee,
		Status:          models.PayoutPending,
		RequestedAt:     now,
	}
	ev := models.PayoutEvent{
		ID:         m.newID(),
		PayoutID:   req.ID,
		AccountID:  accountID,
		ToStatus:   models.PayoutPending,
		Actor:      accountID,
		OccurredAt: now,
	}

	err := database.WithTx(ctx, m.db, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, lockAccount, accountID); err != nil {
			return err
		}

		var openID string
		err := tx.QueryRowContext(ctx, selectOpenRequest, accountID).Scan(&openID)
		switch {
		case err == nil:
			return apperrors.NewPayoutInProgressError(accountID)
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		// an open request rejects any amount, so bounds are checked after it
		if err := m.checkBounds(amount); err != nil {
			return err
		}

		available, err := m.ledger.Available(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if amount > available {
			return apperrors.NewPayoutInsufficientFundsError(amount.String(), available.String())
		}

		if _, err := tx.ExecContext(ctx, insertRequest,
			req.ID, req.AccountID, int64(req.AmountRequested), int64(req.FeeAmount),
			int64(req.AmountNet), string(req.Status), req.RequestedAt,
		); err != nil {
			if database.IsUniqueViolation(err) {
				return apperrors.NewPayoutInProgressError(accountID)
			}
			return err
		}

		return insertAuditEvent(ctx, tx, ev)
	})
	if err != nil {
		return nil, ev, err
	}
	return req, ev, nil
}

func (m *Manager) checkBounds(amount models.Cents) error {
	if amount < m.settings.MinimumPayout {
		return apperrors.NewPayoutBelowMinimumError(amount.String(), m.settings.MinimumPayout.String())
	}
	if amount <= m.settings.TransferFee {
		return apperrors.NewPayoutNotAboveFeeError(amount.String(), m.settings.TransferFee.String())
	}
	return nil
}

func insertAuditEvent(ctx context.Context, tx *sql.Tx, ev models.PayoutEvent) error {
	var from sql.NullString
	if ev.FromStatus != "" {
		from = sql.NullString{String: string(ev.FromStatus), Valid: true}
	}
	_, err := tx.ExecContext(ctx, insertEvent,
		ev.ID, ev.PayoutID, ev.AccountID, from, string(ev.ToStatus), ev.Reason, ev.Actor, ev.OccurredAt,
	)
	return err
}

// afterCommit runs the best-effort side effects of a committed change.
func (m *Manager) afterCommit(ctx context.Context, req *models.PayoutRequest, ev models.PayoutEvent) {
	if m.audit != nil {
		if err := m.audit.IndexEvent(ctx, ev, req); err != nil {
			m.logger.Warn("payout audit indexing failed", map[string]interface{}{
				"payoutId": req.ID,
				"error":    err.Error(),
			})
		}
	}
	if m.notifier != nil {
		if err := m.notifier.PayoutChanged(ctx, req, ev); err != nil {
			m.logger.Warn("payout notification failed", map[string]interface{}{
				"payoutId": req.ID,
				"status":   string(req.Status),
				"error":    err.Error(),
			})
		}
	}
}

func (m *Manager) dbError(op string, err error) error {
	if _, ok := apperrors.AsStandardError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewQueryTimeoutError(op, err)
	}
	return apperrors.NewQueryExecutionFailedError(op, err)
}

func resultLabel(err error) string {
	if stdErr, ok := apperrors.AsStandardError(err); ok {
		return string(stdErr.Code)
	}
	return string(apperrors.ErrCodeInternal)
}
