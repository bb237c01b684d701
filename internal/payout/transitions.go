package payout

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"settlement-engine/internal/common/database"
	apperrors "settlement-engine/internal/common/errors"
	"settlement-engine/internal/common/metrics"
	"settlement-engine/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// validTransitions is the payout state machine. Terminal states have no entry.
var validTransitions = map[models.PayoutStatus]map[models.PayoutStatus]bool{
	models.PayoutPending: {
		models.PayoutProcessing: true,
		models.PayoutCancelled:  true,
		models.PayoutFailed:     true,
	},
	models.PayoutProcessing: {
		models.PayoutCompleted: true,
		models.PayoutFailed:    true,
	},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to models.PayoutStatus) bool {
	return validTransitions[from][to]
}

// TransitionOptions carries the data a target status records.
type TransitionOptions struct {
	Reason     string
	TransferID string
	Actor      string
}

const (
	selectRequestForUpdate = `
		SELECT id, account_id, amount_requested, fee_amount, amount_net, status,
			requested_at, processed_at, failure_reason, transfer_id
		FROM payout_requests
		WHERE id = $1
		FOR UPDATE`

	updateStatus = `
		UPDATE payout_requests
		SET status = $3, processed_at = $4, failure_reason = $5, transfer_id = $6
		WHERE id = $1 AND status = $2`
)

func (m *Manager) StartProcessing(ctx context.Context, payoutID, actor string) (*models.PayoutRequest, error) {
	return m.Transition(ctx, payoutID, models.PayoutProcessing, TransitionOptions{Actor: actor})
}

// Complete records a successful transfer and its processor transfer id.
func (m *Manager) Complete(ctx context.Context, payoutID, transferID, actor string) (*models.PayoutRequest, error) {
	return m.Transition(ctx, payoutID, models.PayoutCompleted, TransitionOptions{TransferID: transferID, Actor: actor})
}

// Fail releases the reserved amount back to the available balance.
func (m *Manager) Fail(ctx context.Context, payoutID, reason, actor string) (*models.PayoutRequest, error) {
	return m.Transition(ctx, payoutID, models.PayoutFailed, TransitionOptions{Reason: reason, Actor: actor})
}

func (m *Manager) Cancel(ctx context.Context, payoutID, reason, actor string) (*models.PayoutRequest, error) {
	return m.Transition(ctx, payoutID, models.PayoutCancelled, TransitionOptions{Reason: reason, Actor: actor})
}

// Transition moves a request to status to. The row is locked, checked
// against the state machine and updated with a compare-and-set on the
// previous status, and the audit event is written in the same transaction.
func (m *Manager) Transition(ctx context.Context, payoutID string, to models.PayoutStatus, opts TransitionOptions) (*models.PayoutRequest, error) {
	ctx, span := m.tracer.Start(ctx, "payout.transition", trace.WithAttributes(
		attribute.String("payout.id", payoutID),
		attribute.String("payout.to", string(to)),
	))
	defer span.End()

	if to == models.PayoutFailed && strings.TrimSpace(opts.Reason) == "" {
		opts.Reason = "unspecified"
	}

	var (
		req  *models.PayoutRequest
		ev   models.PayoutEvent
		from models.PayoutStatus
	)
	err := database.WithTx(ctx, m.db, nil, func(tx *sql.Tx) error {
		current, err := scanRequest(tx.QueryRowContext(ctx, selectRequestForUpdate, payoutID))
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewPayoutNotFoundError(payoutID)
		}
		if err != nil {
			return err
		}

		from = current.Status
		if !CanTransition(from, to) {
			return apperrors.NewPayoutInvalidTransitionError(payoutID, string(from), string(to))
		}

		now := m.now().UTC()
		next := *current
		next.Status = to
		switch to {
		case models.PayoutCompleted:
			next.ProcessedAt = &now
			if opts.TransferID != "" {
				id := opts.TransferID
				next.TransferID = &id
			}
		case models.PayoutFailed:
			next.ProcessedAt = &now
			reason := opts.Reason
			next.FailureReason = &reason
		}

		res, err := tx.ExecContext(ctx, updateStatus,
			payoutID, string(from), string(to),
			nullTime(next.ProcessedAt), nullString(next.FailureReason), nullString(next.TransferID),
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return apperrors.NewPayoutInvalidTransitionError(payoutID, string(from), string(to))
		}

		ev = models.PayoutEvent{
			ID:         m.newID(),
			PayoutID:   payoutID,
			AccountID:  current.AccountID,
			FromStatus: from,
			ToStatus:   to,
			Reason:     opts.Reason,
			Actor:      opts.Actor,
			OccurredAt: now,
		}
		if err := insertAuditEvent(ctx, tx, ev); err != nil {
			return err
		}
		req = &next
		return nil
	})
	if err != nil {
		if database.IsConflict(err) {
			err = apperrors.NewLedgerConflictError(err)
		} else {
			err = m.dbError("transition payout", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.PayoutTransitions.WithLabelValues(string(from), string(to)).Inc()
	m.logger.Info("payout transitioned", map[string]interface{}{
		"payoutId":      payoutID,
		"from":          string(from),
		"to":            string(to),
		"actor":         opts.Actor,
		"fundsReleased": to.ReleasesFunds(),
	})
	if to.ReleasesFunds() {
		span.SetAttributes(attribute.String("payout.released_amount", req.AmountRequested.String()))
	}
	m.afterCommit(ctx, req, ev)
	return req, nil
}

const (
	selectRequest = `
		SELECT id, account_id, amount_requested, fee_amount, amount_net, status,
			requested_at, processed_at, failure_reason, transfer_id
		FROM payout_requests
		WHERE id = $1`

	selectRequestsByAccount = `
		SELECT id, account_id, amount_requested, fee_amount, amount_net, status,
			requested_at, processed_at, failure_reason, transfer_id
		FROM payout_requests
		WHERE account_id = $1
		ORDER BY requested_at DESC`
)

func (m *Manager) GetRequest(ctx context.Context, payoutID string) (*models.PayoutRequest, error) {
	req, err := scanRequest(m.db.QueryRowContext(ctx, selectRequest, payoutID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewPayoutNotFoundError(payoutID)
	}
	if err != nil {
		return nil, m.dbError("get payout", err)
	}
	return req, nil
}

// ListRequests returns an account's requests, newest first.
func (m *Manager) ListRequests(ctx context.Context, accountID string) ([]models.PayoutRequest, error) {
	rows, err := m.db.QueryContext(ctx, selectRequestsByAccount, accountID)
	if err != nil {
		return nil, m.dbError("list payouts", err)
	}
	defer rows.Close()

	out := make([]models.PayoutRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, m.dbError("list payouts", err)
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, m.dbError("list payouts", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row scanner) (*models.PayoutRequest, error) {
	var (
		req                       models.PayoutRequest
		requested, fee, net       int64
		status                    string
		processedAt               sql.NullTime
		failureReason, transferID sql.NullString
	)
	if err := row.Scan(
		&req.ID, &req.AccountID, &requested, &fee, &net, &status,
		&req.RequestedAt, &processedAt, &failureReason, &transferID,
	); err != nil {
		return nil, err
	}

	req.AmountRequested = models.Cents(requested)
	req.FeeAmount = models.Cents(fee)
	req.AmountNet = models.Cents(net)
	req.Status = models.PayoutStatus(status)
	if processedAt.Valid {
		t := processedAt.Time
		req.ProcessedAt = &t
	}
	if failureReason.Valid {
		s := failureReason.String
		req.FailureReason = &s
	}
	if transferID.Valid {
		s := transferID.String
		req.TransferID = &s
	}
	return &req, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
