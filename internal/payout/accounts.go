package payout

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	apperrors "settlement-engine/internal/common/errors"
	"settlement-engine/internal/models"
)

// AccountStatus is the result of a payout-account status check.
type AccountStatus struct {
	AccountID          string
	PayoutEnabled      bool
	BankAccountLast4   string
	BankAccountCountry string
}

const (
	insertAccountDetails = `
		INSERT INTO payout_account_details
			(account_id, payout_enabled, minimum_payout_amount, created_at, updated_at)
		VALUES ($1, FALSE, $2, $3, $3)
		ON CONFLICT (account_id) DO NOTHING`

	selectAccountDetails = `
		SELECT account_id, payout_enabled, bank_account_last4, bank_account_country,
			minimum_payout_amount, created_at, updated_at
		FROM payout_account_details
		WHERE account_id = $1`

	updateAccountDetails = `
		UPDATE payout_account_details
		SET payout_enabled = $2, bank_account_last4 = $3, bank_account_country = $4, updated_at = $5
		WHERE account_id = $1
		RETURNING account_id, payout_enabled, bank_account_last4, bank_account_country,
			minimum_payout_amount, created_at, updated_at`
)

// EnsureAccountDetails creates the account's payout details on first setup
// and returns the stored row either way.
func (m *Manager) EnsureAccountDetails(ctx context.Context, accountID string) (*models.PayoutAccountDetails, error) {
	if accountID == "" {
		return nil, apperrors.NewValidationFailedError("accountId is required")
	}

	if _, err := m.db.ExecContext(ctx, insertAccountDetails,
		accountID, int64(m.settings.MinimumPayout), m.now().UTC(),
	); err != nil {
		return nil, m.dbError("ensure payout account", err)
	}
	return m.GetAccountDetails(ctx, accountID)
}

// UpdateAccountStatus stores the outcome of a status check.
func (m *Manager) UpdateAccountStatus(ctx context.Context, st AccountStatus) (*models.PayoutAccountDetails, error) {
	if last4 := strings.TrimSpace(st.BankAccountLast4); last4 != "" && len(last4) != 4 {
		return nil, apperrors.NewValidationFailedError("bankAccountLast4 must be 4 characters")
	}

	details, err := scanAccountDetails(m.db.QueryRowContext(ctx, updateAccountDetails,
		st.AccountID, st.PayoutEnabled, nullable(st.BankAccountLast4),
		nullable(strings.ToUpper(st.BankAccountCountry)), m.now().UTC(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewPayoutAccountNotFoundError(st.AccountID)
	}
	if err != nil {
		return nil, m.dbError("update payout account", err)
	}

	m.logger.Info("payout account updated", map[string]interface{}{
		"accountId":     st.AccountID,
		"payoutEnabled": st.PayoutEnabled,
	})
	return details, nil
}

func (m *Manager) GetAccountDetails(ctx context.Context, accountID string) (*models.PayoutAccountDetails, error) {
	details, err := scanAccountDetails(m.db.QueryRowContext(ctx, selectAccountDetails, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewPayoutAccountNotFoundError(accountID)
	}
	if err != nil {
		return nil, m.dbError("get payout account", err)
	}
	return details, nil
}

func scanAccountDetails(row scanner) (*models.PayoutAccountDetails, error) {
	var (
		d              models.PayoutAccountDetails
		last4, country sql.NullString
		minimum        int64
	)
	if err := row.Scan(&d.AccountID, &d.PayoutEnabled, &last4, &country, &minimum, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.BankAccountLast4 = last4.String
	d.BankAccountCountry = country.String
	d.MinimumPayoutAmount = models.Cents(minimum)
	return &d, nil
}

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
