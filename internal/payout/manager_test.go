package payout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"settlement-engine/internal/common/config"
	apperrors "settlement-engine/internal/common/errors"
	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/models"
	"settlement-engine/internal/payout/ledger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var testNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

var testSettings = Settings{MinimumPayout: 2000, TransferFee: 25}

const (
	lockSQL      = `SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`
	openSQL      = `SELECT id FROM payout_requests\s+WHERE account_id = \$1 AND status IN \('pending', 'processing'\)`
	availableSQL = `status NOT IN \('failed', 'cancelled'\)`
	insertReqSQL = `INSERT INTO payout_requests`
	insertEvSQL  = `INSERT INTO payout_request_events`
	forUpdateSQL = `FROM payout_requests\s+WHERE id = \$1\s+FOR UPDATE`
	updateSQL    = `UPDATE payout_requests\s+SET status = \$3`
)

var requestColumns = []string{
	"id", "account_id", "amount_requested", "fee_amount", "amount_net", "status",
	"requested_at", "processed_at", "failure_reason", "transfer_id",
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	seq := 0
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	}
	return NewManager(db, ledger.New(db), testSettings, logger.NewTestLogger(t), append(base, opts...)...), mock
}

func expectLockAndOpen(m sqlmock.Sqlmock, accountID string, openID string) {
	m.ExpectExec(lockSQL).WithArgs(accountID).WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"id"})
	if openID != "" {
		rows.AddRow(openID)
	}
	m.ExpectQuery(openSQL).WithArgs(accountID).WillReturnRows(rows)
}

func expectAvailable(m sqlmock.Sqlmock, accountID string, cents int64) {
	m.ExpectQuery(availableSQL).WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(cents))
}

func expectSuccessfulRequest(m sqlmock.Sqlmock, accountID string, available, amount int64) {
	m.ExpectBegin()
	expectLockAndOpen(m, accountID, "")
	expectAvailable(m, accountID, available)
	m.ExpectExec(insertReqSQL).
		WithArgs(sqlmock.AnyArg(), accountID, amount, int64(25), amount-25, "pending", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectExec(insertEvSQL).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), accountID, nil, "pending", "", accountID, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectCommit()
}

func requestRow(id, accountID string, amount int64, status models.PayoutStatus) *sqlmock.Rows {
	return sqlmock.NewRows(requestColumns).
		AddRow(id, accountID, amount, int64(25), amount-25, string(status), testNow.Add(-time.Hour), nil, nil, nil)
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok, "expected StandardError, got %v", err)
	assert.Equal(t, code, stdErr.Code)
}

// Balance 100.00, minimum 20.00, fee 0.25.
func TestRequestPayout_BalanceScenario(t *testing.T) {
	m, mock := newTestManager(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectLockAndOpen(mock, "acct-1", "")
	mock.ExpectRollback()
	_, err := m.RequestPayout(ctx, "acct-1", "19.99")
	assert.ErrorIs(t, err, apperrors.ErrBelowMinimum)

	expectSuccessfulRequest(mock, "acct-1", 10000, 10000)
	req, err := m.RequestPayout(ctx, "acct-1", "100.00")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutPending, req.Status)
	assert.Equal(t, "100.00", req.AmountRequested.String())
	assert.Equal(t, "0.25", req.FeeAmount.String())
	assert.Equal(t, "99.75", req.AmountNet.String())

	mock.ExpectBegin()
	expectLockAndOpen(mock, "acct-1", req.ID)
	mock.ExpectRollback()
	_, err = m.RequestPayout(ctx, "acct-1", "5")
	assert.ErrorIs(t, err, apperrors.ErrPayoutInProgress)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestPayout_FeeArithmetic(t *testing.T) {
	for _, amount := range []string{"20", "20.01", "55.5", "99.99", "1000.00"} {
		t.Run(amount, func(t *testing.T) {
			m, mock := newTestManager(t)
			cents, err := models.ParseAmount(amount)
			require.NoError(t, err)
			expectSuccessfulRequest(mock, "acct-1", 500000, int64(cents))

			req, err := m.RequestPayout(context.Background(), "acct-1", amount)

			require.NoError(t, err)
			assert.Equal(t, req.AmountRequested-testSettings.TransferFee, req.AmountNet)
			assert.Equal(t, testSettings.TransferFee, req.FeeAmount)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRequestPayout_InvalidAmounts(t *testing.T) {
	m, mock := newTestManager(t)
	for _, raw := range []string{"", "abc", "-5", "0", "0.00", "1.234", "1e3", "20.+5", "1.-1", "+1.00"} {
		_, err := m.RequestPayout(context.Background(), "acct-1", raw)
		assert.ErrorIs(t, err, apperrors.ErrAmountInvalid, "amount %q", raw)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestPayout_NotAboveFee(t *testing.T) {
	m, mock := newTestManager(t)
	m.settings = Settings{MinimumPayout: 10, TransferFee: 25}

	mock.ExpectBegin()
	expectLockAndOpen(mock, "acct-1", "")
	mock.ExpectRollback()

	_, err := m.RequestPayout(context.Background(), "acct-1", "0.25")
	assert.ErrorIs(t, err, apperrors.ErrNotAboveFee)
}

func TestRequestPayout_InsufficientFunds(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectBegin()
	expectLockAndOpen(mock, "acct-1", "")
	expectAvailable(mock, "acct-1", 5000)
	mock.ExpectRollback()

	_, err := m.RequestPayout(context.Background(), "acct-1", "50.01")

	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
	assertCode(t, err, apperrors.ErrCodePayoutInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestPayout_UniqueIndexBacksExclusivity(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectBegin()
	expectLockAndOpen(mock, "acct-1", "")
	expectAvailable(mock, "acct-1", 10000)
	mock.ExpectExec(insertReqSQL).WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	_, err := m.RequestPayout(context.Background(), "acct-1", "30")

	assert.ErrorIs(t, err, apperrors.ErrPayoutInProgress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestPayout_ConflictRetriedOnce(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectBegin()
	mock.ExpectExec(lockSQL).WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()
	expectSuccessfulRequest(mock, "acct-1", 10000, 3000)

	req, err := m.RequestPayout(context.Background(), "acct-1", "30")

	require.NoError(t, err)
	assert.Equal(t, models.Cents(2975), req.AmountNet)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestPayout_SecondConflictSurfaces(t *testing.T) {
	m, mock := newTestManager(t)
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		expectLockAndOpen(mock, "acct-1", "")
		mock.ExpectQuery(availableSQL).WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
		mock.ExpectRollback()
	}

	_, err := m.RequestPayout(context.Background(), "acct-1", "30")

	assert.ErrorIs(t, err, apperrors.ErrLedgerConflict)
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.True(t, stdErr.Retryable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestPayout_DatabaseError(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := m.RequestPayout(context.Background(), "acct-1", "30")

	assertCode(t, err, apperrors.ErrCodeQueryExecutionFailed)
}

func TestRequestPayout_MissingAccount(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.RequestPayout(context.Background(), "", "30")

	assertCode(t, err, apperrors.ErrCodeValidationFailed)
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]models.PayoutStatus]bool{
		{models.PayoutPending, models.PayoutProcessing}:   true,
		{models.PayoutPending, models.PayoutCancelled}:    true,
		{models.PayoutPending, models.PayoutFailed}:       true,
		{models.PayoutProcessing, models.PayoutCompleted}: true,
		{models.PayoutProcessing, models.PayoutFailed}:    true,
	}
	all := []models.PayoutStatus{
		models.PayoutPending, models.PayoutProcessing, models.PayoutCompleted,
		models.PayoutFailed, models.PayoutCancelled,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]models.PayoutStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
		if from.IsTerminal() {
			assert.Empty(t, validTransitions[from])
		}
	}
}

func TestTransition_StartProcessing(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectBegin()
	mock.ExpectQuery(forUpdateSQL).WithArgs("payout-1").WillReturnRows(requestRow("payout-1", "acct-1", 3000, models.PayoutPending))
	mock.ExpectExec(updateSQL).
		WithArgs("payout-1", "pending", "processing", nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEvSQL).
		WithArgs("id-1", "payout-1", "acct-1", "pending", "processing", "", "ops", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req, err := m.StartProcessing(context.Background(), "payout-1", "ops")

	require.NoError(t, err)
	assert.Equal(t, models.PayoutProcessing, req.Status)
	assert.Nil(t, req.ProcessedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransition_Complete(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectBegin()
	mock.ExpectQuery(forUpdateSQL).WithArgs("payout-1").WillReturnRows(requestRow("payout-1", "acct-1", 3000, models.PayoutProcessing))
	mock.ExpectExec(updateSQL).
		WithArgs("payout-1", "processing", "completed", testNow, nil, "tr_123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEvSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req, err := m.Complete(context.Background(), "payout-1", "tr_123", "processor")

	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, req.Status)
	require.NotNil(t, req.ProcessedAt)
	assert.Equal(t, testNow, *req.ProcessedAt)
	require.NotNil(t, req.TransferID)
	assert.Equal(t, "tr_123", *req.TransferID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A failed request releases its amount: the balance read after the failure
// excludes it again.
func TestTransition_FailReleasesFunds(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	m, mock := newTestManager(t, WithTracer(tp.Tracer("payout-test")))
	ctx := context.Background()

	expectAvailable(mock, "acct-1", 10000)
	before, err := m.Ledger().Available(ctx, nil, "acct-1")
	require.NoError(t, err)

	expectSuccessfulRequest(mock, "acct-1", 10000, 4000)
	req, err := m.RequestPayout(ctx, "acct-1", "40")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(forUpdateSQL).WithArgs(req.ID).WillReturnRows(requestRow(req.ID, "acct-1", 4000, models.PayoutPending))
	mock.ExpectExec(updateSQL).
		WithArgs(req.ID, "pending", "failed", testNow, "bank rejected", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEvSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	failed, err := m.Fail(ctx, req.ID, "bank rejected", "processor")
	require.NoError(t, err)
	require.NotNil(t, failed.FailureReason)
	assert.Equal(t, "bank rejected", *failed.FailureReason)
	assert.True(t, failed.Status.ReleasesFunds())

	var released string
	for _, sp := range spans.Ended() {
		if sp.Name() != "payout.transition" {
			continue
		}
		for _, kv := range sp.Attributes() {
			if kv.Key == "payout.released_amount" {
				released = kv.Value.AsString()
			}
		}
	}
	assert.Equal(t, "40.00", released)

	expectAvailable(mock, "acct-1", 10000)
	after, err := m.Ledger().Available(ctx, nil, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransition_TerminalStatesReject(t *testing.T) {
	terminal := []models.PayoutStatus{models.PayoutCompleted, models.PayoutFailed, models.PayoutCancelled}
	targets := []models.PayoutStatus{
		models.PayoutPending, models.PayoutProcessing, models.PayoutCompleted,
		models.PayoutFailed, models.PayoutCancelled,
	}

	for _, from := range terminal {
		for _, to := range targets {
			t.Run(fmt.Sprintf("%s_to_%s", from, to), func(t *testing.T) {
				m, mock := newTestManager(t)
				mock.ExpectBegin()
				mock.ExpectQuery(forUpdateSQL).WillReturnRows(requestRow("payout-1", "acct-1", 3000, from))
				mock.ExpectRollback()

				_, err := m.Transition(context.Background(), "payout-1", to, TransitionOptions{Reason: "x"})

				assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
				assert.NoError(t, mock.ExpectationsWereMet())
			})
		}
	}
}

func TestTransition_NotFound(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectBegin()
	mock.ExpectQuery(forUpdateSQL).WillReturnRows(sqlmock.NewRows(requestColumns))
	mock.ExpectRollback()

	_, err := m.Cancel(context.Background(), "missing", "user request", "acct-1")

	assert.ErrorIs(t, err, apperrors.ErrPayoutNotFound)
}

func TestTransition_LostCompareAndSet(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectBegin()
	mock.ExpectQuery(forUpdateSQL).WillReturnRows(requestRow("payout-1", "acct-1", 3000, models.PayoutPending))
	mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := m.Cancel(context.Background(), "payout-1", "", "acct-1")

	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

type mockAudit struct{ mock.Mock }

func (m *mockAudit) IndexEvent(ctx context.Context, ev models.PayoutEvent, req *models.PayoutRequest) error {
	return m.Called(ev.ToStatus, req.ID).Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) PayoutChanged(ctx context.Context, req *models.PayoutRequest, ev models.PayoutEvent) error {
	return m.Called(ev.ToStatus).Error(0)
}

func TestSideEffectFailuresAreNotReturned(t *testing.T) {
	audit := &mockAudit{}
	audit.On("IndexEvent", models.PayoutCancelled, "payout-1").Return(errors.New("es down"))
	notifier := &mockNotifier{}
	notifier.On("PayoutChanged", models.PayoutCancelled).Return(errors.New("sns down"))

	m, mock := newTestManager(t, WithAuditSink(audit), WithNotifier(notifier))
	mock.ExpectBegin()
	mock.ExpectQuery(forUpdateSQL).WillReturnRows(requestRow("payout-1", "acct-1", 3000, models.PayoutPending))
	mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEvSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req, err := m.Cancel(context.Background(), "payout-1", "changed my mind", "acct-1")

	require.NoError(t, err)
	assert.Equal(t, models.PayoutCancelled, req.Status)
	assert.Nil(t, req.ProcessedAt)
	audit.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestGetAndListRequests(t *testing.T) {
	m, mock := newTestManager(t)
	processed := testNow
	mock.ExpectQuery(`FROM payout_requests\s+WHERE id = \$1$`).WithArgs("payout-1").
		WillReturnRows(sqlmock.NewRows(requestColumns).
			AddRow("payout-1", "acct-1", int64(3000), int64(25), int64(2975), "completed", testNow.Add(-time.Hour), processed, nil, "tr_1"))
	mock.ExpectQuery(`WHERE account_id = \$1\s+ORDER BY requested_at DESC`).WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows(requestColumns).
			AddRow("payout-2", "acct-1", int64(2500), int64(25), int64(2475), "pending", testNow, nil, nil, nil).
			AddRow("payout-1", "acct-1", int64(3000), int64(25), int64(2975), "completed", testNow.Add(-time.Hour), processed, nil, "tr_1"))
	mock.ExpectQuery(`FROM payout_requests\s+WHERE id = \$1$`).WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	req, err := m.GetRequest(context.Background(), "payout-1")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, req.Status)
	require.NotNil(t, req.TransferID)
	assert.Equal(t, "tr_1", *req.TransferID)

	list, err := m.ListRequests(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "payout-2", list[0].ID)

	_, err = m.GetRequest(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrPayoutNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsFromConfig(t *testing.T) {
	s := SettingsFromConfig(config.PayoutConfig{MinimumAmount: "20.00", TransferFee: "0.25"})
	assert.Equal(t, testSettings, s)
}
