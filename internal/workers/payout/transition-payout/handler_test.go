// internal/workers/payout/transition-payout/handler_test.go
package transitionpayout

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	apperrors "settlement-engine/internal/common/errors"
	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/models"
	"settlement-engine/internal/payout"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPayouts struct{ mock.Mock }

func (m *mockPayouts) Transition(ctx context.Context, id string, to models.PayoutStatus, opts payout.TransitionOptions) (*models.PayoutRequest, error) {
	args := m.Called(id, to, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PayoutRequest), args.Error(1)
}

func (m *mockPayouts) GetRequest(ctx context.Context, id string) (*models.PayoutRequest, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PayoutRequest), args.Error(1)
}

func createMockJob(variables map[string]interface{}) entities.Job {
	raw, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:           31,
		Type:          TaskType,
		CustomHeaders: "{}",
		Retries:       3,
		Variables:     string(raw),
	}}
}

func newHandler(t *testing.T, p Transitioner) *Handler {
	return NewHandler(&Config{Timeout: time.Second, DefaultActor: "workflow"}, p, logger.NewTestLogger(t))
}

func TestHandler_ParseInput(t *testing.T) {
	h := newHandler(t, &mockPayouts{})

	in, err := h.parseInput(createMockJob(map[string]interface{}{
		"payoutRequestId": "payout-1",
		"targetStatus":    "completed",
		"transferId":      "tr_1",
	}))
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, in.TargetStatus)
	assert.Equal(t, "workflow", in.Actor)

	_, err = h.parseInput(createMockJob(map[string]interface{}{
		"payoutRequestId": "payout-1",
		"targetStatus":    "pending",
	}))
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
}

func TestHandler_Execute_Complete(t *testing.T) {
	processed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	transfer := "tr_1"
	p := &mockPayouts{}
	p.On("Transition", "payout-1", models.PayoutCompleted, payout.TransitionOptions{TransferID: "tr_1", Actor: "processor"}).
		Return(&models.PayoutRequest{
			ID:          "payout-1",
			Status:      models.PayoutCompleted,
			AmountNet:   9975,
			ProcessedAt: &processed,
			TransferID:  &transfer,
		}, nil)

	out, err := newHandler(t, p).Execute(context.Background(), &Input{
		PayoutRequestID: "payout-1",
		TargetStatus:    models.PayoutCompleted,
		TransferID:      "tr_1",
		Actor:           "processor",
	})

	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, out.PayoutStatus)
	assert.Equal(t, "99.75", out.AmountNet)
	assert.Equal(t, "tr_1", out.TransferID)
	assert.Equal(t, &processed, out.ProcessedAt)
	assert.False(t, out.Replayed)
}

func TestHandler_Execute_RedeliveredJobIsReplayed(t *testing.T) {
	reason := "iban rejected"
	p := &mockPayouts{}
	p.On("Transition", "payout-1", models.PayoutFailed, mock.Anything).
		Return(nil, apperrors.NewPayoutInvalidTransitionError("payout-1", "failed", "failed"))
	p.On("GetRequest", "payout-1").
		Return(&models.PayoutRequest{ID: "payout-1", Status: models.PayoutFailed, FailureReason: &reason}, nil)

	out, err := newHandler(t, p).Execute(context.Background(), &Input{
		PayoutRequestID: "payout-1",
		TargetStatus:    models.PayoutFailed,
		Reason:          reason,
	})

	require.NoError(t, err)
	assert.True(t, out.Replayed)
	assert.Equal(t, reason, out.FailureReason)
}

func TestHandler_Execute_InvalidTransitionIsThrown(t *testing.T) {
	p := &mockPayouts{}
	p.On("Transition", "payout-1", models.PayoutCancelled, mock.Anything).
		Return(nil, apperrors.NewPayoutInvalidTransitionError("payout-1", "completed", "cancelled"))
	p.On("GetRequest", "payout-1").
		Return(&models.PayoutRequest{ID: "payout-1", Status: models.PayoutCompleted}, nil)

	_, err := newHandler(t, p).Execute(context.Background(), &Input{
		PayoutRequestID: "payout-1",
		TargetStatus:    models.PayoutCancelled,
	})

	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, "PAYOUT_INVALID_TRANSITION", apperrors.ConvertToBPMNError(apperrors.Normalize(err)).Code)
}

func TestHandler_Execute_NotFound(t *testing.T) {
	p := &mockPayouts{}
	p.On("Transition", "missing", models.PayoutProcessing, mock.Anything).
		Return(nil, apperrors.NewPayoutNotFoundError("missing"))

	_, err := newHandler(t, p).Execute(context.Background(), &Input{
		PayoutRequestID: "missing",
		TargetStatus:    models.PayoutProcessing,
	})

	assert.ErrorIs(t, err, apperrors.ErrPayoutNotFound)
	p.AssertNotCalled(t, "GetRequest", mock.Anything)
}
