// internal/workers/entitlement/check-feature-access/handler_test.go
package checkfeatureaccess

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	apperrors "settlement-engine/internal/common/errors"
	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/entitlement"
	"settlement-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChecker struct{ mock.Mock }

func (m *mockChecker) CheckAccess(ctx context.Context, auth models.AuthState, feature models.Feature) (bool, entitlement.Decision) {
	args := m.Called(auth.AccountID, feature)
	return args.Bool(0), args.Get(1).(entitlement.Decision)
}

func createMockJob(variables map[string]interface{}) entities.Job {
	raw, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:           7,
		Type:          TaskType,
		CustomHeaders: "{}",
		Retries:       3,
		Variables:     string(raw),
	}}
}

func newHandler(t *testing.T, c AccessChecker) *Handler {
	return NewHandler(&Config{Timeout: time.Second}, c, logger.NewTestLogger(t))
}

func TestHandler_ParseInput(t *testing.T) {
	h := newHandler(t, &mockChecker{})

	in, err := h.parseInput(createMockJob(map[string]interface{}{
		"accountId":    "acct-1",
		"feature":      "referrals",
		"metadataRole": "user",
	}))
	require.NoError(t, err)
	assert.Equal(t, "acct-1", in.AccountID)
	assert.Equal(t, models.FeatureReferrals, in.Feature)
	assert.Equal(t, "user", in.MetadataRole)

	for name, vars := range map[string]map[string]interface{}{
		"unknown feature": {"accountId": "acct-1", "feature": "billing"},
		"missing feature": {"accountId": "acct-1"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.parseInput(createMockJob(vars))
			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
		})
	}
}

func TestHandler_Execute_Allowed(t *testing.T) {
	c := &mockChecker{}
	c.On("CheckAccess", "acct-1", models.FeatureStats).Return(true, entitlement.Decision{
		Ready:       true,
		Entitlement: models.AdminEntitlement("acct-1"),
	})

	out, err := newHandler(t, c).Execute(context.Background(), &Input{
		AuthState: models.AuthState{AccountID: "acct-1"},
		Feature:   models.FeatureStats,
	})

	require.NoError(t, err)
	assert.True(t, out.Allowed)
	assert.True(t, out.Decided)
	assert.True(t, out.IsAdmin)
	assert.Equal(t, models.PlanExcellence, out.Plan)
	c.AssertExpectations(t)
}

func TestHandler_Execute_UndecidedDenies(t *testing.T) {
	c := &mockChecker{}
	c.On("CheckAccess", "acct-1", models.FeatureCalendar).Return(false, entitlement.Decision{
		Role: models.RoleResolution{Pending: true},
	})

	out, err := newHandler(t, c).Execute(context.Background(), &Input{
		AuthState: models.AuthState{AccountID: "acct-1"},
		Feature:   models.FeatureCalendar,
	})

	require.NoError(t, err)
	assert.False(t, out.Allowed)
	assert.False(t, out.Decided)
	assert.Empty(t, out.Plan)
}
