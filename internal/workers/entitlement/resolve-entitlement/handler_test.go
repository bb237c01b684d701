// internal/workers/entitlement/resolve-entitlement/handler_test.go
package resolveentitlement

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
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	decision entitlement.Decision
	got      models.AuthState
}

func (s *stubResolver) Resolve(_ context.Context, auth models.AuthState) entitlement.Decision {
	s.got = auth
	return s.decision
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	raw, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "entitlement-check",
		ElementId:          "Activity_ResolveEntitlement",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(raw),
	}}
}

func createTestHandler(t *testing.T, r Resolver) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, r, logger.NewTestLogger(t))
}

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &stubResolver{})

	tests := []struct {
		name     string
		vars     map[string]interface{}
		wantCode apperrors.ErrorCode
		check    func(t *testing.T, in *Input)
	}{
		{
			name: "plain account with metadata claim",
			vars: map[string]interface{}{"accountId": "acct-1", "metadataRole": "admin", "orderId": 42},
			check: func(t *testing.T, in *Input) {
				assert.Equal(t, "acct-1", in.AccountID)
				assert.Equal(t, "admin", in.MetadataRole)
				assert.Nil(t, in.RoleContext)
			},
		},
		{
			name: "role context with explicit null role",
			vars: map[string]interface{}{"accountId": "acct-1", "roleContext": map[string]interface{}{"role": nil}},
			check: func(t *testing.T, in *Input) {
				require.NotNil(t, in.RoleContext)
				assert.Nil(t, in.RoleContext.Role)
			},
		},
		{
			name: "role context with user role",
			vars: map[string]interface{}{"accountId": "acct-1", "roleContext": map[string]interface{}{"role": "user"}},
			check: func(t *testing.T, in *Input) {
				require.NotNil(t, in.RoleContext.Role)
				assert.Equal(t, models.RoleUser, *in.RoleContext.Role)
			},
		},
		{
			name:     "missing account id",
			vars:     map[string]interface{}{"loading": true},
			wantCode: apperrors.ErrCodeValidationFailed,
		},
		{
			name:     "unknown context role",
			vars:     map[string]interface{}{"accountId": "acct-1", "roleContext": map[string]interface{}{"role": "root"}},
			wantCode: apperrors.ErrCodeValidationFailed,
		},
		{
			name:     "loading flag of the wrong type",
			vars:     map[string]interface{}{"accountId": "acct-1", "loading": "yes"},
			wantCode: apperrors.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := h.parseInput(createMockJob(1, tt.vars))
			if tt.wantCode != "" {
				require.Error(t, err)
				stdErr, ok := apperrors.AsStandardError(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, stdErr.Code)
				assert.False(t, stdErr.Retryable)
				return
			}
			require.NoError(t, err)
			tt.check(t, in)
		})
	}
}

func TestHandler_Execute(t *testing.T) {
	days := 5
	tests := []struct {
		name     string
		decision entitlement.Decision
		want     Output
	}{
		{
			name: "pending role is not ready",
			decision: entitlement.Decision{
				Role: models.RoleResolution{Pending: true, Source: models.RoleSourceNone},
			},
			want: Output{RolePending: true},
		},
		{
			name: "unresolved role denies",
			decision: entitlement.Decision{
				Ready: true,
				Role:  models.RoleResolution{Role: models.RoleUnresolved, Source: models.RoleSourceLookup},
			},
			want: Output{Role: models.RoleUnresolved, RoleSource: models.RoleSourceLookup},
		},
		{
			name: "trialing user",
			decision: entitlement.Decision{
				Ready: true,
				Role:  models.RoleResolution{Role: models.RoleUser, Source: models.RoleSourceMetadata},
				Entitlement: &models.Entitlement{
					AccountID:          "acct-1",
					Plan:               models.PlanFree,
					Features:           models.FeatureSet{Calendar: true, Tasks: true},
					IsTrialActive:      true,
					TrialDaysRemaining: &days,
				},
				Subscription: &models.SubscriptionSnapshot{Status: models.SubscriptionTrialing},
			},
			want: Output{
				EntitlementReady:   true,
				Role:               models.RoleUser,
				RoleSource:         models.RoleSourceMetadata,
				Plan:               models.PlanFree,
				SubscriptionStatus: models.SubscriptionTrialing,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubResolver{decision: tt.decision}
			out, err := createTestHandler(t, r).Execute(context.Background(), &Input{AccountID: "acct-1"})

			require.NoError(t, err)
			assert.Equal(t, "acct-1", r.got.AccountID)
			assert.Equal(t, tt.want.EntitlementReady, out.EntitlementReady)
			assert.Equal(t, tt.want.RolePending, out.RolePending)
			assert.Equal(t, tt.want.Role, out.Role)
			assert.Equal(t, tt.want.RoleSource, out.RoleSource)
			assert.Equal(t, tt.want.Plan, out.Plan)
			assert.Equal(t, tt.want.SubscriptionStatus, out.SubscriptionStatus)
			assert.Equal(t, tt.decision.Entitlement, out.Entitlement)
		})
	}
}

func TestConfigFromApp(t *testing.T) {
	assert.Equal(t, 10*time.Second, ConfigFromApp(nil).Timeout)
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{}).Validate())
}
