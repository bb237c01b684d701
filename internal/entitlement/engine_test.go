package entitlement

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/entitlement/role"
	"settlement-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type failingLookup struct {
	err error
}

func (f failingLookup) LookupRole(context.Context, string) (models.Role, error) {
	return "", f.err
}

func TestEngine_ResolveJoinsRoleAndSubscription(t *testing.T) {
	resolver := newFakeResolver(map[string]models.Role{"acct-1": models.RoleUser})
	reader := &fakeReader{subs: map[string]*models.SubscriptionSnapshot{
		"acct-1": snapshot("", "trialing", nil),
	}}
	engine := NewEngine(resolver, reader, newCalc(), logger.NewTestLogger(t))

	d := engine.Resolve(context.Background(), models.AuthState{AccountID: "acct-1"})

	assert.True(t, d.Ready)
	require.NotNil(t, d.Entitlement)
	assert.True(t, d.Entitlement.IsTrialActive)
	assert.True(t, d.Entitlement.Features.Calendar)
	assert.True(t, d.Entitlement.Features.Tasks)
	assert.False(t, d.Entitlement.Features.Referrals)
	assert.Equal(t, models.RoleUser, d.Role.Role)
}

func TestEngine_AuthLoadingIsNotReady(t *testing.T) {
	resolver := newFakeResolver(map[string]models.Role{"acct-1": models.RoleAdmin})
	engine := NewEngine(resolver, &fakeReader{}, newCalc(), nil)

	allowed, d := engine.CheckAccess(context.Background(), models.AuthState{AccountID: "acct-1", Loading: true}, models.FeatureCalendar)

	assert.False(t, allowed)
	assert.False(t, d.Ready)
	assert.Nil(t, d.Entitlement)
	assert.Equal(t, 0, resolver.callCount("acct-1"))
}

func TestEngine_ExpiredCredentialFailsClosed(t *testing.T) {
	lookup := failingLookup{err: fmt.Errorf("refresh token: %w", role.ErrCredentialExpired)}
	resolver := role.NewResolver(role.NewMemoryCache(0), lookup, logger.NewTestLogger(t))
	reader := &fakeReader{subs: map[string]*models.SubscriptionSnapshot{
		"acct-1": snapshot("price_excellence_monthly", "active", nil),
	}}
	core, logs := observer.New(zapcore.WarnLevel)
	engine := NewEngine(resolver, reader, newCalc(), logger.NewZapAdapter(zap.New(core)))

	allowed, d := engine.CheckAccess(context.Background(), models.AuthState{AccountID: "acct-1"}, models.FeatureStats)

	assert.Equal(t, models.RoleUnresolved, d.Role.Role)
	assert.Nil(t, d.Entitlement)
	assert.False(t, allowed)
	assert.Equal(t, 1, logs.FilterMessage("role unresolved, access stays closed").Len())
}

func TestEngine_SubscriptionFailureStillDecides(t *testing.T) {
	lookup := failingLookup{err: errors.New("unused")}
	resolver := role.NewResolver(nil, lookup, nil)
	engine := NewEngine(resolver, &fakeReader{}, newCalc(), nil)

	d := engine.Resolve(context.Background(), models.AuthState{AccountID: "acct-1", MetadataRole: "user"})

	require.NotNil(t, d.Entitlement)
	assert.Equal(t, models.PlanFree, d.Entitlement.Plan)
	assert.Nil(t, d.Subscription)
}

func TestEngine_Invalidate(t *testing.T) {
	resolver := newFakeResolver(nil)
	engine := NewEngine(resolver, &fakeReader{}, newCalc(), nil)

	require.NoError(t, engine.Invalidate(context.Background(), "acct-1"))
	assert.Equal(t, []string{"acct-1"}, resolver.invalidated)
}
