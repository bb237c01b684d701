package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservability_Lifecycle(t *testing.T) {
	obs, err := New("settlement-engine-test")
	require.NoError(t, err)

	ctx, span := obs.Tracer().Start(context.Background(), "payout.request")
	obs.RecordJob(ctx, "payout.request.create", "completed", 12*time.Millisecond)
	span.End()

	assert.NoError(t, obs.Shutdown(context.Background()))
}

func TestObservability_NilSafe(t *testing.T) {
	var obs *Observability
	assert.NotNil(t, obs.Tracer())
	assert.NotPanics(t, func() {
		obs.RecordJob(context.Background(), "x", "failed", time.Millisecond)
	})
	assert.NoError(t, obs.Shutdown(context.Background()))
}
