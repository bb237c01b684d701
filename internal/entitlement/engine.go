package entitlement

import (
	"context"

	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/entitlement/role"
	"settlement-engine/internal/models"

	"golang.org/x/sync/errgroup"
)

// RoleResolver is the part of role.Resolver the join depends on.
type RoleResolver interface {
	Resolve(ctx context.Context, in role.Input) models.RoleResolution
	Invalidate(ctx context.Context, accountID string) error
}

// SubscriptionReader is the part of subscription.Reader the join depends on.
type SubscriptionReader interface {
	Read(ctx context.Context, accountID string) *models.SubscriptionSnapshot
}

// Decision is the joined result of one resolution pass. Ready is false
// while auth or role is still pending; Entitlement may be nil even when
// Ready, for an unresolved role.
type Decision struct {
	Ready        bool
	Entitlement  *models.Entitlement
	Role         models.RoleResolution
	Subscription *models.SubscriptionSnapshot
}

// Engine resolves decisions on demand. It is the request/response form of
// Session, used by the job workers.
type Engine struct {
	resolver RoleResolver
	reader   SubscriptionReader
	calc     *Calculator
	logger   logger.Logger
}

func NewEngine(resolver RoleResolver, reader SubscriptionReader, calc *Calculator, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Engine{
		resolver: resolver,
		reader:   reader,
		calc:     calc,
		logger:   log.WithFields(map[string]interface{}{"component": "entitlement-engine"}),
	}
}

// Resolve fetches role and subscription concurrently and joins them.
func (e *Engine) Resolve(ctx context.Context, auth models.AuthState) Decision {
	if auth.Loading {
		return Decision{Role: models.RoleResolution{Pending: true, Source: models.RoleSourceNone}}
	}

	var (
		res models.RoleResolution
		sub *models.SubscriptionSnapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res = e.resolver.Resolve(gctx, role.InputFromAuth(auth))
		return nil
	})
	g.Go(func() error {
		sub = e.reader.Read(gctx, auth.AccountID)
		return nil
	})
	_ = g.Wait()

	ent := e.calc.Compute(Inputs{
		AccountID:    auth.AccountID,
		Role:         res,
		Subscription: sub,
	})

	if !res.Pending && !res.IsSettled() {
		e.logger.Warn("role unresolved, access stays closed", map[string]interface{}{
			"accountId":  auth.AccountID,
			"roleSource": string(res.Source),
		})
	}

	e.logger.Debug("entitlement resolved", map[string]interface{}{
		"accountId":  auth.AccountID,
		"role":       string(res.Role),
		"roleSource": string(res.Source),
		"decided":    ent != nil,
	})

	return Decision{
		Ready:        !res.Pending,
		Entitlement:  ent,
		Role:         res,
		Subscription: sub,
	}
}

// CheckAccess resolves and answers a single feature query.
func (e *Engine) CheckAccess(ctx context.Context, auth models.AuthState, feature models.Feature) (bool, Decision) {
	d := e.Resolve(ctx, auth)
	allowed := CheckAccess(d.Entitlement, feature)
	recordDecision(d.Entitlement, allowed)
	return allowed, d
}

// Invalidate drops cached role data for an account.
func (e *Engine) Invalidate(ctx context.Context, accountID string) error {
	return e.resolver.Invalidate(ctx, accountID)
}
