// Package role resolves an account's authorization role from the ordered
// sources the session knows about, falling back to a cached backing lookup.
package role

import (
	"context"
	"errors"
	"time"

	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/common/metrics"
	"settlement-engine/internal/models"

	"golang.org/x/sync/singleflight"
)

// Input is everything the resolver needs for one pass.
type Input struct {
	AccountID   string
	AuthLoading bool

	// Context, when non-nil, is authoritative even if its Role is nil.
	Context *models.RoleContext

	MetadataRole          string
	SecondaryMetadataRole string
}

// InputFromAuth builds resolver input from the auth provider's state.
func InputFromAuth(auth models.AuthState) Input {
	return Input{
		AccountID:             auth.AccountID,
		AuthLoading:           auth.Loading,
		Context:               auth.RoleContext,
		MetadataRole:          auth.MetadataRole,
		SecondaryMetadataRole: auth.SecondaryMetadataRole,
	}
}

// Lookup failure kinds, used as the metric label.
const (
	failureCredential = "credential"
	failureTimeout    = "timeout"
	failureOther      = "other"
)

type Resolver struct {
	cache         Cache
	lookup        Lookup
	lookupTimeout time.Duration
	group         singleflight.Group
	logger        logger.Logger
	now           func() time.Time
}

type Option func(*Resolver)

// WithClock overrides the time source stamped on resolutions.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLookupTimeout bounds each backing lookup. Zero leaves it to the caller's deadline.
func WithLookupTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.lookupTimeout = d }
}

func NewResolver(cache Cache, lookup Lookup, log logger.Logger, opts ...Option) *Resolver {
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	r := &Resolver{
		cache:  cache,
		lookup: lookup,
		logger: log.WithFields(map[string]interface{}{"component": "role-resolver"}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the resolution order. It never returns an error: anything
// ambiguous comes back as Pending or RoleUnresolved.
func (r *Resolver) Resolve(ctx context.Context, in Input) models.RoleResolution {
	if in.AuthLoading {
		return models.RoleResolution{Pending: true, Source: models.RoleSourceNone}
	}
	if in.AccountID == "" {
		return r.settle(models.RoleUnresolved, models.RoleSourceNone)
	}

	if in.Context != nil {
		if in.Context.Role == nil {
			return r.settle(models.RoleUnresolved, models.RoleSourceContext)
		}
		role, ok := models.ParseRole(string(*in.Context.Role))
		if !ok {
			return r.settle(models.RoleUnresolved, models.RoleSourceContext)
		}
		return r.settle(role, models.RoleSourceContext)
	}

	for _, claim := range []string{in.MetadataRole, in.SecondaryMetadataRole} {
		if role, ok := models.ParseRole(claim); ok {
			r.store(ctx, in.AccountID, role)
			return r.settle(role, models.RoleSourceMetadata)
		}
	}

	if role, ok, err := r.cache.Get(ctx, in.AccountID); err != nil {
		r.logger.Warn("role cache read failed", map[string]interface{}{
			"accountId": in.AccountID,
			"error":     err.Error(),
		})
	} else if ok {
		return r.settle(role, models.RoleSourceCache)
	}

	return r.resolveFromLookup(ctx, in.AccountID)
}

func (r *Resolver) resolveFromLookup(ctx context.Context, accountID string) models.RoleResolution {
	if r.lookup == nil {
		return r.settle(models.RoleUnresolved, models.RoleSourceNone)
	}

	v, err, _ := r.group.Do(accountID, func() (interface{}, error) {
		lctx, cancel := r.sharedLookupContext(ctx)
		defer cancel()
		return r.lookup.LookupRole(lctx, accountID)
	})
	if err != nil {
		kind := classify(err)
		metrics.RoleLookupFailures.WithLabelValues(kind).Inc()
		r.logger.Warn("role lookup failed, access stays closed", map[string]interface{}{
			"accountId": accountID,
			"kind":      kind,
			"error":     err.Error(),
		})
		return r.settle(models.RoleUnresolved, models.RoleSourceLookup)
	}

	role := v.(models.Role)
	r.store(ctx, accountID, role)
	return r.settle(role, models.RoleSourceLookup)
}

// sharedLookupContext detaches the lookup from the caller that happened to
// start it: callers joining the same in-flight lookup must not inherit its
// cancellation. The lookup timeout, or else the caller's deadline, still bounds it.
func (r *Resolver) sharedLookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if r.lookupTimeout > 0 {
		return context.WithTimeout(detached, r.lookupTimeout)
	}
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return detached, func() {}
}

// Invalidate drops the cached role for an account. Called on session refresh.
func (r *Resolver) Invalidate(ctx context.Context, accountID string) error {
	if accountID == "" {
		return nil
	}
	return r.cache.Invalidate(ctx, accountID)
}

func (r *Resolver) store(ctx context.Context, accountID string, role models.Role) {
	if err := r.cache.Set(ctx, accountID, role); err != nil {
		r.logger.Warn("role cache write failed", map[string]interface{}{
			"accountId": accountID,
			"error":     err.Error(),
		})
	}
}

func (r *Resolver) settle(role models.Role, source models.RoleSource) models.RoleResolution {
	metrics.RoleResolutions.WithLabelValues(string(source), string(role)).Inc()
	return models.RoleResolution{
		Role:       role,
		Source:     source,
		ResolvedAt: r.now(),
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, ErrCredentialExpired):
		return failureCredential
	case errors.Is(err, context.DeadlineExceeded):
		return failureTimeout
	default:
		return failureOther
	}
}
