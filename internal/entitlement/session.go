package entitlement

import (
	"context"
	"errors"
	"sync"

	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/common/metrics"
	"settlement-engine/internal/entitlement/events"
	"settlement-engine/internal/entitlement/role"
	"settlement-engine/internal/models"
)

var ErrSessionClosed = errors.New("entitlement session closed")

// Session joins auth, role and subscription for one signed-in account.
// Role and subscription are fetched asynchronously; the entitlement is only
// published once both have settled, and results that arrive for a
// superseded account or fetch generation are discarded.
type Session struct {
	resolver RoleResolver
	reader   SubscriptionReader
	calc     *Calculator
	logger   logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	started   bool
	auth      models.AuthState
	role      *models.RoleResolution
	sub       *models.SubscriptionSnapshot
	subLoaded bool
	current   *models.Entitlement
	changed   chan struct{}

	roleGen    uint64
	subGen     uint64
	cancelRole context.CancelFunc
	cancelSub  context.CancelFunc

	unsubscribe func()
}

// NewSession creates a session. When bus is non-nil the session listens for
// refresh events for its account.
func NewSession(resolver RoleResolver, reader SubscriptionReader, calc *Calculator, bus *events.Bus, log logger.Logger) *Session {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		resolver: resolver,
		reader:   reader,
		calc:     calc,
		logger:   log.WithFields(map[string]interface{}{"component": "entitlement-session"}),
		ctx:      ctx,
		cancel:   cancel,
		changed:  make(chan struct{}),
	}
	if bus != nil {
		s.unsubscribe = bus.Subscribe(s.onEvent)
	}
	return s
}

// SetAuth records the auth provider's latest state. A different account
// clears everything and restarts both fetches; a change in role inputs for
// the same account restarts the role fetch only.
func (s *Session) SetAuth(auth models.AuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	prev := s.auth
	s.auth = auth

	if !s.started || !auth.SameAccount(prev) {
		s.started = true
		s.role = nil
		s.sub = nil
		s.subLoaded = false
		s.startRole()
		s.startSubscription()
	} else if roleInputsChanged(prev, auth) {
		s.role = nil
		s.startRole()
	}
	s.recompute()
}

// Refresh drops the cached role and re-fetches both inputs. The previous
// entitlement stays visible until the new results arrive.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	accountID := s.auth.AccountID
	s.mu.Unlock()

	if err := s.resolver.Invalidate(ctx, accountID); err != nil {
		s.logger.Warn("role cache invalidation failed", map[string]interface{}{
			"accountId": accountID,
			"error":     err.Error(),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.auth.AccountID == accountID {
		s.startRole()
		s.startSubscription()
	}
	return nil
}

// Snapshot returns the current entitlement; nil means deny and wait.
func (s *Session) Snapshot() *models.Entitlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Ready reports whether both inputs have settled for the current account.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyLocked()
}

func (s *Session) CheckAccess(feature models.Feature) bool {
	return NewGuard(s).Allowed(feature)
}

// Wait blocks until the session is ready or ctx is done.
func (s *Session) Wait(ctx context.Context) (*models.Entitlement, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrSessionClosed
		}
		if s.readyLocked() {
			ent := s.current
			s.mu.Unlock()
			return ent, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

// Close cancels in-flight fetches and stops listening for events.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.changed)
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Session) onEvent(ev events.Event) {
	if ev.Type != events.SessionRefresh {
		return
	}

	s.mu.Lock()
	mine := !s.closed && s.auth.AccountID != "" && (ev.AccountID == "" || ev.AccountID == s.auth.AccountID)
	if mine {
		s.wg.Add(1)
	}
	s.mu.Unlock()
	if !mine {
		return
	}

	// handlers must not block the publisher
	go func() {
		defer s.wg.Done()
		if err := s.Refresh(s.ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
			s.logger.Warn("session refresh failed", map[string]interface{}{"error": err.Error()})
		}
	}()
}

// startRole and startSubscription must be called with mu held.
func (s *Session) startRole() {
	if s.cancelRole != nil {
		s.cancelRole()
	}
	s.roleGen++
	gen := s.roleGen
	auth := s.auth

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelRole = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		res := s.resolver.Resolve(ctx, role.InputFromAuth(auth))
		s.commitRole(gen, auth.AccountID, res)
	}()
}

func (s *Session) startSubscription() {
	if s.cancelSub != nil {
		s.cancelSub()
	}
	s.subGen++
	gen := s.subGen
	accountID := s.auth.AccountID

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelSub = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		snap := s.reader.Read(ctx, accountID)
		s.commitSubscription(gen, accountID, snap)
	}()
}

func (s *Session) commitRole(gen uint64, accountID string, res models.RoleResolution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.roleGen || accountID != s.auth.AccountID {
		metrics.SessionStaleResults.Inc()
		return
	}
	s.role = &res
	s.recompute()
}

func (s *Session) commitSubscription(gen uint64, accountID string, snap *models.SubscriptionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.subGen || accountID != s.auth.AccountID {
		metrics.SessionStaleResults.Inc()
		return
	}
	s.sub = snap
	s.subLoaded = true
	s.recompute()
}

func (s *Session) readyLocked() bool {
	return !s.auth.Loading && s.role != nil && !s.role.Pending && s.subLoaded
}

// recompute must be called with mu held. A refresh leaves the previous
// role and snapshot in place, so the old decision stays visible until the
// new results replace it.
func (s *Session) recompute() {
	if s.readyLocked() {
		s.current = s.calc.ComputeMemo(Inputs{
			AccountID:    s.auth.AccountID,
			Role:         *s.role,
			Subscription: s.sub,
		})
	} else {
		s.current = nil
	}

	close(s.changed)
	s.changed = make(chan struct{})
}

func roleInputsChanged(prev, next models.AuthState) bool {
	if prev.Loading != next.Loading ||
		prev.MetadataRole != next.MetadataRole ||
		prev.SecondaryMetadataRole != next.SecondaryMetadataRole {
		return true
	}
	return !sameRoleContext(prev.RoleContext, next.RoleContext)
}

func sameRoleContext(a, b *models.RoleContext) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Role == nil || b.Role == nil {
		return a.Role == b.Role
	}
	return *a.Role == *b.Role
}
