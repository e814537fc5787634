package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/vp-storefront/internal/auth"
	"github.com/tbourn/vp-storefront/internal/domain"
)

// PurchaseReader loads a stored purchase owned by a user.
type PurchaseReader interface {
	Get(ctx context.Context, id, userID string) (*domain.Purchase, error)
}

// CheckoutService keeps the live checkouts of the process, keyed by id.
// Idle checkouts are evicted after TTL; a checkout that is confirming is
// never evicted.
type CheckoutService struct {
	Remote        RemoteStore
	Local         LocalStore
	Purchases     PurchaseReader
	Scheduler     Scheduler
	RedirectDelay time.Duration
	TTL           time.Duration
	Now           func() time.Time
	NewID         func() string
	Logger        zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	c        *Checkout
	lastSeen time.Time
}

// NewCheckoutService wires the stores with default timing.
func NewCheckoutService(remote RemoteStore, local LocalStore, purchases PurchaseReader) *CheckoutService {
	return &CheckoutService{
		Remote:        remote,
		Local:         local,
		Purchases:     purchases,
		Scheduler:     TimerScheduler{},
		RedirectDelay: DefaultRedirectDelay,
		TTL:           30 * time.Minute,
		Now:           time.Now,
		NewID:         uuid.NewString,
		Logger:        log.Logger,
		sessions:      make(map[string]*session),
	}
}

func (s *CheckoutService) deps() CheckoutDeps {
	logger := s.Logger
	return CheckoutDeps{
		Remote:        s.Remote,
		Local:         s.Local,
		Scheduler:     s.Scheduler,
		RedirectDelay: s.RedirectDelay,
		Now:           s.Now,
		NewID:         s.NewID,
		Logger:        logger,
		Navigate: func(id, to string) {
			logger.Debug().Str("checkout_id", id).Str("to", to).Msg("redirect fired")
		},
	}
}

// Start opens a checkout for pkg. Without a valid package the aborted view
// is returned with ErrPackageRequired and nothing is registered.
func (s *CheckoutService) Start(ctx context.Context, pkg *domain.Package) (CheckoutView, error) {
	_, span := otel.Tracer("services/CheckoutService").Start(ctx, "Start")
	defer span.End()

	now := s.Now()
	s.Sweep(now)

	c, err := NewCheckout(s.NewID(), pkg, s.deps())
	if err != nil {
		return c.Snapshot(), err
	}
	span.SetAttributes(
		attribute.String("checkout.id", c.ID()),
		attribute.Int("package.points", pkg.Points),
	)

	s.mu.Lock()
	if s.sessions == nil {
		s.sessions = make(map[string]*session)
	}
	s.sessions[c.ID()] = &session{c: c, lastSeen: now}
	s.mu.Unlock()

	return c.Snapshot(), nil
}

// lookup returns the checkout and refreshes its idle timer.
func (s *CheckoutService) lookup(id string) (*Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrCheckoutNotFound
	}
	sess.lastSeen = s.Now()
	return sess.c, nil
}

// Get returns the current view of checkout id.
func (s *CheckoutService) Get(_ context.Context, id string) (CheckoutView, error) {
	c, err := s.lookup(id)
	if err != nil {
		return CheckoutView{}, err
	}
	return c.Snapshot(), nil
}

// UpdateAccount stores edited account fields on checkout id.
func (s *CheckoutService) UpdateAccount(_ context.Context, id, riotID, riotTag string) (CheckoutView, error) {
	c, err := s.lookup(id)
	if err != nil {
		return CheckoutView{}, err
	}
	if err := c.SetAccount(riotID, riotTag); err != nil {
		return c.Snapshot(), err
	}
	return c.Snapshot(), nil
}

// Confirm confirms checkout id for who. The view is returned alongside any
// error so callers can show the current reason.
func (s *CheckoutService) Confirm(ctx context.Context, id string, who auth.Identity) (CheckoutView, error) {
	ctx, span := otel.Tracer("services/CheckoutService").Start(ctx, "Confirm",
		trace.WithAttributes(attribute.String("checkout.id", id)),
	)
	defer span.End()

	c, err := s.lookup(id)
	if err != nil {
		return CheckoutView{}, err
	}
	_, err = c.Confirm(ctx, who)
	return c.Snapshot(), err
}

// CancelRedirect cancels the pending redirect of checkout id.
func (s *CheckoutService) CancelRedirect(_ context.Context, id string) (CheckoutView, error) {
	c, err := s.lookup(id)
	if err != nil {
		return CheckoutView{}, err
	}
	c.CancelRedirect()
	return c.Snapshot(), nil
}

// Purchase loads a purchase from the remote store on behalf of userID.
func (s *CheckoutService) Purchase(ctx context.Context, id, userID string) (*domain.Purchase, error) {
	if s.Purchases == nil {
		return nil, ErrPurchaseNotFound
	}
	p, err := s.Purchases.Get(ctx, id, userID)
	if err != nil || p == nil {
		return nil, ErrPurchaseNotFound
	}
	return p, nil
}

// Sweep evicts checkouts idle since before now-TTL and returns how many were
// removed. Pending redirects of evicted checkouts are cancelled.
func (s *CheckoutService) Sweep(now time.Time) int {
	if s.TTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.TTL)

	s.mu.Lock()
	var evicted []*Checkout
	for id, sess := range s.sessions {
		if sess.lastSeen.After(cutoff) || sess.c.State() == StateConfirming {
			continue
		}
		delete(s.sessions, id)
		evicted = append(evicted, sess.c)
	}
	s.mu.Unlock()

	for _, c := range evicted {
		c.CancelRedirect()
	}
	if len(evicted) > 0 {
		s.Logger.Debug().Int("count", len(evicted)).Msg("evicted idle checkouts")
	}
	return len(evicted)
}

// Len returns the number of live checkouts.
func (s *CheckoutService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
